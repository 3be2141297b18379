package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/service/audit"
	"github.com/urfave/cli/v3"
)

// Audit selects where executed and cancelled actions are recorded
type Audit struct {
	bucket string
	prefix string
}

func (x *Audit) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "audit-bucket",
			Usage:       "Cloud Storage bucket for the action audit trail. Logged only when empty",
			Category:    "Audit",
			Sources:     cli.EnvVars("GYGES_AUDIT_BUCKET"),
			Destination: &x.bucket,
		},
		&cli.StringFlag{
			Name:        "audit-prefix",
			Usage:       "Object name prefix in the audit bucket",
			Category:    "Audit",
			Value:       "audit/",
			Sources:     cli.EnvVars("GYGES_AUDIT_PREFIX"),
			Destination: &x.prefix,
		},
	}
}

func (x Audit) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", x.bucket),
		slog.String("prefix", x.prefix),
	)
}

// Configure returns the recorder and a function releasing its resources
func (x *Audit) Configure(ctx context.Context) (audit.Recorder, func(), error) {
	if x.bucket == "" {
		return audit.Logger{}, func() {}, nil
	}

	rec, err := audit.NewStorage(ctx, x.bucket, x.prefix)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize audit storage", goerr.V("bucket", x.bucket))
	}
	return rec, func() {
		_ = rec.Close()
	}, nil
}

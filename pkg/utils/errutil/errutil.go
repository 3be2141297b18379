package errutil

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

// Handle logs the error with a message and reports it to Sentry when a client
// has been initialised. It returns err unchanged.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logging.From(ctx).Error(msg, errorAttrs(err)...)
	capture(ctx, err)

	return err
}

// HandleHTTP logs the error and writes an HTTP error response. Only 5xx errors
// are reported to Sentry; 4xx are caller mistakes or failed authentication.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	attrs := append([]any{"status", statusCode}, errorAttrs(err)...)
	logging.From(ctx).Error("HTTP error", attrs...)
	if statusCode >= http.StatusInternalServerError {
		capture(ctx, err)
	}

	http.Error(w, http.StatusText(statusCode), statusCode)
}

func errorAttrs(err error) []any {
	var ge *goerr.Error
	if errors.As(err, &ge) {
		return []any{
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		}
	}
	return []any{"error", err.Error()}
}

func capture(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		var ge *goerr.Error
		if errors.As(err, &ge) {
			for k, v := range ge.Values() {
				scope.SetExtra(k, v)
			}
		}
		if id := hub.CaptureException(err); id != nil {
			logging.From(ctx).Debug("error reported to sentry", slog.String("event_id", string(*id)))
		}
	})
}

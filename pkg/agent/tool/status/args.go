package status

import (
	"fmt"

	"github.com/secmon-lab/gyges/pkg/domain/types"
)

func extractInt64(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%s must be an integer, got %v", key, n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
}

func extractString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	if s == "" {
		return "", fmt.Errorf("%s must not be empty", key)
	}
	return s, nil
}

// extractOptionalString returns nil when key is absent
func extractOptionalString(args map[string]any, key string) (*string, error) {
	if v, ok := args[key]; !ok || v == nil {
		return nil, nil
	}
	s, err := extractString(args, key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// extractStringSlice returns nil when key is absent. JSON arrays arrive as
// []any from the model and as []string from tests.
func extractStringSlice(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch items := v.(type) {
	case []string:
		return append([]string{}, items...), nil
	case []any:
		out := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an array of strings, got %T", key, v)
	}
}

func extractStatus(args map[string]any, key string) (types.ReportStatus, error) {
	s, err := extractString(args, key)
	if err != nil {
		return "", err
	}
	return types.ParseReportStatus(s)
}

func extractBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

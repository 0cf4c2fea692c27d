package log

import (
	"log/slog"
	"testing"
)

func TestNewFromEnvLevels(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level "+tt.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)

			logger := NewFromEnv(ComponentApp)
			if !logger.Enabled(nil, tt.want) {
				t.Errorf("level %s should be enabled for LOG_LEVEL=%q", tt.want, tt.env)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(nil, tt.want-4) {
				t.Errorf("level %s should be disabled for LOG_LEVEL=%q", tt.want-4, tt.env)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	logger := NewFromEnv(ComponentApp)
	scoped := logger.WithComponent(ComponentWorker)

	if scoped.Component() != ComponentWorker {
		t.Errorf("Component() = %q, want %q", scoped.Component(), ComponentWorker)
	}
	if logger.Component() != ComponentApp {
		t.Error("original logger component must not change")
	}
}

func TestFieldsToSlice(t *testing.T) {
	fields := NewFields().
		WithRecord("rec-1", "proj-1", 4000, 1250).
		WithOperation(OpCreate).
		WithComponent(ComponentRecord)

	slice := fields.ToSlice()
	if len(slice) != len(fields)*2 {
		t.Fatalf("ToSlice length = %d, want %d", len(slice), len(fields)*2)
	}

	got := map[string]any{}
	for i := 0; i < len(slice); i += 2 {
		got[slice[i].(string)] = slice[i+1]
	}
	if got[FieldRecordID] != "rec-1" {
		t.Errorf("record id field = %v, want rec-1", got[FieldRecordID])
	}
	if got[FieldRevenueCents] != int64(4000) {
		t.Errorf("revenue field = %v, want 4000", got[FieldRevenueCents])
	}
}

package logging_test

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-myimpact/internal/logging"
)

func TestNew(t *testing.T) {
	t.Parallel()

	logger, err := logging.New("debug", logging.FormatJSON)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug level should be enabled")
	}

	logger, err = logging.New("", "")
	if err != nil {
		t.Fatalf("New defaults: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("default level should be info")
	}
}

func TestNew_Rejects(t *testing.T) {
	t.Parallel()

	if _, err := logging.New("loud", logging.FormatJSON); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := logging.New("info", "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

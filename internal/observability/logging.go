package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process-wide structured logger. Verbose mode switches
// to the development encoder with debug-level output.
func NewLogger(verbose bool) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		log, err = cfg.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log, nil
}

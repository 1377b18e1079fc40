package log

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/config"
)

var Module = fx.Module("log",
	fx.Provide(NewLogger),
)

// NewLogger builds the process-wide zap logger. Production config in
// production, human-readable development config everywhere else.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

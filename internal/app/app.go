package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/dripflow/internal/ctxlog"
	"github.com/specialistvlad/dripflow/internal/metrics"
	"github.com/specialistvlad/dripflow/internal/rules"
)

// ErrFlowInvalid is returned by Run when the flow does not pass validation.
var ErrFlowInvalid = errors.New("flow is invalid")

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logW       io.Writer
	logger     *slog.Logger
	config     *Config
	engine     *rules.Engine
	metrics    *metrics.Metrics
	httpServer *http.Server
}

// NewApp is the constructor for the main application. Reports and converted
// flows go to outW, logs to logW. When a conversion is requested outW
// carries only the converted flow and the report moves to logW. The config
// is expected to have passed NewConfig.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg, logW)
	logger.Debug("Logger configured successfully.")

	// NewConfig has already rejected unknown policies.
	policy, _ := rules.PolicyByName(cfg.ConditionFeeders)
	if policy.Name == "" {
		policy = rules.ChainedPolicy
	}
	logger.Debug("Connection rules configured.", "condition_feeders", policy.Name)

	return &App{
		outW:    outW,
		logW:    logW,
		logger:  logger,
		config:  cfg,
		engine:  rules.NewEngine(policy.Table()),
		metrics: metrics.New(),
	}
}

// Metrics returns the application's metrics. This is primarily for testing.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/reservoir-forecast-service/internal/config"
	"github.com/couchcryptid/reservoir-forecast-service/internal/domain"
	"github.com/couchcryptid/reservoir-forecast-service/internal/observability"
)

// Defaults fill request fields the producer left unset.
type Defaults struct {
	Horizon            int
	DepletionThreshold float64
	DepletionWindow    int
	DepletionScenario  domain.Scenario
}

// DefaultsFromConfig reads request defaults from the service configuration.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		Horizon:            cfg.DefaultHorizon,
		DepletionThreshold: cfg.DepletionThreshold,
		DepletionWindow:    cfg.DepletionWindowDays,
		DepletionScenario:  domain.Scenario(cfg.DepletionScenario),
	}
}

// ForecastTransformer implements Transformer by running the requested
// computation on each message.
type ForecastTransformer struct {
	defaults Defaults
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a ForecastTransformer.
func NewTransformer(defaults Defaults, logger *slog.Logger, metrics *observability.Metrics) *ForecastTransformer {
	return &ForecastTransformer{
		defaults: defaults,
		logger:   logger,
		metrics:  metrics,
	}
}

// Transform parses a request, computes its response, and serializes it.
// Only malformed messages return an error; failed computations become
// degraded responses.
func (t *ForecastTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	t.applyDefaults(&req)

	start := time.Now()
	resp := domain.Execute(req)
	t.metrics.ComputeDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())
	t.record(resp)

	return domain.SerializeResponse(resp)
}

func (t *ForecastTransformer) applyDefaults(req *domain.ForecastRequest) {
	switch req.Kind {
	case domain.KindDemand:
		if req.Demand != nil && req.Demand.Horizon == 0 {
			req.Demand.Horizon = t.defaults.Horizon
		}
	case domain.KindDepletion:
		if req.Depletion == nil {
			req.Depletion = &domain.DepletionRequest{}
		}
		if req.Depletion.Threshold == nil {
			threshold := t.defaults.DepletionThreshold
			req.Depletion.Threshold = &threshold
		}
		if req.Depletion.Window <= 0 {
			req.Depletion.Window = t.defaults.DepletionWindow
		}
		if req.Depletion.Scenario == "" {
			req.Depletion.Scenario = t.defaults.DepletionScenario
		}
	}
}

func (t *ForecastTransformer) record(resp domain.ForecastResponse) {
	if resp.Error != "" {
		t.metrics.DegradedResponses.WithLabelValues(string(resp.Kind)).Inc()
		t.logger.Warn("degraded response", "id", resp.ID, "kind", resp.Kind, "error", resp.Error)
		return
	}
	switch {
	case resp.Demand != nil:
		t.metrics.Forecasts.WithLabelValues(string(resp.Demand.Model)).Inc()
		if len(resp.Demand.Warnings) > 0 {
			t.logger.Info("forecast warnings", "id", resp.ID, "warnings", resp.Demand.Warnings)
		}
	case resp.Depletion != nil:
		t.metrics.DepletionProjections.WithLabelValues(string(resp.Depletion.Scenario)).Inc()
	}
}

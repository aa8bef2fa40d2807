package api

import (
	"net/http"

	"github.com/reelworks/reelworks/internal/health"
	"github.com/reelworks/reelworks/internal/metrics"
	"github.com/reelworks/reelworks/internal/tracing"
)

type Config struct {
	Jobs        *JobConfig
	Checker     *health.Checker
	ServiceName string
}

func NewRouter(cfg *Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/jobs", SubmitJobHandler(cfg.Jobs))
	mux.HandleFunc("GET /v1/jobs", ListJobsHandler(cfg.Jobs))
	mux.HandleFunc("GET /v1/jobs/{id}", GetJobHandler(cfg.Jobs))
	mux.HandleFunc("DELETE /v1/jobs/{id}", CancelJobHandler(cfg.Jobs))
	mux.HandleFunc("GET /v1/jobs/{id}/outputs/url", PresignOutputHandler(cfg.Jobs))

	mux.HandleFunc("GET /health/live", health.LivenessHandler())
	if cfg.Checker != nil {
		mux.HandleFunc("GET /health", health.HealthHandler(cfg.Checker))
		mux.HandleFunc("GET /health/ready", health.ReadinessHandler(cfg.Checker))
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "gateway"
	}

	var handler http.Handler = mux
	handler = metrics.HTTPMetricsMiddleware(handler)
	handler = tracing.HTTPMiddleware(serviceName)(handler)
	handler = RequestLogger(handler)
	handler = RequestID(handler)
	handler = Recovery(handler)
	return handler
}

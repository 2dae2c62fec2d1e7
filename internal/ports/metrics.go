package ports

import "time"

type MetricsRecorder interface {
	ObserveTransition(status string, result string)
	ObserveHTTP(route string, method string, code int, elapsed time.Duration)
	ObserveRelayPublished(n int)
}

// NopMetrics discards observations; used by commands that do not expose /metrics.
type NopMetrics struct{}

func (NopMetrics) ObserveTransition(string, string) {}

func (NopMetrics) ObserveHTTP(string, string, int, time.Duration) {}

func (NopMetrics) ObserveRelayPublished(int) {}

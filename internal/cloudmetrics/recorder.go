package cloudmetrics

import (
	"strings"
	"sync"
)

// Recorder receives accounting events from request handlers. The default is
// a no-op so self-hosted deployments without cloud metrics pay nothing.
type Recorder interface {
	RecordStoryGenerated(behavior string)
	RecordPaywallHit(reason string)
}

type recorder struct {
	metrics *metrics
}

type noopRecorder struct{}

func (noopRecorder) RecordStoryGenerated(string) {}
func (noopRecorder) RecordPaywallHit(string)     {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

func RecordStoryGenerated(behavior string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordStoryGenerated(behavior)
}

func RecordPaywallHit(reason string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordPaywallHit(reason)
}

func (r *recorder) RecordStoryGenerated(behavior string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.storiesGenerated.WithLabelValues(normalizeLabel(behavior)).Inc()
}

func (r *recorder) RecordPaywallHit(reason string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.paywallHits.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}

package indexsync

import (
	"context"
	"time"

	"go.uber.org/zap"

	natsclient "github.com/squadnav-ai/conversational-backend/internal/nats"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

// StatsSource reports sync queue depth.
type StatsSource interface {
	Stats(ctx context.Context) (natsclient.StreamStats, error)
}

// Monitor periodically exports sync queue depth as Prometheus gauges.
type Monitor struct {
	source   StatsSource
	interval time.Duration
	logger   *logger.Logger
}

// NewMonitor creates a queue depth monitor.
func NewMonitor(source StatsSource, interval time.Duration, log *logger.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		source:   source,
		interval: interval,
		logger:   log,
	}
}

// Run polls queue stats until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.report(ctx)
		}
	}
}

func (m *Monitor) report(ctx context.Context) {
	stats, err := m.source.Stats(ctx)
	if err != nil {
		m.logger.Debug("failed to read sync queue stats", zap.Error(err))
		return
	}

	metrics.NATSStreamMessages.WithLabelValues(natsclient.StreamName).Set(float64(stats.Messages))
	metrics.NATSStreamBytes.WithLabelValues(natsclient.StreamName).Set(float64(stats.Bytes))
	metrics.NATSConsumerPending.WithLabelValues(natsclient.StreamName, natsclient.ConsumerName).Set(float64(stats.Pending))
}

package metrics

import (
	"context"
	"runtime"
	"time"

	"codesherpa/internal/logging"
	"codesherpa/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BusinessMetricsCollector periodically refreshes gauges from the database
type BusinessMetricsCollector struct {
	db       *gorm.DB
	metrics  *Metrics
	interval time.Duration
	stopCh   chan struct{}
	log      *zap.Logger
}

// NewBusinessMetricsCollector creates a new business metrics collector
func NewBusinessMetricsCollector(db *gorm.DB, interval time.Duration) *BusinessMetricsCollector {
	return &BusinessMetricsCollector{
		db:       db,
		metrics:  Get(),
		interval: interval,
		stopCh:   make(chan struct{}),
		log:      logging.Named("metrics"),
	}
}

// Start begins periodic business metric collection
func (bmc *BusinessMetricsCollector) Start(ctx context.Context) {
	go func() {
		bmc.collectAll()

		ticker := time.NewTicker(bmc.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				bmc.collectAll()
			case <-bmc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the business metrics collector
func (bmc *BusinessMetricsCollector) Stop() {
	close(bmc.stopCh)
}

func (bmc *BusinessMetricsCollector) collectAll() {
	bmc.collectTableCounts()
	bmc.collectDatabaseMetrics()
	bmc.metrics.GoroutineNum.Set(float64(runtime.NumGoroutine()))
}

func (bmc *BusinessMetricsCollector) collectTableCounts() {
	if bmc.db == nil {
		return
	}

	counts := []struct {
		table string
		model interface{}
		gauge prometheus.Gauge
	}{
		{"users", &models.User{}, bmc.metrics.TotalUsersGauge},
		{"projects", &models.Project{}, bmc.metrics.TotalProjectsGauge},
		{"agents", &models.Agent{}, bmc.metrics.TotalAgentsGauge},
		{"chats", &models.Chat{}, bmc.metrics.TotalChatsGauge},
	}

	for _, c := range counts {
		var count int64
		if err := bmc.db.Model(c.model).Count(&count).Error; err != nil {
			bmc.log.Warn("failed to count rows", zap.String("table", c.table), zap.Error(err))
			continue
		}
		c.gauge.Set(float64(count))
	}
}

func (bmc *BusinessMetricsCollector) collectDatabaseMetrics() {
	if bmc.db == nil {
		return
	}

	sqlDB, err := bmc.db.DB()
	if err != nil {
		bmc.log.Warn("failed to get database stats", zap.Error(err))
		return
	}

	stats := sqlDB.Stats()
	bmc.metrics.DBConnectionsActive.Set(float64(stats.InUse))
	bmc.metrics.DBConnectionsIdle.Set(float64(stats.Idle))
}

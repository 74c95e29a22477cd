package base

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-monday/pkg/metrics"
)

// ProgressReporter periodically logs how many records were processed
type ProgressReporter struct {
	logger           *zap.Logger
	metricsCollector *metrics.Collector

	processedRecords int64
	startTime        time.Time
	reportInterval   time.Duration

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewProgressReporter creates a new progress reporter. A non-positive
// interval falls back to ten seconds.
func NewProgressReporter(logger *zap.Logger, collector *metrics.Collector, interval time.Duration) *ProgressReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ProgressReporter{
		logger:           logger,
		metricsCollector: collector,
		startTime:        time.Now(),
		reportInterval:   interval,
		stopCh:           make(chan struct{}),
	}
}

// Start begins periodic progress reporting
func (pr *ProgressReporter) Start() {
	pr.started = true
	pr.startTime = time.Now()
	pr.wg.Add(1)
	go func() {
		defer pr.wg.Done()
		ticker := time.NewTicker(pr.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-pr.stopCh:
				return
			case <-ticker.C:
				pr.reportCurrentProgress()
			}
		}
	}()
}

// Stop stops progress reporting and logs a final summary
func (pr *ProgressReporter) Stop() {
	pr.stopOnce.Do(func() {
		close(pr.stopCh)
		pr.wg.Wait()
		if pr.started {
			pr.reportFinalProgress()
		}
	})
}

// IncrementProcessed increments the processed count
func (pr *ProgressReporter) IncrementProcessed(count int64) {
	atomic.AddInt64(&pr.processedRecords, count)
	if pr.metricsCollector != nil {
		pr.metricsCollector.Add("records_processed", count)
	}
}

// Processed returns the processed count
func (pr *ProgressReporter) Processed() int64 {
	return atomic.LoadInt64(&pr.processedRecords)
}

// Throughput returns records per second since Start
func (pr *ProgressReporter) Throughput() float64 {
	elapsed := time.Since(pr.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(pr.Processed()) / elapsed
}

func (pr *ProgressReporter) reportCurrentProgress() {
	pr.logger.Info("progress",
		zap.Int64("records", pr.Processed()),
		zap.Float64("records_per_sec", pr.Throughput()),
		zap.Duration("elapsed", time.Since(pr.startTime)))
}

func (pr *ProgressReporter) reportFinalProgress() {
	pr.logger.Info("completed",
		zap.Int64("records", pr.Processed()),
		zap.Float64("records_per_sec", pr.Throughput()),
		zap.Duration("duration", time.Since(pr.startTime)))
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"taskpool/internal/worker"
)

const subsystem = "pool"

// Collector はプールのイベントを Prometheus メトリクスと Metrics に反映する
type Collector struct {
	metrics *Metrics

	jobsStarted   prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsPanicked  prometheus.Counter
	workersLost   prometheus.Counter
	workersLive   prometheus.Gauge
	workersBusy   prometheus.Gauge
	jobDuration   prometheus.Histogram
}

var _ worker.Observer = (*Collector)(nil)

// NewCollector は namespace 付きのメトリクスを作成する（登録は Register で行う）
func NewCollector(namespace string) *Collector {
	return &Collector{
		metrics: New(),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_started_total",
			Help:      "Total number of jobs taken by a worker",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that returned normally",
		}),
		jobsPanicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs that panicked",
		}),
		workersLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_lost_total",
			Help:      "Total number of workers retired after a panic",
		}),
		workersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_live",
			Help:      "Current number of running workers",
		}),
		workersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers_busy",
			Help:      "Current number of workers executing a job",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register は全メトリクスを reg に登録する
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{
		c.jobsStarted,
		c.jobsCompleted,
		c.jobsPanicked,
		c.workersLost,
		c.workersLive,
		c.workersBusy,
		c.jobDuration,
	} {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// QueueLengthGauge はキュー長を返す関数を Gauge として公開する
func QueueLengthGauge(namespace string, fn func() int) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "queue_length",
		Help:      "Current number of jobs waiting in the queue",
	}, func() float64 {
		return float64(fn())
	})
}

// Metrics は内部の Metrics を返す
func (c *Collector) Metrics() *Metrics {
	return c.metrics
}

// Snapshot は現在のスナップショットを返す
func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}

// Report は interval ごとにスナップショットを fn に渡し、ウィンドウをリセットする
// ctx が終わるまでブロックする
func (c *Collector) Report(ctx context.Context, interval time.Duration, fn func(Snapshot)) error {
	if interval <= 0 {
		return fmt.Errorf("report interval must be positive: got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapshot := c.metrics.Snapshot()
			c.metrics.Reset()
			fn(snapshot)
		}
	}
}

func (c *Collector) WorkerStart(int) {
	c.workersLive.Inc()
}

func (c *Collector) JobBegin(int) {
	c.jobsStarted.Inc()
	c.workersBusy.Inc()
}

func (c *Collector) JobEnd(_ int, elapsed time.Duration, err error) {
	c.workersBusy.Dec()
	c.jobDuration.Observe(elapsed.Seconds())
	if err != nil {
		c.jobsPanicked.Inc()
		c.metrics.RecordFailure(elapsed)
		return
	}
	c.jobsCompleted.Inc()
	c.metrics.RecordSuccess(elapsed)
}

func (c *Collector) WorkerShutdown(_ int, cause error) {
	c.workersLive.Dec()
	if cause != nil {
		c.workersLost.Inc()
	}
}

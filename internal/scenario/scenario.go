package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"taskpool/internal/events"
	"taskpool/internal/logger"
	"taskpool/internal/metrics"
	"taskpool/internal/worker"
)

// Config はシナリオの設定
type Config struct {
	Name        string // シナリオ名
	Description string // 説明

	// プール設定
	PoolSize    int                // ワーカー数
	PanicPolicy worker.PanicPolicy // panic 後のワーカーの扱い

	// 負荷設定
	Producers  int           // 送信するゴルーチン数
	Jobs       int           // 全体のジョブ数
	Interval   time.Duration // 送信者ごとの送信間隔（0で連続送信）
	JobDelay   time.Duration // 1 ジョブの処理時間
	PanicRatio float64       // panic させるジョブの割合（0〜1）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:        "default",
		Description: "Default scenario",
		PoolSize:    4,
		PanicPolicy: worker.PanicRecover,
		Producers:   4,
		Jobs:        1000,
		JobDelay:    time.Millisecond,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool size must be positive")
	}
	if c.Producers <= 0 {
		return fmt.Errorf("producers must be positive")
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must be non-negative")
	}
	if c.JobDelay < 0 || c.Interval < 0 {
		return fmt.Errorf("job delay and interval must be non-negative")
	}
	if c.PanicRatio < 0 || c.PanicRatio > 1 {
		return fmt.Errorf("panic ratio must be between 0 and 1")
	}
	return nil
}

// panicEvery は何ジョブごとに panic させるかを返す（0 なら panic しない）
func (c Config) panicEvery() int {
	if c.PanicRatio <= 0 {
		return 0
	}
	n := int(1/c.PanicRatio + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

// Result はシナリオ実行結果
type Result struct {
	ScenarioName string        `json:"scenario_name"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`

	// 送信統計
	Planned   uint64 `json:"planned"`
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`

	// 実行統計
	Executed uint64 `json:"executed"`
	Panicked uint64 `json:"panicked"`
	Stranded uint64 `json:"stranded"`
	Lost     uint64 `json:"lost_workers"`

	// レイテンシ
	AvgLatency time.Duration `json:"avg_latency"`
	P99Latency time.Duration `json:"p99_latency"`
	Throughput float64       `json:"throughput"`

	FinalState  string `json:"final_state"`
	LiveWorkers int    `json:"live_workers"`
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus

	pool      *worker.Pool
	collector *metrics.Collector

	mu      sync.RWMutex
	running bool
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// Run はシナリオを実行する
// ctx が終わると送信を打ち切り、送信済みのジョブを処理してから戻る
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", e.config.Name, err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("scenario is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	logger.Info("", "=== Scenario '%s' started ===", e.config.Name)
	logger.Info("", "Description: %s", e.config.Description)

	result := &Result{
		ScenarioName: e.config.Name,
		StartTime:    time.Now(),
		Planned:      uint64(e.config.Jobs),
	}

	if err := e.setup(); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	rejected, err := e.produce(ctx)
	e.pool.Shutdown()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Rejected = rejected
	e.collectResults(result)

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return result, err
	}

	logger.Info("", "=== Scenario '%s' completed ===", e.config.Name)
	return result, nil
}

// setup はプールとメトリクスを作成する
func (e *Engine) setup() error {
	collector := metrics.NewCollector("bench")

	observers := worker.Observers{logger.NewObserver(nil), collector}
	if e.eventBus != nil {
		observers = append(observers, events.NewObserver(e.eventBus))
	}

	pool, err := worker.NewPoolWithConfig(worker.PoolConfig{
		Size:        e.config.PoolSize,
		PanicPolicy: e.config.PanicPolicy,
		Observer:    observers,
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.pool = pool
	e.collector = collector
	e.mu.Unlock()
	return nil
}

// produce は Producers 個のゴルーチンから Jobs 個のジョブを送信する
// 受け付けられなかったジョブの数を返す
func (e *Engine) produce(ctx context.Context) (uint64, error) {
	var (
		next     atomic.Int64
		rejected atomic.Uint64
	)
	total := int64(e.config.Jobs)
	every := e.config.panicEvery()
	delay := e.config.JobDelay
	interval := e.config.Interval

	g, gctx := errgroup.WithContext(ctx)
	for range e.config.Producers {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				if interval > 0 {
					select {
					case <-gctx.Done():
						return gctx.Err()
					case <-time.After(interval):
					}
				}
				i := next.Add(1)
				if i > total {
					return nil
				}

				job := workload(delay, every > 0 && i%int64(every) == 0)
				if err := e.pool.Execute(job); err != nil {
					if errors.Is(err, worker.ErrNoWorkers) {
						rejected.Add(1)
						continue
					}
					return fmt.Errorf("submit job %d: %w", i, err)
				}
			}
		})
	}

	err := g.Wait()
	return rejected.Load(), err
}

// workload はベンチマーク用のジョブを作る
func workload(delay time.Duration, fail bool) worker.Job {
	return func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			panic("scenario: injected failure")
		}
	}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	stats := e.pool.Stats()
	result.Submitted = stats.Submitted
	result.Executed = stats.Completed
	result.Panicked = stats.Panicked
	result.Lost = stats.Lost
	if done := stats.Completed + stats.Panicked; stats.Submitted > done {
		result.Stranded = stats.Submitted - done
	}

	snapshot := e.collector.Snapshot()
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	if secs := result.Duration.Seconds(); secs > 0 {
		result.Throughput = float64(stats.Completed+stats.Panicked) / secs
	}

	result.FinalState = e.pool.State().String()
	result.LiveWorkers = e.pool.LiveWorkers()
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	return fmt.Sprintf(`
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v

SUBMISSION
----------
  Planned:          %d
  Submitted:        %d
  Rejected:         %d

EXECUTION
---------
  Executed:         %d
  Panicked:         %d
  Stranded:         %d
  Throughput:       %.1f jobs/s
  Avg Latency:      %v
  P99 Latency:      %v

POOL
----
  Final State:      %s
  Live Workers:     %d
  Lost Workers:     %d

================================================================================`,
		r.ScenarioName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Planned,
		r.Submitted,
		r.Rejected,
		r.Executed,
		r.Panicked,
		r.Stranded,
		r.Throughput,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.FinalState,
		r.LiveWorkers,
		r.Lost,
	)
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Metrics は現在のジョブメトリクスを返す（未実行なら nil）
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.collector == nil {
		return nil
	}
	snapshot := e.collector.Snapshot()
	return &snapshot
}

// Name はシナリオ名を返す
func (e *Engine) Name() string {
	return e.config.Name
}

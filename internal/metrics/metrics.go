package metrics

import (
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxLatencySamples = 1000

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99 計算に使うサンプル数の上限
}

// Metrics はジョブ実行のメトリクスを収集する
type Metrics struct {
	totalJobs     atomic.Uint64
	completedJobs atomic.Uint64
	panickedJobs  atomic.Uint64
	totalLatency  atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowJobs        uint64
	latencies         []time.Duration
	seen              uint64 // サンプル対象になったジョブ数（Reset で 0 に戻る）
	maxLatencySamples int
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(Config{MaxLatencySamples: defaultMaxLatencySamples})
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = defaultMaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// RecordSuccess は正常終了したジョブを記録する
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.totalJobs.Add(1)
	m.completedJobs.Add(1)
	m.totalLatency.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowJobs++
	m.sample(latency)
	m.mu.Unlock()
}

// RecordFailure は panic したジョブを記録する
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.totalJobs.Add(1)
	m.panickedJobs.Add(1)
	m.totalLatency.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowJobs++
	m.sample(latency)
	m.mu.Unlock()
}

// sample はリザーバサンプリングで latency を保持する
// 上限を超えても全ジョブが同じ確率でサンプルに残る。m.mu を保持して呼ぶ
func (m *Metrics) sample(latency time.Duration) {
	m.seen++
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
		return
	}
	if j := rand.N(m.seen); j < uint64(m.maxLatencySamples) {
		m.latencies[j] = latency
	}
}

// TotalJobs は実行済みジョブ数を返す
func (m *Metrics) TotalJobs() uint64 {
	return m.totalJobs.Load()
}

// CompletedJobs は正常終了したジョブ数を返す
func (m *Metrics) CompletedJobs() uint64 {
	return m.completedJobs.Load()
}

// PanickedJobs は panic したジョブ数を返す
func (m *Metrics) PanickedJobs() uint64 {
	return m.panickedJobs.Load()
}

// Throughput は最後の Reset 以降の毎秒ジョブ数を返す
func (m *Metrics) Throughput() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowJobs) / elapsed
}

// OverallThroughput は開始からの平均毎秒ジョブ数を返す
func (m *Metrics) OverallThroughput() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.totalJobs.Load()) / elapsed
}

// AverageLatency は平均実行時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.totalJobs.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatency.Load() / total)
}

// P99Latency は最後の Reset 以降のP99実行時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// PanicRate は panic 率を返す（0.0〜1.0）
func (m *Metrics) PanicRate() float64 {
	total := m.totalJobs.Load()
	if total == 0 {
		return 0
	}
	return float64(m.panickedJobs.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowJobs = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
	m.seen = 0
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	TotalJobs         uint64        `json:"total_jobs"`
	CompletedJobs     uint64        `json:"completed_jobs"`
	PanickedJobs      uint64        `json:"panicked_jobs"`
	Throughput        float64       `json:"throughput"`
	OverallThroughput float64       `json:"overall_throughput"`
	AverageLatency    time.Duration `json:"average_latency"`
	P99Latency        time.Duration `json:"p99_latency"`
	PanicRate         float64       `json:"panic_rate"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalJobs:         m.TotalJobs(),
		CompletedJobs:     m.CompletedJobs(),
		PanickedJobs:      m.PanickedJobs(),
		Throughput:        m.Throughput(),
		OverallThroughput: m.OverallThroughput(),
		AverageLatency:    m.AverageLatency(),
		P99Latency:        m.P99Latency(),
		PanicRate:         m.PanicRate(),
		Elapsed:           time.Since(m.startTime),
	}
}

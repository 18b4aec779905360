package scenario

import (
	"time"

	"taskpool/internal/worker"
)

// BasicScenario は基本的なシナリオ設定を返す
// panic なし、純粋な負荷テスト
func BasicScenario() Config {
	return Config{
		Name:        "basic",
		Description: "Basic load test without failures",
		PoolSize:    4,
		PanicPolicy: worker.PanicRecover,
		Producers:   4,
		Jobs:        5000,
		JobDelay:    time.Millisecond,
	}
}

// LatencyScenario は少数のワーカーに遅いジョブを流すシナリオを返す
// キューが伸びる様子を観察する用
func LatencyScenario() Config {
	return Config{
		Name:        "latency",
		Description: "Slow jobs on a small pool to build up queue depth",
		PoolSize:    2,
		PanicPolicy: worker.PanicRecover,
		Producers:   8,
		Jobs:        200,
		JobDelay:    20 * time.Millisecond,
	}
}

// StressScenario は高負荷シナリオを返す
// 多数の送信者、処理時間ゼロ
func StressScenario() Config {
	return Config{
		Name:        "stress",
		Description: "High submission rate from many producers",
		PoolSize:    16,
		PanicPolicy: worker.PanicRecover,
		Producers:   64,
		Jobs:        200000,
	}
}

// PanicScenario は一部のジョブが panic するシナリオを返す
// ワーカーは回復して容量を保つ
func PanicScenario() Config {
	return Config{
		Name:        "panic",
		Description: "Panicking jobs with recovering workers",
		PoolSize:    4,
		PanicPolicy: worker.PanicRecover,
		Producers:   4,
		Jobs:        2000,
		JobDelay:    100 * time.Microsecond,
		PanicRatio:  0.05,
	}
}

// RetireScenario は panic ごとにワーカーが減るシナリオを返す
// 全ワーカーが失われると以降の送信は拒否される
func RetireScenario() Config {
	return Config{
		Name:        "retire",
		Description: "Panicking jobs retire workers until the pool has none left",
		PoolSize:    4,
		PanicPolicy: worker.PanicRetire,
		Producers:   2,
		Jobs:        500,
		JobDelay:    time.Millisecond,
		PanicRatio:  0.02,
	}
}

// QuickScenario はクイックテスト用シナリオを返す
// 短時間での動作確認用
func QuickScenario() Config {
	return Config{
		Name:        "quick",
		Description: "Quick test for verification",
		PoolSize:    2,
		PanicPolicy: worker.PanicRecover,
		Producers:   2,
		Jobs:        100,
		JobDelay:    time.Millisecond,
		PanicRatio:  0.01,
	}
}

var presets = map[string]func() Config{
	"basic":   BasicScenario,
	"latency": LatencyScenario,
	"stress":  StressScenario,
	"panic":   PanicScenario,
	"retire":  RetireScenario,
	"quick":   QuickScenario,
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"basic", "latency", "stress", "panic", "retire", "quick"}
}

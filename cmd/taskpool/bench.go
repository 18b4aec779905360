package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskpool/internal/logger"
	"taskpool/internal/scenario"
	"taskpool/internal/worker"
)

var benchOpts struct {
	preset     string
	workers    int
	producers  int
	jobs       int
	delay      time.Duration
	panicRatio float64
	retire     bool
	jsonOutput bool
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "ベンチマークシナリオを実行",
	Example: `  # プリセットシナリオを実行
  taskpool bench --preset quick

  # フラグでカスタマイズ
  taskpool bench --preset basic --workers 8 --jobs 100000

  # 結果を JSON で出力
  taskpool bench --preset panic --json`,
	RunE: runBench,
}

func init() {
	f := benchCmd.Flags()
	f.StringVarP(&benchOpts.preset, "preset", "p", "quick", "プリセットシナリオ名")
	f.IntVarP(&benchOpts.workers, "workers", "w", 0, "ワーカー数")
	f.IntVar(&benchOpts.producers, "producers", 0, "送信ゴルーチン数")
	f.IntVarP(&benchOpts.jobs, "jobs", "n", 0, "ジョブ数")
	f.DurationVar(&benchOpts.delay, "delay", 0, "1 ジョブの処理時間 (例: 1ms)")
	f.Float64Var(&benchOpts.panicRatio, "panic-ratio", 0, "panic させるジョブの割合 (0〜1)")
	f.BoolVar(&benchOpts.retire, "retire", false, "panic したワーカーを終了させる")
	f.BoolVar(&benchOpts.jsonOutput, "json", false, "結果を JSON で出力")
}

// buildScenarioConfig はプリセットにフラグを重ねたシナリオ設定を構築する
func buildScenarioConfig(cmd *cobra.Command) (scenario.Config, error) {
	cfg, ok := scenario.GetPreset(benchOpts.preset)
	if !ok {
		return cfg, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", benchOpts.preset, scenario.ListPresets())
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.PoolSize = benchOpts.workers
	}
	if flags.Changed("producers") {
		cfg.Producers = benchOpts.producers
	}
	if flags.Changed("jobs") {
		cfg.Jobs = benchOpts.jobs
	}
	if flags.Changed("delay") {
		cfg.JobDelay = benchOpts.delay
	}
	if flags.Changed("panic-ratio") {
		cfg.PanicRatio = benchOpts.panicRatio
	}
	if flags.Changed("retire") {
		cfg.PanicPolicy = worker.PanicRecover
		if benchOpts.retire {
			cfg.PanicPolicy = worker.PanicRetire
		}
	}

	return cfg, cfg.Validate()
}

func runBench(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogger(fileCfg); err != nil {
		return err
	}
	defer logger.Close()

	cfg, err := buildScenarioConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !benchOpts.jsonOutput {
		fmt.Fprintln(out, "taskpool - Worker Pool Benchmark")
		fmt.Fprintln(out, "====================================================")
		fmt.Fprintf(out, "Scenario: %s\n", cfg.Name)
		fmt.Fprintf(out, "Workers: %d (%s), Producers: %d\n", cfg.PoolSize, cfg.PanicPolicy, cfg.Producers)
		fmt.Fprintf(out, "Jobs: %d, Delay: %v, Panic ratio: %.2f\n", cfg.Jobs, cfg.JobDelay, cfg.PanicRatio)
		fmt.Fprintln(out, "====================================================")
		fmt.Fprintln(out)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := scenario.New(cfg).Run(ctx)
	if err != nil {
		return err
	}

	if benchOpts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(out, result.Report())
	return nil
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "利用可能なプリセットを表示",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "利用可能なプリセットシナリオ:")
		fmt.Fprintln(out)
		for _, name := range scenario.ListPresets() {
			cfg, _ := scenario.GetPreset(name)
			fmt.Fprintf(out, "  %-10s %s\n", name, cfg.Description)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "使用例: taskpool bench --preset quick")
	},
}

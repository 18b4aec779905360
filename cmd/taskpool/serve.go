package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"taskpool/internal/api"
	"taskpool/internal/config"
	"taskpool/internal/events"
	"taskpool/internal/logger"
	"taskpool/internal/metrics"
	"taskpool/internal/server"
	"taskpool/internal/worker"
)

const metricsNamespace = "taskpool"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "接続サーバーと管理 API を起動",
	Example: `  # デフォルト設定 (127.0.0.1:7878, 4 workers, 9 connections)
  taskpool serve

  # 接続数無制限、8 ワーカー
  taskpool serve --workers 8 --max-connections 0

  # 設定ファイルから起動（変更は log.level のみ即時反映）
  taskpool serve --config taskpool.yaml`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

// addServeFlags は serve 用のフラグを登録する
// 値は明示的に指定されたときだけ設定ファイルを上書きする
func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("addr", "", "待ち受けアドレス")
	f.IntP("workers", "w", 0, "ワーカー数")
	f.Int("max-connections", 0, "受け付ける接続数 (0で無制限)")
	f.String("panic-policy", "", "panic 後のワーカーの扱い (recover, retire)")
	f.String("doc-root", "", "hello.html と 404.html を置いたディレクトリ")
	f.Duration("sleep-delay", 0, "/sleep の待ち時間")
	f.Bool("reuse-port", false, "SO_REUSEPORT で bind する")
	f.String("admin-addr", "", "管理 API のアドレス")
	f.Bool("no-admin", false, "管理 API を無効化")
}

// applyServeFlags は変更されたフラグだけを cfg に反映する
func applyServeFlags(flags *pflag.FlagSet, cfg *config.FileConfig) error {
	var err error
	if flags.Changed("addr") {
		cfg.Server.Addr, err = flags.GetString("addr")
	}
	if err == nil && flags.Changed("workers") {
		cfg.Pool.Size, err = flags.GetInt("workers")
	}
	if err == nil && flags.Changed("max-connections") {
		cfg.Server.MaxConnections, err = flags.GetInt("max-connections")
	}
	if err == nil && flags.Changed("panic-policy") {
		cfg.Pool.PanicPolicy, err = flags.GetString("panic-policy")
	}
	if err == nil && flags.Changed("doc-root") {
		cfg.Server.DocRoot, err = flags.GetString("doc-root")
	}
	if err == nil && flags.Changed("sleep-delay") {
		var d time.Duration
		d, err = flags.GetDuration("sleep-delay")
		cfg.Server.SleepDelay = d.String()
	}
	if err == nil && flags.Changed("reuse-port") {
		cfg.Server.ReusePort, err = flags.GetBool("reuse-port")
	}
	if err == nil && flags.Changed("admin-addr") {
		cfg.Admin.Addr, err = flags.GetString("admin-addr")
	}
	if err == nil && flags.Changed("no-admin") {
		var disabled bool
		disabled, err = flags.GetBool("no-admin")
		cfg.Admin.Enabled = !disabled
	}
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定検証エラー: %w", err)
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()

	poolConfig, err := cfg.ToPoolConfig()
	if err != nil {
		return err
	}
	serverConfig, err := cfg.ToServerConfig()
	if err != nil {
		return err
	}
	statsInterval, err := cfg.StatsInterval()
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(metricsNamespace)
	if err := collector.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	poolConfig.Observer = worker.Observers{logger.NewObserver(nil), collector, events.NewObserver(bus)}
	pool, err := worker.NewPoolWithConfig(poolConfig)
	if err != nil {
		return err
	}
	reg.MustRegister(metrics.QueueLengthGauge(metricsNamespace, pool.QueueLen))

	srv, err := server.New(serverConfig, pool)
	if err != nil {
		pool.Shutdown()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("", "taskpool %s: %d workers (%s), server %s", version, poolConfig.Size, poolConfig.PanicPolicy, serverConfig.Addr)

	g, gctx := errgroup.WithContext(ctx)

	// 接続上限に達したら全体を止める
	g.Go(func() error {
		defer cancel()
		return srv.ListenAndServe(gctx)
	})

	if cfg.Admin.Enabled {
		adminServer := api.NewServer(cfg.Admin.Addr, pool, bus, reg)
		g.Go(func() error {
			return adminServer.Start(gctx)
		})
	}

	if statsInterval > 0 {
		g.Go(func() error {
			return collector.Report(gctx, statsInterval, logStats)
		})
	}

	if configFile != "" {
		g.Go(func() error {
			return config.Watch(gctx, configFile, config.DefaultDebounce, applyReload)
		})
	}

	err = g.Wait()

	logger.Info("", "Shutting down.")
	pool.Shutdown()
	stats := pool.Stats()
	logger.Info("", "Shutting down all workers. submitted=%d completed=%d panicked=%d lost=%d",
		stats.Submitted, stats.Completed, stats.Panicked, stats.Lost)

	return err
}

// logStats は直近ウィンドウのジョブ統計をログに出す
func logStats(s metrics.Snapshot) {
	if s.TotalJobs == 0 {
		return
	}
	logger.Info("stats", "%.1f jobs/s (overall %.1f), p99 %v, panic rate %.2f%%, total %d",
		s.Throughput, s.OverallThroughput, s.P99Latency, s.PanicRate*100, s.TotalJobs)
}

// applyReload は再読み込みした設定のうち実行中に変えられる項目を反映する
func applyReload(cfg *config.FileConfig) {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := logger.ParseLevel(level)
	if err != nil {
		logger.Warn("config", "ignoring log level: %v", err)
		return
	}
	logger.Default.SetLevel(parsed)
	logger.Info("config", "Log level set to %s", parsed)
}

// Package main is the entry point for taskpool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskpool/internal/config"
	"taskpool/internal/logger"
)

var (
	version = "dev"
	commit  = ""
)

var (
	configFile string
	logLevel   string
)

// rootCmd は引数なしで serve を実行する
var rootCmd = &cobra.Command{
	Use:   "taskpool",
	Short: "Fixed-size worker pool with a demo connection server",
	Long: `taskpool - Fixed-size worker pool

Runs a TCP server whose connections are handled by a fixed pool of worker
goroutines, plus an admin API, and benchmark scenarios for the pool.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "設定ファイルパス (YAML/JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")

	addServeFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, benchCmd, presetsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig は設定ファイル（なければデフォルト）を読み込む
// --log-level が指定されていれば log.level を上書きする
func loadConfig() (*config.FileConfig, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.LoadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// setupLogger はロガーを設定ファイルの内容で構成する
func setupLogger(cfg *config.FileConfig) error {
	if err := logger.Setup(cfg.ToLogConfig()); err != nil {
		return fmt.Errorf("ロガー設定エラー: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "バージョンを表示",
	Run: func(cmd *cobra.Command, _ []string) {
		if commit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "taskpool version %s-%s\n", version, commit)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "taskpool version %s\n", version)
	},
}

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"taskpool/internal/logger"
)

// DefaultDebounce は変更検知から再読み込みまでの待ち時間
const DefaultDebounce = 200 * time.Millisecond

// Watch は path の変更を監視し、検証済みの設定で onChange を呼ぶ
// 読み込みや検証に失敗した変更はログに出して無視する
// ctx が終わるまでブロックする
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func(*FileConfig)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// エディタによる rename 保存も拾うため親ディレクトリを監視する
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	reload := func() {
		cfg, err := LoadFile(absPath)
		if err != nil {
			logger.Warn("config", "reload failed: %v", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			logger.Warn("config", "reloaded config is invalid: %v", err)
			return
		}
		logger.Info("config", "Reloaded %s", absPath)
		onChange(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config", "watch error: %v", err)
		case <-timer.C:
			reload()
		}
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-reuseport"

	"taskpool/internal/logger"
	"taskpool/internal/worker"
)

// Config はサーバーの設定
type Config struct {
	Addr           string        // 待ち受けアドレス
	DocRoot        string        // 空なら埋め込みページを使う
	MaxConnections int           // 受け付ける接続数の上限（0で無制限）
	SleepDelay     time.Duration // /sleep の待ち時間
	ReadTimeout    time.Duration // リクエスト行の読み込みタイムアウト（0で無制限）
	ReusePort      bool          // SO_REUSEPORT で bind する
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:7878",
		MaxConnections: 9,
		SleepDelay:     5 * time.Second,
		ReadTimeout:    10 * time.Second,
	}
}

// Executor は接続ごとのジョブを受け取る
type Executor interface {
	Execute(job worker.Job) error
}

// Server は接続を受け付けてプールに処理を送る
type Server struct {
	config  Config
	pool    Executor
	handler *Handler

	mu       sync.Mutex
	listener net.Listener
	accepted atomic.Uint64
}

// New は新しいサーバーを作成する
func New(config Config, pool Executor) (*Server, error) {
	if pool == nil {
		return nil, errors.New("server: nil executor")
	}

	var files fs.FS
	if config.DocRoot != "" {
		info, err := os.Stat(config.DocRoot)
		if err != nil {
			return nil, fmt.Errorf("doc root: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("doc root %s is not a directory", config.DocRoot)
		}
		files = os.DirFS(config.DocRoot)
	}

	return &Server{
		config: config,
		pool:   pool,
		handler: &Handler{
			Files:       files,
			SleepDelay:  config.SleepDelay,
			ReadTimeout: config.ReadTimeout,
		},
	}, nil
}

// Listen は設定されたアドレスで待ち受ける
func (s *Server) Listen() (net.Listener, error) {
	var (
		ln  net.Listener
		err error
	)
	if s.config.ReusePort {
		ln, err = reuseport.Listen("tcp", s.config.Addr)
	} else {
		ln, err = net.Listen("tcp", s.config.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	return ln, nil
}

// ListenAndServe は待ち受けを開始し、Serve が終わるまでブロックする
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve は ln から接続を受け付け、1 接続につき 1 ジョブをプールに送る
// MaxConnections に達するか ctx が終わると ln を閉じて戻る
// 処理中の接続の完了待ちはプールの Shutdown が行う
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	defer ln.Close()

	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	logger.Info("", "Listening on %s", ln.Addr())

	limit := uint64(s.config.MaxConnections)
	var attempts uint64
	for limit == 0 || attempts < limit {
		conn, err := ln.Accept()
		attempts++
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("", "accept failed: %v", err)
			continue
		}

		s.accepted.Add(1)
		if err := s.pool.Execute(func() {
			s.handler.Handle(conn)
		}); err != nil {
			_ = conn.Close()
			return fmt.Errorf("submit connection: %w", err)
		}
	}

	logger.Info("", "Connection limit %d reached, shutting down.", limit)
	return nil
}

// Addr は待ち受け中のアドレスを返す（未開始なら nil）
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Accepted は受け付けた接続数を返す
func (s *Server) Accepted() uint64 {
	return s.accepted.Load()
}

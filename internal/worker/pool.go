package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
)

var (
	// ErrInvalidSize is returned when a pool is requested with no workers.
	ErrInvalidSize = errors.New("pool size must be positive")
	// ErrPoolClosed is returned by Execute once shutdown has begun.
	ErrPoolClosed = errors.New("pool is shut down")
	// ErrNoWorkers is returned by Execute when every worker has been retired.
	ErrNoWorkers = errors.New("pool has no live workers")
	// ErrNilJob is returned by Execute for a nil job.
	ErrNilJob = errors.New("nil job")
)

// State はプールのライフサイクル状態
type State int32

const (
	StateRunning State = iota
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateClosing:
		return "Closing"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	Size        int         // ワーカー数（正の値）
	PanicPolicy PanicPolicy // panic 後のワーカーの扱い
	Observer    Observer    // nil なら通知しない
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Size:        runtime.NumCPU(),
		PanicPolicy: PanicRecover,
	}
}

// Stats はプール全体の集計
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Panicked  uint64 `json:"panicked"`
	Lost      uint64 `json:"lost"`
}

// Pool は固定数のワーカーとジョブキューを所有する
type Pool struct {
	size    int
	queue   *Queue
	workers []*Worker

	// handles はワーカーの join ハンドル。join 後は nil になる
	handles []chan struct{}

	state      atomic.Int32
	live       atomic.Int32
	submitted  atomic.Uint64
	lost       atomic.Uint64
	terminated chan struct{}
}

// NewPool は size 個のワーカーを持つプールを作成し、起動する
func NewPool(size int) (*Pool, error) {
	config := DefaultPoolConfig()
	config.Size = size
	return NewPoolWithConfig(config)
}

// MustNewPool は NewPool と同じだが、失敗時に panic する
func MustNewPool(size int) *Pool {
	p, err := NewPool(size)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPoolWithConfig は設定を指定してプールを作成し、起動する
func NewPoolWithConfig(config PoolConfig) (*Pool, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, config.Size)
	}

	obs := config.Observer
	if obs == nil {
		obs = NopObserver{}
	}

	p := &Pool{
		size:       config.Size,
		queue:      NewQueue(),
		workers:    make([]*Worker, 0, config.Size),
		handles:    make([]chan struct{}, 0, config.Size),
		terminated: make(chan struct{}),
	}
	p.state.Store(int32(StateRunning))
	p.live.Store(int32(config.Size))

	for i := range config.Size {
		w := newWorker(i, p.queue, config.PanicPolicy, obs, p.workerExited)
		p.workers = append(p.workers, w)
		p.handles = append(p.handles, w.done)
	}
	for _, w := range p.workers {
		w.start()
	}

	return p, nil
}

// workerExited はワーカーの終了を記録する
func (p *Pool) workerExited(_ *Worker, cause error) {
	p.live.Add(-1)
	if cause != nil {
		p.lost.Add(1)
	}
}

// Execute はジョブをキューに送信する
// キューは無制限なのでブロックしない
func (p *Pool) Execute(job Job) error {
	if job == nil {
		return ErrNilJob
	}
	if p.State() != StateRunning {
		return ErrPoolClosed
	}
	if p.live.Load() == 0 {
		return ErrNoWorkers
	}

	// 実行より先に数える
	p.submitted.Add(1)
	if err := p.queue.Put(job); err != nil {
		p.submitted.Add(^uint64(0))
		if errors.Is(err, ErrQueueClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// Shutdown はキューを閉じ、全ワーカーの終了を待つ
// 何度呼んでもよく、どの呼び出しも Terminated になってから戻る
func (p *Pool) Shutdown() {
	if p.beginShutdown() {
		p.finishShutdown()
		return
	}
	<-p.terminated
}

// ShutdownContext は Shutdown と同じだが、ctx が先に終わったら ctx.Err() を返す
// その場合もシャットダウン自体はバックグラウンドで続く
func (p *Pool) ShutdownContext(ctx context.Context) error {
	if p.beginShutdown() {
		go p.finishShutdown()
	}

	select {
	case <-p.terminated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginShutdown は Running から Closing への遷移を一度だけ行う
func (p *Pool) beginShutdown() bool {
	if !p.state.CompareAndSwap(int32(StateRunning), int32(StateClosing)) {
		return false
	}
	p.queue.Close()
	return true
}

// finishShutdown は全ワーカーを join して Terminated にする
// beginShutdown に成功した呼び出し元だけが実行する
func (p *Pool) finishShutdown() {
	for i, h := range p.handles {
		if h == nil {
			continue
		}
		<-h
		p.handles[i] = nil
	}
	p.state.Store(int32(StateTerminated))
	close(p.terminated)
}

// Done はプールが Terminated になると close されるチャネルを返す
func (p *Pool) Done() <-chan struct{} {
	return p.terminated
}

// State は現在の状態を返す
func (p *Pool) State() State {
	return State(p.state.Load())
}

// Size は構築時のワーカー数を返す
func (p *Pool) Size() int {
	return p.size
}

// LiveWorkers は動いているワーカー数を返す
func (p *Pool) LiveWorkers() int {
	return int(p.live.Load())
}

// QueueLen は未処理のジョブ数を返す
func (p *Pool) QueueLen() int {
	return p.queue.Len()
}

// Workers は各ワーカーの状態を ID 順に返す
func (p *Pool) Workers() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		infos = append(infos, w.Info())
	}
	return infos
}

// Stats はプール全体の集計を返す
func (p *Pool) Stats() Stats {
	s := Stats{
		Submitted: p.submitted.Load(),
		Lost:      p.lost.Load(),
	}
	for _, w := range p.workers {
		s.Completed += w.completed.Load()
		s.Panicked += w.panicked.Load()
	}
	return s
}

package worker

import (
	"sync/atomic"
	"time"
)

// PanicPolicy は panic したジョブの後のワーカーの振る舞いを決める
type PanicPolicy int

const (
	// PanicRecover はワーカーを生かしたまま次のジョブへ進む
	PanicRecover PanicPolicy = iota
	// PanicRetire はワーカーを終了させ、プールの容量を 1 減らす
	PanicRetire
)

func (p PanicPolicy) String() string {
	switch p {
	case PanicRecover:
		return "recover"
	case PanicRetire:
		return "retire"
	default:
		return "unknown"
	}
}

// Worker はキューからジョブを取り出して実行するゴルーチン
type Worker struct {
	id     int
	queue  *Queue
	policy PanicPolicy
	obs    Observer
	onExit func(w *Worker, cause error)

	// done は join 用のハンドル。ゴルーチン終了時に close される
	done chan struct{}

	alive     atomic.Bool
	busy      atomic.Bool
	completed atomic.Uint64
	panicked  atomic.Uint64
}

// WorkerInfo はワーカーの状態のスナップショット
type WorkerInfo struct {
	ID        int    `json:"id"`
	Alive     bool   `json:"alive"`
	Busy      bool   `json:"busy"`
	Completed uint64 `json:"completed"`
	Panicked  uint64 `json:"panicked"`
}

func newWorker(id int, queue *Queue, policy PanicPolicy, obs Observer, onExit func(*Worker, error)) *Worker {
	w := &Worker{
		id:     id,
		queue:  queue,
		policy: policy,
		obs:    obs,
		onExit: onExit,
		done:   make(chan struct{}),
	}
	w.alive.Store(true)
	return w
}

// start はワーカーのゴルーチンを起動する
func (w *Worker) start() {
	go w.loop()
}

// loop はキューが閉じられるまでジョブを実行し続ける
func (w *Worker) loop() {
	var cause error
	defer func() {
		w.alive.Store(false)
		if w.onExit != nil {
			w.onExit(w, cause)
		}
		w.obs.WorkerShutdown(w.id, cause)
		close(w.done)
	}()

	w.obs.WorkerStart(w.id)

	for {
		job, ok := w.queue.Get()
		if !ok {
			return
		}

		w.busy.Store(true)
		w.obs.JobBegin(w.id)
		start := time.Now()
		err := job.run(w.id)
		w.obs.JobEnd(w.id, time.Since(start), err)
		w.busy.Store(false)

		if err == nil {
			w.completed.Add(1)
			continue
		}

		w.panicked.Add(1)
		if w.policy == PanicRetire {
			cause = err
			return
		}
	}
}

// Info はワーカーの状態を返す
func (w *Worker) Info() WorkerInfo {
	return WorkerInfo{
		ID:        w.id,
		Alive:     w.alive.Load(),
		Busy:      w.busy.Load(),
		Completed: w.completed.Load(),
		Panicked:  w.panicked.Load(),
	}
}

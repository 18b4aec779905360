package logger

import (
	"errors"
	"fmt"
	"time"

	"taskpool/internal/worker"
)

// Observer はプールのイベントをログに書き出す
type Observer struct {
	log *Logger
}

var _ worker.Observer = (*Observer)(nil)

// NewObserver は l に書き出す Observer を作成する。nil なら Default を使う
func NewObserver(l *Logger) *Observer {
	if l == nil {
		l = Default
	}
	return &Observer{log: l}
}

func workerComponent(id int) string {
	return fmt.Sprintf("worker-%d", id)
}

func (o *Observer) WorkerStart(id int) {
	o.log.Info(workerComponent(id), "Worker %d started", id)
}

func (o *Observer) JobBegin(id int) {
	o.log.Debug(workerComponent(id), "Worker %d got a job; executing.", id)
}

func (o *Observer) JobEnd(id int, elapsed time.Duration, err error) {
	if err == nil {
		o.log.Debug(workerComponent(id), "Worker %d finished job in %v", id, elapsed)
		return
	}

	o.log.Error(workerComponent(id), "Worker %d job failed after %v: %v", id, elapsed, err)
	var pe *worker.PanicError
	if errors.As(err, &pe) {
		o.log.Debug(workerComponent(id), "panic stack:\n%s", pe.Stack)
	}
}

func (o *Observer) WorkerShutdown(id int, cause error) {
	if cause == nil {
		o.log.Info(workerComponent(id), "Worker %d disconnected; shutting down.", id)
		return
	}
	o.log.Warn(workerComponent(id), "Worker %d retired, pool capacity reduced: %v", id, cause)
}

package worker

import (
	"fmt"
	"runtime/debug"
)

// Job はワーカーが実行するジョブを表す
// 一度だけ実行される
type Job func()

// PanicError はジョブ実行中の panic を表す
type PanicError struct {
	WorkerID int
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker %d: job panicked: %v", e.WorkerID, e.Value)
}

// Unwrap は panic 値が error の場合にそれを返す
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// run はジョブを実行し、panic を PanicError に変換する
func (j Job) run(workerID int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				WorkerID: workerID,
				Value:    r,
				Stack:    debug.Stack(),
			}
		}
	}()

	j()
	return nil
}

package worker

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned by Put once the queue has been closed.
var ErrQueueClosed = errors.New("work queue closed")

// noCopy may be embedded into structs which must not be copied after first use.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// node は単方向リストの要素（mu で保護される）
type node struct {
	job  Job
	next *node
}

// Queue は無制限の FIFO ジョブキュー
// 単一の mutex で全ワーカーの取り出しを直列化する
type Queue struct {
	noCopy noCopy

	mu     sync.Mutex
	cond   *sync.Cond
	head   *node // sentinel
	tail   *node
	closed bool
	size   atomic.Int64
}

// NewQueue は空のキューを作成する
func NewQueue() *Queue {
	s := &node{}
	q := &Queue{head: s, tail: s}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put はジョブを末尾に追加する
func (q *Queue) Put(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	n := &node{job: job}
	q.tail.next = n
	q.tail = n
	q.size.Add(1)
	q.cond.Signal()
	return nil
}

// Get は次のジョブを取り出す
// キューが空の間はブロックし、閉じられて空になったら false を返す
func (q *Queue) Get() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head.next == nil && !q.closed {
		q.cond.Wait()
	}

	// closed + empty
	if q.head.next == nil {
		return nil, false
	}

	n := q.head.next
	q.head.next = n.next
	if q.head.next == nil {
		q.tail = q.head
	}
	q.size.Add(-1)
	return n.job, true
}

// Close はキューを閉じ、待機中の Get をすべて起こす
// このキューを閉じたのが今回の呼び出しなら true を返す
func (q *Queue) Close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.closed = true
	q.cond.Broadcast()
	return true
}

// Closed はキューが閉じられているかを返す
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len は未処理のジョブ数を返す
func (q *Queue) Len() int {
	return int(q.size.Load())
}

package actor

import (
	"context"
	"sync"
)

// Mailbox 有界 FIFO 消息队列（多生产者、单消费者）
//
// 语义：
//   - Send 在邮箱满且未关闭时阻塞（背压），关闭会唤醒所有阻塞的发送方并返回 ErrMailboxClosed
//   - Close 之后已入队的消息仍可被接收
//   - 邮箱已关闭、队列为空且没有正在进行的 Send 时，Receive 返回 ErrMailboxDrained
//
// 与 Close 并发的 Send 可能先于关闭入队并返回 nil，此时消息仍会被接收或在排空时丢弃，
// 不会丢失。因此与 Shutdown 竞争的 Ask 可能得到 AskDropped 而不是 AskClosed。
type Mailbox[M Message] struct {
	ch chan M

	// done 在 Close 时关闭
	done chan struct{}
	// idle 在 Close 之后且没有发送方停留在 Send 中时关闭
	idle chan struct{}

	mu       sync.Mutex
	closed   bool
	inflight int
	idleOnce sync.Once
}

// NewMailbox 创建邮箱，capacity 小于 1 时按 1 处理
func NewMailbox[M Message](capacity int) *Mailbox[M] {
	if capacity < 1 {
		capacity = 1
	}
	return &Mailbox[M]{
		ch:   make(chan M, capacity),
		done: make(chan struct{}),
		idle: make(chan struct{}),
	}
}

// Send 入队一条消息
//
// 邮箱满时阻塞，直到有空位、邮箱关闭（ErrMailboxClosed）或 ctx 结束（ctx.Err()）。
func (mb *Mailbox[M]) Send(ctx context.Context, msg M) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !mb.enter() {
		return ErrMailboxClosed
	}
	defer mb.leave()

	// 已关闭时优先返回关闭，避免 select 随机选中入队分支
	select {
	case <-mb.done:
		return ErrMailboxClosed
	default:
	}

	select {
	case mb.ch <- msg:
		return nil
	case <-mb.done:
		return ErrMailboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend 非阻塞入队，邮箱满时返回 ErrMailboxFull
func (mb *Mailbox[M]) TrySend(msg M) error {
	if !mb.enter() {
		return ErrMailboxClosed
	}
	defer mb.leave()

	select {
	case <-mb.done:
		return ErrMailboxClosed
	default:
	}

	select {
	case mb.ch <- msg:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Receive 按 FIFO 顺序取出下一条消息
//
// 队列为空且邮箱未关闭时阻塞；ctx 结束返回 ctx.Err()；
// 邮箱关闭且已取空时返回 ErrMailboxDrained。
func (mb *Mailbox[M]) Receive(ctx context.Context) (M, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if msg, ok := mb.tryReceive(); ok {
		return msg, nil
	}

	select {
	case msg := <-mb.ch:
		return msg, nil
	case <-mb.done:
		return mb.receiveClosed(ctx)
	case <-ctx.Done():
		var zero M
		return zero, ctx.Err()
	}
}

// receiveClosed 邮箱关闭后的接收：等最后的发送方离开后再判定是否取空
func (mb *Mailbox[M]) receiveClosed(ctx context.Context) (M, error) {
	var zero M
	select {
	case msg := <-mb.ch:
		return msg, nil
	case <-mb.idle:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	if msg, ok := mb.tryReceive(); ok {
		return msg, nil
	}
	return zero, ErrMailboxDrained
}

func (mb *Mailbox[M]) tryReceive() (M, bool) {
	select {
	case msg := <-mb.ch:
		return msg, true
	default:
		var zero M
		return zero, false
	}
}

// Close 关闭邮箱，幂等
func (mb *Mailbox[M]) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.done)
	if mb.inflight == 0 {
		mb.idleOnce.Do(func() { close(mb.idle) })
	}
}

// IsClosed 是否已关闭
func (mb *Mailbox[M]) IsClosed() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.closed
}

// Len 当前队列长度
func (mb *Mailbox[M]) Len() int {
	return len(mb.ch)
}

// Cap 邮箱容量
func (mb *Mailbox[M]) Cap() int {
	return cap(mb.ch)
}

func (mb *Mailbox[M]) enter() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return false
	}
	mb.inflight++
	return true
}

func (mb *Mailbox[M]) leave() {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.inflight--
	if mb.closed && mb.inflight == 0 {
		mb.idleOnce.Do(func() { close(mb.idle) })
	}
}

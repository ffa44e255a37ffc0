package actor

import "sync/atomic"

// Reply 一次性回复槽
//
// 由 Ask 创建并放进消息里，Actor 处理消息时通过 Send 或 Fail 写入结果。
// 只能写入一次，第二次写入返回 ErrAlreadyReplied。
// Actor 结束时仍未写入的回复槽由 Runner 以 Dropped 结束，等待方不会一直挂起。
//
// nil *Reply 表示发送方不关心回复（Tell），所有写入都是空操作。
type Reply[T any] struct {
	ch       chan replyResult[T]
	resolved atomic.Bool
}

type replyResult[T any] struct {
	value   T
	err     error
	dropped bool
}

// NewReply 创建回复槽
func NewReply[T any]() *Reply[T] {
	return &Reply[T]{ch: make(chan replyResult[T], 1)}
}

// Send 写入回复值
func (r *Reply[T]) Send(value T) error {
	return r.resolve(replyResult[T]{value: value})
}

// Fail 写入处理失败的错误，Ask 会原样返回该错误
// 适用于格式错误的请求等单条消息内可恢复的错误
func (r *Reply[T]) Fail(err error) error {
	return r.resolve(replyResult[T]{err: err})
}

// Resolved 是否已写入（包括被 Runner 以 Dropped 结束）
func (r *Reply[T]) Resolved() bool {
	if r == nil {
		return true
	}
	return r.resolved.Load()
}

func (r *Reply[T]) drop(cause error) bool {
	return r.resolve(replyResult[T]{err: cause, dropped: true}) == nil
}

func (r *Reply[T]) resolve(res replyResult[T]) error {
	if r == nil {
		return nil
	}
	if !r.resolved.CompareAndSwap(false, true) {
		return ErrAlreadyReplied
	}
	// 容量为 1 且只写一次，不会阻塞
	r.ch <- res
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// 类型擦除的回复槽视图
// ═══════════════════════════════════════════════════════════════════════════

// Slot Runner 用来在异常结束时解除等待者的回复槽视图
type Slot interface {
	Resolved() bool
	drop(cause error) bool
}

// Request 携带回复槽的消息
//
// 一般通过嵌入 ReplyTo 实现，无需手写。
type Request interface {
	ReplySlot() Slot
}

// ReplyTo 可嵌入消息结构体的回复槽字段
//
//	type Get struct {
//	    actor.ReplyTo[int]
//	}
//
//	n, err := actor.Ask(ctx, h, func(r *actor.Reply[int]) CounterMsg {
//	    return Get{ReplyTo: actor.ReplyVia(r)}
//	})
type ReplyTo[T any] struct {
	Reply *Reply[T]
}

// ReplySlot 实现 Request 接口
func (r ReplyTo[T]) ReplySlot() Slot {
	if r.Reply == nil {
		return nil
	}
	return r.Reply
}

// ReplyVia 用回复槽构造 ReplyTo，方便在 Ask 的 build 函数里使用
func ReplyVia[T any](r *Reply[T]) ReplyTo[T] {
	return ReplyTo[T]{Reply: r}
}

// slotOf 取出消息携带的回复槽，没有时返回 nil
func slotOf(msg any) Slot {
	req, ok := msg.(Request)
	if !ok {
		return nil
	}
	return req.ReplySlot()
}

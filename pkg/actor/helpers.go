package actor

import (
	"context"
	"errors"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// 通用请求-回复辅助函数
// ═══════════════════════════════════════════════════════════════════════════

// Ask 向 Actor 发送请求并等待回复
//
// build 负责把回复槽放进消息。结果只会是以下之一：
//   - 回复值（或 Reply.Fail 写入的业务错误）
//   - *AskError{Reason: AskClosed}：消息被接收前邮箱已关闭
//   - *AskError{Reason: AskDropped}：Actor 结束时没有回复
//   - *AskError{Reason: AskTimedOut}：ctx 先结束
//
// 用法示例:
//
//	n, err := actor.Ask(ctx, h, func(r *actor.Reply[int]) CounterMsg {
//	    return Get{ReplyTo: actor.ReplyVia(r)}
//	})
func Ask[M Message, T any](ctx context.Context, h *Handle[M], build func(*Reply[T]) M) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ask(ctx, h, build, 0)
}

// AskTimeout 带超时的 Ask，timeout <= 0 时使用 Props.AskTimeout
func AskTimeout[M Message, T any](h *Handle[M], build func(*Reply[T]) M, timeout time.Duration) (T, error) {
	if timeout <= 0 {
		timeout = h.askTimeout()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return ask(ctx, h, build, timeout)
}

func ask[M Message, T any](ctx context.Context, h *Handle[M], build func(*Reply[T]) M, timeout time.Duration) (T, error) {
	var zero T

	reply := NewReply[T]()
	msg := build(reply)

	if err := h.Send(ctx, msg); err != nil {
		if errors.Is(err, ErrMailboxClosed) {
			return zero, &AskError{Reason: AskClosed, Target: h.Name(), Kind: msg.Kind()}
		}
		return zero, &AskError{Reason: AskTimedOut, Target: h.Name(), Kind: msg.Kind(), Timeout: timeout, Cause: err}
	}

	select {
	case res := <-reply.ch:
		if res.dropped {
			return zero, &AskError{Reason: AskDropped, Target: h.Name(), Kind: msg.Kind(), Cause: res.err}
		}
		return res.value, res.err
	case <-ctx.Done():
		return zero, &AskError{Reason: AskTimedOut, Target: h.Name(), Kind: msg.Kind(), Timeout: timeout, Cause: ctx.Err()}
	}
}

package actor

import (
	"context"
	"errors"
)

// errCancelled 未指定原因时的取消原因
var errCancelled = errors.New("cancelled")

// CancelToken 协作式取消令牌
//
// Cancel 只会生效一次，之后的调用被忽略。由 Child 派生的令牌在父令牌取消时随之取消，
// 反方向不传播。所有方法都可以并发调用。
type CancelToken struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewCancelToken 创建根令牌
func NewCancelToken() *CancelToken {
	return TokenFromContext(context.Background())
}

// TokenFromContext 创建一个随 ctx 结束而取消的令牌
func TokenFromContext(ctx context.Context) *CancelToken {
	if ctx == nil {
		ctx = context.Background()
	}
	c, cancel := context.WithCancelCause(ctx)
	return &CancelToken{ctx: c, cancel: cancel}
}

// Child 派生子令牌
func (t *CancelToken) Child() *CancelToken {
	return TokenFromContext(t.ctx)
}

// Cancel 以默认原因取消
func (t *CancelToken) Cancel() {
	t.cancel(errCancelled)
}

// CancelWithCause 以指定原因取消；只有第一次取消的原因会被保留
func (t *CancelToken) CancelWithCause(cause error) {
	if cause == nil {
		cause = errCancelled
	}
	t.cancel(cause)
}

// IsCancelled 是否已取消
func (t *CancelToken) IsCancelled() bool {
	return t.ctx.Err() != nil
}

// Done 取消时关闭
func (t *CancelToken) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Cause 返回取消原因，未取消时为 nil
func (t *CancelToken) Cause() error {
	return context.Cause(t.ctx)
}

// Context 返回与令牌绑定的 context，可传给需要 context.Context 的下游调用
func (t *CancelToken) Context() context.Context {
	return t.ctx
}

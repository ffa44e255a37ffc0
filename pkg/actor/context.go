package actor

import (
	"context"
	"log/slog"
)

// Context Actor 执行上下文
//
// 只在 Receive / OnStart / OnTick / OnStop 回调中使用，不要保存到回调之外。
type Context[M Message] struct {
	r *runner[M]
}

// Self 当前 Actor 的 Handle
func (c *Context[M]) Self() *Handle[M] {
	return &Handle[M]{b: c.r.b}
}

// Name 当前 Actor 名称
func (c *Context[M]) Name() string {
	return c.r.props.Name
}

// Logger 带 actor 字段的日志器
func (c *Context[M]) Logger() *slog.Logger {
	return c.r.log
}

// Context 与 Actor 生命周期绑定的 context，Actor 停止时取消
// 传给 Actor 内部的下游调用，使其在停止时及时返回
func (c *Context[M]) Context() context.Context {
	return c.r.token.Context()
}

// Token Actor 的取消令牌，可用 Child 派生给子 Actor（Props.WithParent）
func (c *Context[M]) Token() *CancelToken {
	return c.r.token
}

// Incarnation 第几次启动，首次为 0，每次被监督者重启加 1
func (c *Context[M]) Incarnation() int {
	return c.r.incarnation
}

// Stop 请求停止当前 Actor，当前消息处理完成后生效，结果为正常结束
func (c *Context[M]) Stop() {
	c.r.stopReq.Store(true)
	c.r.mb.Close()
}

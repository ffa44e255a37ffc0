package actor

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// runner Actor 的事件循环，绑定一个邮箱和一份私有状态
//
// 状态机：Running → Draining → Stopped，异常时 Running → Crashed。
type runner[M Message] struct {
	actor   Actor[M]
	props   Props
	mb      *Mailbox[M]
	token   *CancelToken
	b       *binding[M]
	log     *slog.Logger
	metrics Metrics
	ctx     *Context[M]

	// incarnation 第几次启动（受监督时每次重启加 1）
	incarnation int

	state   atomic.Int32
	stopReq atomic.Bool

	// pending 处理结束时尚未回复的回复槽（延迟回复）
	pending []Slot

	done   chan struct{}
	err    error
	onExit func(r *runner[M])
}

func newRunner[M Message](a Actor[M], p Props, parent *CancelToken, b *binding[M], incarnation int) *runner[M] {
	var token *CancelToken
	if parent != nil {
		token = parent.Child()
	} else {
		token = NewCancelToken()
	}

	r := &runner[M]{
		actor:       a,
		props:       p,
		mb:          NewMailbox[M](p.MailboxSize),
		token:       token,
		b:           b,
		log:         p.Logger.With("actor", p.Name),
		metrics:     p.Metrics,
		incarnation: incarnation,
		done:        make(chan struct{}),
	}
	r.ctx = &Context[M]{r: r}
	r.state.Store(int32(StateRunning))
	return r
}

// Spawn 启动一个不受监督的 Actor
//
// props 为 nil 时使用 DefaultProps("")。
func Spawn[M Message](a Actor[M], props *Props) *Handle[M] {
	p := props.normalized()
	b := newBinding[M](p, false)

	r := newRunner(a, p, p.Parent, b, 0)
	r.onExit = func(r *runner[M]) {
		b.retire()
		b.terminate(r.err)
	}
	b.bind(r)
	r.start()

	return &Handle[M]{b: b}
}

func (r *runner[M]) start() {
	go r.loop()
}

// State 当前状态
func (r *runner[M]) State() State {
	return State(r.state.Load())
}

// stop 关闭邮箱并取消令牌，Runner 在当前消息处理完之后停止
func (r *runner[M]) stop() {
	r.mb.Close()
	r.token.Cancel()
}

func (r *runner[M]) stopRequested() bool {
	return r.stopReq.Load() || r.token.IsCancelled()
}

// incarnation 接口实现，供监督者使用
func (r *runner[M]) doneCh() <-chan struct{} { return r.done }
func (r *runner[M]) result() error           { return r.err }

func (r *runner[M]) loop() {
	defer close(r.done)

	r.log.Debug("actor started", "incarnation", r.incarnation)
	err := r.run()
	r.finish(err)
}

func (r *runner[M]) run() error {
	if s, ok := r.actor.(Starter[M]); ok {
		if err := r.safe("lifecycle.start", nil, func() error { return s.OnStart(r.ctx) }); err != nil {
			return err
		}
	}

	var tick <-chan time.Time
	ticker, hasTicker := r.actor.(Ticker[M])
	if hasTicker && r.props.TickInterval > 0 {
		t := time.NewTicker(r.props.TickInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		// 取消优先：收到停止请求后不再开始新的消息
		if r.stopRequested() {
			return nil
		}

		select {
		case msg := <-r.mb.ch:
			if r.stopRequested() {
				return r.lastMessage(msg)
			}
			if err := r.handle(msg); err != nil {
				return err
			}
		case <-r.mb.done:
			return nil
		case <-r.token.Done():
			return nil
		case <-tick:
			if err := r.safe("lifecycle.tick", nil, func() error { return ticker.OnTick(r.ctx) }); err != nil {
				return err
			}
		}
	}
}

// lastMessage 停止请求与出队同时发生时，按 DrainPolicy 处理已取出的消息
func (r *runner[M]) lastMessage(msg M) error {
	if r.props.DrainPolicy == DrainFinish {
		return r.handle(msg)
	}
	r.discard(msg, nil)
	return nil
}

// handle 处理一条消息
func (r *runner[M]) handle(msg M) error {
	kind := msg.Kind()
	slot := slotOf(msg)

	r.b.stats.RecordReceived()
	r.metrics.MailboxDepth(r.props.Name, r.mb.Len())

	timer := r.metrics.MessageDuration(kind)
	start := time.Now()
	err := r.safe(kind, msg, func() error { return r.actor.Receive(r.ctx, msg) })
	timer.ObserveDuration()
	r.metrics.MessageProcessed(kind, err == nil)

	if err != nil {
		r.b.stats.RecordError(err)
		r.dropSlot(slot, err)
		return err
	}

	r.b.stats.RecordHandled(time.Since(start))
	if slot != nil && !slot.Resolved() {
		r.track(slot)
	}
	return nil
}

// safe 执行回调，把 panic 转换成 *CrashError
func (r *runner[M]) safe(kind string, msg Message, f func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			if r.props.PanicHandler != nil {
				r.props.PanicHandler(r.props.Name, msg, rec)
			}
			r.metrics.MessagePanic(kind)
			r.log.Error("panic in actor",
				"message", kind,
				"error", rec,
				"stack", string(stack))
			err = &CrashError{Actor: r.props.Name, Kind: kind, Value: rec, Stack: stack}
		}
	}()
	return f()
}

// finish 进入 Draining（或 Crashed），清理队列并上报结果
func (r *runner[M]) finish(err error) {
	if err != nil {
		r.state.Store(int32(StateCrashed))
	} else {
		r.state.Store(int32(StateDraining))
	}
	r.mb.Close()

	if err == nil && r.props.DrainPolicy == DrainFinish {
		err = r.drainFinish()
		if err != nil {
			r.state.Store(int32(StateCrashed))
		}
	}
	r.drainAbort(err)

	for _, slot := range r.pending {
		r.dropSlot(slot, err)
	}
	r.pending = nil

	if s, ok := r.actor.(Stopper[M]); ok {
		if stopErr := r.safe("lifecycle.stop", nil, func() error { s.OnStop(r.ctx, err); return nil }); stopErr != nil && err == nil {
			err = stopErr
			r.state.Store(int32(StateCrashed))
		}
	}

	// 释放令牌，由它派生的子令牌随之取消
	r.token.Cancel()

	r.err = err
	if err != nil {
		r.log.Warn("actor crashed", "incarnation", r.incarnation, "error", err)
	} else {
		r.state.Store(int32(StateStopped))
		r.log.Debug("actor stopped", "incarnation", r.incarnation)
	}

	if r.onExit != nil {
		r.onExit(r)
	}
}

// drainFinish 按 DrainFinish 处理剩余消息
func (r *runner[M]) drainFinish() error {
	for {
		msg, err := r.mb.receiveClosed(context.Background())
		if err != nil {
			return nil
		}
		if err := r.handle(msg); err != nil {
			return err
		}
	}
}

// drainAbort 丢弃剩余消息，回复槽以 Dropped 结束
func (r *runner[M]) drainAbort(cause error) {
	for {
		msg, err := r.mb.receiveClosed(context.Background())
		if err != nil {
			return
		}
		r.discard(msg, cause)
	}
}

func (r *runner[M]) discard(msg M, cause error) {
	r.b.stats.RecordDiscarded()
	r.dropSlot(slotOf(msg), cause)
}

func (r *runner[M]) dropSlot(slot Slot, cause error) {
	if slot == nil {
		return
	}
	if slot.drop(cause) {
		r.b.stats.RecordDropped()
		r.metrics.ReplyDropped(r.props.Name)
	}
}

// track 记录延迟回复的回复槽，顺便清掉已回复的
func (r *runner[M]) track(slot Slot) {
	kept := r.pending[:0]
	for _, s := range r.pending {
		if !s.Resolved() {
			kept = append(kept, s)
		}
	}
	r.pending = append(kept, slot)
}

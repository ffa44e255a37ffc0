package actor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Handle Actor 的客户端代理，调用方只能通过它与 Actor 交互
//
// Handle 本身没有可变状态，可以在多个 goroutine 间共享或通过 Clone 复制。
// 同一个 Handle 发送的消息按发送顺序处理；不同 Handle 之间的消息交错顺序不作保证。
//
// 受监督的 Actor 重启后会换一个新邮箱，Handle 通过内部的绑定单元读取当前邮箱，
// 因此重启前取得的 Handle 依然可用；监督者放弃或 Handle 被 Shutdown 之后，
// 所有发送都返回 ErrMailboxClosed。
type Handle[M Message] struct {
	b *binding[M]
}

// Name 返回 Actor 名称
func (h *Handle[M]) Name() string {
	return h.b.name
}

// Clone 复制 Handle，副本与原 Handle 指向同一个 Actor
func (h *Handle[M]) Clone() *Handle[M] {
	return &Handle[M]{b: h.b}
}

// Send 发送消息，邮箱满时阻塞
//
// 返回 ErrMailboxClosed 表示 Actor 已不可用；ctx 结束时返回 ctx.Err()。
// 受监督的 Actor 正在重启时，Send 等待新邮箱就绪。
func (h *Handle[M]) Send(ctx context.Context, msg M) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		r, changed, retired := h.b.load()
		if retired {
			return ErrMailboxClosed
		}
		if r != nil {
			err := r.mb.Send(ctx, msg)
			if err == nil || !errors.Is(err, ErrMailboxClosed) {
				return err
			}
			if !h.b.supervised {
				return err
			}
		}

		// 旧邮箱已关闭，等待监督者重新绑定或放弃
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tell 发送消息（fire-and-forget），邮箱满时阻塞
func (h *Handle[M]) Tell(msg M) error {
	return h.Send(context.Background(), msg)
}

// TrySend 非阻塞发送
//
// 邮箱满或受监督的 Actor 正在重启时返回 ErrMailboxFull，Actor 不可用时返回 ErrMailboxClosed。
func (h *Handle[M]) TrySend(msg M) error {
	r, _, retired := h.b.load()
	if retired {
		return ErrMailboxClosed
	}
	if r == nil {
		return ErrMailboxFull
	}
	err := r.mb.TrySend(msg)
	if errors.Is(err, ErrMailboxClosed) && h.b.supervised {
		return ErrMailboxFull
	}
	return err
}

// Shutdown 请求优雅停止
//
// 之后的发送立即返回 ErrMailboxClosed；Actor 处理完当前消息后停止，
// 队列中剩余消息按 DrainPolicy 处理。受监督的 Actor 不会被重启。
func (h *Handle[M]) Shutdown() {
	h.b.shutdown()
}

// Done Actor 永久停止后关闭
func (h *Handle[M]) Done() <-chan struct{} {
	return h.b.terminated
}

// Err Actor 最终结果；Done 关闭之前为 nil
func (h *Handle[M]) Err() error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	return h.b.lastErr
}

// Wait 等待 Actor 永久停止并返回最终结果
func (h *Handle[M]) Wait(ctx context.Context) error {
	select {
	case <-h.b.terminated:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State 当前 Runner 的状态
func (h *Handle[M]) State() State {
	r, _, _ := h.b.load()
	if r == nil {
		return StateStopped
	}
	return r.State()
}

// Stats 统计快照，受监督的 Actor 会累计所有重启前后的数据
func (h *Handle[M]) Stats() *ActorStats {
	return h.b.stats.Stats()
}

func (h *Handle[M]) askTimeout() time.Duration {
	return h.b.askTimeout
}

// ═══════════════════════════════════════════════════════════════════════════
// binding 可替换的"当前邮箱"单元
// ═══════════════════════════════════════════════════════════════════════════

type binding[M Message] struct {
	name       string
	askTimeout time.Duration
	supervised bool
	stats      *StatsCollector

	mu      sync.Mutex
	cur     *runner[M]
	changed chan struct{}
	retired bool
	lastErr error

	retiredCh  chan struct{}
	terminated chan struct{}
	termOnce   sync.Once
}

func newBinding[M Message](p Props, supervised bool) *binding[M] {
	return &binding[M]{
		name:       p.Name,
		askTimeout: p.AskTimeout,
		supervised: supervised,
		stats:      NewStatsCollector(),
		changed:    make(chan struct{}),
		retiredCh:  make(chan struct{}),
		terminated: make(chan struct{}),
	}
}

func (b *binding[M]) load() (*runner[M], <-chan struct{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur, b.changed, b.retired
}

// bind 切换到新的 Runner；已退役时返回 false
func (b *binding[M]) bind(r *runner[M]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.retired {
		return false
	}
	b.cur = r
	close(b.changed)
	b.changed = make(chan struct{})
	return true
}

// retire 永久停用：之后的发送都返回 ErrMailboxClosed
func (b *binding[M]) retire() {
	b.mu.Lock()
	if b.retired {
		b.mu.Unlock()
		return
	}
	b.retired = true
	close(b.changed)
	close(b.retiredCh)
	cur := b.cur
	b.mu.Unlock()

	if cur != nil {
		cur.mb.Close()
	}
}

// shutdown 退役并停止当前 Runner
func (b *binding[M]) shutdown() {
	b.retire()

	b.mu.Lock()
	cur := b.cur
	b.mu.Unlock()

	if cur != nil {
		cur.stop()
	}
}

// terminate 记录最终结果并关闭 terminated，只在 Runner 已停止后调用
func (b *binding[M]) terminate(err error) {
	b.termOnce.Do(func() {
		b.mu.Lock()
		b.lastErr = err
		b.mu.Unlock()
		close(b.terminated)
	})
}

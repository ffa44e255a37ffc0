package actor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Message Actor 消息接口
//
// 每个 Actor 用一个嵌入 Message 的接口声明自己的消息集合（封闭的 tagged union），
// 具体消息是实现该接口的结构体。Runner 对这个接口做泛型约束，
// 因此向 Actor 发送不属于它协议的消息会在编译期报错。
type Message interface {
	// Kind 返回消息类型标识，用于日志和监控
	Kind() string
}

// Actor 消息处理行为
//
// Actor 的值本身就是它的私有状态，只会被所属 Runner 的 goroutine 访问，
// 同一个 Actor 的两条消息永远不会并发处理。
//
// Receive 返回非 nil error 表示不可恢复的故障，Runner 以该错误结束。
// 单条消息内可恢复的错误应通过回复槽返回给调用方（见 [Reply.Fail]）。
type Actor[M Message] interface {
	Receive(ctx *Context[M], msg M) error
}

// ActorFunc 函数式 Actor，状态放在闭包里
type ActorFunc[M Message] func(ctx *Context[M], msg M) error

// Receive 实现 Actor 接口
func (f ActorFunc[M]) Receive(ctx *Context[M], msg M) error {
	return f(ctx, msg)
}

// Starter 可选接口：Runner 处理第一条消息前调用
// 返回错误时 Runner 直接以该错误结束
type Starter[M Message] interface {
	OnStart(ctx *Context[M]) error
}

// Stopper 可选接口：Runner 结束前调用，err 为 Runner 的最终结果
type Stopper[M Message] interface {
	OnStop(ctx *Context[M], err error)
}

// Ticker 可选接口：配合 Props.TickInterval 使用的定时回调
//
// 定时回调和消息处理在同一个 goroutine 中串行执行。
type Ticker[M Message] interface {
	OnTick(ctx *Context[M]) error
}

// ═══════════════════════════════════════════════════════════════════════════
// Runner 状态
// ═══════════════════════════════════════════════════════════════════════════

// State Runner 状态
type State int32

const (
	// StateRunning 正在处理消息
	StateRunning State = iota
	// StateDraining 已收到停止请求，正在清理队列
	StateDraining
	// StateStopped 正常结束
	StateStopped
	// StateCrashed 因错误或 panic 结束
	StateCrashed
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// DrainPolicy 停止时对队列中剩余消息的处理方式
type DrainPolicy int

const (
	// DrainAbort 丢弃剩余消息，回复槽以 Dropped 结束（默认）
	DrainAbort DrainPolicy = iota
	// DrainFinish 处理完队列中所有消息后再停止
	DrainFinish
)

// String 返回策略名称
func (p DrainPolicy) String() string {
	switch p {
	case DrainAbort:
		return "abort"
	case DrainFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// ParseDrainPolicy 从配置字符串解析 DrainPolicy
func ParseDrainPolicy(s string) (DrainPolicy, error) {
	switch s {
	case "", "abort":
		return DrainAbort, nil
	case "finish":
		return DrainFinish, nil
	default:
		return DrainAbort, fmt.Errorf("unknown drain policy %q", s)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Props
// ═══════════════════════════════════════════════════════════════════════════

// Props Actor 属性配置
type Props struct {
	// Name Actor 名称，用于日志、监控和错误信息
	Name string
	// MailboxSize 邮箱容量，小于 1 时按 1 处理
	MailboxSize int
	// AskTimeout Handle.AskTimeout 未指定超时时使用的默认值
	AskTimeout time.Duration
	// DrainPolicy 停止时的队列处理策略
	DrainPolicy DrainPolicy
	// TickInterval 大于 0 时，实现了 Ticker 的 Actor 会周期性收到 OnTick
	TickInterval time.Duration
	// Parent 父取消令牌，父令牌取消时 Actor 随之停止
	Parent *CancelToken
	// Logger 日志器，nil 时使用 slog.Default()
	Logger *slog.Logger
	// Metrics 度量实现，nil 时使用空实现
	Metrics Metrics
	// PanicHandler panic 回调，在 Runner 记录崩溃之前调用
	PanicHandler func(actor string, msg Message, recovered any)
}

// DefaultProps 默认属性
// name 为空时生成一个随机名称
func DefaultProps(name string) *Props {
	if name == "" {
		name = "actor-" + uuid.NewString()[:8]
	}
	return &Props{
		Name:        name,
		MailboxSize: 100,
		AskTimeout:  5 * time.Second,
		DrainPolicy: DrainAbort,
	}
}

// WithMailboxSize 设置邮箱大小
func (p *Props) WithMailboxSize(size int) *Props {
	p.MailboxSize = size
	return p
}

// WithAskTimeout 设置默认请求超时
func (p *Props) WithAskTimeout(d time.Duration) *Props {
	p.AskTimeout = d
	return p
}

// WithDrainPolicy 设置停止时的队列处理策略
func (p *Props) WithDrainPolicy(policy DrainPolicy) *Props {
	p.DrainPolicy = policy
	return p
}

// WithTick 设置定时回调间隔
func (p *Props) WithTick(interval time.Duration) *Props {
	p.TickInterval = interval
	return p
}

// WithParent 设置父取消令牌
func (p *Props) WithParent(token *CancelToken) *Props {
	p.Parent = token
	return p
}

// WithLogger 设置日志器
func (p *Props) WithLogger(logger *slog.Logger) *Props {
	p.Logger = logger
	return p
}

// WithMetrics 设置度量实现
func (p *Props) WithMetrics(m Metrics) *Props {
	p.Metrics = m
	return p
}

// normalized 返回填充了默认值的副本，调用方的 Props 不会被修改
func (p *Props) normalized() Props {
	if p == nil {
		p = DefaultProps("")
	}
	out := *p
	if out.Name == "" {
		out.Name = DefaultProps("").Name
	}
	if out.MailboxSize < 1 {
		out.MailboxSize = 1
	}
	if out.AskTimeout <= 0 {
		out.AskTimeout = 5 * time.Second
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Metrics == nil {
		out.Metrics = NopMetrics()
	}
	return out
}

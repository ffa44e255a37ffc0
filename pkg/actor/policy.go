package actor

import (
	"fmt"
	"time"
)

// Directive 监督指令
type Directive int

const (
	// DirectiveRestart 按策略退避后重启
	DirectiveRestart Directive = iota
	// DirectiveStop 不再重启，等同于子节点主动停止
	DirectiveStop
	// DirectiveEscalate 立即放弃并上报给监督者的所有者
	DirectiveEscalate
)

// String 返回指令名称
func (d Directive) String() string {
	switch d {
	case DirectiveRestart:
		return "Restart"
	case DirectiveStop:
		return "Stop"
	case DirectiveEscalate:
		return "Escalate"
	default:
		return "Unknown"
	}
}

// Decider 根据失败原因选择监督指令
type Decider func(err error) Directive

// DefaultDecider 对所有错误重启
func DefaultDecider(_ error) Directive {
	return DirectiveRestart
}

// StoppingDecider 对所有错误停止
func StoppingDecider(_ error) Directive {
	return DirectiveStop
}

// EscalatingDecider 对所有错误上报
func EscalatingDecider(_ error) Directive {
	return DirectiveEscalate
}

// ═══════════════════════════════════════════════════════════════════════════
// 重启策略
// ═══════════════════════════════════════════════════════════════════════════

// Policy 重启策略
//
// 子节点失败时，若距上次重启已超过 ResetWindow，重启计数和退避时间先归零；
// 随后若计数小于 MaxRestarts，等待当前退避时间后重启，退避时间乘以
// BackoffMultiplier（不超过 BackoffCap）；否则放弃并上报。
type Policy struct {
	// MaxRestarts ResetWindow 内允许的最大重启次数
	MaxRestarts int
	// BackoffBase 第一次重启前的等待时间
	BackoffBase time.Duration
	// BackoffMultiplier 每次连续失败后退避时间的倍数，不小于 1
	BackoffMultiplier float64
	// BackoffCap 退避时间上限
	BackoffCap time.Duration
	// ResetWindow 子节点无故障运行超过该时长后重启计数归零，0 表示从不归零
	ResetWindow time.Duration
	// Decider 失败时的决策函数，nil 时使用 DefaultDecider
	Decider Decider
}

// DefaultPolicy 默认策略：1 分钟内最多重启 3 次，退避 100ms 起步、翻倍、上限 10s
func DefaultPolicy() Policy {
	return Policy{
		MaxRestarts:       3,
		BackoffBase:       100 * time.Millisecond,
		BackoffMultiplier: 2,
		BackoffCap:        10 * time.Second,
		ResetWindow:       time.Minute,
		Decider:           DefaultDecider,
	}
}

// Validate 检查策略参数
func (p Policy) Validate() error {
	p = p.normalized()
	switch {
	case p.MaxRestarts < 0:
		return fmt.Errorf("%w: max restarts %d < 0", ErrInvalidPolicy, p.MaxRestarts)
	case p.BackoffBase < 0:
		return fmt.Errorf("%w: backoff base %v < 0", ErrInvalidPolicy, p.BackoffBase)
	case p.BackoffMultiplier < 1:
		return fmt.Errorf("%w: backoff multiplier %v < 1", ErrInvalidPolicy, p.BackoffMultiplier)
	case p.BackoffCap < p.BackoffBase:
		return fmt.Errorf("%w: backoff cap %v < base %v", ErrInvalidPolicy, p.BackoffCap, p.BackoffBase)
	case p.ResetWindow < 0:
		return fmt.Errorf("%w: reset window %v < 0", ErrInvalidPolicy, p.ResetWindow)
	}
	return nil
}

// normalized 填充零值字段：倍数为 0 视为 1，上限为 0 视为等于起步值
func (p Policy) normalized() Policy {
	if p.BackoffMultiplier == 0 {
		p.BackoffMultiplier = 1
	}
	if p.BackoffCap == 0 {
		p.BackoffCap = p.BackoffBase
	}
	if p.Decider == nil {
		p.Decider = DefaultDecider
	}
	return p
}

// nextBackoff 计算下一次退避时间
func (p Policy) nextBackoff(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * p.BackoffMultiplier)
	if next > p.BackoffCap || next < cur {
		next = p.BackoffCap
	}
	return next
}

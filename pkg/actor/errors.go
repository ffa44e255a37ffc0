package actor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMailboxClosed 邮箱已关闭，调用方应停止向该 Handle 发送
	ErrMailboxClosed = errors.New("mailbox closed")
	// ErrMailboxFull 邮箱已满（仅 TrySend 返回）
	ErrMailboxFull = errors.New("mailbox full")
	// ErrMailboxDrained 邮箱已关闭且没有剩余消息，接收方据此结束
	ErrMailboxDrained = errors.New("mailbox drained")

	// ErrAskClosed 消息被接收之前邮箱已关闭
	ErrAskClosed = errors.New("ask: mailbox closed")
	// ErrAskDropped Actor 结束时没有回复
	ErrAskDropped = errors.New("ask: reply dropped")
	// ErrAskTimeout 等待回复超时
	ErrAskTimeout = errors.New("ask: timeout")

	// ErrAlreadyReplied 回复槽只能写入一次
	ErrAlreadyReplied = errors.New("reply already sent")

	// ErrActorCrashed Actor 处理消息时 panic
	ErrActorCrashed = errors.New("actor crashed")

	// ErrSupervisorGivenUp 监督者放弃重启
	ErrSupervisorGivenUp = errors.New("supervisor given up")
	// ErrSupervisorStopped 监督者已停止，不再接受新的子节点
	ErrSupervisorStopped = errors.New("supervisor stopped")
	// ErrTreeTooDeep 监督树层级超过 MaxTreeDepth
	ErrTreeTooDeep = errors.New("supervision tree too deep")
	// ErrInvalidPolicy 重启策略参数非法
	ErrInvalidPolicy = errors.New("invalid restart policy")
)

// ═══════════════════════════════════════════════════════════════════════════
// AskError
// ═══════════════════════════════════════════════════════════════════════════

// AskReason Ask 失败原因
type AskReason int

const (
	// AskClosed 邮箱在接收消息前关闭
	AskClosed AskReason = iota + 1
	// AskDropped Actor 结束时没有回复
	AskDropped
	// AskTimedOut 超过调用方给定的截止时间
	AskTimedOut
)

// String 返回原因名称
func (r AskReason) String() string {
	switch r {
	case AskClosed:
		return "closed"
	case AskDropped:
		return "dropped"
	case AskTimedOut:
		return "timeout"
	default:
		return "unknown"
	}
}

// AskError 请求-回复失败
//
// 用 errors.Is 判断原因：ErrAskClosed / ErrAskDropped / ErrAskTimeout。
// AskClosed 同时匹配 ErrMailboxClosed，AskTimedOut 同时匹配 context.DeadlineExceeded
// （如果超时来自 context）。
type AskError struct {
	Reason  AskReason
	Target  string
	Kind    string
	Timeout time.Duration
	Cause   error
}

// Error 实现 error 接口
func (e *AskError) Error() string {
	switch e.Reason {
	case AskTimedOut:
		if e.Timeout > 0 {
			return fmt.Sprintf("ask %s to %s timed out after %v", e.Kind, e.Target, e.Timeout)
		}
		return fmt.Sprintf("ask %s to %s timed out", e.Kind, e.Target)
	case AskDropped:
		if e.Cause != nil {
			return fmt.Sprintf("ask %s to %s dropped: %v", e.Kind, e.Target, e.Cause)
		}
		return fmt.Sprintf("ask %s to %s dropped", e.Kind, e.Target)
	default:
		return fmt.Sprintf("ask %s to %s: mailbox closed", e.Kind, e.Target)
	}
}

// Unwrap 返回原因对应的哨兵错误和底层原因
func (e *AskError) Unwrap() []error {
	errs := make([]error, 0, 3)
	switch e.Reason {
	case AskClosed:
		errs = append(errs, ErrAskClosed, ErrMailboxClosed)
	case AskDropped:
		errs = append(errs, ErrAskDropped)
	case AskTimedOut:
		errs = append(errs, ErrAskTimeout)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// ═══════════════════════════════════════════════════════════════════════════
// CrashError
// ═══════════════════════════════════════════════════════════════════════════

// CrashError Actor 在处理消息时 panic
type CrashError struct {
	Actor string
	// Kind 崩溃时正在处理的消息类型，生命周期回调中崩溃时为 "lifecycle.*"
	Kind  string
	Value any
	Stack []byte
}

// Error 实现 error 接口
func (e *CrashError) Error() string {
	return fmt.Sprintf("actor %s crashed handling %s: %v", e.Actor, e.Kind, e.Value)
}

// Unwrap 匹配 ErrActorCrashed；panic 值本身是 error 时一并返回
func (e *CrashError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrActorCrashed, err}
	}
	return []error{ErrActorCrashed}
}

// ═══════════════════════════════════════════════════════════════════════════
// GivenUpError
// ═══════════════════════════════════════════════════════════════════════════

// GivenUpError 监督者放弃重启子节点，需要上报给监督者的所有者
type GivenUpError struct {
	Supervisor string
	Child      string
	Restarts   int
	Last       error
}

// Error 实现 error 接口
func (e *GivenUpError) Error() string {
	return fmt.Sprintf("supervisor %s gave up on %s after %d restarts: %v",
		e.Supervisor, e.Child, e.Restarts, e.Last)
}

// Unwrap 匹配 ErrSupervisorGivenUp 和最后一次失败原因
func (e *GivenUpError) Unwrap() []error {
	if e.Last != nil {
		return []error{ErrSupervisorGivenUp, e.Last}
	}
	return []error{ErrSupervisorGivenUp}
}

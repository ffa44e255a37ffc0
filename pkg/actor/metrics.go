package actor

import (
	"time"

	"github.com/lwmacct/251217-go-pkg-actor/pkg/metrics"
)

// Metrics Actor 运行时度量接口，所有方法都必须并发安全
//
// Prometheus 实现见 pkg/adapters/prometheus。
type Metrics interface {
	// 消息处理
	MessageDuration(kind string) metrics.Timer
	MessageProcessed(kind string, success bool)
	MessagePanic(kind string)

	// 邮箱
	MailboxDepth(actor string, depth int)
	ReplyDropped(actor string)

	// 监督
	ActorRestarted(actor string, backoff time.Duration)
	SupervisorGivenUp(supervisor, child string)
}

type nopMetrics struct{}

func (nopMetrics) MessageDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) MessageProcessed(string, bool)        {}
func (nopMetrics) MessagePanic(string)                  {}
func (nopMetrics) MailboxDepth(string, int)             {}
func (nopMetrics) ReplyDropped(string)                  {}
func (nopMetrics) ActorRestarted(string, time.Duration) {}
func (nopMetrics) SupervisorGivenUp(string, string)     {}

// NopMetrics 返回空实现
func NopMetrics() Metrics { return nopMetrics{} }

package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lwmacct/251217-go-pkg-actor/pkg/actor"
	"github.com/lwmacct/251217-go-pkg-actor/pkg/metrics"
)

// actorMetrics 用 Prometheus 实现 actor.Metrics
type actorMetrics struct {
	messageDuration *prometheus.HistogramVec
	messagesTotal   *prometheus.CounterVec
	panicTotal      *prometheus.CounterVec
	mailboxDepth    *prometheus.GaugeVec
	repliesDropped  *prometheus.CounterVec
	restartsTotal   *prometheus.CounterVec
	restartBackoff  *prometheus.HistogramVec
	givenUpTotal    *prometheus.CounterVec
}

// NewActorMetrics 创建指标并注册到 reg
//
// 同一个 Registerer 只能调用一次，重复注册会 panic。
func NewActorMetrics(reg prometheus.Registerer) actor.Metrics {
	m := &actorMetrics{
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "message_duration_seconds",
			Help:      "Message handling time in seconds",
			Buckets:   defaultBuckets,
		}, []string{"message_type"}),

		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_total",
			Help:      "Total number of messages processed",
		}, []string{"message_type", "success"}),

		panicTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "panics_total",
			Help:      "Total number of handler panics",
		}, []string{"message_type"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "mailbox_depth",
			Help:      "Mailbox queue depth observed when a message is taken",
		}, []string{"actor"}),

		repliesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "replies_dropped_total",
			Help:      "Reply slots resolved as dropped because the actor stopped",
		}, []string{"actor"}),

		restartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "restarts_total",
			Help:      "Total number of supervised restarts",
		}, []string{"actor"}),

		restartBackoff: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "restart_backoff_seconds",
			Help:      "Backoff waited before each restart",
			Buckets:   backoffBuckets,
		}, []string{"actor"}),

		givenUpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "supervisor_given_up_total",
			Help:      "Supervisors that exceeded their restart budget",
		}, []string{"supervisor", "child"}),
	}

	reg.MustRegister(
		m.messageDuration,
		m.messagesTotal,
		m.panicTotal,
		m.mailboxDepth,
		m.repliesDropped,
		m.restartsTotal,
		m.restartBackoff,
		m.givenUpTotal,
	)

	return m
}

func (m *actorMetrics) MessageDuration(msgType string) metrics.Timer {
	return newTimer(m.messageDuration.WithLabelValues(msgType))
}

func (m *actorMetrics) MessageProcessed(msgType string, success bool) {
	m.messagesTotal.WithLabelValues(msgType, boolToStr(success)).Inc()
}

func (m *actorMetrics) MessagePanic(msgType string) {
	m.panicTotal.WithLabelValues(msgType).Inc()
}

func (m *actorMetrics) MailboxDepth(name string, depth int) {
	m.mailboxDepth.WithLabelValues(name).Set(float64(depth))
}

func (m *actorMetrics) ReplyDropped(name string) {
	m.repliesDropped.WithLabelValues(name).Inc()
}

func (m *actorMetrics) ActorRestarted(name string, backoff time.Duration) {
	m.restartsTotal.WithLabelValues(name).Inc()
	m.restartBackoff.WithLabelValues(name).Observe(backoff.Seconds())
}

func (m *actorMetrics) SupervisorGivenUp(supervisor, child string) {
	m.givenUpTotal.WithLabelValues(supervisor, child).Inc()
}

var _ actor.Metrics = (*actorMetrics)(nil)

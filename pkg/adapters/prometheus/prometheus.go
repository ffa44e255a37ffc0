// Package prometheus 提供 actor.Metrics 的 Prometheus 实现
//
//	reg := prometheus.NewRegistry()
//	m := promadapter.NewActorMetrics(reg)
//	h := actor.Spawn[Msg](a, actor.DefaultProps("worker").WithMetrics(m))
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lwmacct/251217-go-pkg-actor/pkg/metrics"
)

// Namespace 所有指标名称的前缀
const Namespace = "actor"

// timer 用 Histogram 实现 metrics.Timer
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// 延迟类指标的默认分桶（秒）
var defaultBuckets = []float64{
	.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// 退避时间分桶（秒），覆盖 DefaultPolicy 的 100ms 到 10s
var backoffBuckets = []float64{.01, .05, .1, .2, .4, .8, 1.6, 3.2, 6.4, 10, 30}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

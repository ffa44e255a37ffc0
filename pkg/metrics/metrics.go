// Package metrics 定义与具体后端无关的度量接口
//
// actor 包只依赖这里的接口，Prometheus 实现放在 adapters 下，
// 不使用度量时可以直接用 NopTimer。
package metrics

// Timer 计时器，操作结束时调用 ObserveDuration 记录耗时
//
//	defer m.MessageDuration("counter.inc").ObserveDuration()
type Timer interface {
	ObserveDuration()
}

// TimerFunc 函数式 Timer
type TimerFunc func()

// ObserveDuration 实现 Timer 接口
func (f TimerFunc) ObserveDuration() { f() }

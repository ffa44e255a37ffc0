package metrics

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

// NopTimer 返回空实现的 Timer
func NopTimer() Timer { return nopTimer{} }

package actor

import (
	"sync"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// Actor 统计信息
// ═══════════════════════════════════════════════════════════════════════════

// ActorStats Actor 运行时统计信息
type ActorStats struct {
	// 消息计数
	MessagesReceived int64 // 开始处理的消息数
	MessagesHandled  int64 // 成功处理的消息数
	Errors           int64 // 以错误或 panic 结束的消息数
	Discarded        int64 // 停止时被丢弃的队列消息数
	RepliesDropped   int64 // 以 Dropped 结束的回复槽数
	Restarts         int64 // 被监督者重启的次数

	// 延迟统计
	TotalLatency   time.Duration // 总延迟（用于计算平均值）
	AverageLatency time.Duration // 平均延迟
	MaxLatency     time.Duration // 最大延迟
	MinLatency     time.Duration // 最小延迟

	// 时间戳
	StartedAt     time.Time // 启动时间
	LastMessageAt time.Time // 最后消息时间
	LastErrorAt   time.Time // 最后错误时间
	LastRestartAt time.Time // 最后重启时间

	// LastError 最后一个错误
	LastError error
}

// Clone 克隆统计信息
func (s *ActorStats) Clone() *ActorStats {
	c := *s
	return &c
}

// ═══════════════════════════════════════════════════════════════════════════
// StatsCollector 统计收集器
// ═══════════════════════════════════════════════════════════════════════════

// StatsCollector 线程安全的统计收集器
//
// Runner 在自己的 goroutine 中写入，Handle.Stats 可在任意 goroutine 读取快照。
type StatsCollector struct {
	mu    sync.RWMutex
	stats ActorStats
}

// NewStatsCollector 创建统计收集器
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		stats: ActorStats{
			StartedAt:  time.Now(),
			MinLatency: time.Duration(1<<63 - 1), // 最大值，确保第一次会被更新
		},
	}
}

// RecordReceived 记录开始处理一条消息
func (c *StatsCollector) RecordReceived() {
	c.mu.Lock()
	c.stats.MessagesReceived++
	c.stats.LastMessageAt = time.Now()
	c.mu.Unlock()
}

// RecordHandled 记录成功处理消息
func (c *StatsCollector) RecordHandled(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.MessagesHandled++
	c.stats.TotalLatency += latency
	c.stats.AverageLatency = c.stats.TotalLatency / time.Duration(c.stats.MessagesHandled)

	if latency > c.stats.MaxLatency {
		c.stats.MaxLatency = latency
	}
	if latency < c.stats.MinLatency {
		c.stats.MinLatency = latency
	}
}

// RecordError 记录错误
func (c *StatsCollector) RecordError(err error) {
	c.mu.Lock()
	c.stats.Errors++
	c.stats.LastError = err
	c.stats.LastErrorAt = time.Now()
	c.mu.Unlock()
}

// RecordDiscarded 记录停止时丢弃的消息
func (c *StatsCollector) RecordDiscarded() {
	c.mu.Lock()
	c.stats.Discarded++
	c.mu.Unlock()
}

// RecordDropped 记录以 Dropped 结束的回复槽
func (c *StatsCollector) RecordDropped() {
	c.mu.Lock()
	c.stats.RepliesDropped++
	c.mu.Unlock()
}

// RecordRestart 记录一次重启
func (c *StatsCollector) RecordRestart() {
	c.mu.Lock()
	c.stats.Restarts++
	c.stats.LastRestartAt = time.Now()
	c.mu.Unlock()
}

// Stats 获取统计快照
func (c *StatsCollector) Stats() *ActorStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats.Clone()
	if s.MessagesHandled == 0 {
		s.MinLatency = 0
	}
	return s
}

// Reset 重置统计
func (c *StatsCollector) Reset() {
	c.mu.Lock()
	c.stats = ActorStats{
		StartedAt:  time.Now(),
		MinLatency: time.Duration(1<<63 - 1),
	}
	c.mu.Unlock()
}

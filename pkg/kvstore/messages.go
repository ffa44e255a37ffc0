package kvstore

import (
	"time"

	"github.com/lwmacct/251217-go-pkg-actor/pkg/actor"
)

// Msg Store 接受的消息集合
type Msg interface {
	actor.Message
	kvMsg()
}

// ═══════════════════════════════════════════════════════════════════════════
// 读写消息
// ═══════════════════════════════════════════════════════════════════════════

// PutMsg 写入请求，回复是否覆盖了已有的键
//
// TTL 为 0 表示永不过期。
type PutMsg struct {
	Key   string
	Value any
	TTL   time.Duration
	actor.ReplyTo[bool]
}

// Kind 实现 actor.Message 接口
func (PutMsg) Kind() string { return "kv.put" }
func (PutMsg) kvMsg()       {}

// GetMsg 读取请求
type GetMsg struct {
	Key string
	actor.ReplyTo[GetResult]
}

// Kind 实现 actor.Message 接口
func (GetMsg) Kind() string { return "kv.get" }
func (GetMsg) kvMsg()       {}

// GetResult 读取结果
type GetResult struct {
	Value any
	Found bool
}

// DeleteMsg 删除请求，回复键是否存在
type DeleteMsg struct {
	Key string
	actor.ReplyTo[bool]
}

// Kind 实现 actor.Message 接口
func (DeleteMsg) Kind() string { return "kv.delete" }
func (DeleteMsg) kvMsg()       {}

// ═══════════════════════════════════════════════════════════════════════════
// 查询消息
// ═══════════════════════════════════════════════════════════════════════════

// KeysMsg 列出带指定前缀的键（已排序），前缀为空时列出全部
type KeysMsg struct {
	Prefix string
	actor.ReplyTo[[]string]
}

// Kind 实现 actor.Message 接口
func (KeysMsg) Kind() string { return "kv.keys" }
func (KeysMsg) kvMsg()       {}

// LenMsg 条目数请求（不含已过期条目）
type LenMsg struct {
	actor.ReplyTo[int]
}

// Kind 实现 actor.Message 接口
func (LenMsg) Kind() string { return "kv.len" }
func (LenMsg) kvMsg()       {}

// ClearMsg 清空所有条目，无回复
type ClearMsg struct{}

// Kind 实现 actor.Message 接口
func (ClearMsg) Kind() string { return "kv.clear" }
func (ClearMsg) kvMsg()       {}

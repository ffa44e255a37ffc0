package kvstore

import (
	"time"

	"github.com/lwmacct/251217-go-pkg-actor/pkg/actor"
)

// ═══════════════════════════════════════════════════════════════════════════
// 便捷函数
// ═══════════════════════════════════════════════════════════════════════════
//
// timeout <= 0 时使用 Handle 的默认请求超时（Props.AskTimeout）。

// DoPut 写入键值，返回是否覆盖了已有的键
func DoPut(h *actor.Handle[Msg], key string, value any, ttl, timeout time.Duration) (bool, error) {
	return actor.AskTimeout(h, func(r *actor.Reply[bool]) Msg {
		return PutMsg{Key: key, Value: value, TTL: ttl, ReplyTo: actor.ReplyVia(r)}
	}, timeout)
}

// DoGet 读取键值
func DoGet(h *actor.Handle[Msg], key string, timeout time.Duration) (any, bool, error) {
	res, err := actor.AskTimeout(h, func(r *actor.Reply[GetResult]) Msg {
		return GetMsg{Key: key, ReplyTo: actor.ReplyVia(r)}
	}, timeout)
	if err != nil {
		return nil, false, err
	}
	return res.Value, res.Found, nil
}

// DoDelete 删除键，返回键是否存在
func DoDelete(h *actor.Handle[Msg], key string, timeout time.Duration) (bool, error) {
	return actor.AskTimeout(h, func(r *actor.Reply[bool]) Msg {
		return DeleteMsg{Key: key, ReplyTo: actor.ReplyVia(r)}
	}, timeout)
}

// DoKeys 列出带指定前缀的键
func DoKeys(h *actor.Handle[Msg], prefix string, timeout time.Duration) ([]string, error) {
	return actor.AskTimeout(h, func(r *actor.Reply[[]string]) Msg {
		return KeysMsg{Prefix: prefix, ReplyTo: actor.ReplyVia(r)}
	}, timeout)
}

// DoLen 返回条目数
func DoLen(h *actor.Handle[Msg], timeout time.Duration) (int, error) {
	return actor.AskTimeout(h, func(r *actor.Reply[int]) Msg {
		return LenMsg{ReplyTo: actor.ReplyVia(r)}
	}, timeout)
}

// Clear 清空 Store（fire-and-forget）
func Clear(h *actor.Handle[Msg]) error {
	return h.Tell(ClearMsg{})
}

// GetAs 读取键值并断言为 T，类型不符时 found 为 false
func GetAs[T any](h *actor.Handle[Msg], key string, timeout time.Duration) (T, bool, error) {
	var zero T
	v, found, err := DoGet(h, key, timeout)
	if err != nil || !found {
		return zero, false, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, false, nil
	}
	return t, true, nil
}

package kvstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lwmacct/251217-go-pkg-actor/pkg/actor"
)

var (
	// ErrEmptyKey 键为空
	ErrEmptyKey = errors.New("kvstore: empty key")
	// ErrStoreFull 条目数已达上限
	ErrStoreFull = errors.New("kvstore: store full")
)

type entry struct {
	value     any
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store 键值缓存 Actor
//
// 状态只被所属 Runner 的 goroutine 访问，不需要锁。
type Store struct {
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
	logger     *slog.Logger
}

// Option Store 选项
type Option func(*Store)

// WithMaxEntries 设置条目数上限，0 表示不限制
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// WithClock 设置时钟，测试时用于控制过期
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger 设置日志器，nil 时使用 Actor 的日志器
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New 创建 Store
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Factory 返回供监督者使用的工厂函数，每次调用创建一个空的 Store
func Factory(opts ...Option) func() actor.Actor[Msg] {
	return func() actor.Actor[Msg] {
		return New(opts...)
	}
}

// OnStart 实现 actor.Starter
func (s *Store) OnStart(ctx *actor.Context[Msg]) error {
	if s.logger == nil {
		s.logger = ctx.Logger()
	}
	s.logger.Debug("store started", "incarnation", ctx.Incarnation())
	return nil
}

// OnStop 实现 actor.Stopper
func (s *Store) OnStop(_ *actor.Context[Msg], err error) {
	s.logger.Debug("store stopped", "entries", len(s.entries), "error", err)
}

// OnTick 实现 actor.Ticker：清理过期条目
func (s *Store) OnTick(_ *actor.Context[Msg]) error {
	if n := s.purge(); n > 0 {
		s.logger.Debug("expired entries purged", "count", n)
	}
	return nil
}

// Receive 处理接收到的消息（Actor 核心方法）
func (s *Store) Receive(_ *actor.Context[Msg], msg Msg) error {
	switch m := msg.(type) {
	case PutMsg:
		replaced, err := s.put(m.Key, m.Value, m.TTL)
		if err != nil {
			_ = m.Reply.Fail(err)
			return nil
		}
		_ = m.Reply.Send(replaced)

	case GetMsg:
		e, ok := s.lookup(m.Key)
		_ = m.Reply.Send(GetResult{Value: e.value, Found: ok})

	case DeleteMsg:
		_, ok := s.lookup(m.Key)
		delete(s.entries, m.Key)
		_ = m.Reply.Send(ok)

	case KeysMsg:
		_ = m.Reply.Send(s.keys(m.Prefix))

	case LenMsg:
		s.purge()
		_ = m.Reply.Send(len(s.entries))

	case ClearMsg:
		s.entries = make(map[string]entry)

	default:
		return fmt.Errorf("kvstore: unexpected message %s", msg.Kind())
	}
	return nil
}

// ───────────────────────────────────────────────────────────────────────────
// 内部实现
// ───────────────────────────────────────────────────────────────────────────

func (s *Store) put(key string, value any, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	_, replaced := s.lookup(key)
	if !replaced && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.purge()
		if len(s.entries) >= s.maxEntries {
			return false, fmt.Errorf("%w: %d entries", ErrStoreFull, s.maxEntries)
		}
	}

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return replaced, nil
}

// lookup 读取条目，已过期的视为不存在并顺便删除
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) keys(prefix string) []string {
	now := s.now()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if e.expired(now) || !strings.HasPrefix(k, prefix) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) purge() int {
	now := s.now()
	n := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

package actor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// ============== 测试消息类型 ==============

type counterMsg interface {
	Message
	counterMsg()
}

type incMsg struct{ N int }

func (incMsg) Kind() string { return "inc" }
func (incMsg) counterMsg()  {}

type getMsg struct{ ReplyTo[int] }

func (getMsg) Kind() string { return "get" }
func (getMsg) counterMsg()  {}

type failMsg struct{ Err error }

func (failMsg) Kind() string { return "fail" }
func (failMsg) counterMsg()  {}

type panicMsg struct{}

func (panicMsg) Kind() string { return "panic" }
func (panicMsg) counterMsg()  {}

// crashAskMsg 处理时 panic，回复槽应以 Dropped 结束
type crashAskMsg struct{ ReplyTo[int] }

func (crashAskMsg) Kind() string { return "crash-ask" }
func (crashAskMsg) counterMsg()  {}

// rejectMsg 通过 Reply.Fail 返回业务错误
type rejectMsg struct{ ReplyTo[int] }

func (rejectMsg) Kind() string { return "reject" }
func (rejectMsg) counterMsg()  {}

// deferMsg 保存回复槽但从不回复
type deferMsg struct{ ReplyTo[int] }

func (deferMsg) Kind() string { return "defer" }
func (deferMsg) counterMsg()  {}

// blockMsg 阻塞直到 Release 关闭
type blockMsg struct {
	Started chan struct{}
	Release chan struct{}
}

func (blockMsg) Kind() string { return "block" }
func (blockMsg) counterMsg()  {}

type stopMsg struct{}

func (stopMsg) Kind() string { return "stop" }
func (stopMsg) counterMsg()  {}

var (
	errBoom       = errors.New("boom")
	errBadRequest = errors.New("bad request")
)

// ============== 测试 Actor ==============

type counter struct {
	n        int
	deferred []*Reply[int]
}

func (c *counter) Receive(ctx *Context[counterMsg], msg counterMsg) error {
	switch m := msg.(type) {
	case incMsg:
		c.n += m.N
	case getMsg:
		_ = m.Reply.Send(c.n)
	case failMsg:
		return m.Err
	case panicMsg:
		panic("intentional panic")
	case crashAskMsg:
		panic(errBoom)
	case rejectMsg:
		_ = m.Reply.Fail(errBadRequest)
	case deferMsg:
		c.deferred = append(c.deferred, m.Reply)
	case blockMsg:
		if m.Started != nil {
			close(m.Started)
		}
		<-m.Release
	case stopMsg:
		ctx.Stop()
	}
	return nil
}

func newCounter() Actor[counterMsg] { return &counter{} }

func buildGet(r *Reply[int]) counterMsg { return getMsg{ReplyVia(r)} }

func spawnCounter(t *testing.T, props *Props) *Handle[counterMsg] {
	t.Helper()
	h := Spawn(newCounter(), props)
	t.Cleanup(h.Shutdown)
	return h
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for actor to stop")
	}
}

// ============== 基本收发 ==============

func TestCounterScenario(t *testing.T) {
	h := spawnCounter(t, DefaultProps("counter"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Send(ctx, incMsg{N: 1}))
	}

	n, err := Ask(ctx, h, buildGet)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "counter", h.Name())
	assert.Equal(t, StateRunning, h.State())
}

func TestActorFunc(t *testing.T) {
	var seen atomic.Int32
	h := Spawn[counterMsg](ActorFunc[counterMsg](func(_ *Context[counterMsg], msg counterMsg) error {
		if _, ok := msg.(incMsg); ok {
			seen.Add(1)
		}
		return nil
	}), nil)
	defer h.Shutdown()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Tell(incMsg{N: 1}))
	}
	assert.Eventually(t, func() bool { return seen.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, h.Name())
}

func TestHandleClone(t *testing.T) {
	h := spawnCounter(t, nil)
	c := h.Clone()

	require.NoError(t, c.Tell(incMsg{N: 2}))
	require.NoError(t, h.Tell(incMsg{N: 3}))

	n, err := AskTimeout(c, buildGet, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, h.Name(), c.Name())
}

func TestHandleTrySend(t *testing.T) {
	h := spawnCounter(t, DefaultProps("try").WithMailboxSize(1))

	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, h.Tell(blockMsg{Started: started, Release: release}))
	<-started

	require.NoError(t, h.TrySend(incMsg{N: 1}))
	assert.ErrorIs(t, h.TrySend(incMsg{N: 1}), ErrMailboxFull)
	close(release)

	h.Shutdown()
	waitDone(t, h.Done())
	assert.ErrorIs(t, h.TrySend(incMsg{N: 1}), ErrMailboxClosed)
}

// 同一个发送方的消息按顺序处理
func TestPerSenderOrdering(t *testing.T) {
	type rec struct{ sender, seq int }
	var (
		mu  sync.Mutex
		got []rec
	)
	h := Spawn[seqProto](ActorFunc[seqProto](func(_ *Context[seqProto], msg seqProto) error {
		m := msg.(seqEnvelope)
		mu.Lock()
		got = append(got, rec{m.Producer, m.Seq})
		mu.Unlock()
		return nil
	}), DefaultProps("ordered").WithMailboxSize(4).WithDrainPolicy(DrainFinish))

	const senders, perSender = 4, 100
	var g errgroup.Group
	for s := 0; s < senders; s++ {
		g.Go(func() error {
			for i := 0; i < perSender; i++ {
				if err := h.Send(context.Background(), seqEnvelope{seqMsg{Producer: s, Seq: i}}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	h.Shutdown()
	waitDone(t, h.Done())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, senders*perSender)
	next := make(map[int]int)
	for _, r := range got {
		assert.Equal(t, next[r.sender], r.seq)
		next[r.sender] = r.seq + 1
	}
}

type seqProto interface {
	Message
	seqProto()
}

type seqEnvelope struct{ seqMsg }

func (seqEnvelope) seqProto() {}

// ============== 请求-回复 ==============

func TestAskClosed(t *testing.T) {
	h := spawnCounter(t, nil)
	h.Shutdown()
	waitDone(t, h.Done())

	_, err := AskTimeout(h, buildGet, time.Second)
	require.Error(t, err)

	var askErr *AskError
	require.ErrorAs(t, err, &askErr)
	assert.Equal(t, AskClosed, askErr.Reason)
	assert.ErrorIs(t, err, ErrAskClosed)
	assert.ErrorIs(t, err, ErrMailboxClosed)
}

// 处理请求时崩溃：等待方收到 Dropped 而不是一直挂起
func TestAskDroppedOnCrash(t *testing.T) {
	h := spawnCounter(t, DefaultProps("crasher"))

	_, err := AskTimeout(h, func(r *Reply[int]) counterMsg { return crashAskMsg{ReplyVia(r)} }, time.Second)

	var askErr *AskError
	require.ErrorAs(t, err, &askErr)
	assert.Equal(t, AskDropped, askErr.Reason)
	assert.ErrorIs(t, err, ErrAskDropped)
	assert.ErrorIs(t, err, ErrActorCrashed)
	assert.ErrorIs(t, err, errBoom)

	waitDone(t, h.Done())
	assert.Equal(t, StateCrashed, h.State())

	var crash *CrashError
	require.ErrorAs(t, h.Err(), &crash)
	assert.Equal(t, "crasher", crash.Actor)
	assert.Equal(t, "crash-ask", crash.Kind)
	assert.NotEmpty(t, crash.Stack)
}

func TestAskTimeout(t *testing.T) {
	h := spawnCounter(t, nil)

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, h.Tell(blockMsg{Release: release}))

	start := time.Now()
	_, err := AskTimeout(h, buildGet, 50*time.Millisecond)
	elapsed := time.Since(start)

	var askErr *AskError
	require.ErrorAs(t, err, &askErr)
	assert.Equal(t, AskTimedOut, askErr.Reason)
	assert.Equal(t, 50*time.Millisecond, askErr.Timeout)
	assert.ErrorIs(t, err, ErrAskTimeout)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestAskContextDeadline(t *testing.T) {
	h := spawnCounter(t, nil)

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, h.Tell(blockMsg{Release: release}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Ask(ctx, h, buildGet)
	assert.ErrorIs(t, err, ErrAskTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAskDefaultTimeoutFromProps(t *testing.T) {
	h := spawnCounter(t, DefaultProps("slow").WithAskTimeout(40*time.Millisecond))

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, h.Tell(blockMsg{Release: release}))

	_, err := AskTimeout(h, buildGet, 0)
	var askErr *AskError
	require.ErrorAs(t, err, &askErr)
	assert.Equal(t, 40*time.Millisecond, askErr.Timeout)
}

func TestReplyFailIsReturnedUnchanged(t *testing.T) {
	h := spawnCounter(t, nil)

	_, err := AskTimeout(h, func(r *Reply[int]) counterMsg { return rejectMsg{ReplyVia(r)} }, time.Second)
	assert.Equal(t, errBadRequest, err)

	var askErr *AskError
	assert.False(t, errors.As(err, &askErr))
	assert.Equal(t, StateRunning, h.State())
}

func TestReplyAtMostOnce(t *testing.T) {
	r := NewReply[int]()
	require.NoError(t, r.Send(1))
	assert.True(t, r.Resolved())
	assert.ErrorIs(t, r.Send(2), ErrAlreadyReplied)
	assert.ErrorIs(t, r.Fail(errBoom), ErrAlreadyReplied)
	assert.False(t, r.drop(nil))

	res := <-r.ch
	assert.Equal(t, 1, res.value)
	assert.False(t, res.dropped)

	var none *Reply[int]
	assert.NoError(t, none.Send(1))
	assert.True(t, none.Resolved())
	assert.Nil(t, ReplyTo[int]{}.ReplySlot())
}

// 保存下来但没有回复的请求在 Actor 停止时以 Dropped 结束
func TestDeferredReplyDroppedOnStop(t *testing.T) {
	h := spawnCounter(t, nil)

	reply := NewReply[int]()
	require.NoError(t, h.Tell(deferMsg{ReplyVia(reply)}))

	_, err := AskTimeout(h, buildGet, time.Second)
	require.NoError(t, err)
	assert.False(t, reply.Resolved())

	h.Shutdown()
	waitDone(t, h.Done())

	select {
	case res := <-reply.ch:
		assert.True(t, res.dropped)
	case <-time.After(time.Second):
		t.Fatal("deferred reply was not dropped")
	}
	assert.Equal(t, int64(1), h.Stats().RepliesDropped)
}

// ============== 停止与排空 ==============

func TestReceiveErrorStopsRunner(t *testing.T) {
	h := spawnCounter(t, nil)
	require.NoError(t, h.Tell(failMsg{Err: errBoom}))

	waitDone(t, h.Done())
	assert.ErrorIs(t, h.Err(), errBoom)
	assert.Equal(t, StateCrashed, h.State())
	assert.ErrorIs(t, h.Tell(incMsg{N: 1}), ErrMailboxClosed)

	stats := h.Stats()
	assert.Equal(t, int64(1), stats.Errors)
	assert.ErrorIs(t, stats.LastError, errBoom)
}

func TestPanicBecomesCrashError(t *testing.T) {
	var handled atomic.Value
	props := DefaultProps("panicky")
	props.PanicHandler = func(actor string, msg Message, recovered any) {
		handled.Store(actor + ":" + msg.Kind())
	}
	h := spawnCounter(t, props)
	require.NoError(t, h.Tell(panicMsg{}))

	waitDone(t, h.Done())
	assert.ErrorIs(t, h.Err(), ErrActorCrashed)

	var crash *CrashError
	require.ErrorAs(t, h.Err(), &crash)
	assert.Equal(t, "intentional panic", crash.Value)
	assert.Equal(t, "panicky:panic", handled.Load())
}

// 停止请求之后不会开始新的消息：DrainAbort 丢弃队列
func TestShutdownDrainAbort(t *testing.T) {
	h := spawnCounter(t, DefaultProps("abort").WithMailboxSize(10))

	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, h.Tell(blockMsg{Started: started, Release: release}))
	<-started

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Tell(incMsg{N: 1}))
	}
	queued := NewReply[int]()
	require.NoError(t, h.Tell(getMsg{ReplyVia(queued)}))

	h.Shutdown()
	assert.ErrorIs(t, h.Tell(incMsg{N: 1}), ErrMailboxClosed)
	close(release)
	waitDone(t, h.Done())

	assert.NoError(t, h.Err())
	assert.Equal(t, StateStopped, h.State())

	res := <-queued.ch
	assert.True(t, res.dropped)

	stats := h.Stats()
	assert.Equal(t, int64(1), stats.MessagesHandled)
	assert.Equal(t, int64(6), stats.Discarded)
}

func TestShutdownDrainFinish(t *testing.T) {
	h := spawnCounter(t, DefaultProps("finish").WithMailboxSize(10).WithDrainPolicy(DrainFinish))

	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, h.Tell(blockMsg{Started: started, Release: release}))
	<-started

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Tell(incMsg{N: 1}))
	}
	queued := NewReply[int]()
	require.NoError(t, h.Tell(getMsg{ReplyVia(queued)}))

	h.Shutdown()
	close(release)
	waitDone(t, h.Done())

	res := <-queued.ch
	assert.False(t, res.dropped)
	assert.Equal(t, 5, res.value)
	assert.Equal(t, int64(7), h.Stats().MessagesHandled)
	assert.Zero(t, h.Stats().Discarded)
}

func TestContextStop(t *testing.T) {
	h := spawnCounter(t, nil)
	require.NoError(t, h.Tell(stopMsg{}))

	waitDone(t, h.Done())
	assert.NoError(t, h.Err())
	assert.Equal(t, StateStopped, h.State())
	assert.ErrorIs(t, h.Tell(incMsg{N: 1}), ErrMailboxClosed)
}

func TestParentTokenStopsActor(t *testing.T) {
	parent := NewCancelToken()
	h := spawnCounter(t, DefaultProps("child").WithParent(parent))

	n, err := AskTimeout(h, buildGet, time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)

	parent.Cancel()
	waitDone(t, h.Done())
	assert.NoError(t, h.Err())
}

func TestHandleWait(t *testing.T) {
	h := spawnCounter(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)

	require.NoError(t, h.Tell(failMsg{Err: errBoom}))
	assert.ErrorIs(t, h.Wait(context.Background()), errBoom)
}

// 一个 Actor 崩溃不影响其他 Actor
func TestCrashIsolation(t *testing.T) {
	a := spawnCounter(t, DefaultProps("a"))
	b := spawnCounter(t, DefaultProps("b"))

	require.NoError(t, b.Tell(incMsg{N: 7}))
	require.NoError(t, a.Tell(panicMsg{}))
	waitDone(t, a.Done())

	n, err := AskTimeout(b, buildGet, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

// ============== 生命周期回调 ==============

type lifecycleActor struct {
	counter
	startErr error
	events   chan string
	ticks    atomic.Int32
}

func (a *lifecycleActor) OnStart(ctx *Context[counterMsg]) error {
	a.events <- "start:" + ctx.Name()
	return a.startErr
}

func (a *lifecycleActor) OnStop(_ *Context[counterMsg], err error) {
	if err != nil {
		a.events <- "stop:" + err.Error()
		return
	}
	a.events <- "stop"
}

func (a *lifecycleActor) OnTick(_ *Context[counterMsg]) error {
	a.ticks.Add(1)
	return nil
}

func TestLifecycleHooks(t *testing.T) {
	a := &lifecycleActor{events: make(chan string, 4)}
	h := Spawn[counterMsg](a, DefaultProps("life").WithTick(5*time.Millisecond))

	assert.Equal(t, "start:life", <-a.events)
	assert.Eventually(t, func() bool { return a.ticks.Load() >= 2 }, time.Second, 5*time.Millisecond)

	h.Shutdown()
	waitDone(t, h.Done())
	assert.Equal(t, "stop", <-a.events)
}

func TestOnStartErrorStopsRunner(t *testing.T) {
	a := &lifecycleActor{events: make(chan string, 4), startErr: errBoom}
	h := Spawn[counterMsg](a, DefaultProps("bad-start"))

	waitDone(t, h.Done())
	assert.ErrorIs(t, h.Err(), errBoom)
	assert.Equal(t, "start:bad-start", <-a.events)
	assert.Equal(t, "stop:boom", <-a.events)
}

// ============== 统计与属性 ==============

func TestStats(t *testing.T) {
	h := spawnCounter(t, nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, h.Tell(incMsg{N: 1}))
	}
	_, err := AskTimeout(h, buildGet, time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.Stats().MessagesHandled == 11 }, time.Second, time.Millisecond)
	stats := h.Stats()
	assert.Equal(t, int64(11), stats.MessagesReceived)
	assert.Zero(t, stats.Errors)
	assert.GreaterOrEqual(t, stats.MaxLatency, stats.MinLatency)
	assert.False(t, stats.LastMessageAt.IsZero())
}

func TestMessageMetrics(t *testing.T) {
	m := &recordingMetrics{}
	h := spawnCounter(t, DefaultProps("metered").WithMetrics(m))

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Tell(incMsg{N: 1}))
	}
	_, err := AskTimeout(h, buildGet, time.Second)
	require.NoError(t, err)
	require.NoError(t, h.Tell(panicMsg{}))
	waitDone(t, h.Done())

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, map[string]int{"inc": 3, "get": 1, "panic": 1}, m.timed)
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, 1, m.panics)
}

func TestStatsCollectorEmpty(t *testing.T) {
	c := NewStatsCollector()
	assert.Zero(t, c.Stats().MinLatency)

	c.RecordHandled(time.Millisecond)
	c.RecordHandled(3 * time.Millisecond)
	s := c.Stats()
	assert.Equal(t, 2*time.Millisecond, s.AverageLatency)
	assert.Equal(t, time.Millisecond, s.MinLatency)

	c.Reset()
	assert.Zero(t, c.Stats().MessagesHandled)
}

func TestPropsNormalized(t *testing.T) {
	p := (*Props)(nil).normalized()
	assert.Equal(t, 100, p.MailboxSize)
	assert.Equal(t, 5*time.Second, p.AskTimeout)
	assert.NotEmpty(t, p.Name)
	assert.NotNil(t, p.Logger)
	assert.NotNil(t, p.Metrics)

	q := (&Props{Name: "x", MailboxSize: -1}).normalized()
	assert.Equal(t, 1, q.MailboxSize)
	assert.Equal(t, DrainAbort, q.DrainPolicy)
}

func TestParseDrainPolicy(t *testing.T) {
	p, err := ParseDrainPolicy("finish")
	require.NoError(t, err)
	assert.Equal(t, DrainFinish, p)
	assert.Equal(t, "finish", p.String())

	p, err = ParseDrainPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DrainAbort, p)

	_, err = ParseDrainPolicy("later")
	assert.Error(t, err)
}

// ============== 取消令牌 ==============

func TestCancelTokenPropagation(t *testing.T) {
	root := NewCancelToken()
	child := root.Child()
	grandchild := child.Child()

	grandchild.Cancel()
	assert.True(t, grandchild.IsCancelled())
	assert.False(t, child.IsCancelled())
	assert.False(t, root.IsCancelled())

	root.CancelWithCause(errBoom)
	<-child.Done()
	assert.True(t, child.IsCancelled())
	assert.ErrorIs(t, root.Cause(), errBoom)
	assert.ErrorIs(t, child.Cause(), errBoom)

	// 只保留第一次的原因
	root.CancelWithCause(errBadRequest)
	assert.ErrorIs(t, root.Cause(), errBoom)
}

func TestCancelTokenFromContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	token := TokenFromContext(ctx)
	assert.Nil(t, token.Cause())

	cancel()
	select {
	case <-token.Done():
	case <-time.After(time.Second):
		t.Fatal("token not cancelled with its context")
	}
	assert.ErrorIs(t, token.Context().Err(), context.Canceled)
}

package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// 子节点状态与记录
// ═══════════════════════════════════════════════════════════════════════════

// ChildState 子节点状态
type ChildState int

const (
	// ChildHealthy 正在运行
	ChildHealthy ChildState = iota
	// ChildRestarting 已失败，正在退避等待重启
	ChildRestarting
	// ChildGivenUp 超过重启上限，已放弃
	ChildGivenUp
	// ChildStopped 已停止且不再重启
	ChildStopped
)

// String 返回状态名称
func (s ChildState) String() string {
	switch s {
	case ChildHealthy:
		return "Healthy"
	case ChildRestarting:
		return "Restarting"
	case ChildGivenUp:
		return "GivenUp"
	case ChildStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ChildInfo 子节点记录快照
type ChildInfo struct {
	Name        string
	State       ChildState
	Restarts    int
	LastRestart time.Time
	Backoff     time.Duration
	Policy      Policy
	// Supervisor 子节点本身是监督者时非 nil
	Supervisor *Supervisor
}

// incarnation 子节点的一次运行
type incarnation interface {
	doneCh() <-chan struct{}
	result() error
}

// childSpec 可被监督者反复启动的子节点
type childSpec interface {
	childName() string
	start(parent *CancelToken, n int) incarnation
	// retiredCh 子节点被所有者主动停止时关闭
	retiredCh() <-chan struct{}
	// retire 永久停用，只在子节点没有运行时调用
	retire(err error)
	recordRestart()
}

// childRecord 每个子节点的监督记录
type childRecord struct {
	spec   childSpec
	policy Policy

	mu           sync.Mutex
	state        ChildState
	restarts     int
	incarnations int
	lastRestart  time.Time
	backoff      time.Duration
}

func newChildRecord(spec childSpec, policy Policy) *childRecord {
	return &childRecord{
		spec:    spec,
		policy:  policy,
		state:   ChildHealthy,
		backoff: policy.BackoffBase,
	}
}

// reset 监督者自身被重启时，子节点记录从头开始
func (rec *childRecord) reset() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.state = ChildHealthy
	rec.restarts = 0
	rec.lastRestart = time.Time{}
	rec.backoff = rec.policy.BackoffBase
}

// nextRestart 计算本次失败后的退避时间；超过上限时返回 false
func (rec *childRecord) nextRestart(now time.Time) (time.Duration, bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	p := rec.policy
	if p.ResetWindow > 0 && !rec.lastRestart.IsZero() && now.Sub(rec.lastRestart) >= p.ResetWindow {
		rec.restarts = 0
		rec.backoff = p.BackoffBase
	}
	if rec.restarts >= p.MaxRestarts {
		return 0, false
	}

	delay := rec.backoff
	rec.restarts++
	rec.backoff = p.nextBackoff(rec.backoff)
	return delay, true
}

func (rec *childRecord) markRestarted(now time.Time) {
	rec.mu.Lock()
	rec.lastRestart = now
	rec.state = ChildHealthy
	rec.mu.Unlock()
}

func (rec *childRecord) nextIncarnation() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	n := rec.incarnations
	rec.incarnations++
	return n
}

func (rec *childRecord) setState(s ChildState) {
	rec.mu.Lock()
	rec.state = s
	rec.mu.Unlock()
}

func (rec *childRecord) restartCount() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.restarts
}

func (rec *childRecord) info() ChildInfo {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	info := ChildInfo{
		Name:        rec.spec.childName(),
		State:       rec.state,
		Restarts:    rec.restarts,
		LastRestart: rec.lastRestart,
		Backoff:     rec.backoff,
		Policy:      rec.policy,
	}
	if sc, ok := rec.spec.(*supervisorChild); ok {
		info.Supervisor = sc.sup
	}
	return info
}

// ═══════════════════════════════════════════════════════════════════════════
// Join
// ═══════════════════════════════════════════════════════════════════════════

// Join 监督者的最终结果
//
// 正常关闭时 Err 为 nil；放弃重启时为 *GivenUpError（匹配 ErrSupervisorGivenUp）。
type Join struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newJoin() *Join {
	return &Join{done: make(chan struct{})}
}

func (j *Join) resolve(err error) {
	j.once.Do(func() {
		j.err = err
		close(j.done)
	})
}

// Done 监督者停止后关闭
func (j *Join) Done() <-chan struct{} {
	return j.done
}

// Err 最终结果，Done 关闭之前为 nil
func (j *Join) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait 等待监督者停止
func (j *Join) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Supervisor
// ═══════════════════════════════════════════════════════════════════════════

// Supervisor 监督者
//
// 每个子节点由一个监控 goroutine 负责：等待子节点结束，按 Policy 决定
// 重启、停止或放弃。放弃时监督者取消其余子节点并通过 Join 上报 *GivenUpError；
// 嵌套在其他监督者下时，这个错误被父监督者当作子节点崩溃处理。
type Supervisor struct {
	name          string
	log           *slog.Logger
	metrics       Metrics
	parent        *Supervisor
	rootToken     *CancelToken
	stopWhenEmpty bool

	mu       sync.Mutex
	children []*childRecord
	run      *supervisorRun
	closed   bool

	retired    chan struct{}
	retireOnce sync.Once
	join       *Join
}

// SupervisorOption 监督者选项
type SupervisorOption func(*Supervisor)

// WithSupervisorLogger 设置日志器
func WithSupervisorLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithSupervisorMetrics 设置度量实现
func WithSupervisorMetrics(m Metrics) SupervisorOption {
	return func(s *Supervisor) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSupervisorContext 监督者随 ctx 结束而停止
//
// 用于 NewChild 时是额外的停止条件：ctx 结束后子监督者正常停止，父监督者不会重启它。
func WithSupervisorContext(ctx context.Context) SupervisorOption {
	return func(s *Supervisor) {
		s.rootToken = TokenFromContext(ctx)
	}
}

// withStopWhenEmpty 最后一个子节点停止后监督者随之停止（SpawnSupervised 使用）
func withStopWhenEmpty() SupervisorOption {
	return func(s *Supervisor) {
		s.stopWhenEmpty = true
	}
}

func newSupervisor(name string, parent *Supervisor, opts ...SupervisorOption) *Supervisor {
	if name == "" {
		name = "supervisor-" + uuid.NewString()[:8]
	}
	s := &Supervisor{
		name:    name,
		log:     slog.Default(),
		metrics: NopMetrics(),
		parent:  parent,
		retired: make(chan struct{}),
		join:    newJoin(),
	}
	if parent != nil {
		s.log = parent.log
		s.metrics = parent.metrics
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSupervisor 创建并启动顶层监督者
func NewSupervisor(name string, opts ...SupervisorOption) *Supervisor {
	s := newSupervisor(name, nil, opts...)
	if s.rootToken == nil {
		s.rootToken = NewCancelToken()
	}

	run := s.launch(s.rootToken)
	go func() {
		<-run.done
		s.retireAll(run.err)
	}()

	s.log.Info("supervisor started", "supervisor", s.name)
	return s
}

// Name 监督者名称
func (s *Supervisor) Name() string {
	return s.name
}

// Join 监督者的最终结果
func (s *Supervisor) Join() *Join {
	return s.join
}

// Children 子节点记录快照，按加入顺序排列
func (s *Supervisor) Children() []ChildInfo {
	s.mu.Lock()
	records := append([]*childRecord(nil), s.children...)
	s.mu.Unlock()

	infos := make([]ChildInfo, 0, len(records))
	for _, rec := range records {
		infos = append(infos, rec.info())
	}
	return infos
}

// NewChild 创建挂在当前监督者下的子监督者
//
// 子监督者放弃时，当前监督者按 policy 重启它：它的所有子节点以全新的记录重新启动，
// 之前取得的 Handle 保持可用。
func (s *Supervisor) NewChild(name string, policy Policy, opts ...SupervisorOption) (*Supervisor, error) {
	if err := checkTreeDepth(s, MaxTreeDepth); err != nil {
		return nil, err
	}
	child := newSupervisor(name, s, opts...)
	if err := s.add(&supervisorChild{sup: child}, policy); err != nil {
		return nil, err
	}
	if child.rootToken != nil {
		go child.stopOn(child.rootToken)
	}
	return child, nil
}

// stopOn 令牌取消时停止嵌套监督者
func (s *Supervisor) stopOn(token *CancelToken) {
	select {
	case <-token.Done():
		_ = s.Shutdown(context.Background())
	case <-s.join.Done():
	}
}

// Shutdown 停止监督者及其所有子节点并等待完成
//
// 返回监督者的最终结果；ctx 先结束时返回 ctx.Err()。
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.retireOnce.Do(func() { close(s.retired) })

	if s.parent == nil {
		s.rootToken.Cancel()
	} else {
		s.mu.Lock()
		run := s.run
		s.mu.Unlock()
		if run != nil {
			run.token.Cancel()
		}
	}

	select {
	case <-s.join.Done():
		return s.join.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Supervise 在监督者下启动一个 Actor
//
// factory 每次（重新）启动时调用，返回全新的 Actor 状态。
// 返回的 Handle 在重启之间保持可用。props.Parent 被忽略，子节点令牌由监督者派生。
func Supervise[M Message](sup *Supervisor, factory func() Actor[M], props *Props, policy Policy) (*Handle[M], error) {
	p := props.normalized()
	b := newBinding[M](p, true)
	child := &actorChild[M]{factory: factory, props: p, b: b}
	if err := sup.add(child, policy); err != nil {
		return nil, err
	}
	return &Handle[M]{b: b}, nil
}

// SpawnSupervised 启动一个独占监督者的 Actor
//
// 返回的 Join 在 Actor 被 Shutdown、主动停止或监督者放弃后完成。
func SpawnSupervised[M Message](factory func() Actor[M], props *Props, policy Policy) (*Handle[M], *Join, error) {
	p := props.normalized()
	opts := []SupervisorOption{
		WithSupervisorLogger(p.Logger),
		WithSupervisorMetrics(p.Metrics),
		withStopWhenEmpty(),
	}
	if p.Parent != nil {
		opts = append(opts, WithSupervisorContext(p.Parent.Context()))
	}

	sup := NewSupervisor(p.Name+".supervisor", opts...)
	h, err := Supervise(sup, factory, &p, policy)
	if err != nil {
		_ = sup.Shutdown(context.Background())
		return nil, nil, err
	}
	return h, sup.Join(), nil
}

// ───────────────────────────────────────────────────────────────────────────
// 内部实现
// ───────────────────────────────────────────────────────────────────────────

// supervisorRun 监督者的一次运行；嵌套监督者每次被重启都会创建新的 run
type supervisorRun struct {
	sup   *Supervisor
	token *CancelToken
	wg    sync.WaitGroup
	done  chan struct{}

	failOnce sync.Once
	err      error
}

func (run *supervisorRun) doneCh() <-chan struct{} { return run.done }
func (run *supervisorRun) result() error           { return run.err }

// wait 令牌取消后等所有监控 goroutine 退出
func (run *supervisorRun) wait() {
	<-run.token.Done()

	// 屏障：此后 add 不会再对本次 run 调用 wg.Add
	run.sup.mu.Lock()
	run.sup.mu.Unlock()

	run.wg.Wait()
	close(run.done)
}

// fail 放弃重启，只生效一次
func (run *supervisorRun) fail(err *GivenUpError) {
	run.failOnce.Do(func() {
		run.err = err
		run.sup.metrics.SupervisorGivenUp(run.sup.name, err.Child)
		run.sup.log.Error("supervisor gave up",
			"supervisor", run.sup.name,
			"child", err.Child,
			"restarts", err.Restarts,
			"error", err.Last)
		run.token.CancelWithCause(err)
	})
}

func (s *Supervisor) launch(token *CancelToken) *supervisorRun {
	run := &supervisorRun{sup: s, token: token, done: make(chan struct{})}

	s.mu.Lock()
	s.run = run
	records := append([]*childRecord(nil), s.children...)
	run.wg.Add(len(records))
	s.mu.Unlock()

	for _, rec := range records {
		rec.reset()
		inc := rec.spec.start(token, rec.nextIncarnation())
		go s.monitor(run, rec, inc)
	}

	go run.wait()
	return run
}

func (s *Supervisor) add(spec childSpec, policy Policy) error {
	policy = policy.normalized()
	if err := policy.Validate(); err != nil {
		return err
	}
	rec := newChildRecord(spec, policy)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSupervisorStopped
	}
	for _, c := range s.children {
		if c.spec.childName() == spec.childName() {
			s.mu.Unlock()
			return fmt.Errorf("child %q already supervised by %s", spec.childName(), s.name)
		}
	}
	s.children = append(s.children, rec)
	run := s.run
	active := run != nil && !run.token.IsCancelled()
	if active {
		run.wg.Add(1)
	}
	s.mu.Unlock()

	if active {
		inc := spec.start(run.token, rec.nextIncarnation())
		go s.monitor(run, rec, inc)
	}
	s.log.Debug("child added", "supervisor", s.name, "child", spec.childName())
	return nil
}

func (s *Supervisor) monitor(run *supervisorRun, rec *childRecord, inc incarnation) {
	defer run.wg.Done()
	name := rec.spec.childName()

	for {
		<-inc.doneCh()
		err := inc.result()

		// 监督者正在停止或被重启，子节点记录交给 retireAll / 下一次 launch
		if run.token.IsCancelled() {
			return
		}

		select {
		case <-rec.spec.retiredCh():
			s.release(run, rec, err)
			return
		default:
		}

		if err == nil {
			s.log.Debug("child stopped", "supervisor", s.name, "child", name)
			s.release(run, rec, nil)
			return
		}

		switch rec.policy.Decider(err) {
		case DirectiveStop:
			s.log.Info("child stopped by decider", "supervisor", s.name, "child", name, "error", err)
			s.release(run, rec, err)
			return
		case DirectiveEscalate:
			s.giveUp(run, rec, err)
			return
		}

		delay, ok := rec.nextRestart(time.Now())
		if !ok {
			s.giveUp(run, rec, err)
			return
		}

		rec.setState(ChildRestarting)
		s.metrics.ActorRestarted(name, delay)
		s.log.Warn("child failed, restarting",
			"supervisor", s.name,
			"child", name,
			"restarts", rec.restartCount(),
			"backoff", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-run.token.Done():
			timer.Stop()
			return
		case <-rec.spec.retiredCh():
			timer.Stop()
			s.release(run, rec, err)
			return
		}

		rec.markRestarted(time.Now())
		rec.spec.recordRestart()
		inc = rec.spec.start(run.token, rec.nextIncarnation())
	}
}

func (s *Supervisor) giveUp(run *supervisorRun, rec *childRecord, err error) {
	rec.setState(ChildGivenUp)
	run.fail(&GivenUpError{
		Supervisor: s.name,
		Child:      rec.spec.childName(),
		Restarts:   rec.restartCount(),
		Last:       err,
	})
}

// release 子节点不再重启：移出记录并永久停用
func (s *Supervisor) release(run *supervisorRun, rec *childRecord, err error) {
	rec.setState(ChildStopped)

	s.mu.Lock()
	for i, c := range s.children {
		if c == rec {
			s.children = append(s.children[:i], s.children[i+1:]...)
			break
		}
	}
	empty := len(s.children) == 0
	s.mu.Unlock()

	rec.spec.retire(err)

	if empty && s.stopWhenEmpty {
		run.token.Cancel()
	}
}

// retireAll 监督者永久停止：停用所有子节点并完成 Join
func (s *Supervisor) retireAll(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	records := append([]*childRecord(nil), s.children...)
	s.mu.Unlock()

	for _, rec := range records {
		rec.mu.Lock()
		if rec.state != ChildGivenUp {
			rec.state = ChildStopped
		}
		rec.mu.Unlock()
		rec.spec.retire(err)
	}

	if err != nil {
		s.log.Error("supervisor stopped", "supervisor", s.name, "error", err)
	} else {
		s.log.Info("supervisor stopped", "supervisor", s.name)
	}
	s.join.resolve(err)
}

// ───────────────────────────────────────────────────────────────────────────
// childSpec 实现
// ───────────────────────────────────────────────────────────────────────────

// actorChild 受监督的 Actor
type actorChild[M Message] struct {
	factory func() Actor[M]
	props   Props
	b       *binding[M]
}

func (c *actorChild[M]) childName() string { return c.props.Name }

func (c *actorChild[M]) start(parent *CancelToken, n int) incarnation {
	a, err := c.build()
	if err != nil {
		return finishedIncarnation{err: err}
	}

	r := newRunner(a, c.props, parent, c.b, n)
	if !c.b.bind(r) {
		r.token.Cancel()
		return finishedIncarnation{}
	}
	r.start()
	return r
}

// build 调用工厂函数，panic 视为启动失败
func (c *actorChild[M]) build() (a Actor[M], err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &CrashError{Actor: c.props.Name, Kind: "lifecycle.factory", Value: rec, Stack: debug.Stack()}
		}
	}()
	return c.factory(), nil
}

func (c *actorChild[M]) retiredCh() <-chan struct{} { return c.b.retiredCh }

func (c *actorChild[M]) retire(err error) {
	c.b.retire()
	c.b.terminate(err)
}

func (c *actorChild[M]) recordRestart() { c.b.stats.RecordRestart() }

// supervisorChild 嵌套的子监督者
type supervisorChild struct {
	sup *Supervisor
}

func (c *supervisorChild) childName() string { return c.sup.name }

func (c *supervisorChild) start(parent *CancelToken, _ int) incarnation {
	return c.sup.launch(parent.Child())
}

func (c *supervisorChild) retiredCh() <-chan struct{} { return c.sup.retired }

func (c *supervisorChild) retire(err error) { c.sup.retireAll(err) }

func (c *supervisorChild) recordRestart() {
	c.sup.log.Info("supervisor restarted", "supervisor", c.sup.name)
}

// finishedIncarnation 没能真正启动的一次运行
type finishedIncarnation struct {
	err error
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (f finishedIncarnation) doneCh() <-chan struct{} { return closedCh }
func (f finishedIncarnation) result() error           { return f.err }

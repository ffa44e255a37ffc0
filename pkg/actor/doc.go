// Package actor 提供进程内的类型化 Actor 运行时，带监督与自动重启
//
// 每个 Actor 是独立的计算单元：
// • 拥有私有状态（只被自己的 goroutine 访问，无需锁保护）
// • 通过有界邮箱（mailbox）接收消息，满时对发送方施加背压
// • 消息处理串行化（一次处理一条）
// • 可以回复请求、向其他 Actor 发送消息、请求自身停止
//
// # 核心组件
//
// [Message] 是所有消息的基础接口。每个 Actor 用一个嵌入 Message 的接口声明自己的消息集合，
// [Actor] 和 [Handle] 都以它为类型参数，发送不属于协议的消息会在编译期报错。
//
// [Spawn] 启动一个 Actor 并返回 [Handle]：
//
//	h := actor.Spawn[CounterMsg](&Counter{}, actor.DefaultProps("counter"))
//	defer h.Shutdown()
//
// [Handle.Send] 发送消息（邮箱满时阻塞），[Handle.TrySend] 非阻塞发送，
// [Ask] / [AskTimeout] 发送请求并等待回复。请求的回复槽 [Reply] 只能写入一次，
// Actor 结束时未回复的请求以 [ErrAskDropped] 结束，调用方不会一直挂起。
//
// [Mailbox] 可以单独使用：关闭后已入队的消息仍可取出，取空后返回 [ErrMailboxDrained]。
//
// [CancelToken] 是基于 context 的协作式取消令牌，父令牌取消时子令牌随之取消。
//
// # 监督
//
// [Supervisor] 按 [Policy] 重启失败的子节点：指数退避（BackoffBase 起步，乘以
// BackoffMultiplier，不超过 BackoffCap），ResetWindow 内最多重启 MaxRestarts 次，
// 超过后放弃并通过 [Join] 上报 [GivenUpError]。重启使用工厂函数创建全新状态和新邮箱，
// 之前取得的 Handle 继续可用。
//
//	sup := actor.NewSupervisor("root")
//	h, err := actor.Supervise(sup, NewWorker, actor.DefaultProps("worker"), actor.DefaultPolicy())
//
// [Supervisor.NewChild] 创建嵌套的子监督者，子监督者放弃时由父监督者按策略重启，
// 从而组成监督树。[Decider] 可以按错误类型选择重启、停止或立即上报。
//
// # 停止与排空
//
// [Handle.Shutdown]、[Context.Stop] 或父令牌取消都会让 Actor 在处理完当前消息后停止，
// 不再开始新的消息。队列中剩余消息按 [DrainPolicy] 处理：[DrainAbort]（默认）丢弃，
// [DrainFinish] 处理完再停止。
//
// 丢弃所有 Handle 不会停止 Actor，不再使用的 Actor 必须显式 Shutdown 或取消父令牌。
//
// # 最佳实践
//
// 1. 消息不可变，发送后不要修改消息内容
// 2. 避免阻塞，Receive 中长时间操作应使用 [Context.Context] 以便及时取消
// 3. 单条消息内可恢复的错误用 [Reply.Fail] 返回，Receive 返回 error 表示 Actor 故障
// 4. 为关键 Actor 配置监督，并根据负载调整邮箱大小
//
// 完整使用示例请参考 example_test.go 或运行 go doc -all。
package actor

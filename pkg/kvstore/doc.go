// Package kvstore 提供由 Actor 独占的键值缓存
//
// # Overview
//
// 共享缓存不加锁，而是交给一个 [Store] Actor 持有：所有读写都通过消息串行处理，
// 调用方只持有 actor.Handle。Store 支持按条目设置 TTL，过期条目在读取时隐藏，
// 并由定时回调（Props.TickInterval）批量清理。
//
// # Usage
//
//	h := actor.Spawn[kvstore.Msg](kvstore.New(), actor.DefaultProps("cache").WithTick(time.Second))
//	defer h.Shutdown()
//
//	_, err := kvstore.DoPut(h, "user:1", "alice", time.Minute, time.Second)
//	v, found, err := kvstore.DoGet(h, "user:1", time.Second)
//
// 需要崩溃后自动恢复时，用 [Factory] 交给监督者：
//
//	h, err := actor.Supervise(sup, kvstore.Factory(), actor.DefaultProps("cache"), actor.DefaultPolicy())
//
// 重启后缓存从空开始。
package kvstore

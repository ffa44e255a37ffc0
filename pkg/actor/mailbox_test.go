package actor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type seqMsg struct {
	Producer int
	Seq      int
}

func (seqMsg) Kind() string { return "seq" }

func TestMailboxFIFO(t *testing.T) {
	mb := NewMailbox[seqMsg](10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, mb.Send(ctx, seqMsg{Seq: i}))
	}
	assert.Equal(t, 5, mb.Len())

	for i := 0; i < 5; i++ {
		msg, err := mb.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, msg.Seq)
	}
}

func TestMailboxCapacityClamp(t *testing.T) {
	assert.Equal(t, 1, NewMailbox[seqMsg](0).Cap())
	assert.Equal(t, 1, NewMailbox[seqMsg](-3).Cap())
	assert.Equal(t, 8, NewMailbox[seqMsg](8).Cap())
}

func TestMailboxTrySendFull(t *testing.T) {
	mb := NewMailbox[seqMsg](1)

	require.NoError(t, mb.TrySend(seqMsg{Seq: 1}))
	assert.ErrorIs(t, mb.TrySend(seqMsg{Seq: 2}), ErrMailboxFull)

	mb.Close()
	assert.ErrorIs(t, mb.TrySend(seqMsg{Seq: 3}), ErrMailboxClosed)
}

func TestMailboxBackpressure(t *testing.T) {
	mb := NewMailbox[seqMsg](1)
	ctx := context.Background()
	require.NoError(t, mb.Send(ctx, seqMsg{Seq: 1}))

	sent := make(chan error, 1)
	go func() { sent <- mb.Send(ctx, seqMsg{Seq: 2}) }()

	select {
	case <-sent:
		t.Fatal("send should block while mailbox is full")
	case <-time.After(50 * time.Millisecond):
	}

	msg, err := mb.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, msg.Seq)

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked send was not released")
	}

	msg, err = mb.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, msg.Seq)
}

func TestMailboxSendContextDeadline(t *testing.T) {
	mb := NewMailbox[seqMsg](1)
	require.NoError(t, mb.TrySend(seqMsg{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := mb.Send(ctx, seqMsg{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// 邮箱满时关闭：阻塞的发送方以 ErrMailboxClosed 返回，消息不会入队
func TestMailboxCloseWakesBlockedSenders(t *testing.T) {
	mb := NewMailbox[seqMsg](1)
	require.NoError(t, mb.TrySend(seqMsg{Seq: 0}))

	const senders = 3
	results := make(chan error, senders)
	for i := 1; i <= senders; i++ {
		go func(i int) { results <- mb.Send(context.Background(), seqMsg{Seq: i}) }(i)
	}

	time.Sleep(30 * time.Millisecond)
	mb.Close()

	for i := 0; i < senders; i++ {
		select {
		case err := <-results:
			assert.ErrorIs(t, err, ErrMailboxClosed)
		case <-time.After(time.Second):
			t.Fatal("blocked sender was not woken by close")
		}
	}

	msg, err := mb.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, msg.Seq)

	_, err = mb.Receive(context.Background())
	assert.ErrorIs(t, err, ErrMailboxDrained)
}

func TestMailboxCloseKeepsQueued(t *testing.T) {
	mb := NewMailbox[seqMsg](4)
	ctx := context.Background()

	require.NoError(t, mb.Send(ctx, seqMsg{Seq: 1}))
	require.NoError(t, mb.Send(ctx, seqMsg{Seq: 2}))
	mb.Close()
	mb.Close()

	assert.True(t, mb.IsClosed())
	assert.ErrorIs(t, mb.Send(ctx, seqMsg{Seq: 3}), ErrMailboxClosed)

	for _, want := range []int{1, 2} {
		msg, err := mb.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, msg.Seq)
	}

	_, err := mb.Receive(ctx)
	assert.ErrorIs(t, err, ErrMailboxDrained)

	// 取空是终态
	_, err = mb.Receive(ctx)
	assert.ErrorIs(t, err, ErrMailboxDrained)
}

func TestMailboxReceiveContext(t *testing.T) {
	mb := NewMailbox[seqMsg](1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mb.Receive(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// 多个发送方并发写入：每个发送方自己的消息保持发送顺序
func TestMailboxPerProducerOrder(t *testing.T) {
	const producers, perProducer = 8, 200
	mb := NewMailbox[seqMsg](16)

	var g errgroup.Group
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			for i := 0; i < perProducer; i++ {
				if err := mb.Send(context.Background(), seqMsg{Producer: p, Seq: i}); err != nil {
					return err
				}
			}
			return nil
		})
	}

	last := make(map[int]int, producers)
	for p := 0; p < producers; p++ {
		last[p] = -1
	}
	for i := 0; i < producers*perProducer; i++ {
		msg, err := mb.Receive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, last[msg.Producer]+1, msg.Seq, "producer %d out of order", msg.Producer)
		last[msg.Producer] = msg.Seq
	}

	require.NoError(t, g.Wait())
	mb.Close()
	_, err := mb.Receive(context.Background())
	assert.ErrorIs(t, err, ErrMailboxDrained)
}

func TestMailboxSendRacingClose(t *testing.T) {
	for i := 0; i < 200; i++ {
		mb := NewMailbox[seqMsg](1)
		sent := make(chan error, 1)
		go func() { sent <- mb.Send(context.Background(), seqMsg{Seq: i}) }()
		mb.Close()

		err := <-sent
		msg, recvErr := mb.Receive(context.Background())
		if err == nil {
			require.NoError(t, recvErr, "accepted message must stay receivable")
			assert.Equal(t, i, msg.Seq)
			_, recvErr = mb.Receive(context.Background())
		} else {
			require.ErrorIs(t, err, ErrMailboxClosed)
		}
		require.ErrorIs(t, recvErr, ErrMailboxDrained)
	}
}

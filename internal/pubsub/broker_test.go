package pubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codetracer/replay-core/internal/pubsub"
)

type frame struct {
	opID string
	seq  int
}

func TestBrokerPublishSubscribe(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := pubsub.NewBroker[frame](nil)
	require.False(t, broker.IsActive())

	ch := make(chan frame, 10)
	subCtx, subCancel := context.WithCancel(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := broker.Subscribe(subCtx, func(frame) bool { return true }, ch)
		done <- err
	}()

	waitUntilActive(t, broker)

	broker.Publish(frame{opID: "op-1", seq: 1})
	broker.Publish(frame{opID: "op-1", seq: 2})

	require.Equal(t, frame{opID: "op-1", seq: 1}, <-ch)
	require.Equal(t, frame{opID: "op-1", seq: 2}, <-ch)

	subCancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestBrokerAllowFilter(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := pubsub.NewBroker[frame](nil)

	ch := make(chan frame, 10)
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	go broker.Subscribe(subCtx, func(f frame) bool { return f.opID == "keep" }, ch)
	waitUntilActive(t, broker)

	broker.Publish(frame{opID: "drop", seq: 1})
	broker.Publish(frame{opID: "keep", seq: 2})

	select {
	case f := <-ch:
		require.Equal(t, "keep", f.opID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for allowed frame")
	}

	stats, err := broker.Stats(subCtx, ch)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.Skips)
	require.Equal(t, uint64(1), stats.Sends)
}

func TestBrokerDropsWhenReceiverBlocked(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := pubsub.NewBroker[frame](nil)

	ch := make(chan frame) // unbuffered: every send without a waiting reader drops
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	go broker.Subscribe(subCtx, func(frame) bool { return true }, ch)
	waitUntilActive(t, broker)

	broker.Publish(frame{opID: "op", seq: 1})

	stats, err := broker.Stats(subCtx, ch)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.Drops)
}

func waitUntilActive(t *testing.T, broker *pubsub.Broker[frame]) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !broker.IsActive() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for broker to become active")
		}
		time.Sleep(time.Millisecond)
	}
}

package livesync

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBus_PublishReachesOnlyThatPlayer(t *testing.T) {
	b := NewBus("mediaUpdate")
	s1 := b.Subscribe("p1")
	defer s1.Close()
	s2 := b.Subscribe("p2")
	defer s2.Close()

	require.NoError(t, b.Publish(context.Background(), "p1"))

	select {
	case sig := <-s1.C():
		assert.Equal(t, "mediaUpdate:p1", sig)
	default:
		t.Fatal("p1 subscriber did not receive signal")
	}
	select {
	case sig := <-s2.C():
		t.Fatalf("p2 subscriber received unexpected signal %q", sig)
	default:
	}
}

func TestBus_PublishWithoutSubscribersIsNotAnError(t *testing.T) {
	b := NewBus("mediaUpdate")
	require.NoError(t, b.Publish(context.Background(), "nobody"))
	assert.Equal(t, 0, b.Deliver("nobody"))
}

func TestBus_PendingSignalsCoalesce(t *testing.T) {
	b := NewBus("mediaUpdate")
	s := b.Subscribe("p1")
	defer s.Close()

	for i := 0; i < 5; i++ {
		assert.Equal(t, 1, b.Deliver("p1"))
	}

	<-s.C()
	select {
	case sig := <-s.C():
		t.Fatalf("expected coalesced signals, got extra %q", sig)
	default:
	}
}

func TestBus_FanOutToEverySubscriber(t *testing.T) {
	b := NewBus("mediaUpdate")
	subs := make([]*Subscription, 3)
	for i := range subs {
		subs[i] = b.Subscribe("lobby")
	}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
	}()

	assert.Equal(t, 3, b.Deliver("lobby"))
	for _, s := range subs {
		assert.Equal(t, "mediaUpdate:lobby", <-s.C())
	}
}

func TestBus_CloseUnregistersAndIsIdempotent(t *testing.T) {
	b := NewBus("mediaUpdate")
	s := b.Subscribe("p1")
	assert.Equal(t, 1, b.Subscribers("p1"))

	s.Close()
	s.Close()

	assert.Equal(t, 0, b.Subscribers("p1"))
	assert.Equal(t, 0, b.Count())
	_, open := <-s.C()
	assert.False(t, open, "channel should be closed")
	assert.Equal(t, 0, b.Deliver("p1"))
}

func TestBus_PlayerFromSignal(t *testing.T) {
	b := NewBus("mediaUpdate")

	id, ok := b.PlayerFromSignal(b.Signal("tv-7"))
	require.True(t, ok)
	assert.Equal(t, "tv-7", id)

	_, ok = b.PlayerFromSignal("other:tv-7")
	assert.False(t, ok)
	_, ok = b.PlayerFromSignal("mediaUpdate:")
	assert.False(t, ok)
}

func TestBus_ConcurrentSubscribePublishClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := NewBus("mediaUpdate")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := b.Subscribe("p1")
			_ = b.Publish(context.Background(), "p1")
			s.Close()
		}()
		go func() {
			defer wg.Done()
			_ = b.Publish(context.Background(), "p1")
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Count())
}

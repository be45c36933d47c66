package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/canteen/core/order"
	"github.com/trezcool/canteen/testutil"
)

func receive(t *testing.T, ch <-chan order.Change) (order.Change, bool) {
	t.Helper()
	select {
	case c, ok := <-ch:
		return c, ok
	case <-time.After(time.Second):
		t.Fatal("no change received")
		return order.Change{}, false
	}
}

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker(testutil.NopLogger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub1, err := b.Subscribe(ctx)
	require.NoError(t, err)
	sub2, err := b.Subscribe(ctx)
	require.NoError(t, err)

	want := order.Change{Op: "update", OrderID: "o1", UserID: "u1", Status: order.StatusReady}
	b.Publish(want)

	got, ok := receive(t, sub1)
	require.True(t, ok)
	assert.Equal(t, want, got)
	got, ok = receive(t, sub2)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestBroker_UnsubscribeOnCancel(t *testing.T) {
	b := NewBroker(testutil.NopLogger)
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers())

	cancel()
	_, ok := receive(t, sub)
	assert.False(t, ok, "channel should be closed")
	assert.Equal(t, 0, b.Subscribers())
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker(testutil.NopLogger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := b.Subscribe(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(order.Change{Op: "insert", OrderID: "o"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
	assert.Len(t, sub, subscriberBuffer)
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker(testutil.NopLogger)
	sub, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	b.Close()
	_, ok := receive(t, sub)
	assert.False(t, ok)

	_, err = b.Subscribe(context.Background())
	assert.Equal(t, ErrClosed, err)
}

func TestDecodeChange(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    order.Change
		wantErr bool
	}{
		{
			name:    "trigger payload",
			payload: `{"op":"update","order_id":"o1","user_id":"u1","status":"preparing"}`,
			want:    order.Change{Op: "update", OrderID: "o1", UserID: "u1", Status: order.StatusPreparing},
		},
		{name: "missing order id", payload: `{"op":"delete"}`, wantErr: true},
		{name: "not json", payload: `order o1 changed`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeChange(tc.payload)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

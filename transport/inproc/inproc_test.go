package inproc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDealerRouterRoundTrip(t *testing.T) {
	router := NewRouter()
	defer router.Close()

	dealer := router.Connect()
	defer dealer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, dealer.Write(ctx, [][]byte{[]byte("hello")}))

	peer, frames, err := router.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, dealer.id, peer)
	assert.Equal(t, [][]byte{[]byte("hello")}, frames)

	require.NoError(t, router.Write(ctx, peer, [][]byte{[]byte("world")}))

	reply, err := dealer.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("world")}, reply)
}

func TestRouterWriteUnknownPeerFails(t *testing.T) {
	router := NewRouter()
	defer router.Close()

	ctx := context.Background()
	err := router.Write(ctx, []byte("ghost"), [][]byte{[]byte("x")})
	assert.Error(t, err)
}

func TestDealerCloseDisconnectsFromRouter(t *testing.T) {
	router := NewRouter()
	defer router.Close()

	dealer := router.Connect()
	require.NoError(t, dealer.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := router.Write(ctx, dealer.id, [][]byte{[]byte("x")})
	assert.Error(t, err)
}

func TestRouterCloseUnblocksDealerRead(t *testing.T) {
	router := NewRouter()
	dealer := router.Connect()

	done := make(chan error, 1)
	go func() {
		_, err := dealer.Read(context.Background())
		done <- err
	}()

	require.NoError(t, router.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("dealer.Read did not unblock after router.Close")
	}
}

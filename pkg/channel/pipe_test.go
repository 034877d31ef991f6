package channel_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jabolina/typedproto/pkg/channel"
)

func TestPipeFIFOOrdering(t *testing.T) {
	defer goleak.VerifyNone(t)
	a, b := channel.NewPipe()
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	chunks := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, c := range chunks {
		require.NoError(t, a.Send(ctx, c))
	}
	for _, want := range chunks {
		got, err := b.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestPipeBidirectional(t *testing.T) {
	defer goleak.VerifyNone(t)
	a, b := channel.NewPipe()
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, []byte("ping")))
	got, err := b.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("ping"), got)

	require.NoError(t, b.Send(ctx, []byte("pong")))
	got, err = a.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("pong"), got)
}

func TestPipeCloseUnblocksRemoteRecvWithEOF(t *testing.T) {
	defer goleak.VerifyNone(t)
	a, b := channel.NewPipe()
	defer a.Close()

	done := make(chan error, 1)
	go func() {
		_, err := b.Recv(context.Background())
		done <- err
	}()

	// give the goroutine a chance to block on Recv before closing.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}

func TestPipeCloseIsIdempotentFromBothEnds(t *testing.T) {
	defer goleak.VerifyNone(t)
	a, b := channel.NewPipe()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestPipeSendAfterCloseFails(t *testing.T) {
	defer goleak.VerifyNone(t)
	a, b := channel.NewPipe()
	defer b.Close()

	require.NoError(t, a.Close())
	err := a.Send(context.Background(), []byte("x"))
	require.ErrorIs(t, err, channel.ErrClosed)
}

func TestPipeRecvDrainsBeforeEOF(t *testing.T) {
	defer goleak.VerifyNone(t)
	a, b := channel.NewPipe()
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, []byte("buffered")))
	require.NoError(t, a.Close())

	got, err := b.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("buffered"), got)

	_, err = b.Recv(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestPipeRecvRespectsContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)
	a, b := channel.NewPipe()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Recv(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

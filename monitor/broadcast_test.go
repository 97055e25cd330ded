package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/embtrace/stackpaint/snapshot"
)

func TestBroadcasterPublishesJSONLines(t *testing.T) {
	broadcaster, err := NewBroadcaster("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var group errgroup.Group
	group.Go(func() error {
		return broadcaster.Serve(ctx)
	})

	conn, err := net.Dial("tcp", broadcaster.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	snap := snapshot.RamSnapshot{
		UsedBytes:      64,
		StackPtrOffset: 32,
		InstrPtr:       snapshot.HexAddr(0x10),
		Function:       "main",
	}

	// The subscriber registers asynchronously; publish until it hears us.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	received := make(chan snapshot.RamSnapshot, 1)
	go func() {
		reader := bufio.NewReader(conn)
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		var got snapshot.RamSnapshot
		if json.Unmarshal(line, &got) == nil {
			received <- got
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		broadcaster.Publish(snap)
		select {
		case got := <-received:
			assert.Equal(t, snap.UsedBytes, got.UsedBytes)
			assert.Equal(t, snap.Function, got.Function)
			cancel()
			require.NoError(t, group.Wait())
			_ = broadcaster.Close()
			return
		case <-deadline:
			t.Fatal("no snapshot received")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBroadcasterDropsDeadConnections(t *testing.T) {
	broadcaster, err := NewBroadcaster("127.0.0.1:0")
	require.NoError(t, err)
	defer broadcaster.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = broadcaster.Serve(ctx)
	}()

	conn, err := net.Dial("tcp", broadcaster.Addr().String())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// Publishing into the closed connection drops it eventually; publishing
	// must never fail or block.
	for i := 0; i < 10; i++ {
		broadcaster.Publish(map[string]int{"i": i})
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcasterCloseStopsServe(t *testing.T) {
	broadcaster, err := NewBroadcaster("127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- broadcaster.Serve(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, broadcaster.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after Close")
	}
}

package monitor

import (
	"context"
	"encoding/json"
	"net"
	"sync"
)

// Broadcaster distributes recorded snapshots as JSON lines to subscribed TCP
// clients. Clients connect and read; a failed write drops the connection.
type Broadcaster struct {
	ln net.Listener

	mu    sync.Mutex
	conns []net.Conn
}

// NewBroadcaster starts listening on addr.
func NewBroadcaster(addr string) (*Broadcaster, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Broadcaster{ln: ln}, nil
}

// Addr returns the bound listener address.
func (b *Broadcaster) Addr() net.Addr {
	return b.ln.Addr()
}

// Serve accepts subscribers until ctx is cancelled or the listener closes.
func (b *Broadcaster) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = b.ln.Close()
	}()
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
	}
}

// Publish sends v as one JSON line to every subscriber. Connections whose
// write fails are closed and dropped.
func (b *Broadcaster) Publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()
	alive := b.conns[:0]
	for _, conn := range b.conns {
		if _, err := conn.Write(data); err != nil {
			_ = conn.Close()
			continue
		}
		alive = append(alive, conn)
	}
	b.conns = alive
}

// Close shuts the listener and all subscriber connections.
func (b *Broadcaster) Close() error {
	err := b.ln.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		_ = conn.Close()
	}
	b.conns = nil
	return err
}

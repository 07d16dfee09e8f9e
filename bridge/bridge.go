// Package bridge receives foreground-tab context from the browser extension
// over a loopback websocket.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"go.aimuz.me/murmur/internal/types"
)

// DefaultAddr is where the extension expects to find the bridge.
const DefaultAddr = "127.0.0.1:9876"

// Bridge caches the most recent BrowserContext sent by any connected
// extension. Last write wins; the value survives disconnects.
type Bridge struct {
	addr string

	latest  atomic.Pointer[types.BrowserContext]
	clients atomic.Int32

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	conns    map[*websocket.Conn]struct{}
	wg       sync.WaitGroup
}

// New creates a bridge for addr. Nothing listens until Start.
func New(addr string) *Bridge {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Bridge{
		addr:  addr,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Start binds the listener and serves connections in the background until
// ctx is done or Close is called.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener != nil {
		return errors.New("bridge already started")
	}

	ln, err := net.Listen("tcp", b.addr)
	if err != nil {
		return fmt.Errorf("bind websocket server: %w", err)
	}
	b.listener = ln
	b.server = &http.Server{
		Handler:           b,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	slog.Info("browser bridge listening", "addr", "ws://"+ln.Addr().String())

	srv := b.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve browser bridge", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		b.Close()
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (b *Bridge) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener != nil {
		return b.listener.Addr().String()
	}
	return b.addr
}

// Latest returns a copy of the cached context.
func (b *Bridge) Latest() (types.BrowserContext, bool) {
	p := b.latest.Load()
	if p == nil {
		return types.BrowserContext{}, false
	}
	return *p, true
}

// Status reports the listener and cache state.
func (b *Bridge) Status() types.BridgeStatus {
	b.mu.Lock()
	listening := b.listener != nil
	b.mu.Unlock()

	st := types.BridgeStatus{
		Listening: listening,
		Addr:      b.Addr(),
		Clients:   int(b.clients.Load()),
	}
	if ctx, ok := b.Latest(); ok {
		st.HasContext = true
		st.Context = &ctx
	}
	return st
}

// Close stops the listener and drops all extension connections. The cached
// context is kept.
func (b *Bridge) Close() error {
	b.mu.Lock()
	srv := b.server
	b.server = nil
	b.listener = nil
	conns := make([]*websocket.Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	if srv == nil {
		return nil
	}
	for _, c := range conns {
		c.CloseNow()
	}
	err := srv.Close()
	b.wg.Wait()
	return err
}

// ServeHTTP upgrades a request and reads context updates until the peer
// goes away.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Extension origins carry a per-install id.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("websocket handshake", "remote", r.RemoteAddr, "error", err)
		return
	}

	b.mu.Lock()
	if b.server == nil {
		b.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	b.conns[conn] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()
	b.clients.Add(1)

	defer func() {
		b.mu.Lock()
		delete(b.conns, conn)
		b.mu.Unlock()
		b.clients.Add(-1)
		b.wg.Done()
	}()

	slog.Debug("browser extension connected", "remote", r.RemoteAddr)
	b.readLoop(r.Context(), conn)
	slog.Debug("browser extension disconnected", "remote", r.RemoteAddr)
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.CloseNow()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				slog.Debug("read browser context", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		b.handleMessage(data)
	}
}

func (b *Bridge) handleMessage(data []byte) {
	var bc types.BrowserContext
	if err := json.Unmarshal(data, &bc); err != nil {
		slog.Warn("ignore malformed browser context", "error", err)
		return
	}
	if bc == (types.BrowserContext{}) {
		slog.Warn("ignore empty browser context")
		return
	}
	slog.Debug("browser context", "domain", bc.Domain, "title", bc.PageTitle)
	b.latest.Store(&bc)
}

// Package transport implements atlasd's Transport component (spec.md
// §4.1): it accepts local client connections over a Unix domain socket,
// frames newline-delimited JSON, and owns the per-connection read/write
// plumbing. It also implements eventbus.Sink, fanning matched events
// out to subscribed connections on the Event Bus's behalf (spec.md
// §4.3). Windows named-pipe transport is not implemented: no dependency
// in the retrieval pack wraps one, and adding a hand-rolled pipe shim
// would be exactly the "fabricated dependency" the corpus avoids.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/atlas-daemon/atlasd/errors"
	"github.com/atlas-daemon/atlasd/eventbus"
	"github.com/atlas-daemon/atlasd/logger"
	"github.com/atlas-daemon/atlasd/protocol"
)

// Dispatcher is the Router's contract with Transport: given a decoded
// request and the id of the connection it arrived on, produce the
// Response to write back (spec.md §4.4). Defined here, not in router,
// so transport never imports router — the Router satisfies this
// interface structurally.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *protocol.Request, connID eventbus.SubscriberID) *protocol.Response
}

// Connection is one accepted client: a stable id, the net.Conn handle,
// and a line-oriented read buffer (spec.md §3 "Client connection").
// Subscription state itself lives in the Event Bus, not here — Transport
// holds only the socket plumbing (spec.md §3: "the Event Bus holds only
// a weak/indirect handle via the connection id").
type Connection struct {
	id      eventbus.SubscriberID
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex
}

func (c *Connection) write(b []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(b); err != nil {
		logger.Debugw("transport: write failed", "conn_id", c.id, "error", err.Error())
	}
}

// Server owns the listener and the live connection registry. One Server
// is constructed per daemon run (spec.md §9: no global singleton).
type Server struct {
	socketPath string
	dispatcher Dispatcher
	bus        *eventbus.Bus

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu          sync.Mutex
	connections map[eventbus.SubscriberID]*Connection
}

// NewServer constructs a Server bound to socketPath, wiring itself as
// bus's delivery sink (spec.md §4.3).
func NewServer(socketPath string, bus *eventbus.Bus, dispatcher Dispatcher) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		socketPath:  socketPath,
		dispatcher:  dispatcher,
		bus:         bus,
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[eventbus.SubscriberID]*Connection),
	}
	bus.SetSink(s)
	return s
}

// Listen ensures the runtime directory exists and binds the Unix domain
// socket, removing any file already at socketPath first. By the time
// Listen runs, the Lifecycle Manager has already confirmed via the PID
// file that no live daemon owns this path (spec.md §4.9), so an
// existing socket file here is necessarily stale; Listen's removal is
// unconditional and idempotent rather than re-deriving that liveness
// check a second time.
func (s *Server) Listen() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "ensure daemon runtime directory")
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove stale socket file")
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrap(err, "bind unix socket")
	}
	s.listener = ln
	logger.Infow("transport listening", "socket", s.socketPath)
	return nil
}

// Serve accepts connections until Close is called, spawning one
// goroutine per connection (spec.md §4.1: "Socket I/O errors tear down
// only the affected connection; the listener continues to accept.").
// Fatal conditions are limited to unrecoverable Accept errors, per
// spec.md §4.1/§7.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
			}
			return errors.Wrap(err, "accept")
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Close stops accepting, closes every live connection, and waits for
// their goroutines to exit. Idempotent: calling Close twice is a no-op
// on the second call (spec.md §8 Idempotence).
func (s *Server) Close() error {
	select {
	case <-s.ctx.Done():
		return nil
	default:
	}
	s.cancel()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.conn.Close()
	}

	s.wg.Wait()
	return err
}

// ConnectionCount reports the number of live client connections, used
// by atlas.status (spec.md §4.4).
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

func (s *Server) handleConn(conn net.Conn) {
	id := s.bus.Register()
	c := &Connection{id: id, conn: conn, reader: bufio.NewReader(conn)}
	s.mu.Lock()
	s.connections[id] = c
	s.mu.Unlock()
	logger.Debugw("client connected", "conn_id", id)

	defer func() {
		s.mu.Lock()
		delete(s.connections, id)
		s.mu.Unlock()
		s.bus.Unregister(id)
		_ = conn.Close()
		logger.Debugw("client disconnected", "conn_id", id)
	}()

	for {
		// ReadBytes returns a non-nil err whenever it hits EOF before
		// finding the delimiter, along with whatever partial bytes it
		// did read. Only an err == nil read found a complete '\n'-
		// terminated line; a partial trailing line on disconnect is
		// simply discarded, matching spec.md §4.1's "retains any
		// trailing partial line in the buffer" (there being nothing
		// further to append it to once the connection has closed).
		line, err := c.reader.ReadBytes('\n')
		if err == nil {
			if trimmed := bytes.TrimRight(line, "\r\n"); len(trimmed) > 0 {
				s.handleLine(c, trimmed)
			}
			continue
		}
		if err != io.EOF {
			logger.Debugw("connection read error", "conn_id", id, "error", err.Error())
		}
		return
	}
}

// handleLine decodes every back-to-back JSON-RPC message present in one
// '\n'-terminated line. JSON values are self-delimiting, so a
// json.Decoder correctly splits "{...}{...}" into two messages without
// needing an explicit separator — this is what lets two requests
// written without an intervening newline, followed by a single trailing
// newline, both get processed once that newline arrives (spec.md §8's
// boundary test), while the same two requests with no newline at all
// are buffered untouched.
func (s *Server) handleLine(c *Connection, line []byte) {
	dec := json.NewDecoder(bytes.NewReader(line))
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				return
			}
			s.respondParseError(c, line, err)
			return
		}
		s.dispatchRaw(c, raw)
	}
}

func (s *Server) respondParseError(c *Connection, raw []byte, err error) {
	id := protocol.SalvageID(raw)
	if id == nil {
		logger.Warnw("dropping malformed json-rpc line", "conn_id", c.id, "error", err.Error())
		return
	}
	s.writeResponse(c, protocol.NewErrorResponse(id, protocol.ParseError(err.Error())))
}

func (s *Server) dispatchRaw(c *Connection, raw json.RawMessage) {
	rpcErr, kind := protocol.Validate(raw)
	if rpcErr != nil {
		id := protocol.SalvageID(raw)
		if id == nil {
			logger.Warnw("dropping invalid json-rpc message", "conn_id", c.id, "error", rpcErr.Message)
			return
		}
		s.writeResponse(c, protocol.NewErrorResponse(id, rpcErr))
		return
	}

	if kind == protocol.KindResponse {
		// spec.md §4.2: "responses received from a client are logged
		// and discarded."
		logger.Infow("discarding unexpected response from client", "conn_id", c.id)
		return
	}

	req, decErr := protocol.DecodeRequest(raw)
	if decErr != nil {
		s.writeResponse(c, protocol.NewErrorResponse(protocol.SalvageID(raw), decErr))
		return
	}

	resp := s.dispatcher.Dispatch(s.ctx, req, c.id)
	if req.IsNotification() {
		return
	}
	s.writeResponse(c, resp)
}

func (s *Server) writeResponse(c *Connection, resp *protocol.Response) {
	b, err := protocol.Encode(resp)
	if err != nil {
		logger.Errorw("failed to encode rpc response", "conn_id", c.id, "error", err.Error())
		return
	}
	c.write(b)
}

// Deliver implements eventbus.Sink: it writes evt as a notification to
// every connection in subscribers, in the order given (spec.md §4.3:
// "clients in connection-id order", already sorted by the bus).
func (s *Server) Deliver(evt eventbus.Event, subscribers []eventbus.SubscriberID) {
	note := protocol.NewEventNotification(evt.Type, evt.Data)
	b, err := protocol.Encode(note)
	if err != nil {
		logger.Errorw("failed to encode event notification", "event_type", evt.Type, "error", err.Error())
		return
	}

	s.mu.Lock()
	conns := make([]*Connection, 0, len(subscribers))
	for _, id := range subscribers {
		if c, ok := s.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.write(b)
	}
}

// Package fakeproducer is a scripted stand-in for the memory-reading
// producer. It speaks the same newline-delimited JSON protocol over unix or
// tcp sockets: hello, status and a full snapshot on accept, deltas on
// change, and answers to ping, refresh, write and setVersion.
package fakeproducer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/okian/ssr3bridge/internal/domain/protocol"
	"github.com/okian/ssr3bridge/pkg/logger"
)

const (
	defaultVersion = "1.0"
	maxCommandLine = 4096
	writeTimeout   = 2 * time.Second
)

// ErrClosed is returned by Serve after Close.
var ErrClosed = errors.New("fake producer closed")

// numericEntry mirrors the producer's encoding: numeric v, hex address.
type numericEntry struct {
	V uint64 `json:"v"`
	A string `json:"a,omitempty"`
	S int    `json:"s,omitempty"`
}

type dataRecord struct {
	Type protocol.Kind           `json:"type"`
	Data map[string]numericEntry `json:"data"`
}

type peer struct {
	conn net.Conn
	mu   sync.Mutex
}

func (p *peer) write(line []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := p.conn.Write(line)
	return err
}

// Server is a fake producer.
type Server struct {
	mu       sync.Mutex
	regs     map[string]*Register
	order    []string
	version  string
	active   bool
	mainram  string
	peers    map[*peer]struct{}
	commands []protocol.Command
	listener net.Listener
	closed   bool
	done     chan struct{}

	wg     sync.WaitGroup
	logger logger.Logger
}

// New creates a server with the default register table.
func New(opts ...Option) *Server {
	s := &Server{
		version: defaultVersion,
		active:  true,
		mainram: "nds",
		peers:   make(map[*peer]struct{}),
		done:    make(chan struct{}),
		logger:  logger.Get().Named("fake-producer"),
	}
	s.setRegisters(DefaultRegisters())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) setRegisters(regs []Register) {
	s.regs = make(map[string]*Register, len(regs))
	s.order = s.order[:0]
	for i := range regs {
		r := regs[i]
		r.Value = mask(r.Value, r.Size)
		s.regs[r.Name] = &r
		s.order = append(s.order, r.Name)
	}
}

// Listen opens network/address and serves it in the background.
func (s *Server) Listen(ctx context.Context, network, address string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, network, address)
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", network, address, err)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Serve(ctx, ln); err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Warn(ctx, "serve stopped", logger.Error(err))
		}
	}()
	return nil
}

// Serve accepts connections on ln until Close or ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrClosed
	}
	s.listener = ln
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	s.logger.Info(ctx, "listening", logger.String("address", ln.Addr().String()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrClosed
			}
			return fmt.Errorf("accept: %w", err)
		}
		p := &peer{conn: conn}
		s.mu.Lock()
		s.peers[p] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, p)
		}()
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting and drops every connection.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	ln := s.listener
	peers := s.takePeersLocked()
	s.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Close()
	}
	if ln != nil {
		return ln.Close()
	}
	return nil
}

// Wait blocks until every server goroutine has returned.
func (s *Server) Wait() { s.wg.Wait() }

// DropConnections closes every live connection but keeps listening.
func (s *Server) DropConnections() {
	s.mu.Lock()
	peers := s.takePeersLocked()
	s.mu.Unlock()
	for _, p := range peers {
		_ = p.conn.Close()
	}
}

// Peers returns the number of live connections.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) takePeersLocked() []*peer {
	out := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		out = append(out, p)
		delete(s.peers, p)
	}
	return out
}

func (s *Server) handle(ctx context.Context, p *peer) {
	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		_ = p.conn.Close()
	}()

	s.mu.Lock()
	greeting := [][]byte{s.helloLocked(), s.statusLocked(), s.fullLocked()}
	s.mu.Unlock()
	for _, line := range greeting {
		if err := p.write(line); err != nil {
			return
		}
	}

	sc := bufio.NewScanner(p.conn)
	sc.Buffer(make([]byte, 0, maxCommandLine), maxCommandLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		cmd, err := protocol.DecodeCommand(line)
		if err != nil {
			s.logger.Debug(ctx, "bad command", logger.Error(err))
			_ = p.write(errorLine("bad_command", err.Error()))
			continue
		}
		s.dispatch(p, cmd)
	}
}

func (s *Server) dispatch(p *peer, cmd protocol.Command) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()

	switch c := cmd.(type) {
	case protocol.Ping:
		_ = p.write(mustEncode(protocol.Pong{TS: time.Now().UnixMilli()}))
	case protocol.Refresh:
		s.mu.Lock()
		line := s.fullLocked()
		s.mu.Unlock()
		_ = p.write(line)
	case protocol.Write:
		if c.Value < 0 {
			_ = p.write(errorLine("bad_value", fmt.Sprintf("%s: negative value", c.Target)))
			return
		}
		if !s.Set(c.Target, uint64(c.Value)) && !s.Has(c.Target) {
			_ = p.write(errorLine("unknown_target", c.Target))
		}
	case protocol.SetVersion:
		s.mu.Lock()
		s.version = c.Target
		lines := [][]byte{s.helloLocked(), s.fullLocked()}
		s.mu.Unlock()
		for _, line := range lines {
			_ = p.write(line)
		}
	}
}

// Commands returns every command received so far, in order.
func (s *Server) Commands() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Command(nil), s.commands...)
}

// Has reports whether name is a tracked register.
func (s *Server) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.regs[name]
	return ok
}

// Value returns the current value of name.
func (s *Server) Value(name string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[name]
	if !ok {
		return 0, false
	}
	return r.Value, true
}

// Set updates one register and broadcasts a delta when it changed.
func (s *Server) Set(name string, v uint64) bool {
	return s.SetMany(map[string]uint64{name: v})
}

// SetMany updates several registers and broadcasts one delta carrying the
// ones that changed. Unknown names are ignored.
func (s *Server) SetMany(values map[string]uint64) bool {
	s.mu.Lock()
	changed := make(map[string]numericEntry)
	for name, v := range values {
		r, ok := s.regs[name]
		if !ok {
			continue
		}
		v = mask(v, r.Size)
		if r.Value == v {
			continue
		}
		r.Value = v
		changed[name] = numericEntry{V: v}
	}
	s.mu.Unlock()

	if len(changed) == 0 {
		return false
	}
	s.broadcast(mustMarshal(dataRecord{Type: protocol.KindDelta, Data: changed}))
	return true
}

// SetStatus broadcasts a status record.
func (s *Server) SetStatus(active bool, mainram string) {
	s.mu.Lock()
	s.active = active
	s.mainram = mainram
	line := s.statusLocked()
	s.mu.Unlock()
	s.broadcast(line)
}

// SendError broadcasts a producer error report.
func (s *Server) SendError(code, msg string) {
	s.broadcast(errorLine(code, msg))
}

// SendFull broadcasts the full snapshot.
func (s *Server) SendFull() {
	s.mu.Lock()
	line := s.fullLocked()
	s.mu.Unlock()
	s.broadcast(line)
}

// SendRaw broadcasts raw bytes unchanged.
func (s *Server) SendRaw(b []byte) {
	s.broadcast(b)
}

func (s *Server) broadcast(line []byte) {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		if err := p.write(line); err != nil {
			s.logger.Debug(context.Background(), "write failed", logger.Error(err))
		}
	}
}

func (s *Server) helloLocked() []byte {
	return mustEncode(protocol.Hello{Version: s.version, Addresses: len(s.order)})
}

func (s *Server) statusLocked() []byte {
	return mustEncode(protocol.Status{Connected: true, GameActive: s.active, Mainram: s.mainram})
}

func (s *Server) fullLocked() []byte {
	data := make(map[string]numericEntry, len(s.order))
	for _, name := range s.order {
		r := s.regs[name]
		data[name] = numericEntry{V: r.Value, A: fmt.Sprintf("%08X", r.Address), S: r.Size}
	}
	return mustMarshal(dataRecord{Type: protocol.KindFull, Data: data})
}

func errorLine(code, msg string) []byte {
	return mustEncode(protocol.Error{Code: code, Msg: msg})
}

func mustEncode(m protocol.Message) []byte {
	b, err := protocol.Encode(m)
	if err != nil {
		panic(err)
	}
	return b
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return append(b, '\n')
}

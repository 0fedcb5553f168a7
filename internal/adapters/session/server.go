package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/mlatflow/internal/adapters/wire"
	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// Config captures the listener and per-session limits.
type Config struct {
	Addr             string        `yaml:"addr"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MaxLineBytes     int           `yaml:"max_line_bytes"`
}

func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":31337"
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = 1 << 20
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.MaxLineBytes < 1024 {
		return errors.New("max_line_bytes must be at least 1024")
	}
	return nil
}

// Server accepts station sessions over TCP. Each session greets with HELO,
// reads one hello line, answers OK and then streams batch lines into the
// pipeline. A malformed batch is dropped and the session keeps going.
type Server struct {
	cfg Config
	reg *Registry
	obs ports.Observability
	now func() time.Time

	mu      sync.Mutex
	ln      net.Listener
	cancel  context.CancelFunc
	conns   map[net.Conn]struct{}
	started bool
	wg      sync.WaitGroup
}

func NewServer(cfg Config, reg *Registry, obs ports.Observability) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, errors.New("session registry is required")
	}
	if obs == nil {
		return nil, errors.New("observability is required")
	}
	return &Server{
		cfg:   cfg,
		reg:   reg,
		obs:   obs,
		now:   time.Now,
		conns: make(map[net.Conn]struct{}),
	}, nil
}

func (s *Server) Start(out chan<- *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("session server already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("session listen: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ln = ln
	s.cancel = cancel
	s.started = true

	s.obs.LogInfo("session_listening", ports.Field{Key: "addr", Value: ln.Addr().String()})

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln, out)
	return nil
}

// Addr reports the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	err := s.ln.Close()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.reg.CloseAll()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, out chan<- *domain.Batch) {
	defer s.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.obs.LogError("session_accept_failed", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if !s.track(c) {
			_ = c.Close()
			return
		}
		s.wg.Add(1)
		go s.serve(ctx, c, out)
	}
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	_ = c.Close()
}

func (s *Server) serve(ctx context.Context, c net.Conn, out chan<- *domain.Batch) {
	defer s.wg.Done()
	defer s.untrack(c)

	remote := c.RemoteAddr().String()
	p := newPeer(c, s.cfg.WriteTimeout)
	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 0, 64*1024), s.cfg.MaxLineBytes)

	info, err := s.handshake(c, p, sc)
	if err != nil {
		s.obs.LogError("session_handshake_failed", err, ports.Field{Key: "remote", Value: remote})
		_ = p.Send([]byte(fmt.Sprintf("%s %s\n", wire.Refused, sanitize(err.Error()))))
		return
	}
	id := domain.StationID(info.Name)
	if err := s.reg.Connected(info, p); err != nil {
		s.obs.LogError("session_register_failed", err, ports.Field{Key: "remote", Value: remote})
		_ = p.Send([]byte(fmt.Sprintf("%s %s\n", wire.Refused, sanitize(err.Error()))))
		return
	}
	defer s.reg.Disconnected(id, p)

	if err := p.Send([]byte(wire.Accepted + "\n")); err != nil {
		s.obs.LogError("session_transport", errors.Join(domain.ErrTransport, err), ports.Field{Key: "station", Value: string(id)})
		return
	}
	_ = c.SetReadDeadline(time.Time{})
	s.obs.LogInfo("station_connected",
		ports.Field{Key: "station", Value: string(id)},
		ports.Field{Key: "remote", Value: remote},
		ports.Field{Key: "latitude", Value: info.Latitude},
		ports.Field{Key: "longitude", Value: info.Longitude},
		ports.Field{Key: "altitude", Value: info.Altitude},
	)

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = c.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil && ctx.Err() == nil {
				s.obs.LogError("session_transport", errors.Join(domain.ErrTransport, err), ports.Field{Key: "station", Value: string(id)})
			}
			s.obs.LogInfo("station_disconnected", ports.Field{Key: "station", Value: string(id)})
			return
		}
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		b, err := wire.DecodeBatch(id, line, s.now())
		if err != nil {
			s.obs.RecordRejected(id, err)
			continue
		}
		s.obs.IncCounter("mlat_batches_received_total", 1)

		select {
		case out <- b:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handshake(c net.Conn, p *peer, sc *bufio.Scanner) (domain.StationInfo, error) {
	_ = c.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	if err := p.Send([]byte(wire.Greeting + "\n")); err != nil {
		return domain.StationInfo{}, errors.Join(domain.ErrTransport, err)
	}
	if !sc.Scan() {
		err := sc.Err()
		if err == nil {
			err = errors.New("closed before hello")
		}
		return domain.StationInfo{}, errors.Join(domain.ErrTransport, err)
	}
	return wire.DecodeHello(sc.Bytes())
}

func sanitize(msg string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(msg)
}

type peer struct {
	mu           sync.Mutex
	c            net.Conn
	writeTimeout time.Duration
}

func newPeer(c net.Conn, writeTimeout time.Duration) *peer {
	return &peer{c: c, writeTimeout: writeTimeout}
}

func (p *peer) Send(line []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeTimeout > 0 {
		_ = p.c.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	_, err := p.c.Write(line)
	return err
}

func (p *peer) Close() error { return p.c.Close() }

var _ ports.Collector = (*Server)(nil)

package ngpas

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eposlink/ngenius-go/logger"
)

// fakeClock substitutes the config's sleep and now hooks: every sleep is
// recorded and advances the clock instantly, so backoff schedules and phase
// deadlines are observable without wall-clock waits.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()

	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.sleeps...)
}

func (c *fakeClock) install(cfg *ConnectionConfig) {
	cfg.sleep = c.Sleep
	cfg.now = c.Now
}

// pedReply is one scripted gateway reaction: a reply frame, or a dropped
// connection when drop is set.
type pedReply struct {
	reply string
	drop  bool
}

func reply(s string) pedReply { return pedReply{reply: s} }

func dropConn() pedReply { return pedReply{drop: true} }

// pedServer is an in-process scripted gateway. It answers the connect()
// handshake with an empty object and routes every other command through the
// test's handler.
type pedServer struct {
	t  *testing.T
	ln net.Listener

	mu     sync.Mutex
	cmds   []string
	conns  []net.Conn
	handle func(cmd string) pedReply

	wg sync.WaitGroup
}

func startPEDServer(t *testing.T, handle func(cmd string) pedReply) *pedServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &pedServer{t: t, ln: ln, handle: handle}

	srv.wg.Add(1)
	go srv.acceptLoop()

	t.Cleanup(srv.Stop)

	return srv
}

func (s *pedServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

func (s *pedServer) serve(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, ReceiveBufferSize), ReceiveBufferSize)

	for scanner.Scan() {
		cmd := scanner.Text()

		s.mu.Lock()
		s.cmds = append(s.cmds, cmd)
		s.mu.Unlock()

		if cmd == connectLine {
			if _, err := conn.Write([]byte("{}")); err != nil {
				return
			}

			continue
		}

		r := s.handle(cmd)
		if r.drop {
			return
		}
		if _, err := conn.Write([]byte(r.reply)); err != nil {
			return
		}
	}
}

func (s *pedServer) Stop() {
	_ = s.ln.Close()

	s.mu.Lock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Addr returns the listen address as (host, port).
func (s *pedServer) Addr() (string, int) {
	addr := s.ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// Cmds returns every command line received, handshakes included.
func (s *pedServer) Cmds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.cmds...)
}

// ProtocolCmds returns the received commands without connect() handshakes.
func (s *pedServer) ProtocolCmds() []string {
	var out []string
	for _, cmd := range s.Cmds() {
		if cmd != connectLine {
			out = append(out, cmd)
		}
	}

	return out
}

func countPrefix(cmds []string, prefix string) int {
	n := 0
	for _, cmd := range cmds {
		if strings.HasPrefix(cmd, prefix) {
			n++
		}
	}

	return n
}

// newTestConfig builds a config pointed at srv with the fake clock installed.
func newTestConfig(t *testing.T, srv *pedServer, clk *fakeClock) *ConnectionConfig {
	t.Helper()

	host, port := srv.Addr()
	cfg, err := NewConnectionConfig(host, port, WithLogger(newCapLogger()))
	require.NoError(t, err)

	clk.install(cfg)

	return cfg
}

// capLogger records every message for log-contract assertions.
type capLogger struct {
	mu   sync.Mutex
	msgs []string
}

var _ logger.Logger = (*capLogger)(nil)

func newCapLogger() *capLogger { return &capLogger{} }

func (l *capLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.msgs = append(l.msgs, msg)
}

func (l *capLogger) Msgs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.msgs...)
}

func (l *capLogger) Debug(msg string, keysAndValues ...any) { l.record(msg) }
func (l *capLogger) Info(msg string, keysAndValues ...any)  { l.record(msg) }
func (l *capLogger) Warn(msg string, keysAndValues ...any)  { l.record(msg) }
func (l *capLogger) Error(msg string, keysAndValues ...any) { l.record(msg) }
func (l *capLogger) Fatal(msg string, keysAndValues ...any) { l.record(msg) }
func (l *capLogger) With(keysAndValues ...any) logger.Logger { return l }
func (l *capLogger) Level() logger.Level                     { return logger.DebugLevel }
func (l *capLogger) SetLevel(level logger.Level)             {}

package ngpas

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eposlink/ngenius-go/logger"
)

// connectLine is the handshake command emitted after each socket open. Its
// reply is read and discarded as the first framed exchange.
const connectLine = "connect()"

// Connection owns the TCP socket to the acceptor gateway. It sends one
// newline-terminated text command, reads one reply frame, and re-establishes
// the link with bounded backoff when it fails.
//
// The protocol is strictly half-duplex from the client's perspective: at most
// one send/receive may be outstanding at any moment. Connection serializes
// exchanges internally, but a Connection (via its Session) is still meant to
// have a single owner; see Registry.
type Connection struct {
	cfg    *ConnectionConfig
	logger logger.Logger

	exMu    sync.Mutex // serializes command exchanges
	sockMu  sync.Mutex // guards the socket pointer
	conn    net.Conn
	recvBuf []byte

	opState  AtomicConnState
	shutdown atomic.Bool
	metrics  ConnectionMetrics
}

// NewConnection creates a Connection for the endpoint in cfg. No I/O happens
// until Connect or the first SendAndRecv.
func NewConnection(cfg *ConnectionConfig) *Connection {
	return &Connection{
		cfg:     cfg,
		logger:  cfg.logger,
		recvBuf: make([]byte, cfg.recvBufferSize),
	}
}

// GetLogger returns the logger associated with the connection.
func (c *Connection) GetLogger() logger.Logger {
	return c.logger
}

// GetMetrics returns the metrics associated with the connection.
func (c *Connection) GetMetrics() *ConnectionMetrics {
	return &c.metrics
}

// Connect establishes the TCP link and performs the connect() handshake.
// If the link is already open it is a no-op. A previous Shutdown is cleared.
//
// Up to MaxConnectionRetryAttempts attempts are made; after each failure the
// caller is suspended for min(BaseBackoffDelay * 2^(k-1), MaxBackoffDelay).
// Exhaustion returns a ConnectExhaustedError carrying the last cause.
func (c *Connection) Connect(ctx context.Context) error {
	c.exMu.Lock()
	defer c.exMu.Unlock()

	c.shutdown.Store(false)

	return c.connectLocked(ctx)
}

func (c *Connection) connectLocked(ctx context.Context) error {
	if c.opState.IsOpen() {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= MaxConnectionRetryAttempts; attempt++ {
		if c.shutdown.Load() {
			return ErrConnClosed
		}

		// tear down any residual socket from a failed attempt
		c.closeSocket()

		err := c.dialAndHandshake(ctx)
		if err == nil {
			c.metrics.resetConnRetryGauge()
			c.logger.Info("connected to PED gateway",
				"endpoint", c.cfg.Endpoint(),
				"attempt", attempt,
			)

			return nil
		}

		lastErr = err
		c.metrics.incConnRetryGauge()
		delay := expBackoff(BaseBackoffDelay, MaxBackoffDelay, attempt)
		c.logger.Warn("connect attempt failed",
			"endpoint", c.cfg.Endpoint(),
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if err := c.cfg.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &ConnectExhaustedError{Attempts: MaxConnectionRetryAttempts, Cause: lastErr}
}

func (c *Connection) dialAndHandshake(ctx context.Context) error {
	if !c.opState.ToConnecting() {
		return ErrConnNotOpen
	}

	dialer := &net.Dialer{KeepAlive: 30 * time.Second}
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.connectRemoteTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", c.cfg.Endpoint())
	if err != nil {
		c.opState.ToAbsent()
		return err
	}

	c.setSocket(conn)

	// handshake is the first framed exchange; its reply is discarded
	if _, err := c.writeAndRead(connectLine); err != nil {
		c.closeSocket()
		return err
	}

	if !c.opState.ToOpen() {
		c.closeSocket()
		return ErrConnNotOpen
	}

	c.logger.Debug("handshake complete",
		"local_addr", conn.LocalAddr().String(),
		"remote_addr", conn.RemoteAddr().String(),
	)

	return nil
}

// Disconnect tears the link down, best-effort. It never fails: a close error
// is logged and the state still transitions to Absent.
func (c *Connection) Disconnect() {
	c.closeSocket()
}

// Shutdown closes the link and refuses further exchanges until the next
// explicit Connect. This is the hard-cancellation hook: it does not wait for
// an in-flight exchange, so a blocked read observes the closed socket and the
// owning engine unwinds with a transport error.
func (c *Connection) Shutdown() {
	c.shutdown.Store(true)
	c.closeSocket()
}

func (c *Connection) setSocket(conn net.Conn) {
	c.sockMu.Lock()
	defer c.sockMu.Unlock()

	c.conn = conn
}

func (c *Connection) socket() net.Conn {
	c.sockMu.Lock()
	defer c.sockMu.Unlock()

	return c.conn
}

func (c *Connection) closeSocket() {
	c.sockMu.Lock()
	defer c.sockMu.Unlock()

	if c.conn != nil {
		if tcpConn, ok := c.conn.(*net.TCPConn); ok {
			_ = tcpConn.SetLinger(0)
		}
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("failed to close TCP connection", "error", err)
		}
		c.conn = nil
	}

	c.opState.ToAbsent()
}

// SendAndRecv writes line as one newline-terminated command and reads one
// reply frame. A closed or absent link is re-established first.
//
// A network-class failure forces a disconnect, suspends the caller for
// BaseBackoffDelay * k (linear), and retries, up to MaxRetryAttempts total
// attempts. Non-network errors surface immediately. Exhaustion returns a
// SendExhaustedError carrying the last cause.
func (c *Connection) SendAndRecv(ctx context.Context, line string) (string, error) {
	c.exMu.Lock()
	defer c.exMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= MaxRetryAttempts; attempt++ {
		reply, err := c.exchange(ctx, line)
		if err == nil {
			return reply, nil
		}

		if !isNetworkErr(err) {
			return "", err
		}

		lastErr = err
		c.metrics.incTransportErrCount()

		// force a teardown so the next attempt re-establishes the link
		c.closeSocket()

		if attempt < MaxRetryAttempts {
			c.metrics.incSendRetryCount()
			delay := linBackoff(BaseBackoffDelay, attempt)
			c.logger.Warn("transport failure, retrying",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
			if err := c.cfg.sleep(ctx, delay); err != nil {
				return "", err
			}
		}
	}

	return "", &SendExhaustedError{Attempts: MaxRetryAttempts, Cause: lastErr}
}

func (c *Connection) exchange(ctx context.Context, line string) (string, error) {
	if c.shutdown.Load() {
		return "", ErrConnClosed
	}

	if !c.opState.IsOpen() {
		if err := c.connectLocked(ctx); err != nil {
			return "", err
		}
	}

	return c.writeAndRead(line)
}

// writeAndRead performs one raw framed exchange on the live socket.
// The gateway delivers one frame per read; no reassembly is attempted.
func (c *Connection) writeAndRead(line string) (string, error) {
	conn := c.socket()
	if conn == nil {
		return "", ErrConnNotOpen
	}

	c.logger.Info("SEND: " + line)
	c.metrics.incCmdSendCount()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout)); err != nil {
		return "", err
	}
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return "", err
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.readTimeout)); err != nil {
		return "", err
	}
	n, err := conn.Read(c.recvBuf)
	if err != nil {
		return "", err
	}

	reply := string(c.recvBuf[:n])
	c.metrics.incFrameRecvCount()

	c.logger.Info("RECV: " + reply)
	if strings.Contains(reply, "error") {
		c.logger.Error("ERROR: " + reply)
	}

	return reply, nil
}

// isNetworkErr classifies an exchange failure as retryable: socket and I/O
// errors, a stream closed under us, and use of an absent connection. Connect
// exhaustion and shutdown are excluded — the former already contains its own
// bounded retries, the latter is a deliberate stop — and both must surface to
// the caller.
func isNetworkErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrConnectExhausted) || errors.Is(err, ErrConnClosed) {
		return false
	}

	if errors.Is(err, ErrConnNotOpen) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

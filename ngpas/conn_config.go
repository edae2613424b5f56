package ngpas

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/eposlink/ngenius-go/logger"
)

// Protocol-level retry and timing constants. These mirror the gateway's
// documented behavior. The retry, backoff and deadline values are
// deliberately not configurable: the PED side expects clients to pace
// themselves exactly this way. DefaultPollInterval, DefaultBaseTimeout and
// ReceiveBufferSize are only defaults, which connection options override.
const (
	// MaxRetryAttempts bounds send-level and getStatus-level retries.
	MaxRetryAttempts = 3
	// MaxConnectionRetryAttempts bounds connect-level retries.
	MaxConnectionRetryAttempts = 3

	// BaseBackoffDelay seeds every backoff schedule.
	BaseBackoffDelay = 1000 * time.Millisecond
	// MaxBackoffDelay caps the exponential schedules.
	MaxBackoffDelay = 30 * time.Second

	// IdleGateDelay is the fixed pause between idle-gate probes.
	IdleGateDelay = 3 * time.Second

	// ExtendedTimeout replaces the base phase deadline once an
	// updateTransaction has been sent.
	ExtendedTimeout = 150 * time.Second
	// PreUpdateSafetyThreshold is the in-prompt deadline before any update
	// has been sent.
	PreUpdateSafetyThreshold = 90 * time.Second

	// CommandTimedOutDelay is the fixed pause after an error 101 reply.
	CommandTimedOutDelay = 15 * time.Second

	// ReceiveBufferSize is the maximum reply frame the gateway delivers.
	ReceiveBufferSize = 16 * 1024

	// DefaultPollInterval paces the status poll loop.
	DefaultPollInterval = 3 * time.Second
	// DefaultBaseTimeout is the phase deadline for payment transactions.
	DefaultBaseTimeout = 120 * time.Second
	// ReportTimeout is the phase deadline for X/Z report transactions.
	ReportTimeout = 60 * time.Second
)

// ConnectionConfig represents the configuration parameters for a PED gateway
// connection.
type ConnectionConfig struct {
	// host specifies the host of the acceptor gateway.
	host string

	// port specifies the TCP port number of the acceptor gateway.
	port int

	// merchantID and terminalID identify the acceptor to the gateway; they are
	// stamped into transaction payloads by the payload helpers.
	merchantID string
	terminalID string

	// currency is the default ISO currency code for payload helpers.
	currency string

	// connectRemoteTimeout bounds a single TCP dial. Defaults to 5 seconds.
	connectRemoteTimeout time.Duration

	// writeTimeout bounds writing one command line. Defaults to 5 seconds.
	writeTimeout time.Duration

	// readTimeout bounds reading one reply frame. Defaults to 30 seconds.
	readTimeout time.Duration

	// pollInterval is the default status poll pacing for engines built on this
	// config. Defaults to DefaultPollInterval.
	pollInterval time.Duration

	// baseTimeout is the default phase deadline for engines built on this
	// config. Defaults to DefaultBaseTimeout.
	baseTimeout time.Duration

	// recvBufferSize is the receive buffer for one reply frame.
	// Defaults to ReceiveBufferSize.
	recvBufferSize int

	// logger receives every SEND/RECV/ERROR wire line and engine event.
	logger logger.Logger

	// sleep and now are the suspension and clock hooks. Tests substitute them
	// to observe backoff schedules without wall-clock waits.
	sleep sleepFunc
	now   func() time.Time
}

// NewConnectionConfig creates a connection configuration for the gateway at
// host:port, applies the given options, and validates the result.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		currency:             "AED",
		connectRemoteTimeout: 5 * time.Second,
		writeTimeout:         5 * time.Second,
		readTimeout:          30 * time.Second,
		pollInterval:         DefaultPollInterval,
		baseTimeout:          DefaultBaseTimeout,
		recvBufferSize:       ReceiveBufferSize,
		logger:               logger.GetLogger(),
		sleep:                ctxSleep,
		now:                  time.Now,
	}

	if err := withHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Endpoint returns the "host:port" address of the gateway.
func (cfg *ConnectionConfig) Endpoint() string {
	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

// MerchantID returns the configured merchant identifier.
func (cfg *ConnectionConfig) MerchantID() string { return cfg.merchantID }

// TerminalID returns the configured terminal identifier.
func (cfg *ConnectionConfig) TerminalID() string { return cfg.terminalID }

// Currency returns the configured default currency code.
func (cfg *ConnectionConfig) Currency() string { return cfg.currency }

// PollInterval returns the default status poll pacing.
func (cfg *ConnectionConfig) PollInterval() time.Duration { return cfg.pollInterval }

// BaseTimeout returns the default phase deadline.
func (cfg *ConnectionConfig) BaseTimeout() time.Duration { return cfg.baseTimeout }

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error { return c.applyFunc(cfg) }

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// withHost sets and validates the gateway host. Either an IP address or a
// non-empty host name is accepted; name resolution is left to dial time.
func withHost(host string) ConnOption {
	return newConnOptFunc("withHost", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		host = strings.TrimPrefix(host, ".")
		host = strings.TrimSuffix(host, ".")
		if host == "" {
			return errors.New("invalid host")
		}
		cfg.host = host

		return nil
	})
}

// withPort sets and validates the gateway TCP port.
func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithMerchant sets the merchant and terminal identifiers stamped into
// transaction payloads.
func WithMerchant(merchantID, terminalID string) ConnOption {
	return newConnOptFunc("WithMerchant", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.merchantID = merchantID
		cfg.terminalID = terminalID

		return nil
	})
}

// WithCurrency sets the default ISO currency code for payload helpers.
// An error is returned if the code is not three letters.
//
// The default value is "AED".
func WithCurrency(code string) ConnOption {
	return newConnOptFunc("WithCurrency", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if len(code) != 3 {
			return errors.New("currency code must be three letters")
		}
		for _, r := range code {
			if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
				return errors.New("currency code must be three letters")
			}
		}
		cfg.currency = strings.ToUpper(code)

		return nil
	})
}

// WithConnectRemoteTimeout sets the timeout for a single TCP dial.
// An error is returned if the timeout is outside the valid range
// (0.1-30 seconds) or if the configuration is nil.
//
// The default value is 5 seconds.
func WithConnectRemoteTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithConnectRemoteTimeout", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 100*time.Millisecond || val > 30*time.Second {
			return errors.New("connect remote timeout out of range [0.1, 30]")
		}
		cfg.connectRemoteTimeout = val

		return nil
	})
}

// WithWriteTimeout sets the timeout for writing one command line.
// An error is returned if the timeout is outside the valid range
// (1-30 seconds) or if the configuration is nil.
//
// The default value is 5 seconds.
func WithWriteTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 1*time.Second || val > 30*time.Second {
			return errors.New("write timeout out of range [1, 30]")
		}
		cfg.writeTimeout = val

		return nil
	})
}

// WithReadTimeout sets the timeout for reading one reply frame.
// An error is returned if the timeout is outside the valid range
// (1-120 seconds) or if the configuration is nil.
//
// The default value is 30 seconds.
func WithReadTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithReadTimeout", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 1*time.Second || val > 120*time.Second {
			return errors.New("read timeout out of range [1, 120]")
		}
		cfg.readTimeout = val

		return nil
	})
}

// WithPollInterval sets the default status poll pacing for engines built on
// this configuration.
// An error is returned if the interval is outside the valid range
// (0.1-60 seconds) or if the configuration is nil.
//
// The default value is 3 seconds.
func WithPollInterval(val time.Duration) ConnOption {
	return newConnOptFunc("WithPollInterval", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 100*time.Millisecond || val > 60*time.Second {
			return errors.New("poll interval out of range [0.1, 60]")
		}
		cfg.pollInterval = val

		return nil
	})
}

// WithBaseTimeout sets the default phase deadline for engines built on this
// configuration.
// An error is returned if the timeout is outside the valid range
// (1-600 seconds) or if the configuration is nil.
//
// The default value is 120 seconds.
func WithBaseTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithBaseTimeout", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 1*time.Second || val > 600*time.Second {
			return errors.New("base timeout out of range [1, 600]")
		}
		cfg.baseTimeout = val

		return nil
	})
}

// WithReceiveBufferSize sets the receive buffer for one reply frame.
// An error is returned if the size is outside the valid range
// (1 KiB - 1 MiB) or if the configuration is nil.
//
// The default value is 16 KiB, the largest frame the gateway delivers.
func WithReceiveBufferSize(size int) ConnOption {
	return newConnOptFunc("WithReceiveBufferSize", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if size < 1024 || size > 1024*1024 {
			return errors.New("receive buffer size out of range [1KiB, 1MiB]")
		}
		cfg.recvBufferSize = size

		return nil
	})
}

// WithLogger sets the logger for the connection and everything built on it.
// An error is returned if the configuration is nil.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.logger = l

		return nil
	})
}

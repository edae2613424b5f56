package ngpas

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eposlink/ngenius-go/frame"
	"github.com/eposlink/ngenius-go/logger"
)

// Display texts the PED shows when it is safe to start a new transaction.
// Matched case-sensitively, by substring.
const (
	idleTextNoTxn      = "NO TXN"
	idleTextSystemIdle = "SYSTEM IDLE"
)

// Session exposes the PED command primitives over a Connection. It holds no
// transaction lifecycle state of its own — the Engine is the sole owner of
// that — and must not be shared across concurrent transactions.
type Session struct {
	conn   *Connection
	cfg    *ConnectionConfig
	logger logger.Logger
}

// NewSession creates a Session over conn.
func NewSession(conn *Connection) *Session {
	return &Session{
		conn:   conn,
		cfg:    conn.cfg,
		logger: conn.logger,
	}
}

// Connect establishes the underlying link. Optional: the first command
// establishes it on demand.
func (s *Session) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

// Close shuts the underlying link down. Closing the session is the
// hard-cancellation escape hatch: a running engine observes the transport
// failure and returns.
func (s *Session) Close() {
	s.conn.Shutdown()
}

// StartTransaction emits startTransaction with the compactly serialized
// payload. The reply, if any, is discarded — progress is observed through the
// subsequent getStatus cycle.
func (s *Session) StartTransaction(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal transaction payload: %w", err)
	}

	if _, err := s.conn.SendAndRecv(ctx, "startTransaction "+string(body)); err != nil {
		return err
	}

	return nil
}

// GetStatus polls the PED's current state.
//
// An empty or field-less reply is retried up to MaxRetryAttempts with linear
// backoff; transport failures during the retry cycle are absorbed the same
// way. After exhaustion an empty frame is returned — never an error — so the
// poll loop treats the tick as "no information". The only error returned is
// the context's own, so cancellation still unwinds callers.
func (s *Session) GetStatus(ctx context.Context) (frame.Frame, error) {
	for attempt := 1; attempt <= MaxRetryAttempts; attempt++ {
		raw, err := s.conn.SendAndRecv(ctx, "getStatus()")
		if err != nil {
			if ctx.Err() != nil {
				return frame.Frame{}, ctx.Err()
			}
			s.logger.Warn("getStatus transport failure", "attempt", attempt, "error", err)
		} else {
			status := frame.Parse(raw)
			if !status.IsEmpty() {
				if errText := status.ErrorText(); errText != "" {
					s.logger.Debug("PED error status", "error", errText)
				}

				return status, nil
			}
		}

		if attempt < MaxRetryAttempts {
			delay := linBackoff(BaseBackoffDelay, attempt)
			s.logger.Debug("empty status, retrying", "attempt", attempt, "delay", delay)
			if err := s.cfg.sleep(ctx, delay); err != nil {
				return frame.Frame{}, err
			}
		}
	}

	return frame.Frame{}, nil
}

// GetResult retrieves the terminal result frame for sourceID. No retry: it is
// called at terminal steps, and transport failures must surface so the host
// can trigger operator recovery.
func (s *Session) GetResult(ctx context.Context, sourceID string) (frame.Frame, error) {
	raw, err := s.conn.SendAndRecv(ctx, "getResult("+sourceID+")")
	if err != nil {
		return nil, err
	}

	return frame.Parse(raw), nil
}

// UpdateTransaction emits updateTransaction with the compactly serialized
// payload, answering a parameter prompt. The reply is discarded.
func (s *Session) UpdateTransaction(ctx context.Context, payload frame.Frame) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal update payload: %w", err)
	}

	if _, err := s.conn.SendAndRecv(ctx, "updateTransaction "+string(body)); err != nil {
		return err
	}

	return nil
}

// CancelTransaction aborts the current transaction on the PED.
func (s *Session) CancelTransaction(ctx context.Context) error {
	if _, err := s.conn.SendAndRecv(ctx, "cancelTransaction()"); err != nil {
		return err
	}

	return nil
}

// CheckLastTransactionResult recovers the terminal result of a prior
// transaction after a crash. An empty sourceID yields an empty frame without
// any I/O; otherwise exactly one getResult is issued.
func (s *Session) CheckLastTransactionResult(ctx context.Context, sourceID string) (frame.Frame, error) {
	if sourceID == "" {
		return frame.Frame{}, nil
	}

	s.logger.Info("checking last transaction result", "sourceId", sourceID)

	return s.GetResult(ctx, sourceID)
}

// IsIdle reports whether the PED is safe to start a new transaction:
// inProgress is false, complete is true, and the display shows one of the
// idle texts. Any failure reads as not-idle.
func (s *Session) IsIdle(ctx context.Context) bool {
	status, err := s.GetStatus(ctx)
	if err != nil {
		return false
	}

	if status.BoolOr(frame.KeyInProgress, false) || !status.BoolOr(frame.KeyComplete, false) {
		return false
	}

	displayText := status.StrOr(frame.KeyDisplayText, "")

	return strings.Contains(displayText, idleTextNoTxn) ||
		strings.Contains(displayText, idleTextSystemIdle)
}

package ngpas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eposlink/ngenius-go/frame"
	"github.com/eposlink/ngenius-go/logger"
)

// PED error classes, identified by substring match on the error field.
const (
	// errBusy is error 110: a previous command is still in progress.
	errBusy = "Previous command still in progress"
	// errCommandTimedOut is error 101: the PED timed out a command internally.
	errCommandTimedOut = "Command timed out"
)

// Engine drives one logical transaction lifecycle over a Session:
// idle gate, startTransaction, the status poll loop with prompt handling and
// error backoff, and the guaranteed terminal cancel + getResult.
//
// Engine assumes sole ownership of its Session for the duration of Run.
// Cancellation is time-driven: the phase deadlines decide when the engine
// gives up, and a timeout exit always emits cancelTransaction before the
// terminal getResult. A caller needing hard cancellation closes the Session;
// the engine then observes a transport failure and returns.
type Engine struct {
	session *Session
	cfg     *ConnectionConfig
	logger  logger.Logger
	metrics *ConnectionMetrics
}

// NewEngine creates an Engine over session.
func NewEngine(session *Session) *Engine {
	return &Engine{
		session: session,
		cfg:     session.cfg,
		logger:  session.logger,
		metrics: session.conn.GetMetrics(),
	}
}

// Run drives the transaction identified by sourceID with the given payload
// and returns its terminal result frame.
//
// pollInterval and baseTimeout fall back to the configuration defaults when
// non-positive. The phase deadline extends to ExtendedTimeout once an
// updateTransaction has been sent.
//
// Run returns an error only for transport exhaustion (the wrapped
// ConnectExhausted / SendExhausted causes) or context cancellation; every
// other anomaly is absorbed by the poll logic, and the caller always receives
// some terminal frame otherwise.
func (e *Engine) Run(ctx context.Context, sourceID string, payload any, pollInterval, baseTimeout time.Duration) (frame.Frame, error) {
	if pollInterval <= 0 {
		pollInterval = e.cfg.pollInterval
	}
	if baseTimeout <= 0 {
		baseTimeout = e.cfg.baseTimeout
	}

	e.metrics.incTxnRunCount()
	log := e.logger.With("sourceId", sourceID)

	if err := e.waitPedIdle(ctx, log); err != nil {
		return nil, err
	}

	if err := e.session.StartTransaction(ctx, payload); err != nil {
		return nil, fmt.Errorf("start transaction %s: %w", sourceID, err)
	}

	txn := &txnContext{
		sourceID:     sourceID,
		pollInterval: pollInterval,
		baseTimeout:  baseTimeout,
		start:        e.cfg.now(),
	}

	if err := e.pollLoop(ctx, log, txn); err != nil {
		return nil, err
	}

	// terminal re-check: any exit that did not observe completion cancels the
	// transaction on the PED before fetching the result
	if !txn.complete && !txn.cancelled {
		status, err := e.session.GetStatus(ctx)
		if err != nil {
			return nil, err
		}
		if status.BoolOr(frame.KeyComplete, false) {
			txn.complete = true
		} else {
			e.cancelTxn(ctx, log, txn)
		}
	}

	result, err := e.session.GetResult(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", sourceID, err)
	}

	return result, nil
}

// txnContext is the lifecycle state of one Run invocation.
type txnContext struct {
	sourceID     string
	pollInterval time.Duration
	baseTimeout  time.Duration

	updateSent           bool
	consecutiveBusyCount int
	start                time.Time

	complete  bool
	cancelled bool
}

// waitPedIdle blocks until the PED reports truly idle, probing every
// IdleGateDelay. The gate is unbounded: the PED must become idle or the
// operator must intervene. Only context cancellation unwinds it.
func (e *Engine) waitPedIdle(ctx context.Context, log logger.Logger) error {
	for !e.session.IsIdle(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Debug("PED not idle, waiting", "delay", IdleGateDelay)
		if err := e.cfg.sleep(ctx, IdleGateDelay); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) pollLoop(ctx context.Context, log logger.Logger, txn *txnContext) error {
	for {
		deadline := txn.baseTimeout
		if txn.updateSent {
			deadline = ExtendedTimeout
		}
		if e.cfg.now().Sub(txn.start) >= deadline {
			log.Warn("phase deadline reached", "deadline", deadline)
			return nil
		}

		status, err := e.session.GetStatus(ctx)
		if err != nil {
			return err
		}

		// busy (error 110): exponential backoff, never fatal, counter survives
		// until a non-busy observation
		if status.ErrorContains(errBusy) {
			txn.consecutiveBusyCount++
			e.metrics.incBusyBackoffCount()
			delay := expBackoff(BaseBackoffDelay, MaxBackoffDelay, txn.consecutiveBusyCount)
			log.Debug("PED busy, backing off", "consecutive", txn.consecutiveBusyCount, "delay", delay)
			if err := e.cfg.sleep(ctx, delay); err != nil {
				return err
			}

			continue
		}

		txn.consecutiveBusyCount = 0

		// command timed out (error 101): fixed pause, never fatal
		if status.ErrorContains(errCommandTimedOut) {
			log.Debug("PED command timed out, pausing", "delay", CommandTimedOutDelay)
			if err := e.cfg.sleep(ctx, CommandTimedOutDelay); err != nil {
				return err
			}

			continue
		}

		if status.PromptPending() {
			if err := e.answerPrompt(ctx, log, txn, status); err != nil {
				return err
			}
			if txn.cancelled {
				return nil
			}

			if err := e.cfg.sleep(ctx, txn.pollInterval); err != nil {
				return err
			}

			continue
		}

		if status.BoolOr(frame.KeyComplete, false) {
			txn.complete = true
			return nil
		}

		if err := e.cfg.sleep(ctx, txn.pollInterval); err != nil {
			return err
		}
	}
}

// answerPrompt replies to a parameter prompt with the defaults-policy value,
// echoing the current status fields in the update payload.
func (e *Engine) answerPrompt(ctx context.Context, log logger.Logger, txn *txnContext, status frame.Frame) error {
	parameter := status.StrOr(frame.KeyParameter, "")
	parameterType := status.StrOr(frame.KeyParameterType, "")
	value := DefaultParameterValue(parameter, parameterType)

	update := frame.Frame{
		frame.KeySuccess:        false,
		frame.KeySourceIDWire:   txn.sourceID,
		frame.KeyParameter:      parameter,
		frame.KeyParameterType:  parameterType,
		frame.KeyParameterValue: value,
	}
	// echo the current status values verbatim
	for _, key := range []string{
		frame.KeyAmount, frame.KeyCashback, frame.KeyCurrency,
		frame.KeyInProgress, frame.KeyDisplayText,
	} {
		if v, ok := status[key]; ok {
			update[key] = v
		}
	}

	log.Info("answering parameter prompt",
		"parameter", parameter,
		"parameterType", parameterType,
		"parameterValue", value,
	)

	if err := e.session.UpdateTransaction(ctx, update); err != nil {
		return fmt.Errorf("update transaction %s: %w", txn.sourceID, err)
	}

	// The in-prompt safety deadline uses the pre-prompt updateSent value on
	// purpose: 90s until the first update has gone out, 150s afterwards. Both
	// thresholds are inherited from the gateway's reference client; review
	// before changing either.
	promptDeadline := PreUpdateSafetyThreshold
	if txn.updateSent {
		promptDeadline = ExtendedTimeout
	}
	txn.updateSent = true

	if e.cfg.now().Sub(txn.start) > promptDeadline {
		e.cancelTxn(ctx, log, txn)
	}

	return nil
}

// cancelTxn emits cancelTransaction, best-effort. A transport failure here is
// logged and swallowed: the terminal getResult still runs so the caller gets
// a result frame or the transport error from the terminal step itself.
func (e *Engine) cancelTxn(ctx context.Context, log logger.Logger, txn *txnContext) {
	log.Warn("transaction timed out, cancelling", "elapsed", e.cfg.now().Sub(txn.start))

	if err := e.session.CancelTransaction(ctx); err != nil {
		log.Error("failed to cancel transaction", "error", err)
	}
	txn.cancelled = true
}

// DefaultParameterValue implements the operator-input defaults policy for a
// parameter prompt.
func DefaultParameterValue(parameter, parameterType string) string {
	switch {
	case strings.EqualFold(parameter, "checkcard"):
		return "continue"
	case strings.EqualFold(parameterType, "alphanumeric"):
		return "ok"
	case strings.EqualFold(parameterType, "numeric"):
		return "0"
	case strings.EqualFold(parameterType, "boolean"):
		return "true"
	default:
		return ""
	}
}

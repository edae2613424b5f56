// Package ngpas implements the client protocol engine for a payment PIN-entry
// device (PED) behind a Network-International-style acceptor gateway, spoken
// over a persistent line-oriented TCP channel.
//
// The package is layered the way the wire protocol is:
//
//   - Connection owns the TCP socket. It sends one newline-terminated text
//     command, reads one reply frame, and reconnects with bounded backoff when
//     the link fails. The channel is strictly half-duplex from the client's
//     perspective: exactly one command may be outstanding at any moment.
//   - Session exposes the command primitives (startTransaction, getStatus,
//     updateTransaction, cancelTransaction, getResult) on top of a Connection,
//     including the idle predicate and the crash-recovery result check.
//   - Engine drives one logical transaction lifecycle: it gates admission on
//     the PED reporting idle, starts the transaction, polls status with
//     backoff on busy and command-timeout errors, answers parameter prompts,
//     and guarantees a cancelTransaction before returning whenever completion
//     was not observed.
//
// The PED is a shared physical resource holding state that cannot be safely
// abandoned mid-transaction, so cancellation is time-driven: phase deadlines
// decide when the engine gives up, and every timeout exit emits a cancel
// before the terminal getResult. A Session must have a single owner for its
// lifetime; Registry provides process-wide exclusive ownership per endpoint.
//
// Basic usage:
//
//	cfg, err := ngpas.NewConnectionConfig("10.0.0.5", 6000)
//	if err != nil { ... }
//	session := ngpas.NewSession(ngpas.NewConnection(cfg))
//	engine := ngpas.NewEngine(session)
//
//	result, err := engine.Run(ctx, sourceID, payload, 0, 0)
package ngpas

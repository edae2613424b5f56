package ngpas

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eposlink/ngenius-go/frame"
)

func TestGetStatusRetriesEmptyReplies(t *testing.T) {
	require := require.New(t)

	statusCalls := 0
	srv := startPEDServer(t, func(cmd string) pedReply {
		statusCalls++
		if statusCalls <= 2 {
			// whitespace frame: transient, must be retried
			return reply("\n")
		}

		return reply(`{"complete":true}`)
	})

	clk := newFakeClock()
	cfg := newTestConfig(t, srv, clk)
	session := NewSession(NewConnection(cfg))

	status, err := session.GetStatus(context.Background())
	require.NoError(err)
	require.True(status.BoolOr(frame.KeyComplete, false))

	// two linear backoffs inside getStatus, then the third call returns
	require.Equal([]time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
	}, clk.Sleeps())
	require.Equal(3, statusCalls)
}

func TestGetStatusReturnsEmptyAfterExhaustion(t *testing.T) {
	require := require.New(t)

	srv := startPEDServer(t, func(cmd string) pedReply {
		return reply("  \n")
	})

	clk := newFakeClock()
	cfg := newTestConfig(t, srv, clk)
	session := NewSession(NewConnection(cfg))

	status, err := session.GetStatus(context.Background())
	require.NoError(err)
	require.True(status.IsEmpty())

	require.Equal([]time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
	}, clk.Sleeps())
}

func TestGetStatusAbsorbsTransportFailures(t *testing.T) {
	require := require.New(t)

	srv := startPEDServer(t, func(cmd string) pedReply {
		return dropConn()
	})

	clk := newFakeClock()
	cfg := newTestConfig(t, srv, clk)
	session := NewSession(NewConnection(cfg))

	// every attempt exhausts its send retries; getStatus still never raises
	status, err := session.GetStatus(context.Background())
	require.NoError(err)
	require.True(status.IsEmpty())
}

func TestStartTransactionSerializesPayloadCompactly(t *testing.T) {
	require := require.New(t)

	srv := startPEDServer(t, func(cmd string) pedReply {
		return reply("{}")
	})

	clk := newFakeClock()
	cfg := newTestConfig(t, srv, clk)
	session := NewSession(NewConnection(cfg))

	payload := frame.Frame{
		"type":     TxnTypeSale,
		"sourceid": "001",
		"amount":   "1000",
	}
	require.NoError(session.StartTransaction(context.Background(), payload))

	cmds := srv.ProtocolCmds()
	require.Len(cmds, 1)
	require.True(strings.HasPrefix(cmds[0], "startTransaction "))

	body := strings.TrimPrefix(cmds[0], "startTransaction ")
	require.NotContains(body, "\n")
	require.NotContains(body, ": ")

	sent := frame.Parse(body)
	require.Equal("001", sent.SourceID())
	require.Equal("1000", sent.StrOr("amount", ""))
	require.Equal(TxnTypeSale, sent.StrOr("type", ""))
}

func TestIsIdlePredicate(t *testing.T) {
	tests := []struct {
		name   string
		status string
		idle   bool
	}{
		{"no txn display", `{"inProgress":false,"complete":true,"displayText":"NO TXN"}`, true},
		{"system idle display", `{"inProgress":false,"complete":true,"displayText":"SYSTEM IDLE"}`, true},
		{"idle text embedded", `{"inProgress":false,"complete":true,"displayText":"-- SYSTEM IDLE --"}`, true},
		{"in progress", `{"inProgress":true,"complete":true,"displayText":"NO TXN"}`, false},
		{"not complete", `{"inProgress":false,"complete":false,"displayText":"NO TXN"}`, false},
		{"wrong display", `{"inProgress":false,"complete":true,"displayText":"INSERT CARD"}`, false},
		{"case sensitive", `{"inProgress":false,"complete":true,"displayText":"no txn"}`, false},
		{"missing display", `{"inProgress":false,"complete":true}`, false},
		{"error reply", `error {"code":110}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			srv := startPEDServer(t, func(cmd string) pedReply {
				return reply(tt.status)
			})

			clk := newFakeClock()
			cfg := newTestConfig(t, srv, clk)
			session := NewSession(NewConnection(cfg))

			require.Equal(tt.idle, session.IsIdle(context.Background()))
		})
	}
}

func TestIsIdleFalseOnFailure(t *testing.T) {
	require := require.New(t)

	srv := startPEDServer(t, func(cmd string) pedReply {
		return dropConn()
	})

	clk := newFakeClock()
	cfg := newTestConfig(t, srv, clk)
	session := NewSession(NewConnection(cfg))

	require.False(session.IsIdle(context.Background()))
}

func TestCheckLastTransactionResult(t *testing.T) {
	require := require.New(t)

	srv := startPEDServer(t, func(cmd string) pedReply {
		if strings.HasPrefix(cmd, "getResult(") {
			return reply(`{"success":true,"declined":false,"sourceId":"20240101000000001"}`)
		}

		return reply("{}")
	})

	clk := newFakeClock()
	cfg := newTestConfig(t, srv, clk)
	session := NewSession(NewConnection(cfg))

	result, err := session.CheckLastTransactionResult(context.Background(), "20240101000000001")
	require.NoError(err)
	require.True(result.Approved())
	require.Equal("20240101000000001", result.SourceID())

	// exactly one getResult with the prior correlation id, and nothing else
	require.Equal([]string{"getResult(20240101000000001)"}, srv.ProtocolCmds())
}

func TestCheckLastTransactionResultEmptySourceID(t *testing.T) {
	require := require.New(t)

	srv := startPEDServer(t, func(cmd string) pedReply {
		return reply("{}")
	})

	clk := newFakeClock()
	cfg := newTestConfig(t, srv, clk)
	session := NewSession(NewConnection(cfg))

	result, err := session.CheckLastTransactionResult(context.Background(), "")
	require.NoError(err)
	require.True(result.IsEmpty())

	// no I/O at all: not even a handshake
	require.Empty(srv.Cmds())
}

func TestCancelTransaction(t *testing.T) {
	require := require.New(t)

	srv := startPEDServer(t, func(cmd string) pedReply {
		return reply("{}")
	})

	clk := newFakeClock()
	cfg := newTestConfig(t, srv, clk)
	session := NewSession(NewConnection(cfg))

	require.NoError(session.CancelTransaction(context.Background()))
	require.Equal([]string{"cancelTransaction()"}, srv.ProtocolCmds())
}

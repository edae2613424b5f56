package ngpas

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSourceID(t *testing.T) {
	require := require.New(t)

	at := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	id := NewSourceID(at)

	require.Len(id, sourceIDLen)
	require.True(strings.HasPrefix(id, "20240102030405"))
	for _, r := range id {
		require.True(r >= '0' && r <= '9')
	}

	// derived from UTC regardless of the input location
	loc := time.FixedZone("GST", 4*3600)
	require.Equal(id, NewSourceID(at.In(loc)))

	// monotonic for increasing instants at >= 100ms granularity
	later := NewSourceID(at.Add(150 * time.Millisecond))
	require.Greater(later, id)
}

func TestRunXReport(t *testing.T) {
	require := require.New(t)

	ped := &scriptedPED{
		statuses: []string{
			idleStatus,
			`{"inProgress":true}`,
			`{"complete":true}`,
		},
		result: `{"success":true,"sourceid":"XReport"}`,
	}

	engine, srv, clk := newEngineTest(t, ped)

	result, err := engine.RunXReport(context.Background())
	require.NoError(err)
	require.True(result.Approved())
	require.Equal(XReportSourceID, result.SourceID())

	cmds := srv.ProtocolCmds()

	var startBody string
	for _, cmd := range cmds {
		if strings.HasPrefix(cmd, "startTransaction ") {
			startBody = strings.TrimPrefix(cmd, "startTransaction ")
			break
		}
	}
	require.Contains(startBody, `"type":"getReport"`)
	require.Contains(startBody, `"reportType":"X"`)

	require.Equal("getResult(XReport)", cmds[len(cmds)-1])
	require.Equal([]time.Duration{DefaultPollInterval}, clk.Sleeps())
}

func TestRunZReportTimesOutAtReportDeadline(t *testing.T) {
	require := require.New(t)

	ped := &scriptedPED{
		statuses: []string{
			idleStatus,
			`{"inProgress":true}`,
		},
		result: `{"success":false}`,
	}

	engine, srv, clk := newEngineTest(t, ped)

	_, err := engine.RunZReport(context.Background())
	require.NoError(err)

	cmds := srv.ProtocolCmds()
	require.Equal(1, countPrefix(cmds, "cancelTransaction"))
	require.Equal("getResult(ZReport)", cmds[len(cmds)-1])

	// reports run under the 60s deadline, not the 120s transaction one
	var total time.Duration
	for _, d := range clk.Sleeps() {
		total += d
	}
	require.GreaterOrEqual(total, ReportTimeout)
	require.Less(total, DefaultBaseTimeout)
}

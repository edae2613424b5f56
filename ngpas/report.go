package ngpas

import (
	"context"
	"fmt"
	"time"

	"github.com/eposlink/ngenius-go/frame"
)

// Correlation ids for the report flows. The gateway keys report results on
// these literal values rather than a timestamp id.
const (
	XReportSourceID = "XReport"
	ZReportSourceID = "ZReport"
)

// sourceIDLen is the length of a host-assigned correlation id: the UTC
// timestamp yyyyMMddHHmmssfff truncated to 15 characters.
const sourceIDLen = 15

// NewSourceID derives a monotonic correlation id from t. The host persists
// the most recent value to enable crash recovery via
// CheckLastTransactionResult.
func NewSourceID(t time.Time) string {
	u := t.UTC()
	id := fmt.Sprintf("%s%03d", u.Format("20060102150405"), u.Nanosecond()/int(time.Millisecond))

	return id[:sourceIDLen]
}

// RunXReport runs an X report (reads the totals without resetting them) and
// returns its terminal result frame.
func (e *Engine) RunXReport(ctx context.Context) (frame.Frame, error) {
	return e.runReport(ctx, "X", XReportSourceID)
}

// RunZReport runs a Z report (reads and resets the totals) and returns its
// terminal result frame.
func (e *Engine) RunZReport(ctx context.Context) (frame.Frame, error) {
	return e.runReport(ctx, "Z", ZReportSourceID)
}

func (e *Engine) runReport(ctx context.Context, reportType, sourceID string) (frame.Frame, error) {
	payload := e.cfg.ReportPayload(reportType)

	return e.Run(ctx, sourceID, payload, e.cfg.pollInterval, ReportTimeout)
}

package ngpas

import (
	"github.com/eposlink/ngenius-go/frame"
)

// Transaction types the gateway accepts in startTransaction payloads.
const (
	TxnTypeSale     = "eposSale"
	TxnTypeRefund   = "eposRefund"
	TxnTypeReversal = "eposReversal"
	TxnTypeReport   = "getReport"
)

// SalePayload builds a startTransaction payload for a sale. Amounts are the
// gateway's string-encoded minor units. A zero-value cashback is omitted.
func (cfg *ConnectionConfig) SalePayload(sourceID, amount, cashback string) frame.Frame {
	payload := cfg.basePayload(TxnTypeSale, sourceID)
	payload[frame.KeyAmount] = amount
	if cashback != "" && cashback != "0" {
		payload[frame.KeyCashback] = cashback
	}

	return payload
}

// RefundPayload builds a startTransaction payload for a refund.
func (cfg *ConnectionConfig) RefundPayload(sourceID, amount string) frame.Frame {
	payload := cfg.basePayload(TxnTypeRefund, sourceID)
	payload[frame.KeyAmount] = amount

	return payload
}

// ReversalPayload builds a startTransaction payload voiding the transaction
// previously run under origSourceID.
func (cfg *ConnectionConfig) ReversalPayload(sourceID, origSourceID, amount string) frame.Frame {
	payload := cfg.basePayload(TxnTypeReversal, sourceID)
	payload[frame.KeyAmount] = amount
	payload["origSourceid"] = origSourceID

	return payload
}

// ReportPayload builds a startTransaction payload requesting an X or Z report.
func (cfg *ConnectionConfig) ReportPayload(reportType string) frame.Frame {
	return frame.Frame{
		"type":       TxnTypeReport,
		"reportType": reportType,
	}
}

func (cfg *ConnectionConfig) basePayload(txnType, sourceID string) frame.Frame {
	payload := frame.Frame{
		"type":                txnType,
		frame.KeySourceIDWire: sourceID,
		frame.KeyCurrency:     cfg.currency,
	}
	if cfg.merchantID != "" {
		payload["mid"] = cfg.merchantID
	}
	if cfg.terminalID != "" {
		payload["tid"] = cfg.terminalID
	}

	return payload
}

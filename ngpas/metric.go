package ngpas

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// CmdSendCount indicates the number of command lines written to the gateway.
	CmdSendCount atomic.Uint64
	// FrameRecvCount indicates the number of reply frames read from the gateway.
	FrameRecvCount atomic.Uint64
	// TransportErrCount indicates the number of network-class exchange failures.
	TransportErrCount atomic.Uint64

	// ConnRetryGauge indicates the number of connect retries since the last
	// successful connect.
	ConnRetryGauge atomic.Uint32
	// SendRetryCount indicates the number of send attempts that were retried
	// after a forced disconnect.
	SendRetryCount atomic.Uint64

	// BusyBackoffCount indicates the number of busy (error 110) replies the
	// engine backed off on.
	BusyBackoffCount atomic.Uint64
	// TxnRunCount indicates the number of transaction lifecycles driven.
	TxnRunCount atomic.Uint64
}

func (m *ConnectionMetrics) incCmdSendCount() {
	m.CmdSendCount.Add(1)
}

func (m *ConnectionMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *ConnectionMetrics) incTransportErrCount() {
	m.TransportErrCount.Add(1)
}

func (m *ConnectionMetrics) incConnRetryGauge() {
	m.ConnRetryGauge.Add(1)
}

func (m *ConnectionMetrics) resetConnRetryGauge() {
	m.ConnRetryGauge.Store(0)
}

func (m *ConnectionMetrics) incSendRetryCount() {
	m.SendRetryCount.Add(1)
}

func (m *ConnectionMetrics) incBusyBackoffCount() {
	m.BusyBackoffCount.Add(1)
}

func (m *ConnectionMetrics) incTxnRunCount() {
	m.TxnRunCount.Add(1)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(rpcCalls.WithLabelValues("getblockcount", "ok"))
	RecordRPCCall("getblockcount", "ok", 12*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(rpcCalls.WithLabelValues("getblockcount", "ok")))

	before = testutil.ToFloat64(zmqEvents.WithLabelValues("hashtx"))
	RecordZMQEvent("hashtx")
	RecordZMQEvent("hashtx")
	assert.Equal(t, before+2, testutil.ToFloat64(zmqEvents.WithLabelValues("hashtx")))

	before = testutil.ToFloat64(pollSkips.WithLabelValues("core"))
	RecordPollSkip("core")
	assert.Equal(t, before+1, testutil.ToFloat64(pollSkips.WithLabelValues("core")))
}

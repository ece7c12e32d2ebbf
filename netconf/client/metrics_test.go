package client

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/testserver"
)

func TestMetricsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	trace, m, err := NewMetricsHooks(reg)
	assert.NoError(t, err)

	fs, dial := newFakeServer(t, serverHello, func(id uint32, req *anyRequest) string {
		if req.XMLName.Local == "lock" {
			return errorReply(id, common.ErrorTagLockDenied)
		}
		return okReply(id)
	})

	ctx := WithClientTrace(context.Background(), trace)
	s, err := NewRPCSessionWithDialer(ctx, "fake", dial, nil)
	assert.NoError(t, err)

	_, err = s.Execute(&common.CommitReq{})
	assert.NoError(t, err)
	_, err = s.Execute(&common.LockReq{Target: common.DsName(common.Candidate)})
	assert.Error(t, err)
	s.Close()
	fs.waitDone(t)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connects.WithLabelValues(OutcomeOk)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCs.WithLabelValues("commit", OutcomeOk)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCs.WithLabelValues("lock", OutcomeRPCError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCs.WithLabelValues("close-session", OutcomeOk)))
}

func TestMetricsHooksCountTransportBytes(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()

	reg := prometheus.NewRegistry()
	trace, m, err := NewMetricsHooks(reg)
	assert.NoError(t, err)

	ctx := WithClientTrace(context.Background(), trace)
	s, err := NewRPCSession(ctx, testSSHConfig(testserver.TestPassword), fmt.Sprintf("localhost:%d", ts.Port()))
	assert.NoError(t, err)
	_, err = s.Execute(&common.GetReq{})
	assert.NoError(t, err)
	s.Close()

	assert.True(t, testutil.ToFloat64(m.BytesWritten) > 0, "Expected bytes written to be counted")
	assert.True(t, testutil.ToFloat64(m.BytesRead) > 0, "Expected bytes read to be counted")
}

func TestMetricsHooksRegistrationFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, _, err := NewMetricsHooks(reg)
	assert.NoError(t, err)

	_, _, err = NewMetricsHooks(reg)
	assert.Error(t, err, "Expecting duplicate registration to fail")
}

package client

import (
	"context"
	"fmt"
	"sync"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/testserver"
)

func TestNewRPCSession(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()

	s, err := NewRPCSession(context.Background(), testSSHConfig(testserver.TestPassword), fmt.Sprintf("localhost:%d", ts.Port()))
	assert.NoError(t, err, "Not expecting session to fail")
	assert.Equal(t, Established, s.State())
	assert.Equal(t, ts.LastHandler().ID(), s.ID(), "Session id should match the server")
	assert.Contains(t, s.ServerCapabilities(), common.CapBase11)

	reply, err := s.Execute(&common.GetConfigReq{Source: common.DsName(common.Running)})
	assert.NoError(t, err)
	assert.Equal(t, "", reply.Data)

	s.Close()
	assert.Equal(t, Disconnected, s.State())
}

func TestNewRPCSessionWithBadCredentials(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()

	s, err := NewRPCSession(context.Background(), testSSHConfig("wrong"), fmt.Sprintf("localhost:%d", ts.Port()))
	assert.Error(t, err, "Expecting session to fail")
	assert.Nil(t, s)
}

func TestNewRPCSessionWithEOMFraming(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()

	cfg := &Config{DisableChunkedCodec: true}
	s, err := NewRPCSessionWithConfig(context.Background(), testSSHConfig(testserver.TestPassword), fmt.Sprintf("localhost:%d", ts.Port()), cfg)
	assert.NoError(t, err)
	defer s.Close()

	_, err = s.Execute(&common.GetReq{})
	assert.NoError(t, err)
	assert.Equal(t, 1, ts.LastHandler().ReqCount())
	assert.NotContains(t, ts.LastHandler().ClientHello.Capabilities, common.CapBase11)
}

func TestConcurrentExecution(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()

	s, err := NewRPCSession(context.Background(), testSSHConfig(testserver.TestPassword), fmt.Sprintf("localhost:%d", ts.Port()))
	assert.NoError(t, err)
	defer s.Close()

	const count = 20
	var wg sync.WaitGroup
	wg.Add(count)
	for i := 0; i < count; i++ {
		go func() {
			defer wg.Done()
			_, err := s.Execute(&common.GetReq{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint32(count+1), s.NextMessageID())
	assert.Equal(t, count, ts.LastHandler().ReqCount())
}

package client

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/damianoneill/ncclient/testutil"
)

var dftContext = context.Background()

func testSSHConfig(password string) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            "testUser",
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint: gosec
	}
}

func TestSuccessfulConnection(t *testing.T) {
	ts := testutil.NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	tr, err := newTransport(dftContext, ts.Port(), testSSHConfig("testPassword"))
	assert.NoError(t, err, "Not expecting new transport to fail")
	assert.NoError(t, tr.Close(), "Not expecting close to fail")
}

func TestFailingConnection(t *testing.T) {
	ts := testutil.NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	tr, err := newTransport(dftContext, ts.Port(), testSSHConfig("wrongPassword"))
	assert.Error(t, err, "Not expecting new transport to succeed")
	assert.Nil(t, tr, "Transport should not be defined")
}

func TestWriteRead(t *testing.T) {
	ts := testutil.NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	tr, err := newTransport(dftContext, ts.Port(), testSSHConfig("testPassword"))
	assert.NoError(t, err, "Not expecting new transport to fail")
	defer tr.Close()

	rdr := bufio.NewReader(tr)
	_, _ = tr.Write([]byte("Message\n"))
	response, _ := rdr.ReadString('\n')
	assert.Equal(t, "GOT:Message\n", response, "Failed to get expected response")
}

func TestTransportTrace(t *testing.T) {
	ts := testutil.NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	var mu sync.Mutex
	var traces []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		traces = append(traces, s)
	}
	trace := &ClientTrace{
		DialStart: func(clientConfig *ssh.ClientConfig, target string) {
			record(fmt.Sprintf("DialStart %s", target))
		},
		DialDone: func(clientConfig *ssh.ClientConfig, target string, err error, d time.Duration) {
			record(fmt.Sprintf("DialDone %s error:%v", target, err))
			assert.True(t, d > 0, "Duration should be defined")
		},
		ReadStart: func(p []byte) {
			record("ReadStart called")
		},
		ReadDone: func(p []byte, c int, err error, d time.Duration) {
			record(fmt.Sprintf("ReadDone %s %d %v", string(p[:c]), c, err))
		},
		WriteStart: func(p []byte) {
			record(fmt.Sprintf("WriteStart %s", p))
		},
		WriteDone: func(p []byte, c int, err error, d time.Duration) {
			record(fmt.Sprintf("WriteDone %s %d %v", string(p[:c]), c, err))
		},
	}

	ctx := WithClientTrace(context.Background(), trace)
	tr, err := newTransport(ctx, ts.Port(), testSSHConfig("testPassword"))
	assert.NoError(t, err)

	_, _ = tr.Write([]byte("Message\n"))
	_, _ = bufio.NewReader(tr).ReadString('\n')
	_ = tr.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, fmt.Sprintf("DialStart localhost:%d", ts.Port()), traces[0])
	assert.Equal(t, fmt.Sprintf("DialDone localhost:%d error:<nil>", ts.Port()), traces[1])
	assert.Equal(t, "WriteStart Message\n", traces[2])
	assert.Equal(t, "WriteDone Message\n 8 <nil>", traces[3])
	assert.Equal(t, "ReadStart called", traces[4])
	assert.Equal(t, "ReadDone GOT:Message\n 12 <nil>", traces[5])
}

func newTransport(ctx context.Context, port int, cfg *ssh.ClientConfig) (Transport, error) {
	target := fmt.Sprintf("localhost:%d", port)
	return NewSSHTransport(ctx, cfg, target, "netconf")
}

// Package testserver provides a netconf server, backed by an in-memory device, for use in tests.
package testserver

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/server/netconf"
	"github.com/damianoneill/ncclient/netconf/server/ssh"
)

// Defines credentials used for test sessions.
const (
	TestUserName = "testUser"
	TestPassword = "testPassword"
)

// TestNCServer represents a Netconf Server that can be used for 'on-board' testing.
// Requests are handled against a Device holding running, candidate and startup datastores,
// unless a RequestHandler has been queued with WithRequestHandler.
type TestNCServer struct {
	*netconf.Server
	device *Device
	tctx   assert.TestingT

	mu          sync.Mutex
	handlers    map[uint32]*SessionHandler
	lastSid     uint32
	reqHandlers []RequestHandler
	caps        []string
}

// NewTestNetconfServer creates a new TestNCServer that will accept Netconf localhost connections on an ephemeral port (available
// via Port(), with credentials defined by TestUserName and TestPassword.
// tctx will be used for handling failures; if the supplied value is nil, a default test context will be used.
func NewTestNetconfServer(tctx assert.TestingT) *TestNCServer {
	ncs := &TestNCServer{device: NewDevice(), handlers: make(map[uint32]*SessionHandler)}
	if tctx == nil {
		// Default test context to built-in implementation.
		tctx = ncs
	}
	ncs.tctx = tctx

	sshcfg, err := ssh.PasswordConfig(TestUserName, TestPassword)
	assert.NoError(tctx, err, "Failed to create ssh configuration")

	ncs.Server, err = netconf.NewServer(context.Background(), "localhost", 0, sshcfg, ncs.newFactory())
	assert.NoError(tctx, err, "Failed to start netconf server")
	return ncs
}

func (ncs *TestNCServer) newFactory() netconf.SessionFactory {
	return func(sh *netconf.SessionHandler) netconf.SessionCallback {
		ncs.mu.Lock()
		defer ncs.mu.Unlock()
		h := &SessionHandler{SessionHandler: sh, server: ncs, reqHandlers: ncs.reqHandlers}
		ncs.handlers[sh.ID()] = h
		ncs.lastSid = sh.ID()
		return h
	}
}

// WithRequestHandler queues a request handler for sessions that subsequently connect. Each queued
// handler serves one request; requests received once the queue is exhausted are handled by the device.
func (ncs *TestNCServer) WithRequestHandler(rh RequestHandler) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.reqHandlers = append(ncs.reqHandlers, rh)
	return ncs
}

// WithCapabilities define the capabilities that the server will advertise when a netconf client connects.
func (ncs *TestNCServer) WithCapabilities(caps []string) *TestNCServer {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	ncs.caps = caps
	return ncs
}

// WithRunningConfig loads cfg into the running and candidate datastores.
func (ncs *TestNCServer) WithRunningConfig(cfg string) *TestNCServer {
	for _, ds := range []common.Datastore{common.Running, common.Candidate} {
		assert.NoError(ncs.tctx, ncs.device.Load(ds, cfg), "Failed to load configuration")
	}
	return ncs
}

// Device delivers the device backing the server.
func (ncs *TestNCServer) Device() *Device {
	return ncs.device
}

func (ncs *TestNCServer) capabilities() []string {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	return ncs.caps
}

// LastHandler delivers the handler of the most recently connected session.
func (ncs *TestNCServer) LastHandler() *SessionHandler {
	ncs.mu.Lock()
	defer ncs.mu.Unlock()
	return ncs.handlers[ncs.lastSid]
}

// SessionHandler delivers the session handler associated with the specified session id.
// The handler remains available after the session has ended.
func (ncs *TestNCServer) SessionHandler(id uint32) *SessionHandler {
	ncs.mu.Lock()
	sh, ok := ncs.handlers[id]
	ncs.mu.Unlock()
	if !ok {
		ncs.tctx.Errorf("Failed to get handler for session %d", id)
		ncs.tctx.FailNow()
	}
	return sh
}

// Errorf provides testing.T compatibility if a test context is not provided when the test server is
// created.
func (ncs *TestNCServer) Errorf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// FailNow provides testing.T compatibility if a test context is not provided when the test server is
// created.
func (ncs *TestNCServer) FailNow() {
	runtime.Goexit()
}

// Package testutil provides an SSH server that echoes each line it receives, for transport tests.
package testutil

import (
	"bufio"
	"context"
	"fmt"

	assert "github.com/stretchr/testify/require"
	xssh "golang.org/x/crypto/ssh"

	"github.com/damianoneill/ncclient/netconf/server/ssh"
)

// SSHServer represents a test SSH Server.
type SSHServer struct {
	*ssh.Server
}

// NewSSHServer delivers a new test SSH Server listening on an ephemeral localhost port.
// The server implements password authentication with the given credentials, and replies to
// each line written to a channel with the line prefixed by "GOT:".
func NewSSHServer(t assert.TestingT, uname, password string) *SSHServer {
	cfg, err := ssh.PasswordConfig(uname, password)
	assert.NoError(t, err, "Failed to create ssh configuration")

	server, err := ssh.NewServer(context.Background(), "localhost", 0, cfg, func(*xssh.ServerConn) ssh.Handler {
		return echoHandler{}
	})
	assert.NoError(t, err, "Listen failed")
	return &SSHServer{Server: server}
}

type echoHandler struct{}

func (echoHandler) Handle(ch xssh.Channel) {
	chReader := bufio.NewReader(ch)
	chWriter := bufio.NewWriter(ch)
	for {
		input, err := chReader.ReadString('\n')
		if err != nil {
			return
		}
		if _, err = chWriter.WriteString(fmt.Sprintf("GOT:%s", input)); err != nil {
			return
		}
		if err = chWriter.Flush(); err != nil {
			return
		}
	}
}

package testutil

import (
	"bufio"
	"fmt"
	"testing"

	assert "github.com/stretchr/testify/require"
	xssh "golang.org/x/crypto/ssh"
)

func TestEcho(t *testing.T) {
	ts := NewSSHServer(t, "testUser", "testPassword")
	defer ts.Close()

	client, err := xssh.Dial("tcp", fmt.Sprintf("localhost:%d", ts.Port()), &xssh.ClientConfig{
		User:            "testUser",
		Auth:            []xssh.AuthMethod{xssh.Password("testPassword")},
		HostKeyCallback: xssh.InsecureIgnoreHostKey(), //nolint: gosec
	})
	assert.NoError(t, err, "Dial failed")
	defer client.Close()

	session, err := client.NewSession()
	assert.NoError(t, err, "New session failed")
	defer session.Close()

	stdin, err := session.StdinPipe()
	assert.NoError(t, err)
	stdout, err := session.StdoutPipe()
	assert.NoError(t, err)
	assert.NoError(t, session.RequestSubsystem("echo"), "Subsystem request should be accepted")

	_, err = stdin.Write([]byte("Message\n"))
	assert.NoError(t, err)
	response, err := bufio.NewReader(stdout).ReadString('\n')
	assert.NoError(t, err)
	assert.Equal(t, "GOT:Message\n", response)
}

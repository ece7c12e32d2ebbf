package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/testserver"
)

const hostnameConfig = `<system><hostname>r1</hostname></system>`

func execute(t *testing.T, ts *testserver.TestNCServer, args ...string) (string, error) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args,
		"--target", fmt.Sprintf("localhost:%d", ts.Port()),
		"--username", testserver.TestUserName,
		"--password", testserver.TestPassword,
		"--insecure"))
	err := root.Execute()
	return out.String(), err
}

func TestReadCommands(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithRunningConfig(hostnameConfig)
	defer ts.Close()

	out, err := execute(t, ts, "get-config")
	assert.NoError(t, err)
	assert.Equal(t, hostnameConfig+"\n", out)

	out, err = execute(t, ts, "get", "--subtree", "<system><hostname/></system>")
	assert.NoError(t, err)
	assert.Equal(t, hostnameConfig+"\n", out)

	out, err = execute(t, ts, "get-config", "--source", "candidate", "--xpath", "/system/hostname")
	assert.NoError(t, err)
	assert.Equal(t, hostnameConfig+"\n", out)

	out, err = execute(t, ts, "capabilities")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "session-id: "), out)
	assert.Contains(t, out, common.CapBase11)
}

func TestEditAndCommit(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithRunningConfig(hostnameConfig)
	defer ts.Close()

	out, err := execute(t, ts, "edit-config", "--datastore", "candidate", "--content", "<system><hostname>r2</hostname></system>")
	assert.NoError(t, err)
	assert.Equal(t, "ok\n", out)
	assert.Equal(t, hostnameConfig, ts.Device().Content(common.Running))

	out, err = execute(t, ts, "commit")
	assert.NoError(t, err)
	assert.Equal(t, "ok\n", out)
	assert.Equal(t, `<system><hostname>r2</hostname></system>`, ts.Device().Content(common.Running))

	_, err = execute(t, ts, "edit-config", "--datastore", "candidate", "--content", "<system><hostname>r3</hostname></system>")
	assert.NoError(t, err)
	_, err = execute(t, ts, "discard-changes")
	assert.NoError(t, err)
	assert.Equal(t, `<system><hostname>r2</hostname></system>`, ts.Device().Content(common.Candidate))
}

func TestDatastoreCommands(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t).WithRunningConfig(hostnameConfig)
	defer ts.Close()

	out, err := execute(t, ts, "copy-config", "--datastore", "startup", "--source", "running")
	assert.NoError(t, err)
	assert.Equal(t, "ok\n", out)
	assert.Equal(t, hostnameConfig, ts.Device().Content(common.Startup))

	_, err = execute(t, ts, "delete-config", "--datastore", "startup")
	assert.NoError(t, err)
	assert.Equal(t, "", ts.Device().Content(common.Startup))

	_, err = execute(t, ts, "delete-config", "--datastore", "running")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), string(common.ErrorTagOperationNotSupported))

	for _, cmd := range []string{"lock", "unlock"} {
		out, err = execute(t, ts, cmd, "--datastore", "candidate")
		if cmd == "unlock" {
			// The lock was released when the previous session ended.
			assert.Error(t, err)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, "ok\n", out)
	}

	out, err = execute(t, ts, "close-session")
	assert.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestInvalidArguments(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()

	tests := []struct {
		name string
		args []string
	}{
		{"UnknownDatastore", []string{"get-config", "--source", "scratch"}},
		{"BothFilters", []string{"get", "--subtree", "<a/>", "--xpath", "/a"}},
		{"BadNamespace", []string{"get", "--xpath", "/t:a", "--ns", "t"}},
		{"MissingConfig", []string{"edit-config"}},
		{"SourceAndConfig", []string{"copy-config", "--datastore", "startup", "--source", "running", "--content", "<a/>"}},
		{"BadSessionID", []string{"kill-session", "abc"}},
		{"UnknownSession", []string{"kill-session", "99"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, ts, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestSubcommandFlagsKeepRootFlagsVisible(t *testing.T) {
	root := newRootCmd()
	for _, cmd := range root.Commands() {
		cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
			assert.Nil(t, root.PersistentFlags().Lookup(f.Name), "%s --%s shadows a root flag", cmd.Name(), f.Name)
			if f.Shorthand != "" {
				assert.Nil(t, root.PersistentFlags().ShorthandLookup(f.Shorthand), "%s -%s shadows a root flag", cmd.Name(), f.Shorthand)
			}
		})
	}
}

func TestDeviceFlagsReachDatastoreCommands(t *testing.T) {
	ts := testserver.NewTestNetconfServer(t)
	defer ts.Close()

	out, err := execute(t, ts, "lock", "--datastore", "running")
	assert.NoError(t, err)
	assert.Equal(t, "ok\n", out)
	// lock followed by close-session
	assert.Equal(t, 2, ts.LastHandler().ReqCount())
}

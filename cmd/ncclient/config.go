package main

import (
	"net"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"gopkg.in/yaml.v2"

	"github.com/damianoneill/ncclient/netconf/client"
)

const defaultNetconfPort = "830"

// Config describes how to reach a device. Values are read from a YAML file, then from the
// environment, then from command line flags.
type Config struct {
	Target                string `yaml:"target,omitempty" env:"NCCLIENT_TARGET"`
	Username              string `yaml:"username,omitempty" env:"NCCLIENT_USERNAME"`
	Password              string `yaml:"password,omitempty" env:"NCCLIENT_PASSWORD"`
	KeyFile               string `yaml:"key-file,omitempty" env:"NCCLIENT_KEY_FILE"`
	KnownHosts            string `yaml:"known-hosts,omitempty" env:"NCCLIENT_KNOWN_HOSTS"`
	Insecure              bool   `yaml:"insecure,omitempty" env:"NCCLIENT_INSECURE"`
	SetupTimeoutSecs      int    `yaml:"setup-timeout-secs,omitempty" env:"NCCLIENT_SETUP_TIMEOUT_SECS"`
	DisableChunkedFraming bool   `yaml:"disable-chunked-framing,omitempty" env:"NCCLIENT_DISABLE_CHUNKED_FRAMING"`
}

func loadConfig(file string) (*Config, error) {
	c := new(Config)
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err = yaml.Unmarshal(b, c); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", file)
		}
	}
	// StrictDecode reports ErrInvalidTarget when no variable is set.
	if err := envdecode.StrictDecode(c); err != nil && err != envdecode.ErrInvalidTarget {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	return c, nil
}

func (c *Config) validateSetDefaults() error {
	if c.Target == "" {
		return errors.New("target is required")
	}
	if _, _, err := net.SplitHostPort(c.Target); err != nil {
		c.Target = net.JoinHostPort(c.Target, defaultNetconfPort)
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Password == "" && c.KeyFile == "" {
		return errors.New("one of password or key-file is required")
	}
	if c.SetupTimeoutSecs < 0 {
		return errors.Errorf("invalid setup timeout %d", c.SetupTimeoutSecs)
	}
	if !c.Insecure && c.KnownHosts == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "known-hosts not set")
		}
		c.KnownHosts = filepath.Join(home, ".ssh", "known_hosts")
	}
	return nil
}

func (c *Config) sshConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.KeyFile != "" {
		b, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(b)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", c.KeyFile)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint: gosec
	if !c.Insecure {
		var err error
		if hostKeyCallback, err = knownhosts.New(c.KnownHosts); err != nil {
			return nil, errors.Wrap(err, "failed to load known hosts")
		}
	}
	return &ssh.ClientConfig{User: c.Username, Auth: auth, HostKeyCallback: hostKeyCallback}, nil
}

func (c *Config) clientConfig() *client.Config {
	return &client.Config{
		SetupTimeoutSecs:    c.SetupTimeoutSecs,
		DisableChunkedCodec: c.DisableChunkedFraming,
	}
}

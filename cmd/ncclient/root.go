package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/damianoneill/ncclient/netconf/client"
	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/ops"
)

type app struct {
	configFile string
	debug      bool
	flags      Config
	cfg        *Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "ncclient",
		Short:        "issue NETCONF operations against a device",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsDevice(cmd) {
				return nil
			}
			return a.configure(cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "config file path")
	pf.StringVarP(&a.flags.Target, "target", "t", "", "device address, host[:port]")
	pf.StringVarP(&a.flags.Username, "username", "u", "", "ssh user name")
	pf.StringVarP(&a.flags.Password, "password", "p", "", "ssh password")
	pf.StringVar(&a.flags.KeyFile, "key-file", "", "ssh private key file")
	pf.StringVar(&a.flags.KnownHosts, "known-hosts", "", "known_hosts file used to verify the device host key")
	pf.BoolVar(&a.flags.Insecure, "insecure", false, "do not verify the device host key")
	pf.IntVar(&a.flags.SetupTimeoutSecs, "setup-timeout", 0, "seconds to wait for the server hello")
	pf.BoolVar(&a.flags.DisableChunkedFraming, "no-chunked", false, "keep end-of-message framing after hello")
	pf.BoolVarP(&a.debug, "debug", "d", false, "set log level to DEBUG")

	root.AddCommand(
		a.capabilitiesCmd(),
		a.getCmd(),
		a.getConfigCmd(),
		a.editConfigCmd(),
		a.copyConfigCmd(),
		a.deleteConfigCmd(),
		a.lockCmd(),
		a.unlockCmd(),
		a.commitCmd(),
		a.discardChangesCmd(),
		a.killSessionCmd(),
		a.closeSessionCmd(),
	)
	return root
}

func needsDevice(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return false
		}
	}
	return true
}

func (a *app) configure(flags *pflag.FlagSet) error {
	if a.debug {
		log.SetLevel(log.DebugLevel)
	}
	cfg, err := loadConfig(a.configFile)
	if err != nil {
		return err
	}
	applyFlags(flags, &a.flags, cfg)
	if err = cfg.validateSetDefaults(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// applyFlags copies the flags set on the command line from fc to cfg.
func applyFlags(flags *pflag.FlagSet, fc, cfg *Config) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "target":
			cfg.Target = fc.Target
		case "username":
			cfg.Username = fc.Username
		case "password":
			cfg.Password = fc.Password
		case "key-file":
			cfg.KeyFile = fc.KeyFile
		case "known-hosts":
			cfg.KnownHosts = fc.KnownHosts
		case "insecure":
			cfg.Insecure = fc.Insecure
		case "setup-timeout":
			cfg.SetupTimeoutSecs = fc.SetupTimeoutSecs
		case "no-chunked":
			cfg.DisableChunkedFraming = fc.DisableChunkedFraming
		}
	})
}

func (a *app) session(cmd *cobra.Command) (ops.OpSession, error) {
	sshcfg, err := a.cfg.sshConfig()
	if err != nil {
		return nil, err
	}
	hooks := client.DefaultLoggingHooks
	if a.debug {
		hooks = client.DiagnosticLoggingHooks
	}
	ctx := client.WithClientTrace(cmd.Context(), hooks)
	return ops.NewSessionWithConfig(ctx, sshcfg, a.cfg.Target, a.cfg.clientConfig())
}

// run executes op on a new session and prints the data of the reply, or ok.
func (a *app) run(cmd *cobra.Command, op func(s ops.OpSession) (*common.RPCReply, error)) error {
	s, err := a.session(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	reply, err := op(s)
	if err != nil {
		logRPCErrors(err)
		return err
	}
	if reply.Kind.ReturnsData() {
		fmt.Fprintln(cmd.OutOrStdout(), reply.Data)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func logRPCErrors(err error) {
	var rpcErrs *common.RPCErrors
	if !errors.As(err, &rpcErrs) {
		return
	}
	for _, e := range rpcErrs.Errors {
		log.WithFields(log.Fields{
			"type":     e.Type,
			"tag":      e.Tag,
			"severity": e.Severity,
			"path":     e.Path,
		}).Error(e.Message)
	}
}

// readContent delivers the value of a content argument: "-" reads standard input, "@file" reads file,
// anything else is taken literally.
func readContent(cmd *cobra.Command, arg string) (string, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(arg[1:])
		return string(b), err
	default:
		return arg, nil
	}
}

func parseDatastore(name string) (common.Datastore, error) {
	switch ds := common.Datastore(name); ds {
	case common.Running, common.Candidate, common.Startup:
		return ds, nil
	default:
		return "", errors.Errorf("unknown datastore %q", name)
	}
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/damianoneill/ncclient/netconf/common"
	"github.com/damianoneill/ncclient/netconf/ops"
)

type filterFlags struct {
	subtree    string
	xpath      string
	namespaces []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.subtree, "subtree", "", "subtree filter (literal, @file or -)")
	cmd.Flags().StringVar(&f.xpath, "xpath", "", "xpath filter expression")
	cmd.Flags().StringSliceVar(&f.namespaces, "ns", nil, "namespace used by the xpath filter, prefix=uri")
}

func (f *filterFlags) filter(cmd *cobra.Command) (*common.Filter, error) {
	nslist := make([]ops.Namespace, 0, len(f.namespaces))
	for _, ns := range f.namespaces {
		parts := strings.SplitN(ns, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Errorf("invalid namespace %q, expecting prefix=uri", ns)
		}
		nslist = append(nslist, ops.Namespace{ID: parts[0], Path: parts[1]})
	}

	switch {
	case f.subtree != "" && f.xpath != "":
		return nil, errors.New("only one of subtree and xpath may be given")
	case f.xpath != "":
		return ops.XPathFilter(f.xpath, nslist...), nil
	case f.subtree != "":
		body, err := readContent(cmd, f.subtree)
		if err != nil {
			return nil, err
		}
		return ops.SubtreeFilter(body, nslist...), nil
	}
	return nil, nil
}

func (a *app) capabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "print the session id and capabilities advertised by the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "session-id: %d\n", s.ID())
			for _, c := range s.ServerCapabilities() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	f := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "get",
		Short: "retrieve running configuration and state data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.filter(cmd)
			if err != nil {
				return err
			}
			return a.run(cmd, func(s ops.OpSession) (*common.RPCReply, error) {
				return s.Get(filter)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) getConfigCmd() *cobra.Command {
	f := &filterFlags{}
	var source string
	cmd := &cobra.Command{
		Use:   "get-config",
		Short: "retrieve all or part of a configuration datastore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := parseDatastore(source)
			if err != nil {
				return err
			}
			filter, err := f.filter(cmd)
			if err != nil {
				return err
			}
			return a.run(cmd, func(s ops.OpSession) (*common.RPCReply, error) {
				return s.GetConfig(ds, filter)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", string(common.Running), "datastore to read")
	f.register(cmd)
	return cmd
}

func (a *app) editConfigCmd() *cobra.Command {
	var datastore, content, defaultOp, testOpt, errorOpt string
	cmd := &cobra.Command{
		Use:   "edit-config",
		Short: "load all or part of a configuration into a datastore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := parseDatastore(datastore)
			if err != nil {
				return err
			}
			body, err := readContent(cmd, content)
			if err != nil {
				return err
			}
			var options []ops.EditOption
			if defaultOp != "" {
				options = append(options, ops.DefaultOperation(common.DefaultOperation(defaultOp)))
			}
			if testOpt != "" {
				options = append(options, ops.TestOption(common.TestOption(testOpt)))
			}
			if errorOpt != "" {
				options = append(options, ops.ErrorOption(common.ErrorOption(errorOpt)))
			}
			return a.run(cmd, func(s ops.OpSession) (*common.RPCReply, error) {
				return s.EditConfig(ds, body, options...)
			})
		},
	}
	cmd.Flags().StringVar(&datastore, "datastore", string(common.Running), "datastore to edit")
	cmd.Flags().StringVar(&content, "content", "", "configuration to load (literal, @file or -)")
	cmd.Flags().StringVar(&defaultOp, "default-operation", "", "merge, replace or none")
	cmd.Flags().StringVar(&testOpt, "test-option", "", "test-then-set, set or test-only")
	cmd.Flags().StringVar(&errorOpt, "error-option", "", "stop-on-error, continue-on-error or rollback-on-error")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func (a *app) copyConfigCmd() *cobra.Command {
	var datastore, source, content string
	cmd := &cobra.Command{
		Use:   "copy-config",
		Short: "replace a datastore with the contents of another datastore or an inline configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := parseDatastore(datastore)
			if err != nil {
				return err
			}
			var src *common.ConfigType
			switch {
			case source != "" && content != "":
				return errors.New("only one of source and content may be given")
			case content != "":
				body, err := readContent(cmd, content)
				if err != nil {
					return err
				}
				src = common.InlineConfig(body)
			default:
				sds, err := parseDatastore(source)
				if err != nil {
					return err
				}
				src = common.DsName(sds)
			}
			return a.run(cmd, func(s ops.OpSession) (*common.RPCReply, error) {
				return s.CopyConfig(ds, src)
			})
		},
	}
	cmd.Flags().StringVar(&datastore, "datastore", "", "datastore to replace")
	cmd.Flags().StringVar(&source, "source", "", "datastore to copy from")
	cmd.Flags().StringVar(&content, "content", "", "inline configuration to copy (literal, @file or -)")
	_ = cmd.MarkFlagRequired("datastore")
	return cmd
}

func (a *app) deleteConfigCmd() *cobra.Command {
	return a.datastoreCmd("delete-config", "delete a configuration datastore", "", func(s ops.OpSession, ds common.Datastore) (*common.RPCReply, error) {
		return s.DeleteConfig(ds)
	})
}

func (a *app) lockCmd() *cobra.Command {
	return a.datastoreCmd("lock", "lock a configuration datastore", string(common.Running), func(s ops.OpSession, ds common.Datastore) (*common.RPCReply, error) {
		return s.Lock(ds)
	})
}

func (a *app) unlockCmd() *cobra.Command {
	return a.datastoreCmd("unlock", "release a configuration datastore lock", string(common.Running), func(s ops.OpSession, ds common.Datastore) (*common.RPCReply, error) {
		return s.Unlock(ds)
	})
}

// datastoreCmd builds a command whose only parameter is a datastore.
func (a *app) datastoreCmd(use, short, dflt string, op func(s ops.OpSession, ds common.Datastore) (*common.RPCReply, error)) *cobra.Command {
	var datastore string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := parseDatastore(datastore)
			if err != nil {
				return err
			}
			return a.run(cmd, func(s ops.OpSession) (*common.RPCReply, error) {
				return op(s, ds)
			})
		},
	}
	cmd.Flags().StringVar(&datastore, "datastore", dflt, "datastore to operate on")
	if dflt == "" {
		_ = cmd.MarkFlagRequired("datastore")
	}
	return cmd
}

func (a *app) commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "commit the candidate configuration to running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s ops.OpSession) (*common.RPCReply, error) {
				return s.Commit()
			})
		},
	}
}

func (a *app) discardChangesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard-changes",
		Short: "revert the candidate configuration to running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s ops.OpSession) (*common.RPCReply, error) {
				return s.DiscardChanges()
			})
		},
	}
}

func (a *app) killSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill-session SESSION-ID",
		Short: "force the termination of another session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return errors.Errorf("invalid session id %q", args[0])
			}
			return a.run(cmd, func(s ops.OpSession) (*common.RPCReply, error) {
				return s.KillSession(uint32(id))
			})
		},
	}
}

func (a *app) closeSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close-session",
		Short: "open a session and close it gracefully",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s ops.OpSession) (*common.RPCReply, error) {
				return s.CloseSession()
			})
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/forbearing/kvboot/config"
	"github.com/forbearing/kvboot/descriptor"
	"github.com/forbearing/kvboot/helper"
	"github.com/forbearing/kvboot/status"
	"github.com/forbearing/kvboot/types"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newRootCommand(os.Getenv).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(getenv func(string) string) *cobra.Command {
	cfg := config.Default()
	envErr := config.LoadEnv(&cfg, getenv)

	root := &cobra.Command{
		Use:          "kvboot",
		Short:        "Provision and inspect Scalaris key-value cluster nodes",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			return config.SetupLogger(cfg.Log)
		},
	}
	config.BindLogFlags(root.PersistentFlags(), &cfg.Log)

	newHelper := func() *helper.Helper {
		return helper.New(descriptor.New(cfg.Descriptor), status.NewClient(cfg.Status, nil))
	}

	root.AddCommand(
		newDescribeCommand(&cfg, newHelper),
		newStatusCommand(&cfg, newHelper),
		newRemoveCommand(newHelper),
		newNodeCommand(&cfg),
	)
	return root
}

func newDescribeCommand(cfg *config.Config, newHelper func() *helper.Helper) *cobra.Command {
	describe := &cobra.Command{
		Use:   "describe",
		Short: "Render the boot descriptor for a new node",
	}
	config.BindDescriptorFlags(describe.PersistentFlags(), cfg)

	master := &cobra.Command{
		Use:   "master",
		Short: "Descriptor for the node hosting the management server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newHelper().BuildMasterDescriptor(cfg.Image)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), d)
			return err
		},
	}

	var coordinator string
	slave := &cobra.Command{
		Use:   "slave [peer-ip...]",
		Short: "Descriptor for a node joining through the management server",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newHelper().BuildSlaveDescriptor(cfg.Image, args, coordinator)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), d)
			return err
		},
	}
	slave.Flags().StringVarP(&coordinator, "coordinator", "c", "", "Management server (head node) IP")
	slave.MarkFlagRequired("coordinator")

	describe.AddCommand(master, slave)
	return describe
}

func newStatusCommand(cfg *config.Config, newHelper func() *helper.Helper) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status <node-info|node-performance|service-info|service-performance> [ref]",
		Short: "Query a running node",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := status.ParseQueryKind(args[0])
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 2 {
				ref = args[1]
			}

			h := newHelper()
			var res types.StatusResult
			switch kind {
			case status.NodeInfo:
				res, err = h.GetNodeInfo(cmd.Context(), ref)
			case status.NodePerformance:
				res, err = h.GetNodePerformance(cmd.Context(), ref)
			case status.ServiceInfo:
				res, err = h.GetServiceInfo(cmd.Context(), ref)
			case status.ServicePerformance:
				res, err = h.GetServicePerformance(cmd.Context(), ref)
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), format, res)
		},
	}
	config.BindStatusFlags(cmd.Flags(), &cfg.Status)
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml)")
	return cmd
}

func printResult(w io.Writer, format string, res types.StatusResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(res)
	default:
		return fmt.Errorf("unknown format %q, want json or yaml", format)
	}
}

func newRemoveCommand(newHelper func() *helper.Helper) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <count> <instance>",
		Short: "Remove nodes from a service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			return newHelper().Remove(count, args[1])
		},
	}
}

func newNodeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node <raft-dir>",
		Short: "Run a cluster node booted from descriptor values",
		Long: `Run a cluster node. The first node (--first or SCALARIS_FIRST=true)
bootstraps a new ring; every other node joins through the management
server and known hosts taken from SCALARIS_MGMT_SERVER and
SCALARIS_KNOWN_HOSTS.

The HTTP endpoint (--haddr) listens on all interfaces by default. The raft
address (--raddr) is advertised to the other VMs and defaults to
localhost:14195, so every node of a multi-VM ring must set it to an address
its peers can reach, e.g. --raddr 10.0.0.2:14195.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(*cfg, args[0])
		},
	}
	config.BindNodeFlags(cmd.Flags(), &cfg.Node)
	cmd.Flags().StringVar(&cfg.Status.Path, "rpc-path", cfg.Status.Path, "Path the JSON-RPC status endpoint is served on")
	return cmd
}

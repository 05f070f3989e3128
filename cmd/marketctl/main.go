package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd(bootstrap).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open runtimeFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "marketctl",
		Short:         "Operator tooling for the marketplace backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(verifySessionCmd(open))
	root.AddCommand(connectStoreCmd(open))
	root.AddCommand(pendingOrdersCmd(open))
	return root
}

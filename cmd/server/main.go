package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd returns the root command of the event router.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "eventrouter",
		Short:         "Transform learning events to Caliper and xAPI and route them",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml); environment overrides use the ER_ prefix")

	root.AddCommand(newServeCmd())
	root.AddCommand(newTransformCmd())
	root.AddCommand(newRoutersCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "assistant",
		Short:         "Customer-support assistant with knowledge-base answers and human hand-off",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file to seed the environment from")

	cmd.AddCommand(newServeCommand(&envFile))
	cmd.AddCommand(newAskCommand(&envFile))
	cmd.AddCommand(newSearchCommand(&envFile))
	return cmd
}

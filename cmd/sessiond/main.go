package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	statusFlags := &StatusFlags{}

	root := &cobra.Command{
		Use:           "sessiond",
		Short:         "Process supervisor for a remote-desktop session host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "path to TOML config file")

	root.AddCommand(
		createRunCommand(globalFlags),
		createStatusCommand(statusFlags),
		createVersionCommand(),
	)
	return root
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sessiond version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("sessiond " + version)
		},
	}
}

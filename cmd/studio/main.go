package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var buildVersion = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var apiBase string
	root := &cobra.Command{
		Use:           "studio",
		Short:         "Manage create.xyz projects from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", "", "API base URL (default from config or http://localhost:4000)")

	app := &cliApp{apiBase: &apiBase, out: root.OutOrStdout}
	root.AddCommand(
		app.loginCmd(),
		app.logoutCmd(),
		app.whoamiCmd(),
		app.projectsCmd(),
		app.filesCmd(),
		app.deployCmd(),
		app.exportCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "studio %s\n", buildVersion)
			},
		},
	)
	return root
}

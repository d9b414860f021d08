package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"appforge/pkg/version"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "appforge %s\n", version.Version)
			fmt.Fprintf(a.stdout, "  commit: %s\n", version.Commit)
			fmt.Fprintf(a.stdout, "  built:  %s\n", version.Date)
		},
	}
}

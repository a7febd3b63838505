// Command lexes runs the lexes HTTP server and its database migrations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lexes",
		Short:         "Microblog server: accounts, sessions, follows and lexes",
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

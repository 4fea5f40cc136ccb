// Package cmd implements the bixctl command tree.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8080"

// NewRootCmd builds the bixctl command tree.
func NewRootCmd(version, buildDate string) *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "bixctl",
		Short:         "Bix command-line client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serverURL := defaultServerURL
	if v, ok := os.LookupEnv("BIX_SERVER_URL"); ok && v != "" {
		serverURL = v
	}

	flags := root.PersistentFlags()
	flags.StringVar(&e.serverURL, "server", serverURL, "Server base URL (env BIX_SERVER_URL)")
	flags.StringVar(&e.dataDir, "data-dir", defaultDataDir(), "Directory for local session data and logs (env BIX_DATA_DIR)")
	flags.DurationVar(&e.timeout, "timeout", 15*time.Second, "How long to wait for the backend")
	flags.BoolVar(&e.verbose, "verbose", false, "Write debug entries to the log file")

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(newSessionCmd(e))
	root.AddCommand(newLoginCmd(e))
	root.AddCommand(newSignupCmd(e))
	root.AddCommand(newGuestCmd(e))
	root.AddCommand(newLogoutCmd(e))
	root.AddCommand(newFeedCmd(e))
	root.AddCommand(newSearchCmd(e))
	root.AddCommand(newDiscoverCmd(e))
	root.AddCommand(newProfileCmd(e))
	root.AddCommand(newUploadCmd(e))
	root.AddCommand(newInboxCmd(e))
	root.AddCommand(newSendCmd(e))
	return root
}

func newVersionCmd(version, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bixctl %s (%s)\n", version, buildDate)
		},
	}
}

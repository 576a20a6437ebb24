package cli

import (
	"log/slog"
	"os"

	"github.com/me/ksched/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking KSCHED_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("KSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8090"
}

// NewRootCmd creates the root cobra command for the ksched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ksched",
		Short: "ksched: priority scheduler simulator",
		Long:  "ksched plays scheduling scenarios on a simulated SMP machine and inspects the stored traces.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			if err := logging.CheckLevel(flagLogLevel); err != nil {
				return err
			}
			if err := logging.CheckFormat(flagLogFormat); err != nil {
				return err
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "kschedd server URL (or KSCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSimulateCmd(),
		newSubmitCmd(),
		newRunsCmd(),
		newEventsCmd(),
		newThreadsCmd(),
		newDeleteCmd(),
	)

	return root
}

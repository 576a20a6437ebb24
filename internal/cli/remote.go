package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/me/ksched/pkg/model"
	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <scenario.yaml>",
		Short: "Simulate a scenario on the server and store the run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read scenario: %w", err)
			}
			contentType := "application/yaml"
			if strings.EqualFold(filepath.Ext(args[0]), ".json") {
				contentType = "application/json"
			}

			logger.Info("submitting scenario", "path", args[0], "bytes", len(data))
			resp, err := client.Post("/api/v1/runs/", contentType, data)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			var run model.Run
			if err := resp.decode(&run); err != nil {
				return err
			}
			printRunSummary(cmd.OutOrStdout(), &run)
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			resp, err := client.Get("/api/v1/runs/?" + q.Encode())
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			var runs []model.Run
			if err := resp.decode(&runs); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}
			printRuns(out, runs)
			printPageFooter(out, len(runs), resp.Pagination)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	return cmd
}

func newEventsCmd() *cobra.Command {
	var cpu, limit, offset int

	cmd := &cobra.Command{
		Use:   "events <run_id>",
		Short: "Print a run's scheduling trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			if cmd.Flags().Changed("cpu") {
				q.Set("cpu", strconv.Itoa(cpu))
			}
			resp, err := client.Get("/api/v1/runs/" + url.PathEscape(args[0]) + "/events?" + q.Encode())
			if err != nil {
				return fmt.Errorf("get events: %w", err)
			}

			var events []model.TraceEvent
			if err := resp.decode(&events); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printTrace(out, events)
			printPageFooter(out, len(events), resp.Pagination)
			return nil
		},
	}

	cmd.Flags().IntVar(&cpu, "cpu", 0, "Only show decisions taken on this CPU")
	cmd.Flags().IntVar(&limit, "limit", 1000, "Maximum events to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "Events to skip")
	return cmd
}

func newThreadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threads <run_id>",
		Short: "Print a run's per-thread statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/runs/" + url.PathEscape(args[0]) + "/threads")
			if err != nil {
				return fmt.Errorf("get threads: %w", err)
			}
			var threads []model.ThreadSummary
			if err := resp.decode(&threads); err != nil {
				return err
			}
			printThreads(cmd.OutOrStdout(), threads)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run_id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete("/api/v1/runs/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

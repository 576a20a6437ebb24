package cli

import (
	"fmt"

	"github.com/me/ksched/internal/config"
	"github.com/me/ksched/internal/scenario"
	"github.com/me/ksched/internal/sim"
	"github.com/me/ksched/internal/store"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var (
		showTrace   bool
		showThreads bool
		dbPath      string
		cpus        int
		timeSlice   int
		maxSteps    int
		noDebug     bool
	)

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a scenario locally and print the outcome",
		Long: "Play a scenario file on a simulated machine. Flags set the machine defaults;\n" +
			"settings in the scenario file take precedence.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			cfg := config.DefaultSimConfig()
			if cpus > 0 {
				cfg.CPUs = cpus
			}
			if timeSlice > 0 {
				cfg.TimeSlice = timeSlice
			}
			cfg.MaxSteps = maxSteps
			cfg.Debug = !noDebug

			res, err := sim.New(cfg, logger).Run(cmd.Context(), sc)
			if err != nil {
				return fmt.Errorf("simulate %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			printRunSummary(out, &res.Run)
			if showThreads {
				fmt.Fprintln(out)
				printThreads(out, res.Threads)
			}
			if showTrace {
				fmt.Fprintln(out)
				printTrace(out, res.Events)
			}

			if dbPath == "" {
				return nil
			}
			st, err := store.NewSQLiteStore(dbPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate %s: %w", dbPath, err)
			}
			if err := st.SaveRun(cmd.Context(), &res.Run, res.Events, res.Threads); err != nil {
				return fmt.Errorf("save run: %w", err)
			}
			fmt.Fprintf(out, "\nSaved %s to %s\n", res.Run.ID, dbPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print every scheduling decision")
	cmd.Flags().BoolVar(&showThreads, "threads", true, "Print per-thread statistics")
	cmd.Flags().StringVar(&dbPath, "db", "", "Store the run in this SQLite database")
	cmd.Flags().IntVar(&cpus, "cpus", 0, "Simulated CPUs (default: host CPU count)")
	cmd.Flags().IntVar(&timeSlice, "time-slice", 0, "Quantum in ticks (default 5)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", config.DefaultSimConfig().MaxSteps, "Abort after this many steps (0 = unlimited)")
	cmd.Flags().BoolVar(&noDebug, "no-checks", false, "Disable scheduler debug assertions")

	return cmd
}

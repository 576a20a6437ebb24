package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/ksched/pkg/model"
)

func printRunSummary(w io.Writer, run *model.Run) {
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "  Scenario:   %s\n", run.Name)
	fmt.Fprintf(w, "  CPUs:       %d\n", run.CPUs)
	fmt.Fprintf(w, "  Time slice: %d ticks\n", run.TimeSlice)
	fmt.Fprintf(w, "  Steps:      %s\n", humanize.Comma(int64(run.Steps)))
	fmt.Fprintf(w, "  Switches:   %s\n", humanize.Comma(int64(run.Switches)))
	fmt.Fprintf(w, "  Signals:    %s\n", humanize.Comma(int64(run.Signals)))
	fmt.Fprintf(w, "  Duration:   %s\n", run.Duration.Round(time.Microsecond))
}

func printRuns(w io.Writer, runs []model.Run) {
	fmt.Fprintf(w, "%-40s  %-20s  %4s  %10s  %10s  %s\n", "ID", "SCENARIO", "CPUS", "STEPS", "SWITCHES", "CREATED")
	fmt.Fprintf(w, "%-40s  %-20s  %4s  %10s  %10s  %s\n", "--", "--------", "----", "-----", "--------", "-------")
	for _, run := range runs {
		fmt.Fprintf(w, "%-40s  %-20s  %4d  %10s  %10s  %s\n",
			run.ID, run.Name, run.CPUs,
			humanize.Comma(int64(run.Steps)), humanize.Comma(int64(run.Switches)),
			humanize.Time(run.CreatedAt))
	}
}

func printTrace(w io.Writer, events []model.TraceEvent) {
	fmt.Fprintf(w, "%6s  %5s  %3s  %-12s  %-16s  %-16s  %4s  %5s  %s\n",
		"SEQ", "STEP", "CPU", "OP", "THREAD", "NEXT", "PRIO", "BOOST", "DETAIL")
	for _, ev := range events {
		fmt.Fprintf(w, "%6d  %5d  %3d  %-12s  %-16s  %-16s  %4d  %+5d  %s\n",
			ev.Seq, ev.Step, ev.CPU, ev.Op, ev.Thread, orDash(ev.Next), ev.Priority, ev.Boost, ev.Detail)
	}
}

func printThreads(w io.Writer, threads []model.ThreadSummary) {
	fmt.Fprintf(w, "%-16s  %4s  %5s  %-10s  %6s  %4s  %10s  %10s\n",
		"THREAD", "BASE", "BOOST", "STATE", "PINNED", "LAST", "DISPATCHES", "TICKS")
	for _, ts := range threads {
		fmt.Fprintf(w, "%-16s  %4d  %+5d  %-10s  %6s  %4s  %10s  %10s\n",
			ts.Name, ts.BasePriority, ts.Boost, ts.State,
			cpuString(ts.PinnedCPU), cpuString(ts.LastCPU),
			humanize.Comma(int64(ts.Dispatches)), humanize.Comma(int64(ts.TicksRun)))
	}
}

func printPageFooter(w io.Writer, shown int, pg *model.Pagination) {
	if pg != nil && pg.HasMore {
		fmt.Fprintf(w, "\n(%d of %s shown)\n", shown, humanize.Comma(int64(pg.Total)))
	}
}

func cpuString(c model.CPUNum) string {
	if c == model.NoCPU {
		return "-"
	}
	return strconv.Itoa(int(c))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

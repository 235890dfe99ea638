package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
)

// inspectCmd is a read-only debugging aid: it reports PID, uptime, and RSS
// for each PID given on the command line, or for every running process
// named "java" if none are given. It never informs
// the monitor loop's decisions; it exists purely for an operator to eyeball
// a running launcher from another shell.
var inspectCmd = &cobra.Command{
	Use:   "inspect [pid...]",
	Short: "Report PID, uptime, and RSS for running component processes",
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	pids, err := resolvePIDs(args)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tUPTIME\tRSS")
	for _, pid := range pids {
		p, err := process.NewProcess(pid)
		if err != nil {
			fmt.Fprintf(w, "%d\t-\t- (%v)\n", pid, err)
			continue
		}
		createMs, err := p.CreateTime()
		uptime := "-"
		if err == nil {
			uptime = time.Since(time.UnixMilli(createMs)).Truncate(time.Second).String()
		}
		rss := "-"
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			rss = fmt.Sprintf("%d MB", mem.RSS/1024/1024)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", pid, uptime, rss)
	}
	return w.Flush()
}

func resolvePIDs(args []string) ([]int32, error) {
	var pids []int32
	for _, a := range args {
		var pid int
		if _, err := fmt.Sscanf(a, "%d", &pid); err != nil {
			return nil, fmt.Errorf("inspect: invalid pid %q", a)
		}
		pids = append(pids, int32(pid))
	}
	if len(pids) > 0 {
		return pids, nil
	}
	return allJavaPIDs()
}

func allJavaPIDs() ([]int32, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("inspect: list processes: %w", err)
	}
	var pids []int32
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name != "java" {
			continue
		}
		pids = append(pids, p.Pid)
	}
	return pids, nil
}

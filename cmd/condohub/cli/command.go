// Package cli implements the operator subcommands of the condohub binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hibiken/asynq"

	"github.com/condohub/condohub/jobs"
)

// ErrUsage reports an unknown or incomplete subcommand.
var ErrUsage = errors.New("usage: condohub jobs <list|trigger <task>|stats>")

// Jobs is the job management surface used by Run.
type Jobs interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	InspectQueues(ctx context.Context) ([]QueueStats, error)
}

// Run executes "jobs" subcommands and writes human readable output.
func Run(ctx context.Context, args []string, j Jobs, out io.Writer) error {
	if len(args) < 2 || args[0] != "jobs" {
		return ErrUsage
	}
	switch args[1] {
	case "list":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TASK\tSCHEDULE")
		for _, job := range jobs.Schedule() {
			spec := job.Spec
			if spec == "" {
				spec = "manual"
			}
			fmt.Fprintf(tw, "%s\t%s\n", job.Type, spec)
		}
		return tw.Flush()
	case "trigger":
		if len(args) < 3 {
			return ErrUsage
		}
		info, err := j.Trigger(ctx, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := j.InspectQueues(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tFAILED")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Failed)
		}
		return tw.Flush()
	default:
		return ErrUsage
	}
}

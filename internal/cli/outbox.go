package cli

import (
	"fmt"
	"text/tabwriter"

	"renthaus/internal/models"

	"github.com/spf13/cobra"
)

func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and requeue failed notification tasks",
	}
	cmd.AddCommand(newOutboxListCommand(rootOpts))
	cmd.AddCommand(newOutboxRequeueCommand(rootOpts))
	return cmd
}

func newOutboxListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List tasks that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment()
			if err != nil {
				return err
			}
			tasks, err := env.Store.GetFailedOutboxTasks(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput() {
				if tasks == nil {
					tasks = []models.OutboxTask{}
				}
				return opts.printJSON(out, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "no failed tasks")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tORDER\tRETRIES\tLAST ERROR")
			for _, t := range tasks {
				lastErr := ""
				if t.LastError != nil {
					lastErr = *t.LastError
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.TaskType, t.AggregateID, t.RetryCount, lastErr)
			}
			return tw.Flush()
		},
	}
}

func newOutboxRequeueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue",
		Short: "Move every failed task back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment()
			if err != nil {
				return err
			}
			n, err := env.Store.RequeueFailedOutboxTasks(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), map[string]int{"requeued": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d tasks\n", n)
			return nil
		},
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dreamware/xvoid/internal/cluster"
)

const defaultCoordinator = "http://localhost:4000"

type rootOptions struct {
	coordinator string
	timeout     time.Duration
	json        bool
}

func (o *rootOptions) endpoint(path string) string {
	return strings.TrimRight(o.coordinator, "/") + path
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	coordinator := os.Getenv("XVOID_COORDINATOR_URL")
	if coordinator == "" {
		coordinator = defaultCoordinator
	}

	cmd := &cobra.Command{
		Use:           "xvoidctl",
		Short:         "Operate an xvoid coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.coordinator, "coordinator", coordinator, "coordinator base URL (env XVOID_COORDINATOR_URL)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "per-request timeout")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON")

	cmd.AddCommand(submitCmd(opts))
	cmd.AddCommand(statusCmd(opts))
	cmd.AddCommand(nodesCmd(opts))
	return cmd
}

func submitCmd(opts *rootOptions) *cobra.Command {
	var (
		req      cluster.SubmitRequest
		wait     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a fragmented transfer",
		Long: `Submit a transfer to the coordinator. The amount is in minimal units and is
split into fragments according to the privacy level (low, medium or high).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd)
			var resp cluster.SubmitResponse
			err := cluster.PostJSON(ctx, opts.endpoint("/submit"), req, &resp)
			cancel()
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.json {
				if err := printJSON(out, resp); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Tracking ID: %s\n", resp.TrackingID)
				fmt.Fprintf(out, "Fragments:   %d\n", resp.Fragments)
			}
			if !wait {
				return nil
			}

			summary, err := waitTerminal(cmd.Context(), opts, resp.TrackingID, interval)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(out, summary)
			}
			printSummary(out, summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Recipient, "recipient", "", "destination address")
	cmd.Flags().Int64Var(&req.Amount, "amount", 0, "amount in minimal units")
	cmd.Flags().StringVar(&req.PrivacyLevel, "privacy", string(cluster.TierMedium), "privacy level: low, medium or high")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the transfer completes or fails")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval for --wait")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// waitTerminal polls the task status until it is terminal or ctx ends.
func waitTerminal(ctx context.Context, opts *rootOptions, trackingID string, interval time.Duration) (cluster.TaskStatusSummary, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		summary, err := fetchStatus(ctx, opts, trackingID)
		if err != nil {
			return summary, err
		}
		if summary.Terminal() {
			return summary, nil
		}
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		case <-ticker.C:
		}
	}
}

func fetchStatus(ctx context.Context, opts *rootOptions, trackingID string) (cluster.TaskStatusSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	var summary cluster.TaskStatusSummary
	err := cluster.GetJSON(ctx, opts.endpoint("/tasks/"+url.PathEscape(trackingID)+"/status"), &summary)
	if err != nil {
		return summary, fmt.Errorf("status %s: %w", trackingID, err)
	}
	return summary, nil
}

func statusCmd(opts *rootOptions) *cobra.Command {
	var fragments bool

	cmd := &cobra.Command{
		Use:   "status <trackingId>",
		Short: "Show the status of a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !fragments {
				summary, err := fetchStatus(cmd.Context(), opts, args[0])
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(out, summary)
				}
				printSummary(out, summary)
				return nil
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()
			var task cluster.Task
			if err := cluster.GetJSON(ctx, opts.endpoint("/tasks/"+url.PathEscape(args[0])), &task); err != nil {
				return fmt.Errorf("task %s: %w", args[0], err)
			}
			if opts.json {
				return printJSON(out, task)
			}
			printTask(out, &task)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fragments, "fragments", false, "list every fragment")
	return cmd
}

func nodesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List registered worker nodes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			var nodes []cluster.NodeView
			if err := cluster.GetJSON(ctx, opts.endpoint("/nodes"), &nodes); err != nil {
				return fmt.Errorf("nodes: %w", err)
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, nodes)
			}
			printNodes(out, nodes)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stateLabel(state string) string {
	switch state {
	case string(cluster.TaskCompleted): // same value as cluster.FragmentCompleted
		return color.New(color.FgGreen).Sprint(state)
	case string(cluster.TaskFailed): // same value as cluster.FragmentFailed
		return color.New(color.FgRed).Sprint(state)
	case string(cluster.FragmentAssigned):
		return color.New(color.FgCyan).Sprint(state)
	}
	return color.New(color.FgYellow).Sprint(state)
}

func printSummary(w io.Writer, s cluster.TaskStatusSummary) {
	fmt.Fprintf(w, "Transfer %s [%s]\n", s.TrackingID, stateLabel(string(s.State)))
	fmt.Fprintf(w, "  completed %d/%d, pending %d, failed %d\n", s.Completed, s.Total, s.Pending, s.Failed)
}

func printTask(w io.Writer, t *cluster.Task) {
	fmt.Fprintf(w, "Transfer %s (%s, amount %d)\n", t.TrackingID, t.PrivacyTier, t.Amount)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAGMENT\tAMOUNT\tSTATUS\tNODE\tRETRIES\tDETAIL")
	for _, f := range t.Fragments {
		detail := f.Signature.OrElse(f.LastError.OrElse(""))
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\n",
			f.FragmentID, f.Amount, stateLabel(string(f.Status)),
			f.AssignedNodeID.OrElse("-"), f.Retries, detail)
	}
	_ = tw.Flush()
}

func printNodes(w io.Writer, nodes []cluster.NodeView) {
	if len(nodes) == 0 {
		fmt.Fprintln(w, "No nodes registered.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tLOAD\tSTATUS\tLAST HEARTBEAT")
	for _, n := range nodes {
		status := color.New(color.FgGreen).Sprint("live")
		if !n.Live {
			status = color.New(color.FgRed).Sprint("stale")
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\n",
			n.NodeID, n.Load, n.Capacity, status, n.LastHeartbeat.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

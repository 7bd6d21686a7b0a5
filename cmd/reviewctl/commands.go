package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-review/pkg/simplereview"
)

func (c *cli) newListCommand() *cobra.Command {
	var state string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scripts by state",
		Long:  `List scripts in one lifecycle state (pending by default), or every state with --state=all.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := simplereview.ListScriptsRequest{Limit: limit, Offset: offset}
			if state != "all" {
				req.State = simplereview.State(state)
			}
			return c.run(cmd, func(ctx context.Context, svc simplereview.Service, actor *simplereview.Actor) error {
				scripts, err := svc.ListScripts(ctx, actor, req)
				if err != nil {
					return err
				}
				return c.printScripts(cmd.OutOrStdout(), scripts)
			})
		},
	}

	cmd.Flags().StringVar(&state, "state", string(simplereview.StatePending), "pending, published, rejected, abandoned or all")
	cmd.Flags().IntVar(&limit, "limit", simplereview.DefaultPageSize, "maximum results")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	return cmd
}

func (c *cli) newApproveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <script-id>",
		Short: "Publish a pending script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScriptID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, svc simplereview.Service, actor *simplereview.Actor) error {
				script, err := svc.Approve(ctx, actor, id)
				if err != nil {
					return err
				}
				return c.printScripts(cmd.OutOrStdout(), []*simplereview.Script{script})
			})
		},
	}
}

func (c *cli) newApproveAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve-all",
		Short: "Publish every pending script in one transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc simplereview.Service, actor *simplereview.Actor) error {
				scripts, err := svc.ApproveAll(ctx, actor)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"approved": len(scripts), "scripts": scripts})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Approved %d script(s)\n", len(scripts))
				return nil
			})
		},
	}
}

func (c *cli) newRejectCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <script-id>",
		Short: "Reject a pending script with a reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScriptID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, svc simplereview.Service, actor *simplereview.Actor) error {
				script, err := svc.Reject(ctx, actor, id, reason)
				if err != nil {
					return err
				}
				return c.printScripts(cmd.OutOrStdout(), []*simplereview.Script{script})
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "reason shown to the author (required)")
	return cmd
}

func (c *cli) newRestoreCommand() *cobra.Command {
	var state string
	var transfer bool

	cmd := &cobra.Command{
		Use:   "restore <script-id>",
		Short: "Restore a deleted script",
		Long: `Restore an abandoned script to published, pending or rejected.
With --transfer the script becomes system-owned and the previous owner is
recorded as the original owner.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScriptID(args[0])
			if err != nil {
				return err
			}
			req := simplereview.RestoreRequest{State: simplereview.State(state), TransferOwnership: transfer}
			return c.run(cmd, func(ctx context.Context, svc simplereview.Service, actor *simplereview.Actor) error {
				script, err := svc.Restore(ctx, actor, id, req)
				if err != nil {
					return err
				}
				return c.printScripts(cmd.OutOrStdout(), []*simplereview.Script{script})
			})
		},
	}

	cmd.Flags().StringVar(&state, "state", string(simplereview.StatePublished), "target state: published, pending or rejected")
	cmd.Flags().BoolVar(&transfer, "transfer", false, "transfer ownership to the system")
	return cmd
}

func (c *cli) newPurgeCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge <script-id>",
		Short: "Permanently delete a script and all of its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScriptID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("purge is irreversible; pass --yes to confirm")
			}
			return c.run(cmd, func(ctx context.Context, svc simplereview.Service, actor *simplereview.Actor) error {
				if err := svc.HardDelete(ctx, actor, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	return cmd
}

func (c *cli) newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show script counts per state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, svc simplereview.Service, actor *simplereview.Actor) error {
				counts, err := svc.StateCounts(ctx, actor)
				if err != nil {
					return err
				}
				if c.asJSON {
					return writeJSON(cmd.OutOrStdout(), counts)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "STATE\tCOUNT")
				var total int64
				for _, state := range simplereview.AllStates {
					fmt.Fprintf(w, "%s\t%d\n", state, counts[state])
					total += counts[state]
				}
				fmt.Fprintf(w, "total\t%d\n", total)
				return w.Flush()
			})
		},
	}
}

func parseScriptID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid script id %q", raw)
	}
	return id, nil
}

func (c *cli) printScripts(out io.Writer, scripts []*simplereview.Script) error {
	if c.asJSON {
		if scripts == nil {
			scripts = []*simplereview.Script{}
		}
		return writeJSON(out, scripts)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tTITLE\tOWNER\tUPDATED")
	for _, s := range scripts {
		owner := "-"
		switch {
		case s.SystemOwned:
			owner = "system"
		case s.OwnerID != nil:
			owner = s.OwnerID.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.State, s.Title, owner, s.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/fitito/internal/mcp"
	"github.com/claude/fitito/internal/models"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			res, err := a.coord.SyncNow(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attempted %d, synced %d, failed %d\n", res.Attempted, res.Synced, res.Failed)
			return nil
		})
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync whenever the server becomes reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			a.daemon(ctx)
			return nil
		})
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List queued changes with their retry state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			all, err := a.queue.ListAll(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "SEQ\tKIND\tENQUEUED\tSYNCED\tRETRIES\tLAST_ERROR")
			for _, m := range all {
				fmt.Fprintf(out, "%d\t%s\t%s\t%v\t%d\t%s\n",
					m.Seq, m.Kind(), m.EnqueuedAt.Local().Format("2006-01-02 15:04"), m.IsSynced, m.RetryCount, m.LastError)
			}
			return nil
		})
	},
}

var (
	historyDate  string
	historyStart string
	historyEnd   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show completed sessions, including ones not synced yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if historyDate != "" {
				entry, err := a.reader.SessionForDate(ctx, a.cfg.ProfileID, historyDate)
				if err != nil {
					return err
				}
				if entry == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "No session on %s\n", historyDate)
					return nil
				}
				return printJSON(cmd.OutOrStdout(), entry)
			}
			entries, err := a.reader.List(ctx, a.cfg.ProfileID, historyStart, historyEnd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "DATE\tSOURCE\tROUTINE\tDAY\tSETS\tMINUTES")
			for _, e := range entries {
				s := e.Session
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%d/%d\t%d\n",
					s.SessionDate, e.Source, s.RoutineName, s.DayName, s.CompletedSets, s.TotalSets, s.DurationMinutes)
			}
			return nil
		})
	},
}

var routineWeekFile string

var routineWeekCmd = &cobra.Command{
	Use:   "routine-week",
	Short: "Update a routine day (queued when the server is unreachable)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var p models.RoutineWeekPayload
		if err := readJSON(routineWeekFile, &p); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			p.ProfileID = a.cfg.ProfileID
			p.UpdatedAt = time.Now()
			queued, err := a.coord.Write(ctx, &p)
			if err != nil {
				return err
			}
			if queued {
				fmt.Fprintln(cmd.OutOrStdout(), "Server unreachable, routine day queued")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Routine day saved")
			}
			return nil
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve session history over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			srv := mcp.New(a.reader.Records(), Version, a.log)
			profileID := a.cfg.ProfileID
			return mcpserver.ServeStdio(srv, mcpserver.WithStdioContextFunc(func(ctx context.Context) context.Context {
				return mcp.WithProfileID(ctx, profileID)
			}))
		})
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyDate, "date", "", "Single date (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyStart, "from", "", "Range start (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyEnd, "to", "", "Range end (YYYY-MM-DD)")

	routineWeekCmd.Flags().StringVar(&routineWeekFile, "file", "", "JSON file with the routine day (- for stdin)")
	_ = routineWeekCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(syncCmd, daemonCmd, queueCmd, historyCmd, routineWeekCmd, mcpCmd)
}

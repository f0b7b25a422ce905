package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/claude/fitito/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var startPlan string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session from a planned routine day",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req models.CreateSessionRequest
		if err := readJSON(startPlan, &req); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			req.ProfileID = a.cfg.ProfileID
			sess, err := a.store.CreateSession(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s %s with %d exercises (%s)\n",
				sess.RoutineName, sess.DayName, len(sess.Exercises), sess.ID)
			return nil
		})
	},
}

var (
	setExercise string
	setNumber   int
	setReps     int
	setWeight   float64
	setRIR      int
	setPartial  int
	setNotes    string
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Record a performed set",
	RunE: func(cmd *cobra.Command, args []string) error {
		if setNumber <= 0 {
			return fmt.Errorf("--set must be > 0")
		}
		fields := setFields(cmd)
		return withApp(cmd, func(ctx context.Context, a *app) error {
			sess, err := a.store.ActiveSession(ctx, a.cfg.ProfileID)
			if err != nil {
				return err
			}
			exID, err := resolveExercise(sess, setExercise)
			if err != nil {
				return err
			}
			sess, err = a.store.UpdateSetProgress(ctx, a.cfg.ProfileID, sess.ID, exID, setNumber, fields)
			if err != nil {
				return err
			}
			ex := sess.Exercise(exID)
			for _, s := range ex.PerformedSets {
				if s.SetNumber == setNumber {
					fmt.Fprintf(cmd.OutOrStdout(), "%s set %d: completed=%v\n", ex.ExerciseName, s.SetNumber, s.IsCompleted)
				}
			}
			return nil
		})
	},
}

// setFields keeps only the flags given on the command line; the rest of the
// stored set is left alone.
func setFields(cmd *cobra.Command) models.SetProgress {
	var f models.SetProgress
	flags := cmd.Flags()
	if flags.Changed("reps") {
		f.Reps = &setReps
	}
	if flags.Changed("weight") {
		f.Weight = &setWeight
	}
	if flags.Changed("rir") {
		f.RIR = &setRIR
	}
	if flags.Changed("partial") {
		f.PartialReps = &setPartial
	}
	if flags.Changed("notes") {
		f.Notes = &setNotes
	}
	return f
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Move to the next exercise",
	RunE: func(cmd *cobra.Command, args []string) error {
		return moveExercise(cmd, true)
	},
}

var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Move to the previous exercise",
	RunE: func(cmd *cobra.Command, args []string) error {
		return moveExercise(cmd, false)
	},
}

func moveExercise(cmd *cobra.Command, forward bool) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		sess, err := a.store.ActiveSession(ctx, a.cfg.ProfileID)
		if err != nil {
			return err
		}
		if forward {
			sess, err = a.store.MoveToNextExercise(ctx, a.cfg.ProfileID, sess.ID)
		} else {
			sess, err = a.store.MoveToPreviousExercise(ctx, a.cfg.ProfileID, sess.ID)
		}
		if err != nil {
			return err
		}
		if len(sess.Exercises) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Session has no exercises")
			return nil
		}
		ex := sess.Exercises[sess.CurrentExerciseIndex]
		fmt.Fprintf(cmd.OutOrStdout(), "Exercise %d/%d: %s\n", sess.CurrentExerciseIndex+1, len(sess.Exercises), ex.ExerciseName)
		return nil
	})
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			sess, err := a.store.PauseSession(ctx, a.cfg.ProfileID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paused %s\n", sess.ID)
			return nil
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the paused session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			sess, err := a.store.ResumeSession(ctx, a.cfg.ProfileID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resumed %s\n", sess.ID)
			return nil
		})
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete",
	Short: "Finish the session and write it to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			sess, err := a.store.ActiveSession(ctx, a.cfg.ProfileID)
			if err != nil {
				return err
			}
			done, err := a.store.CompleteSession(ctx, a.cfg.ProfileID, sess.ID)
			if err != nil {
				return err
			}
			a.reader.InvalidateHistory()

			p := done.Payload
			if done.Queued {
				fmt.Fprintf(cmd.OutOrStdout(), "Completed %s (%d/%d sets), saved offline until the server is reachable\n",
					p.SessionDate, p.CompletedSets, p.TotalSets)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Completed %s (%d/%d sets), stored as #%d\n",
					p.SessionDate, p.CompletedSets, p.TotalSets, done.RemoteID)
			}
			return nil
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Discard the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			sess, err := a.store.ActiveSession(ctx, a.cfg.ProfileID)
			if err != nil {
				return err
			}
			if err := a.store.CancelSession(ctx, a.cfg.ProfileID, sess.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", sess.ID)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active session and the sync backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			pending, err := a.queue.CountPending(ctx)
			if err != nil {
				return err
			}
			sess, err := a.store.ActiveSession(ctx, a.cfg.ProfileID)
			if models.IsNotFound(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "No active session; %d change(s) waiting to sync\n", pending)
				return nil
			}
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), sess)
			fmt.Fprintf(cmd.OutOrStdout(), "%d change(s) waiting to sync\n", pending)
			return nil
		})
	},
}

func printSession(w io.Writer, sess *models.TrainingSession) {
	fmt.Fprintf(w, "%s %s (%s), started %s\n", sess.RoutineName, sess.DayName, sess.Status, sess.StartedAt.Local().Format(time.Kitchen))
	for i, ex := range sess.Exercises {
		done := 0
		for _, s := range ex.PerformedSets {
			if s.IsCompleted {
				done++
			}
		}
		marker := " "
		if i == sess.CurrentExerciseIndex {
			marker = ">"
		}
		fmt.Fprintf(w, "%s %d. %s  %d/%d sets\n", marker, i+1, ex.ExerciseName, done, len(ex.PerformedSets))
	}
}

// resolveExercise accepts a 1-based position, an exercise id, or "" for the
// exercise in focus.
func resolveExercise(sess *models.TrainingSession, ref string) (uuid.UUID, error) {
	if len(sess.Exercises) == 0 {
		return uuid.Nil, fmt.Errorf("session has no exercises")
	}
	if ref == "" {
		return sess.Exercises[sess.CurrentExerciseIndex].ID, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(sess.Exercises) {
			return uuid.Nil, fmt.Errorf("exercise position %d out of range 1-%d", n, len(sess.Exercises))
		}
		return sess.Exercises[n-1].ID, nil
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, fmt.Errorf("exercise %q is neither a position nor an id", ref)
	}
	return id, nil
}

func init() {
	startCmd.Flags().StringVar(&startPlan, "plan", "", "JSON file with the planned day (- for stdin)")
	_ = startCmd.MarkFlagRequired("plan")

	setCmd.Flags().StringVar(&setExercise, "exercise", "", "Exercise position (1-based) or id; defaults to the current exercise")
	setCmd.Flags().IntVar(&setNumber, "set", 0, "Set number")
	setCmd.Flags().IntVar(&setReps, "reps", 0, "Repetitions")
	setCmd.Flags().Float64Var(&setWeight, "weight", 0, "Weight")
	setCmd.Flags().IntVar(&setRIR, "rir", 0, "Reps in reserve")
	setCmd.Flags().IntVar(&setPartial, "partial", 0, "Partial reps")
	setCmd.Flags().StringVar(&setNotes, "notes", "", "Notes")
	_ = setCmd.MarkFlagRequired("set")

	rootCmd.AddCommand(startCmd, setCmd, nextCmd, prevCmd, pauseCmd, resumeCmd, completeCmd, cancelCmd, statusCmd)
}

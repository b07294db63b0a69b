package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/scheduler"
	"github.com/benvon/practice-queue/internal/services/practice"
	"github.com/spf13/cobra"
)

func newQueueCmd(open opener) *cobra.Command {
	var email string
	var full bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Print a user's practice queue",
		Long:  "Compute the practice queue of a user as of now. The cache is neither read nor written.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--user is required")
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			user, err := database.NewUserRepository(s.db).GetByEmail(ctx, email)
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("no user with email %s", email)
			}
			if err != nil {
				return fmt.Errorf("failed to look up user: %w", err)
			}

			sched := scheduler.New(scheduler.WithLocation(s.cfg.Location), scheduler.WithLogger(s.logger))
			service := practice.NewService(database.NewProblemRepository(s.db), database.NewAttemptRepository(s.db), sched)
			result, err := service.Refresh(ctx, user.ID)
			if err != nil {
				return err
			}

			items, stats := result.Active, result.Stats
			if full {
				items, stats = result.Full, scheduler.Summarize(result.Full)
			}
			return writeQueue(cmd.OutOrStdout(), items, stats)
		},
	}

	cmd.Flags().StringVar(&email, "user", "", "Email of the user (required)")
	cmd.Flags().BoolVar(&full, "full", false, "Include problems that are not due yet")

	return cmd
}

// writeQueue renders items as an aligned table followed by the stats
func writeQueue(out io.Writer, items []scheduler.TaskQueueItem, stats scheduler.Stats) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tDIFFICULTY\tTITLE\tREASON")
	for _, item := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", item.Priority, item.Problem.Difficulty, item.Problem.Title, item.Reason)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write queue: %w", err)
	}

	_, err := fmt.Fprintf(out,
		"\nTotal: %d  Never attempted: %d  Not solved: %d  Due: %d  Overdue: %d\nEasy: %d  Medium: %d  Hard: %d\n",
		stats.Total, stats.NeverAttempted, stats.AttemptedNotSolved, stats.DueForReview, stats.Overdue,
		stats.ByDifficulty.Easy, stats.ByDifficulty.Medium, stats.ByDifficulty.Hard,
	)
	return err
}

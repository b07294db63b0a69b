package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/benvon/practice-queue/internal/catalog"
	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTopicCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "Manage catalog topics",
	}
	cmd.AddCommand(newTopicListCmd(open))
	cmd.AddCommand(newTopicAddCmd(open))
	cmd.AddCommand(newTopicRenameCmd(open))
	cmd.AddCommand(newTopicDeleteCmd(open))
	return cmd
}

func newTopicListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			topics, err := database.NewTopicRepository(s.db).List(cmd.Context())
			if err != nil {
				return err
			}
			return writeTopics(cmd.OutOrStdout(), topics)
		},
	}
}

func newTopicAddCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a topic, or show the existing one with that name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := validation.SanitizeText(args[0])
			if name == "" {
				return errors.New("topic name cannot be empty")
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			topic := &models.Topic{Name: name}
			if err := database.NewTopicRepository(s.db).UpsertByName(cmd.Context(), topic); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Topic %s: %s\n", topic.ID, topic.Name)
			return nil
		},
	}
}

func newTopicRenameCmd(open opener) *cobra.Command {
	var skipCache bool

	cmd := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := validation.SanitizeText(args[1])
			if name == "" {
				return errors.New("topic name cannot be empty")
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			snapshots, closeCache := s.maybeSnapshots(ctx, skipCache)
			defer closeCache()

			var topic *models.Topic
			err = changeCatalog(ctx, snapshots, s.logger, func() error {
				var renameErr error
				topic, renameErr = database.NewTopicRepository(s.db).Rename(ctx, args[0], name)
				return renameErr
			})
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("no topic with id %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Topic %s renamed to %s\n", topic.ID, topic.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCache, "skip-cache", false, "Do not drop cached queues")
	return cmd
}

func newTopicDeleteCmd(open opener) *cobra.Command {
	var skipCache bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a topic",
		Long:  "Delete a topic. Its problems stay in the catalog and are listed under \"" + models.UnknownTopicName + "\".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			snapshots, closeCache := s.maybeSnapshots(ctx, skipCache)
			defer closeCache()

			err = changeCatalog(ctx, snapshots, s.logger, func() error {
				return database.NewTopicRepository(s.db).Delete(ctx, args[0])
			})
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("no topic with id %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted topic %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCache, "skip-cache", false, "Do not drop cached queues")
	return cmd
}

func newProblemCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "problem",
		Short: "Manage catalog problems",
		Long:  "List, add, update and delete problems. Every change drops cached queues.",
	}
	cmd.AddCommand(newProblemListCmd(open))
	cmd.AddCommand(newProblemAddCmd(open))
	cmd.AddCommand(newProblemUpdateCmd(open))
	cmd.AddCommand(newProblemDeleteCmd(open))
	return cmd
}

func newProblemListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			problems, err := database.NewProblemRepository(s.db).List(cmd.Context())
			if err != nil {
				return err
			}
			return writeProblems(cmd.OutOrStdout(), problems)
		},
	}
}

// problemFlags are the editable fields of a problem. Empty values leave a field unchanged on update.
type problemFlags struct {
	id         string
	title      string
	url        string
	difficulty string
	topic      string
	skipCache  bool
}

func (f *problemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Problem title")
	cmd.Flags().StringVar(&f.url, "url", "", "Problem URL")
	cmd.Flags().StringVar(&f.difficulty, "difficulty", "", "Difficulty: easy, medium or hard")
	cmd.Flags().StringVar(&f.topic, "topic", "", "Topic name; \"none\" clears the topic on update")
	cmd.Flags().BoolVar(&f.skipCache, "skip-cache", false, "Do not drop cached queues")
}

// clearTopic is the --topic value that removes a problem from its topic
const clearTopic = "none"

// applyProblemFlags copies the set flags onto p, resolves the topic name against topics
// and validates the result with the catalog file rules
func applyProblemFlags(p *models.Problem, f problemFlags, topics []models.Topic) error {
	if f.title != "" {
		p.Title = validation.SanitizeText(f.title)
	}
	if f.url != "" {
		p.URL = strings.TrimSpace(f.url)
	}
	if f.difficulty != "" {
		p.Difficulty = models.Difficulty(f.difficulty)
	}

	switch {
	case f.topic == "":
	case strings.EqualFold(f.topic, clearTopic):
		p.TopicID, p.TopicName = "", ""
	default:
		topic, err := findTopic(topics, f.topic)
		if err != nil {
			return err
		}
		p.TopicID, p.TopicName = topic.ID, topic.Name
	}

	entry := catalog.Problem{ID: p.ID, Title: p.Title, URL: p.URL, Difficulty: string(p.Difficulty)}
	if err := validation.Struct(&entry); err != nil {
		return fmt.Errorf("invalid problem: %w", err)
	}
	difficulty, err := models.ParseDifficulty(string(p.Difficulty))
	if err != nil {
		return err
	}
	p.Difficulty = difficulty
	return nil
}

// findTopic matches name against topic names, ignoring case
func findTopic(topics []models.Topic, name string) (*models.Topic, error) {
	name = strings.TrimSpace(name)
	for i := range topics {
		if strings.EqualFold(topics[i].Name, name) {
			return &topics[i], nil
		}
	}
	return nil, fmt.Errorf("no topic named %q (create it with: practicectl topic add)", name)
}

func newProblemAddCmd(open opener) *cobra.Command {
	var f problemFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a problem",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.title == "" || f.url == "" || f.difficulty == "" {
				return errors.New("--title, --url and --difficulty are required")
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			snapshots, closeCache := s.maybeSnapshots(ctx, f.skipCache)
			defer closeCache()

			problem := &models.Problem{ID: f.id}
			err = saveProblem(ctx, database.NewProblemRepository(s.db), database.NewTopicRepository(s.db), snapshots, s.logger, problem, f, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added problem %s: %s\n", problem.ID, problem.Title)
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&f.id, "id", "", "Problem id (generated when omitted)")
	return cmd
}

func newProblemUpdateCmd(open opener) *cobra.Command {
	var f problemFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.title == "" && f.url == "" && f.difficulty == "" && f.topic == "" {
				return errors.New("nothing to update: set at least one of --title, --url, --difficulty, --topic")
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			problems := database.NewProblemRepository(s.db)
			problem, err := problems.GetByID(ctx, args[0])
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("no problem with id %s", args[0])
			}
			if err != nil {
				return err
			}

			snapshots, closeCache := s.maybeSnapshots(ctx, f.skipCache)
			defer closeCache()

			if err := saveProblem(ctx, problems, database.NewTopicRepository(s.db), snapshots, s.logger, problem, f, false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated problem %s: %s\n", problem.ID, problem.Title)
			return nil
		},
	}

	f.register(cmd)
	return cmd
}

func newProblemDeleteCmd(open opener) *cobra.Command {
	var skipCache bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a problem",
		Long:  "Delete a problem and every attempt recorded on it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			snapshots, closeCache := s.maybeSnapshots(ctx, skipCache)
			defer closeCache()

			err = deleteProblem(ctx, database.NewProblemRepository(s.db), snapshots, s.logger, args[0])
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("no problem with id %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted problem %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCache, "skip-cache", false, "Do not drop cached queues")
	return cmd
}

// maybeSnapshots opens the snapshot cache unless skip is set
func (s *session) maybeSnapshots(ctx context.Context, skip bool) (snapshotInvalidator, func()) {
	if skip {
		return nil, func() {}
	}
	return s.openSnapshots(ctx)
}

// changeCatalog applies change and drops cached queues once it succeeded
func changeCatalog(ctx context.Context, snapshots snapshotInvalidator, log *zap.Logger, change func() error) error {
	if err := change(); err != nil {
		return err
	}
	invalidateSnapshots(ctx, snapshots, log)
	return nil
}

// saveProblem applies f to p and creates or updates it
func saveProblem(ctx context.Context, problems database.ProblemStoreInterface, topics database.TopicStoreInterface, snapshots snapshotInvalidator, log *zap.Logger, p *models.Problem, f problemFlags, create bool) error {
	var known []models.Topic
	if f.topic != "" && !strings.EqualFold(f.topic, clearTopic) {
		var err error
		if known, err = topics.List(ctx); err != nil {
			return err
		}
	}
	if err := applyProblemFlags(p, f, known); err != nil {
		return err
	}

	return changeCatalog(ctx, snapshots, log, func() error {
		if create {
			return problems.Create(ctx, p)
		}
		return problems.Update(ctx, p)
	})
}

// deleteProblem removes a problem; its attempts go with it, so every cached queue is dropped
func deleteProblem(ctx context.Context, problems database.ProblemStoreInterface, snapshots snapshotInvalidator, log *zap.Logger, id string) error {
	return changeCatalog(ctx, snapshots, log, func() error {
		return problems.Delete(ctx, id)
	})
}

// writeTopics renders topics as an aligned table
func writeTopics(out io.Writer, topics []models.Topic) error {
	if len(topics) == 0 {
		_, err := fmt.Fprintln(out, "No topics.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, t := range topics {
		fmt.Fprintf(tw, "%s\t%s\n", t.ID, t.Name)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write topics: %w", err)
	}
	return nil
}

// writeProblems renders problems as an aligned table
func writeProblems(out io.Writer, problems []models.Problem) error {
	if len(problems) == 0 {
		_, err := fmt.Fprintln(out, "No problems.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDIFFICULTY\tTOPIC\tTITLE\tURL")
	for _, p := range problems {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Difficulty, p.TopicName, p.Title, p.URL)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write problems: %w", err)
	}
	return nil
}

// Package commands implements the practicectl admin CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/benvon/practice-queue/internal/config"
	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd builds the practicectl command tree
func NewRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "practicectl",
		Short:         "Admin tool for the practice queue API",
		Long:          "Manage the problem catalog, inspect practice queues and configure OIDC, CORS and rate limits.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	open := func() (*session, error) {
		return openSession(debug)
	}

	root.AddCommand(newMigrateCmd(open))
	root.AddCommand(newImportCmd(open))
	root.AddCommand(newTopicCmd(open))
	root.AddCommand(newProblemCmd(open))
	root.AddCommand(newQueueCmd(open))
	root.AddCommand(newOIDCCmd(open))
	root.AddCommand(newCorsCmd(open))
	root.AddCommand(newRatelimitCmd(open))

	return root
}

// session holds what every database-backed command needs
type session struct {
	cfg    *config.Config
	db     *database.DB
	logger *zap.Logger
}

type opener func() (*session, error)

func openSession(debug bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewDevelopmentLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &session{cfg: cfg, db: db, logger: log}, nil
}

func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
	_ = s.logger.Sync()
}

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date.")
			return nil
		},
	}
}

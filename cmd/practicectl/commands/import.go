package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/benvon/practice-queue/internal/cache"
	"github.com/benvon/practice-queue/internal/catalog"
	"github.com/benvon/practice-queue/internal/database"
	"github.com/benvon/practice-queue/internal/queue"
	"github.com/benvon/practice-queue/internal/workers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// snapshotInvalidator drops every cached queue
type snapshotInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// importCatalog parses r, writes it and drops cached queues so the next request sees the new catalog.
// A nil invalidator skips the cache step; a cache failure is logged since the import itself succeeded.
func importCatalog(ctx context.Context, r io.Reader, store database.CatalogStoreInterface, snapshots snapshotInvalidator, log *zap.Logger) (catalog.Summary, error) {
	f, err := catalog.Parse(r)
	if err != nil {
		return catalog.Summary{}, err
	}

	summary, err := catalog.NewImporter(store, log).Import(ctx, f)
	if err != nil {
		return summary, err
	}

	invalidateSnapshots(ctx, snapshots, log)
	return summary, nil
}

// openSnapshots connects to the snapshot cache. When Redis is unreachable it logs and returns
// a nil invalidator, so catalog changes still apply and cached queues expire by TTL.
func (s *session) openSnapshots(ctx context.Context) (snapshotInvalidator, func()) {
	client, err := cache.Connect(ctx, s.cfg.RedisURL)
	if err != nil {
		s.logger.Warn("cache_unavailable_skipping_invalidation", zap.Error(err))
		return nil, func() {}
	}
	return cache.NewSnapshotCache(client, s.cfg.QueueCacheTTL), func() {
		_ = client.Close()
	}
}

// invalidateSnapshots drops cached queues after a catalog change. A nil invalidator is a no-op
// and a cache failure is logged since the change itself succeeded.
func invalidateSnapshots(ctx context.Context, snapshots snapshotInvalidator, log *zap.Logger) {
	if snapshots == nil {
		return
	}
	if err := snapshots.InvalidateAll(ctx); err != nil {
		log.Warn("failed_to_invalidate_snapshots", zap.Error(err))
	}
}

func newImportCmd(open opener) *cobra.Command {
	var skipCache, refresh bool

	cmd := &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Import a problem catalog",
		Long: "Upsert topics by name and problems by URL from a YAML catalog in one transaction, then drop cached queues.\n" +
			"With --refresh and RABBITMQ_URL set, refresh jobs are queued for recently active users.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open catalog: %w", err)
			}
			defer func() {
				_ = file.Close()
			}()

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			var snapshots snapshotInvalidator
			if !skipCache {
				var closeCache func()
				snapshots, closeCache = s.openSnapshots(ctx)
				defer closeCache()
			}

			summary, err := importCatalog(ctx, file, database.NewCatalog(s.db), snapshots, s.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d topics and %d problems.\n", summary.Topics, summary.Problems)

			if !refresh {
				return nil
			}
			if !s.cfg.JobsEnabled() {
				return fmt.Errorf("--refresh requires RABBITMQ_URL")
			}
			jobQueue, err := queue.NewRabbitMQQueue(s.cfg.RabbitMQURL, s.logger)
			if err != nil {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			defer func() {
				_ = jobQueue.Close()
			}()

			refresher := workers.NewNightlyRefresher(database.NewAttemptRepository(s.db), jobQueue, s.cfg.Location, s.logger)
			count, err := refresher.RefreshActiveUsers(ctx, queue.TriggerCatalogImport)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %d refresh jobs.\n", count)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCache, "skip-cache", false, "Do not drop cached queues")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Queue refresh jobs for recently active users")

	return cmd
}

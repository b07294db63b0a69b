package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/practice-queue/internal/queue"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultActivityWindow limits nightly refreshes to users with a recent attempt
const DefaultActivityWindow = 30 * 24 * time.Hour

// ActiveUserLister finds users with attempts since a point in time
type ActiveUserLister interface {
	ListUserIDsActiveSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether spec is an accepted cron expression
func ValidateSchedule(spec string) error {
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return nil
}

// NightlyRefresher enqueues a refresh job per recently active user on a cron schedule,
// so each user's first request of the day is served from cache
type NightlyRefresher struct {
	users    ActiveUserLister
	jobQueue queue.Enqueuer
	window   time.Duration
	loc      *time.Location
	logger   *zap.Logger
	clock    func() time.Time
}

// NewNightlyRefresher creates a nightly refresher. Day boundaries and the cron schedule use loc.
func NewNightlyRefresher(users ActiveUserLister, jobQueue queue.Enqueuer, loc *time.Location, logger *zap.Logger) *NightlyRefresher {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NightlyRefresher{
		users:    users,
		jobQueue: jobQueue,
		window:   DefaultActivityWindow,
		loc:      loc,
		logger:   logger,
		clock:    time.Now,
	}
}

// Start registers the schedule and runs it until ctx is cancelled.
// spec is a standard five-field cron expression or a descriptor such as @daily.
func (n *NightlyRefresher) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithParser(scheduleParser), cron.WithLocation(n.loc))
	if _, err := c.AddFunc(spec, func() {
		if _, err := n.ScheduleRefreshJobs(ctx); err != nil {
			n.logger.Error("failed_to_schedule_refresh_jobs", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	n.logger.Info("nightly_refresher_started",
		zap.String("schedule", spec),
		zap.String("location", n.loc.String()),
	)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// ScheduleRefreshJobs enqueues one nightly refresh job per active user
func (n *NightlyRefresher) ScheduleRefreshJobs(ctx context.Context) (int, error) {
	return n.RefreshActiveUsers(ctx, queue.TriggerNightly)
}

// RefreshActiveUsers enqueues one refresh job per active user, each expiring at the end of
// the current day. It returns the number of jobs enqueued; per-user failures are logged and skipped.
func (n *NightlyRefresher) RefreshActiveUsers(ctx context.Context, trigger string) (int, error) {
	now := n.clock()
	userIDs, err := n.users.ListUserIDsActiveSince(ctx, now.Add(-n.window))
	if err != nil {
		return 0, fmt.Errorf("failed to list active users: %w", err)
	}

	local := now.In(n.loc)
	endOfDay := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, n.loc)

	enqueued := 0
	for _, userID := range userIDs {
		job := queue.NewRefreshJob(userID, trigger, endOfDay)
		if err := n.jobQueue.Enqueue(ctx, job); err != nil {
			n.logger.Warn("failed_to_enqueue_refresh_job",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}

	n.logger.Info("scheduled_refresh_jobs",
		zap.String("trigger", trigger),
		zap.Int("user_count", len(userIDs)),
		zap.Int("enqueued", enqueued),
		zap.Time("expires_at", endOfDay),
	)
	return enqueued, nil
}

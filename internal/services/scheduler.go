package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/config"
	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the platform's background jobs in-process: dispatching due
// scheduled broadcasts, plan-expiry reminders, and the two self-healing
// sweeps for stuck devices and stuck queue rows. Every job is idempotent by
// status flag, so overlapping or restarted runs are harmless.
type Scheduler struct {
	cron         *cron.Cron
	cfg          *config.Config
	broadcastSvc *BroadcastService
	userRepo     db.UserRepository
	deviceRepo   db.DeviceRepository
	queueRepo    db.QueueRepository
	reminderRepo db.ReminderRepository
}

// NewScheduler creates a Scheduler with the standard job set registered
func NewScheduler(
	cfg *config.Config,
	broadcastSvc *BroadcastService,
	userRepo db.UserRepository,
	deviceRepo db.DeviceRepository,
	queueRepo db.QueueRepository,
	reminderRepo db.ReminderRepository,
) (*Scheduler, error) {
	s := &Scheduler{
		cron:         cron.New(),
		cfg:          cfg,
		broadcastSvc: broadcastSvc,
		userRepo:     userRepo,
		deviceRepo:   deviceRepo,
		queueRepo:    queueRepo,
		reminderRepo: reminderRepo,
	}

	jobs := []struct {
		spec string
		name string
		run  func()
	}{
		{"* * * * *", "dispatch-scheduled-broadcasts", s.runDispatchBroadcasts},
		{"0 * * * *", "plan-expiry-reminders", s.runReminders},
		{"*/10 * * * *", "cleanup-stuck-devices", s.runCleanupDevices},
		{"*/5 * * * *", "requeue-stuck-messages", s.runRequeueMessages},
	}

	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", job.name, err)
		}
	}

	return s, nil
}

// Start begins running jobs on their schedules
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Scheduler started")
}

// Stop stops the schedule and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Scheduler stopped")
}

func (s *Scheduler) runDispatchBroadcasts() {
	dispatched, err := s.broadcastSvc.DispatchDue(time.Now().Unix())
	if err != nil {
		logger.Error("Scheduled broadcast dispatch failed", zap.Error(err))
		return
	}
	if dispatched > 0 {
		logger.Info("Scheduled broadcasts dispatched", zap.Int("count", dispatched))
	}
}

// runReminders sends a plan-expiry notice at each configured offset. The
// reminder log's unique (user, kind, days-left) row is claimed first, so an
// hourly cadence or overlapping runs never double-send. Offsets are walked
// tightest-first and a user is handled by at most one offset per run, so a
// plan two days out gets the 3-day notice, never the 7-day one on top of it.
func (s *Scheduler) runReminders() {
	now := time.Now().Unix()

	offsets := append([]int(nil), s.cfg.Scheduler.ReminderDays...)
	sort.Ints(offsets)

	handled := map[string]bool{}
	for _, days := range offsets {
		cutoff := now + int64(days)*24*3600
		users, err := s.userRepo.ListExpiringBetween(now, cutoff)
		if err != nil {
			logger.Error("Failed to list expiring users", zap.Error(err))
			return
		}

		for _, user := range users {
			if handled[user.ID] {
				continue // a tighter offset already covers this user
			}
			handled[user.ID] = true

			fresh, err := s.reminderRepo.Record(
				models.NewReminderLog(user.ID, models.ReminderPlanExpiry, days))
			if err != nil {
				logger.Error("Failed to record reminder",
					zap.String("user_id", user.ID),
					zap.Error(err),
				)
				continue
			}
			if !fresh {
				continue // already sent for this offset
			}

			if err := s.sendReminder(user, days); err != nil {
				logger.Warn("Reminder not delivered",
					zap.String("user_id", user.ID),
					zap.Int("days_left", days),
					zap.Error(err),
				)
			}
		}
	}
}

// sendReminder enqueues the notice on the user's connected device, addressed
// to the device's own number. Users without a connected, paired device are
// skipped; the log entry still prevents a retry storm.
func (s *Scheduler) sendReminder(user *models.User, daysLeft int) error {
	devices, err := s.deviceRepo.ListByUser(user.ID)
	if err != nil {
		return err
	}

	var target *models.Device
	for _, d := range devices {
		if d.IsConnected() && d.Phone != "" {
			target = d
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no connected device")
	}

	body := fmt.Sprintf(
		"Your %s plan expires in %d day(s). Renew from the dashboard to keep sending.",
		user.Plan, daysLeft)

	msg := models.NewQueuedMessage(user.ID, target.ID, target.Phone, body)
	return s.queueRepo.Enqueue([]*models.QueuedMessage{msg})
}

func (s *Scheduler) runCleanupDevices() {
	before := time.Now().Add(-s.cfg.Scheduler.StuckDeviceAfter).Unix()
	reset, err := s.deviceRepo.ResetStuckConnecting(before)
	if err != nil {
		logger.Error("Stuck device cleanup failed", zap.Error(err))
		return
	}
	if reset > 0 {
		logger.Info("Stuck devices reset", zap.Int64("count", reset))
	}
}

func (s *Scheduler) runRequeueMessages() {
	before := time.Now().Add(-s.cfg.Scheduler.ClaimTimeout).Unix()
	requeued, err := s.queueRepo.RequeueStuck(before, time.Minute)
	if err != nil {
		logger.Error("Stuck message requeue failed", zap.Error(err))
		return
	}
	if requeued > 0 {
		logger.Info("Stuck messages requeued", zap.Int64("count", requeued))
	}
}

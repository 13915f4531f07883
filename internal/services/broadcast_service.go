package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/logger"
	"github.com/zesbe/hallowa-sub001/pkg/utils"

	"go.uber.org/zap"
)

var (
	// ErrBroadcastNotFound indicates the broadcast does not exist
	ErrBroadcastNotFound = errors.New("broadcast not found")

	// ErrNotBroadcastOwner indicates the caller does not own the broadcast
	ErrNotBroadcastOwner = errors.New("broadcast belongs to another user")

	// ErrNoRecipients indicates no valid recipients were resolved
	ErrNoRecipients = errors.New("no valid recipients")

	// ErrQuotaExceeded indicates the plan's message quota is insufficient
	ErrQuotaExceeded = errors.New("message quota exceeded")

	// ErrPlanExpired indicates the plan has lapsed and sending is blocked
	ErrPlanExpired = errors.New("plan has expired")

	// ErrScheduleInPast indicates a scheduled time that already passed
	ErrScheduleInPast = errors.New("scheduled time must be in the future")

	// ErrNotCancellable indicates the broadcast already started
	ErrNotCancellable = errors.New("broadcast can no longer be cancelled")

	// ErrEmptyMessage indicates neither a message body nor a template was given
	ErrEmptyMessage = errors.New("message body is required")
)

// recipient is one resolved send target. Name feeds template rendering.
type recipient struct {
	phone string
	name  string
}

// BroadcastService provides business logic for bulk sends: validation,
// recipient resolution, quota accounting, and queue fan-out.
type BroadcastService struct {
	repo         db.BroadcastRepository
	queueRepo    db.QueueRepository
	contactRepo  db.ContactRepository
	templateRepo db.TemplateRepository
	deviceRepo   db.DeviceRepository
	userRepo     db.UserRepository
}

// NewBroadcastService creates a new BroadcastService instance
func NewBroadcastService(
	repo db.BroadcastRepository,
	queueRepo db.QueueRepository,
	contactRepo db.ContactRepository,
	templateRepo db.TemplateRepository,
	deviceRepo db.DeviceRepository,
	userRepo db.UserRepository,
) *BroadcastService {
	return &BroadcastService{
		repo:         repo,
		queueRepo:    queueRepo,
		contactRepo:  contactRepo,
		templateRepo: templateRepo,
		deviceRepo:   deviceRepo,
		userRepo:     userRepo,
	}
}

// Create stores a draft or scheduled broadcast. Nothing is enqueued yet;
// drafts go out via SendNow, scheduled rows via the scheduler.
func (s *BroadcastService) Create(userID string, req *models.CreateBroadcastRequest) (*models.Broadcast, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	message, templateID, err := s.resolveMessage(userID, req.Message, req.TemplateID)
	if err != nil {
		return nil, err
	}

	if _, err := s.ownedDevice(userID, req.DeviceID); err != nil {
		return nil, err
	}

	// Validate recipients up front so a scheduled broadcast never fires
	// into an empty list
	if _, err := s.resolveRecipients(userID, req.Phones, req.Tag); err != nil {
		return nil, err
	}

	broadcast := models.NewBroadcast(userID, req.DeviceID, req.Name, message)
	broadcast.TemplateID = templateID
	broadcast.TargetPhones = models.EncodePhones(req.Phones)
	broadcast.TargetTag = req.Tag

	if req.ScheduledAt != nil {
		if *req.ScheduledAt <= time.Now().Unix() {
			return nil, ErrScheduleInPast
		}
		broadcast.Status = models.BroadcastScheduled
		broadcast.ScheduledAt = req.ScheduledAt
	}

	if err := s.repo.Create(broadcast); err != nil {
		return nil, err
	}

	logger.Info("Broadcast created",
		zap.String("broadcast_id", broadcast.ID),
		zap.String("user_id", userID),
		zap.String("status", broadcast.Status),
	)

	return broadcast, nil
}

// QuickSend validates and dispatches an ad-hoc send immediately
func (s *BroadcastService) QuickSend(userID string, req *models.QuickSendRequest) (*models.Broadcast, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}

	recipients, err := s.resolveRecipients(userID, req.Phones, req.Tag)
	if err != nil {
		return nil, err
	}

	device, err := s.ownedDevice(userID, req.DeviceID)
	if err != nil {
		return nil, err
	}
	if !device.IsConnected() {
		return nil, ErrDeviceNotConnected
	}

	broadcast := models.NewBroadcast(userID, req.DeviceID, "Quick send", req.Message)
	broadcast.Status = models.BroadcastProcessing
	now := time.Now().Unix()
	broadcast.StartedAt = &now

	if err := s.repo.Create(broadcast); err != nil {
		return nil, err
	}

	if err := s.enqueue(broadcast, recipients); err != nil {
		s.abandon(broadcast.ID)
		return nil, err
	}

	return s.repo.GetByID(broadcast.ID)
}

// SendNow dispatches a draft broadcast immediately
func (s *BroadcastService) SendNow(userID, broadcastID string) (*models.Broadcast, error) {
	broadcast, err := s.Get(userID, broadcastID)
	if err != nil {
		return nil, err
	}

	claimed, err := s.repo.ClaimForProcessing(broadcastID, models.BroadcastDraft)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("broadcast is not a draft")
	}

	if err := s.dispatch(broadcast); err != nil {
		s.abandon(broadcastID)
		return nil, err
	}

	return s.repo.GetByID(broadcastID)
}

// DispatchDue claims and dispatches every scheduled broadcast whose time has
// come. Overlapping scheduler ticks are safe: the conditional claim lets only
// one tick win each row. Returns how many broadcasts were dispatched.
func (s *BroadcastService) DispatchDue(now int64) (int, error) {
	due, err := s.repo.ListDue(now)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, broadcast := range due {
		claimed, err := s.repo.ClaimForProcessing(broadcast.ID, models.BroadcastScheduled)
		if err != nil {
			logger.Error("Failed to claim scheduled broadcast",
				zap.String("broadcast_id", broadcast.ID),
				zap.Error(err),
			)
			continue
		}
		if !claimed {
			continue // another tick got there first
		}

		if err := s.dispatch(broadcast); err != nil {
			logger.Error("Failed to dispatch scheduled broadcast",
				zap.String("broadcast_id", broadcast.ID),
				zap.Error(err),
			)
			s.abandon(broadcast.ID)
			continue
		}
		dispatched++
	}

	return dispatched, nil
}

// dispatch resolves the stored targeting and fans the broadcast out into the
// queue. The broadcast must already be claimed into processing. Tags resolve
// at dispatch time, so contacts tagged after scheduling are included.
func (s *BroadcastService) dispatch(broadcast *models.Broadcast) error {
	recipients, err := s.resolveRecipients(broadcast.UserID, broadcast.PhoneList(), broadcast.TargetTag)
	if err != nil {
		return err
	}
	return s.enqueue(broadcast, recipients)
}

// enqueue consumes quota and inserts one queue row per recipient, rendering
// {{name}} and {{phone}} per contact. All-or-nothing: quota is checked and
// reserved before any row is written.
func (s *BroadcastService) enqueue(broadcast *models.Broadcast, recipients []recipient) error {
	user, err := s.userRepo.GetByID(broadcast.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.PlanExpired() {
		return ErrPlanExpired
	}

	ok, err := s.userRepo.ConsumeQuota(user.ID, int64(len(recipients)))
	if err != nil {
		return err
	}
	if !ok {
		return ErrQuotaExceeded
	}

	messages := make([]*models.QueuedMessage, 0, len(recipients))
	for _, rcpt := range recipients {
		body := models.RenderBody(broadcast.Message, map[string]string{
			"name":  rcpt.name,
			"phone": rcpt.phone,
		})
		m := models.NewQueuedMessage(broadcast.UserID, broadcast.DeviceID, rcpt.phone, body)
		m.BroadcastID = &broadcast.ID
		messages = append(messages, m)
	}

	if err := s.queueRepo.Enqueue(messages); err != nil {
		return fmt.Errorf("failed to enqueue broadcast: %w", err)
	}

	if err := s.repo.SetRecipients(broadcast.ID, len(messages)); err != nil {
		return err
	}

	logger.Info("Broadcast enqueued",
		zap.String("broadcast_id", broadcast.ID),
		zap.Int("recipients", len(messages)),
	)

	return nil
}

// abandon finishes a claimed broadcast as failed when fan-out never happened,
// so quota- or plan-rejected sends do not linger in processing.
func (s *BroadcastService) abandon(broadcastID string) {
	if err := s.repo.MarkFailed(broadcastID); err != nil {
		logger.Error("Failed to mark broadcast failed",
			zap.String("broadcast_id", broadcastID),
			zap.Error(err),
		)
	}
}

// Cancel stops a draft or scheduled broadcast and drops its pending queue rows
func (s *BroadcastService) Cancel(userID, broadcastID string) error {
	if _, err := s.Get(userID, broadcastID); err != nil {
		return err
	}

	cancelled, err := s.repo.Cancel(broadcastID)
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrNotCancellable
	}

	dropped, err := s.queueRepo.CancelPendingByBroadcast(broadcastID)
	if err != nil {
		return err
	}

	logger.Info("Broadcast cancelled",
		zap.String("broadcast_id", broadcastID),
		zap.Int64("dropped_pending", dropped),
	)

	return nil
}

// Get retrieves a broadcast, enforcing ownership
func (s *BroadcastService) Get(userID, broadcastID string) (*models.Broadcast, error) {
	broadcast, err := s.repo.GetByID(broadcastID)
	if err != nil {
		return nil, err
	}
	if broadcast == nil {
		return nil, ErrBroadcastNotFound
	}
	if broadcast.UserID != userID {
		return nil, ErrNotBroadcastOwner
	}
	return broadcast, nil
}

// List retrieves a user's broadcasts
func (s *BroadcastService) List(userID string, limit, offset int) ([]*models.Broadcast, error) {
	return s.repo.ListByUser(userID, limit, offset)
}

// ownedDevice loads a device and enforces ownership
func (s *BroadcastService) ownedDevice(userID, deviceID string) (*models.Device, error) {
	device, err := s.deviceRepo.GetByID(deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	if device.UserID != userID {
		return nil, ErrNotDeviceOwner
	}
	return device, nil
}

// resolveMessage returns the send body: the raw message, or the template's
// body when a template is referenced.
func (s *BroadcastService) resolveMessage(userID, message string, templateID *string) (string, *string, error) {
	if templateID != nil && *templateID != "" {
		tmpl, err := s.templateRepo.GetByID(*templateID)
		if err != nil {
			return "", nil, err
		}
		if tmpl == nil {
			return "", nil, ErrTemplateNotFound
		}
		if tmpl.UserID != userID {
			return "", nil, ErrNotTemplateOwner
		}
		if tmpl.Status != models.TemplateActive {
			return "", nil, ErrTemplateArchived
		}
		return tmpl.Body, templateID, nil
	}

	if message == "" {
		return "", nil, ErrEmptyMessage
	}
	return message, nil, nil
}

// resolveRecipients turns the request targeting into deduplicated, normalized
// send targets. Explicit phones win over a tag when both are present.
func (s *BroadcastService) resolveRecipients(userID string, phones []string, tag string) ([]recipient, error) {
	var recipients []recipient
	seen := map[string]bool{}

	if len(phones) > 0 {
		for _, raw := range phones {
			phone, err := utils.NormalizePhone(raw)
			if err != nil {
				continue // invalid entries are skipped, not fatal
			}
			if seen[phone] {
				continue
			}
			seen[phone] = true

			name := ""
			if contact, err := s.contactRepo.GetByPhone(userID, phone); err == nil && contact != nil {
				name = contact.Name
			}
			recipients = append(recipients, recipient{phone: phone, name: name})
		}
	} else if tag != "" {
		contacts, err := s.contactRepo.ListByTag(userID, tag)
		if err != nil {
			return nil, err
		}
		for _, contact := range contacts {
			if seen[contact.Phone] {
				continue
			}
			seen[contact.Phone] = true
			recipients = append(recipients, recipient{phone: contact.Phone, name: contact.Name})
		}
	}

	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	return recipients, nil
}

package services

import (
	"errors"
	"fmt"

	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"go.uber.org/zap"
)

// MaxClaimBatch caps how many rows one bridge poll may take.
const MaxClaimBatch = 50

var (
	// ErrMessageNotFound indicates the queue row does not exist
	ErrMessageNotFound = errors.New("queued message not found")

	// ErrNotMessageDevice indicates the reporting device did not claim the row
	ErrNotMessageDevice = errors.New("message belongs to another device")

	// ErrAlreadyResolved indicates a result report for a row that is not
	// processing; the bridge should drop it.
	ErrAlreadyResolved = errors.New("message already resolved or requeued")
)

// QueueService is the bridge-facing half of the message queue: claiming
// batches, recording delivery results, and the history/stat reads the
// dashboard uses.
type QueueService struct {
	repo          db.QueueRepository
	broadcastRepo db.BroadcastRepository
}

// NewQueueService creates a new QueueService instance
func NewQueueService(repo db.QueueRepository, broadcastRepo db.BroadcastRepository) *QueueService {
	return &QueueService{
		repo:          repo,
		broadcastRepo: broadcastRepo,
	}
}

// Claim hands the device a batch of due pending rows. Rows move to
// processing atomically, so overlapping polls never double-claim.
func (s *QueueService) Claim(device *models.Device, limit int) ([]*models.QueuedMessage, error) {
	if device == nil {
		return nil, errors.New("device cannot be nil")
	}
	if limit <= 0 || limit > MaxClaimBatch {
		limit = MaxClaimBatch
	}

	messages, err := s.repo.Claim(device.ID, limit)
	if err != nil {
		return nil, err
	}

	if len(messages) > 0 {
		logger.Debug("Queue batch claimed",
			zap.String("device_id", device.ID),
			zap.Int("count", len(messages)),
		)
	}

	return messages, nil
}

// Resolve records the bridge's delivery result for a claimed row. Terminal
// outcomes are appended to history and rolled into the owning broadcast's
// counters. A result for a row the device never claimed, or one already
// resolved, is rejected.
func (s *QueueService) Resolve(device *models.Device, messageID, status string, sendErr *string) (*models.QueuedMessage, error) {
	if device == nil {
		return nil, errors.New("device cannot be nil")
	}

	existing, err := s.repo.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrMessageNotFound
	}
	if existing.DeviceID != device.ID {
		return nil, ErrNotMessageDevice
	}

	resolved, err := s.repo.Resolve(messageID, status, sendErr)
	if err != nil {
		if errors.Is(err, db.ErrNotClaimable) {
			return nil, ErrAlreadyResolved
		}
		return nil, err
	}

	// Only terminal outcomes hit history and the broadcast counters; a
	// failed attempt that went back to pending will be reported again.
	terminal := resolved.Status == models.QueueSent || resolved.Status == models.QueueFailed
	if !terminal {
		return resolved, nil
	}

	if err := s.repo.AppendHistory(&models.MessageHistory{
		UserID:      resolved.UserID,
		DeviceID:    resolved.DeviceID,
		BroadcastID: resolved.BroadcastID,
		Phone:       resolved.Phone,
		Body:        resolved.Body,
		Direction:   models.DirectionOutbound,
		Status:      resolved.Status,
		Error:       resolved.LastError,
	}); err != nil {
		return nil, fmt.Errorf("failed to log delivery: %w", err)
	}

	if resolved.BroadcastID != nil {
		sent := resolved.Status == models.QueueSent
		if err := s.broadcastRepo.RecordResult(*resolved.BroadcastID, sent); err != nil {
			return nil, fmt.Errorf("failed to update broadcast counters: %w", err)
		}
	}

	return resolved, nil
}

// Stats summarizes the user's queue for the dashboard
func (s *QueueService) Stats(userID string) (*models.QueueStats, error) {
	return s.repo.Stats(userID)
}

// History retrieves the user's delivery log with optional filters
func (s *QueueService) History(userID, deviceID, broadcastID, direction string, limit, offset int) ([]*models.MessageHistory, error) {
	if direction != "" && direction != models.DirectionOutbound && direction != models.DirectionInbound {
		return nil, fmt.Errorf("invalid direction: %s", direction)
	}
	return s.repo.ListHistory(userID, deviceID, broadcastID, direction, limit, offset)
}

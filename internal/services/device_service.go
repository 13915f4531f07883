package services

import (
	"errors"
	"fmt"

	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"go.uber.org/zap"
)

var (
	// ErrDeviceNotFound indicates the device does not exist
	ErrDeviceNotFound = errors.New("device not found")

	// ErrNotDeviceOwner indicates the caller does not own the device
	ErrNotDeviceOwner = errors.New("device belongs to another user")

	// ErrDeviceSlotsFull indicates the plan's device limit is reached
	ErrDeviceSlotsFull = errors.New("device limit reached for current plan")

	// ErrDeviceNotConnected indicates the device has no live session
	ErrDeviceNotConnected = errors.New("device is not connected")
)

// DeviceService provides business logic for WhatsApp device registration and
// the connection-status lifecycle driven by the bridge.
type DeviceService struct {
	repo      db.DeviceRepository
	userRepo  db.UserRepository
	addonRepo db.AddonRepository
}

// NewDeviceService creates a new DeviceService instance
func NewDeviceService(repo db.DeviceRepository, userRepo db.UserRepository, addonRepo db.AddonRepository) *DeviceService {
	return &DeviceService{
		repo:      repo,
		userRepo:  userRepo,
		addonRepo: addonRepo,
	}
}

// Register creates a device if the user has a free slot. Slots are the plan
// base plus one per active extra_device add-on.
func (s *DeviceService) Register(userID, name string, webhookURL *string) (*models.Device, error) {
	if name == "" {
		return nil, errors.New("device name is required")
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	slots, err := s.Slots(user)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountByUser(userID)
	if err != nil {
		return nil, err
	}
	if count >= slots {
		return nil, ErrDeviceSlotsFull
	}

	device := models.NewDevice(userID, name)
	device.WebhookURL = webhookURL

	if err := s.repo.Create(device); err != nil {
		return nil, err
	}

	logger.Info("Device registered",
		zap.String("device_id", device.ID),
		zap.String("user_id", userID),
	)

	return device, nil
}

// Slots returns the number of devices the user may register
func (s *DeviceService) Slots(user *models.User) (int, error) {
	extra, err := s.addonRepo.CountActiveGrants(user.ID, models.AddonExtraDevice)
	if err != nil {
		return 0, fmt.Errorf("failed to count extra device addons: %w", err)
	}
	return models.PlanDeviceSlots(user.Plan) + extra, nil
}

// Get retrieves a device, enforcing ownership
func (s *DeviceService) Get(userID, deviceID string) (*models.Device, error) {
	device, err := s.repo.GetByID(deviceID)
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

// List retrieves all devices owned by a user
func (s *DeviceService) List(userID string) ([]*models.Device, error) {
	return s.repo.ListByUser(userID)
}

// Update applies the tenant-editable settings: display name and webhook URL.
// An empty webhook URL clears the stored webhook.
func (s *DeviceService) Update(userID, deviceID string, req *models.UpdateDeviceRequest) (*models.Device, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if _, err := s.Get(userID, deviceID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, errors.New("device name is required")
		}
		if err := s.repo.Rename(deviceID, *req.Name); err != nil {
			return nil, err
		}
	}

	if req.WebhookURL != nil {
		webhook := req.WebhookURL
		if *webhook == "" {
			webhook = nil
		}
		if err := s.repo.SetWebhook(deviceID, webhook); err != nil {
			return nil, err
		}
	}

	return s.repo.GetByID(deviceID)
}

// Connect marks the device as pairing. The bridge picks the device up from
// this state and reports connected/disconnected back.
func (s *DeviceService) Connect(userID, deviceID string) (*models.Device, error) {
	device, err := s.Get(userID, deviceID)
	if err != nil {
		return nil, err
	}

	if device.Status == models.DeviceBanned {
		return nil, errors.New("device is banned")
	}
	if device.IsConnected() {
		return device, nil
	}

	if err := s.repo.UpdateStatus(deviceID, models.DeviceConnecting, "", ""); err != nil {
		return nil, err
	}

	return s.repo.GetByID(deviceID)
}

// Disconnect requests the session be dropped
func (s *DeviceService) Disconnect(userID, deviceID string) error {
	if _, err := s.Get(userID, deviceID); err != nil {
		return err
	}
	return s.repo.UpdateStatus(deviceID, models.DeviceDisconnected, "", "")
}

// Delete removes a device
func (s *DeviceService) Delete(userID, deviceID string) error {
	if _, err := s.Get(userID, deviceID); err != nil {
		return err
	}
	return s.repo.Delete(deviceID)
}

// HandleStatusReport applies a connection event posted by the bridge
func (s *DeviceService) HandleStatusReport(deviceID string, report *models.DeviceStatusReport) error {
	if report == nil {
		return errors.New("status report cannot be nil")
	}
	if !models.ValidDeviceStatus(report.Status) {
		return fmt.Errorf("invalid device status: %s", report.Status)
	}

	device, err := s.repo.GetByID(deviceID)
	if err != nil {
		return err
	}
	if device == nil {
		return ErrDeviceNotFound
	}

	if err := s.repo.UpdateStatus(deviceID, report.Status, report.Phone, report.JID); err != nil {
		return err
	}

	logger.Info("Device status updated",
		zap.String("device_id", deviceID),
		zap.String("status", report.Status),
	)

	return nil
}

// AuthenticateBridge resolves a device from its API key for /bridge routes
func (s *DeviceService) AuthenticateBridge(apiKey string) (*models.Device, error) {
	device, err := s.repo.GetByAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	return device, nil
}

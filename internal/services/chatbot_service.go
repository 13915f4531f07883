package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/gateway"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/logger"
	"github.com/zesbe/hallowa-sub001/pkg/utils"

	"go.uber.org/zap"
)

var (
	// ErrRuleNotFound indicates the chatbot rule does not exist
	ErrRuleNotFound = errors.New("chatbot rule not found")

	// ErrNotRuleOwner indicates the caller does not own the rule
	ErrNotRuleOwner = errors.New("chatbot rule belongs to another user")
)

// ChatbotService manages per-tenant auto-reply rules and handles inbound
// messages forwarded by the bridge. The feature is gated on the ai_chatbot
// add-on: without it inbound messages are only logged.
type ChatbotService struct {
	repo      db.ChatbotRepository
	queueRepo db.QueueRepository
	addonSvc  *AddonService
	ai        gateway.AIResponder
}

// NewChatbotService creates a new ChatbotService instance
func NewChatbotService(repo db.ChatbotRepository, queueRepo db.QueueRepository, addonSvc *AddonService, ai gateway.AIResponder) *ChatbotService {
	return &ChatbotService{
		repo:      repo,
		queueRepo: queueRepo,
		addonSvc:  addonSvc,
		ai:        ai,
	}
}

// CreateRule adds an auto-reply rule. Rule management itself requires the
// ai_chatbot add-on.
func (s *ChatbotService) CreateRule(userID string, req *models.CreateChatbotRuleRequest) (*models.ChatbotRule, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if err := s.addonSvc.RequireFeature(userID, models.AddonAIChatbot); err != nil {
		return nil, err
	}
	if req.MatchType != "" && !models.ValidMatchType(req.MatchType) {
		return nil, fmt.Errorf("invalid match type: %s", req.MatchType)
	}

	rule := models.NewChatbotRule(userID, req.Keyword, req.MatchType, req.Reply)
	rule.DeviceID = req.DeviceID
	rule.Priority = req.Priority

	if err := s.repo.Create(rule); err != nil {
		return nil, err
	}

	return rule, nil
}

// GetRule retrieves a rule, enforcing ownership
func (s *ChatbotService) GetRule(userID, ruleID string) (*models.ChatbotRule, error) {
	rule, err := s.repo.GetByID(ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, ErrRuleNotFound
	}
	if rule.UserID != userID {
		return nil, ErrNotRuleOwner
	}
	return rule, nil
}

// ListRules retrieves a user's rules in priority order
func (s *ChatbotService) ListRules(userID string) ([]*models.ChatbotRule, error) {
	return s.repo.ListByUser(userID)
}

// UpdateRule applies changes to a rule
func (s *ChatbotService) UpdateRule(userID, ruleID string, req *models.CreateChatbotRuleRequest) (*models.ChatbotRule, error) {
	rule, err := s.GetRule(userID, ruleID)
	if err != nil {
		return nil, err
	}

	if req.Keyword != "" {
		rule.Keyword = req.Keyword
	}
	if req.MatchType != "" {
		if !models.ValidMatchType(req.MatchType) {
			return nil, fmt.Errorf("invalid match type: %s", req.MatchType)
		}
		rule.MatchType = req.MatchType
	}
	if req.Reply != "" {
		rule.Reply = req.Reply
	}
	rule.Priority = req.Priority

	if err := s.repo.Update(rule); err != nil {
		return nil, err
	}

	return rule, nil
}

// SetRuleActive toggles a rule without touching its other fields
func (s *ChatbotService) SetRuleActive(userID, ruleID string, active bool) (*models.ChatbotRule, error) {
	rule, err := s.GetRule(userID, ruleID)
	if err != nil {
		return nil, err
	}
	rule.Active = active
	if err := s.repo.Update(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule removes a rule
func (s *ChatbotService) DeleteRule(userID, ruleID string) error {
	if _, err := s.GetRule(userID, ruleID); err != nil {
		return err
	}
	return s.repo.Delete(ruleID)
}

// HandleInbound processes one inbound message from the bridge: the message
// is always logged to history; a reply only goes out while the device owner
// holds the ai_chatbot add-on. Keyword rules are checked in priority order
// first; the AI endpoint is the fallback when none match. Returns the reply
// body, or empty when staying silent.
func (s *ChatbotService) HandleInbound(ctx context.Context, device *models.Device, from, body string) (string, error) {
	if device == nil {
		return "", errors.New("device cannot be nil")
	}

	phone, err := utils.NormalizePhone(from)
	if err != nil {
		return "", fmt.Errorf("invalid sender: %w", err)
	}

	if err := s.queueRepo.AppendHistory(&models.MessageHistory{
		UserID:    device.UserID,
		DeviceID:  device.ID,
		Phone:     phone,
		Body:      body,
		Direction: models.DirectionInbound,
		Status:    "received",
	}); err != nil {
		return "", err
	}

	enabled, err := s.addonSvc.HasFeature(device.UserID, models.AddonAIChatbot)
	if err != nil {
		return "", err
	}
	if !enabled {
		return "", nil
	}

	reply, err := s.resolveReply(ctx, device, phone, body)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", nil
	}

	msg := models.NewQueuedMessage(device.UserID, device.ID, phone, reply)
	if err := s.queueRepo.Enqueue([]*models.QueuedMessage{msg}); err != nil {
		return "", fmt.Errorf("failed to enqueue reply: %w", err)
	}

	logger.Info("Chatbot reply enqueued",
		zap.String("device_id", device.ID),
		zap.String("phone", phone),
	)

	return reply, nil
}

// resolveReply picks the first matching rule, falling back to the AI
// endpoint. AI failures are logged and swallowed so a flaky endpoint never
// breaks inbound ingestion.
func (s *ChatbotService) resolveReply(ctx context.Context, device *models.Device, from, body string) (string, error) {
	rules, err := s.repo.ListActiveForDevice(device.UserID, device.ID)
	if err != nil {
		return "", err
	}

	for _, rule := range rules {
		if rule.Matches(body) {
			return rule.Reply, nil
		}
	}

	reply, err := s.ai.Reply(ctx, from, body)
	if err != nil {
		if !errors.Is(err, gateway.ErrAINotConfigured) {
			logger.Warn("AI reply failed",
				zap.String("device_id", device.ID),
				zap.Error(err),
			)
		}
		return "", nil
	}

	return reply, nil
}

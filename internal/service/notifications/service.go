package notifications

import (
	"context"
	"time"

	"access-bot-backend/internal/common/logger"
	"access-bot-backend/internal/metrics"
	"access-bot-backend/internal/render"
)

const sendTimeout = 5 * time.Second

// Sender delivers messages through the chat transport.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg render.Reply) error
	Copy(ctx context.Context, toChatID, fromChatID int64, messageID int) error
}

// StaffDirectory lists who receives staff notifications.
type StaffDirectory interface {
	StaffIDs(ctx context.Context) ([]int64, error)
}

// Service sends best-effort notifications. Failures are logged and counted,
// never returned: the state change that triggered them is already committed.
type Service struct {
	sender  Sender
	staff   StaffDirectory
	metrics *metrics.Metrics
}

func NewService(sender Sender, staff StaffDirectory, m *metrics.Metrics) *Service {
	return &Service{sender: sender, staff: staff, metrics: m}
}

// ToUser sends msg to one chat and reports whether it was delivered.
func (s *Service) ToUser(ctx context.Context, userID int64, msg render.Reply) bool {
	if s == nil || s.sender == nil || userID == 0 || msg.Empty() {
		return false
	}
	return s.deliver(ctx, "user", userID, func(ctx context.Context) error {
		return s.sender.Send(ctx, userID, msg)
	})
}

// ToStaff sends msg to every staff member and returns how many got it.
func (s *Service) ToStaff(ctx context.Context, msg render.Reply) int {
	if s == nil || s.sender == nil || msg.Empty() {
		return 0
	}
	ids := s.staffIDs(ctx)
	sent := 0
	for _, id := range ids {
		if s.deliver(ctx, "staff", id, func(ctx context.Context) error {
			return s.sender.Send(ctx, id, msg)
		}) {
			sent++
		}
	}
	return sent
}

// CopyToStaff copies a user's message (a receipt file) to every staff member.
func (s *Service) CopyToStaff(ctx context.Context, fromChatID int64, messageID int) int {
	if s == nil || s.sender == nil || messageID == 0 {
		return 0
	}
	ids := s.staffIDs(ctx)
	sent := 0
	for _, id := range ids {
		if s.deliver(ctx, "staff_copy", id, func(ctx context.Context) error {
			return s.sender.Copy(ctx, id, fromChatID, messageID)
		}) {
			sent++
		}
	}
	return sent
}

func (s *Service) staffIDs(ctx context.Context) []int64 {
	if s.staff == nil {
		return nil
	}
	ids, err := s.staff.StaffIDs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list staff for notification")
		return nil
	}
	return ids
}

func (s *Service) deliver(ctx context.Context, kind string, chatID int64, fn func(context.Context) error) bool {
	// detached from the triggering request so a finished handler does not cancel delivery
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if err := fn(sendCtx); err != nil {
		s.metrics.Notification(kind, "failed")
		logger.Warn().Err(err).Str("kind", kind).Int64("chat_id", chatID).Msg("Notification not delivered")
		return false
	}
	s.metrics.Notification(kind, "sent")
	return true
}

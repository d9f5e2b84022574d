package staff

import (
	"context"
	"time"

	apperrors "access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/logger"
	domain "access-bot-backend/internal/domain/account"
	"access-bot-backend/internal/metrics"
	"access-bot-backend/internal/service/access"
)

const (
	// QueuePageSize is the number of requests shown per queue page.
	QueuePageSize = 5
	maxQueueLimit = 100
)

// Outcome of an arbitration call.
type Outcome int

const (
	// Won means this call resolved the request.
	Won Outcome = iota
	// AlreadyHandled means someone else resolved it first.
	AlreadyHandled
)

// Result is returned by Approve and Deny.
type Result struct {
	Outcome Outcome
	Account *domain.Account
}

// Listener is told about changes the affected user should hear of. It is
// only called by the caller that won the change.
type Listener interface {
	Decided(ctx context.Context, acc *domain.Account, approved bool)
	BanChanged(ctx context.Context, acc *domain.Account, banned bool)
	AccessRevoked(ctx context.Context, acc *domain.Account)
}

// Page is one slice of the unresolved queue.
type Page struct {
	Items  []domain.Account
	Total  int64
	Offset int
	Limit  int
}

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool { return p.Offset > 0 }

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return int64(p.Offset+len(p.Items)) < p.Total }

// PrevOffset returns the offset of the previous page, never negative.
func (p Page) PrevOffset() int {
	if p.Offset-p.Limit < 0 {
		return 0
	}
	return p.Offset - p.Limit
}

// NextOffset returns the offset of the next page.
func (p Page) NextOffset() int { return p.Offset + p.Limit }

// Service arbitrates payments and moderates accounts on behalf of staff.
type Service struct {
	repo     domain.Repository
	resolver *access.Resolver
	listener Listener
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(repo domain.Repository, resolver *access.Resolver, m *metrics.Metrics) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetListener registers who is told about won decisions.
func (s *Service) SetListener(l Listener) {
	s.listener = l
}

// Authorize returns the caller's role when it is staff.
func (s *Service) Authorize(ctx context.Context, actorID int64) (access.Role, error) {
	role, _, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return "", err
	}
	if !role.IsStaff() {
		return role, apperrors.NewForbiddenError("staff only").WithUserID(actorID)
	}
	return role, nil
}

// Approve grants access for the open request of userID. method overrides the
// recorded rail when not empty. Banned accounts are rejected up front.
func (s *Service) Approve(ctx context.Context, actorID, userID int64, method domain.PaymentMethod) (*Result, error) {
	return s.decide(ctx, "approve", actorID, userID, domain.StatusPaid, method)
}

// Deny refuses the open request of userID and drops any outstanding invoice.
func (s *Service) Deny(ctx context.Context, actorID, userID int64) (*Result, error) {
	return s.decide(ctx, "deny", actorID, userID, domain.StatusFailed, domain.MethodNone)
}

func (s *Service) decide(ctx context.Context, action string, actorID, userID int64, outcome domain.PaymentStatus, method domain.PaymentMethod) (*Result, error) {
	if _, err := s.Authorize(ctx, actorID); err != nil {
		return nil, err
	}
	acc, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, apperrors.NewNotFoundError("account", userID)
	}
	if outcome == domain.StatusPaid && acc.Banned {
		s.metrics.Decision(action, "banned")
		return nil, apperrors.NewBannedError(userID)
	}

	tr, err := domain.Settle(acc, outcome, domain.Resolution{StaffID: actorID, Method: method, At: s.now()})
	if err != nil {
		if apperrors.IsConflict(err) {
			s.metrics.Decision(action, "already_handled")
			return &Result{Outcome: AlreadyHandled, Account: acc}, nil
		}
		return nil, err
	}
	updated, err := s.repo.ConditionalUpdate(ctx, userID, tr)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		s.metrics.Decision(action, "already_handled")
		logger.Info().Int64("user_id", userID).Int64("staff_id", actorID).Str("action", action).Msg("Request already handled")
		return &Result{Outcome: AlreadyHandled, Account: acc}, nil
	}

	s.metrics.Decision(action, "won")
	logger.Info().Int64("user_id", userID).Int64("staff_id", actorID).Str("action", action).Msg("Payment request decided")
	if s.listener != nil {
		s.listener.Decided(ctx, updated, outcome == domain.StatusPaid)
	}
	return &Result{Outcome: Won, Account: updated}, nil
}

// Queue returns one page of unresolved requests, newest first.
func (s *Service) Queue(ctx context.Context, actorID int64, offset, limit int) (*Page, error) {
	if _, err := s.Authorize(ctx, actorID); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = QueuePageSize
	}
	if limit > maxQueueLimit {
		limit = maxQueueLimit
	}
	total, err := s.repo.CountUnresolved(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListUnresolved(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

// Ban blocks targetID. Unban lifts it. Both require the caller to outrank
// the target's standing; owners are never affected.
func (s *Service) Ban(ctx context.Context, actorID, targetID int64) (*domain.Account, error) {
	return s.setBanned(ctx, actorID, targetID, true)
}

func (s *Service) Unban(ctx context.Context, actorID, targetID int64) (*domain.Account, error) {
	return s.setBanned(ctx, actorID, targetID, false)
}

func (s *Service) setBanned(ctx context.Context, actorID, targetID int64, banned bool) (*domain.Account, error) {
	if _, err := s.checkRank(ctx, actorID, targetID); err != nil {
		return nil, err
	}
	acc, err := s.repo.SetBanned(ctx, targetID, banned)
	if err != nil {
		return nil, err
	}
	logger.Info().Int64("user_id", targetID).Int64("staff_id", actorID).Bool("banned", banned).Msg("Ban state changed")
	if s.listener != nil {
		s.listener.BanChanged(ctx, acc, banned)
	}
	return acc, nil
}

// GrantRole gives targetID a stored staff role. The caller must be owner or
// admin, outrank the role being granted and outrank the target.
func (s *Service) GrantRole(ctx context.Context, actorID, targetID int64, role domain.Role) (*domain.Account, error) {
	if role == domain.RoleNone || !role.Valid() {
		return nil, apperrors.NewValidationError("role", "must be admin or moderator")
	}
	actor, err := s.checkRoleChange(ctx, actorID, targetID, role)
	if err != nil {
		return nil, err
	}
	acc, err := s.repo.SetRole(ctx, targetID, role)
	if err != nil {
		return nil, err
	}
	logger.Info().Int64("user_id", targetID).Int64("staff_id", actorID).Str("actor_role", string(actor)).Str("role", string(role)).Msg("Role granted")
	return acc, nil
}

// RevokeRole removes role from targetID. A target not holding role is a conflict.
func (s *Service) RevokeRole(ctx context.Context, actorID, targetID int64, role domain.Role) (*domain.Account, error) {
	if role == domain.RoleNone || !role.Valid() {
		return nil, apperrors.NewValidationError("role", "must be admin or moderator")
	}
	if _, err := s.checkRoleChange(ctx, actorID, targetID, role); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.Role != role {
		return nil, apperrors.NewConflictError("account", "target does not hold role "+string(role)).WithUserID(targetID)
	}
	acc, err := s.repo.SetRole(ctx, targetID, domain.RoleNone)
	if err != nil {
		return nil, err
	}
	logger.Info().Int64("user_id", targetID).Int64("staff_id", actorID).Str("role", string(role)).Msg("Role revoked")
	return acc, nil
}

func (s *Service) checkRoleChange(ctx context.Context, actorID, targetID int64, role domain.Role) (access.Role, error) {
	actor, err := s.checkRank(ctx, actorID, targetID)
	if err != nil {
		return "", err
	}
	if !actor.CanManageRoles() {
		return "", apperrors.NewForbiddenError("only owners and admins manage roles").WithUserID(actorID)
	}
	granted := access.Moderator
	if role == domain.RoleAdmin {
		granted = access.Admin
	}
	if !actor.Outranks(granted) {
		return "", apperrors.NewForbiddenError("cannot manage role " + string(role)).WithUserID(actorID)
	}
	return actor, nil
}

// checkRank authorizes actorID as staff acting on targetID.
func (s *Service) checkRank(ctx context.Context, actorID, targetID int64) (access.Role, error) {
	actor, err := s.Authorize(ctx, actorID)
	if err != nil {
		return "", err
	}
	if s.resolver.IsOwner(targetID) {
		return "", apperrors.NewForbiddenError("owners cannot be moderated").WithUserID(actorID)
	}
	if actorID == targetID {
		return "", apperrors.NewForbiddenError("cannot moderate yourself").WithUserID(actorID)
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return "", err
	}
	if !actor.Outranks(s.resolver.StandingOf(targetID, target)) {
		return "", apperrors.NewForbiddenError("target rank is not lower").WithUserID(actorID)
	}
	return actor, nil
}

// RevokeAccess returns a paid account to none so it can buy again.
func (s *Service) RevokeAccess(ctx context.Context, actorID, userID int64) (*domain.Account, error) {
	if _, err := s.Authorize(ctx, actorID); err != nil {
		return nil, err
	}
	acc, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, apperrors.NewNotFoundError("account", userID)
	}
	tr, err := domain.Revoke(acc)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.ConditionalUpdate(ctx, userID, tr)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NewConflictError("account", "access already revoked").WithUserID(userID)
	}
	s.metrics.Decision("revoke", "won")
	logger.Info().Int64("user_id", userID).Int64("staff_id", actorID).Msg("Access revoked")
	if s.listener != nil {
		s.listener.AccessRevoked(ctx, updated)
	}
	return updated, nil
}

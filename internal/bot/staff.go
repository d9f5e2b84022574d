package bot

import (
	"context"
	"strconv"
	"strings"

	apperrors "access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/logger"
	domain "access-bot-backend/internal/domain/account"
	"access-bot-backend/internal/render"
	"access-bot-backend/internal/service/access"
	"access-bot-backend/internal/service/staff"
	"access-bot-backend/internal/texts"
)

var (
	staffCommandList   = []string{"/approve <id>", "/deny <id>", "/ban <id>", "/unban <id>", "/revoke <id>", "/queue"}
	managerCommandList = []string{"/mod_add <id>", "/mod_remove <id>"}
	ownerCommandList   = []string{"/admin_add <id>", "/admin_remove <id>"}
)

// staffCommands lists the commands role may use, one per line.
func staffCommands(role access.Role) string {
	cmds := append([]string{}, staffCommandList...)
	if role.CanManageRoles() {
		cmds = append(cmds, managerCommandList...)
	}
	if role == access.Owner {
		cmds = append(cmds, ownerCommandList...)
	}
	return strings.Join(cmds, "\n")
}

// targetArg reads the user id argument of a staff command.
func (h *Handler) targetArg(s *session) (int64, *render.Reply) {
	if !s.role.IsStaff() {
		r := h.reply(texts.StaffOnly)
		return 0, &r
	}
	if len(s.update.Args) == 0 {
		r := h.format(texts.CommandUsage, texts.Vars{"command": s.update.Command})
		return 0, &r
	}
	id, ok := parseID(s.update.Args[0])
	if !ok {
		r := h.format(texts.CommandUsage, texts.Vars{"command": s.update.Command})
		return 0, &r
	}
	return id, nil
}

func (h *Handler) approveCommand(ctx context.Context, s *session) render.Reply {
	id, usage := h.targetArg(s)
	if usage != nil {
		return *usage
	}
	return h.approve(ctx, s, id)
}

func (h *Handler) denyCommand(ctx context.Context, s *session) render.Reply {
	id, usage := h.targetArg(s)
	if usage != nil {
		return *usage
	}
	return h.deny(ctx, s, id)
}

func (h *Handler) banCommand(ctx context.Context, s *session) render.Reply {
	id, usage := h.targetArg(s)
	if usage != nil {
		return *usage
	}
	return h.ban(ctx, s, id, true)
}

func (h *Handler) unbanCommand(ctx context.Context, s *session) render.Reply {
	id, usage := h.targetArg(s)
	if usage != nil {
		return *usage
	}
	return h.ban(ctx, s, id, false)
}

func (h *Handler) revokeCommand(ctx context.Context, s *session) render.Reply {
	id, usage := h.targetArg(s)
	if usage != nil {
		return *usage
	}
	if _, err := h.staff.RevokeAccess(ctx, s.update.SenderID, id); err != nil {
		if apperrors.IsConflict(err) {
			return h.reply(texts.AlreadyHandled)
		}
		return h.staffError(err)
	}
	return h.format(texts.RevokeSuccess, texts.Vars{"id": strconv.FormatInt(id, 10)})
}

func (h *Handler) queueCommand(ctx context.Context, s *session) render.Reply {
	if !s.role.IsStaff() {
		return h.reply(texts.StaffOnly)
	}
	return h.queuePage(ctx, s, 0, false)
}

func (h *Handler) roleCommand(role domain.Role, grant bool) func(context.Context, *session) render.Reply {
	return func(ctx context.Context, s *session) render.Reply {
		if s.role.IsStaff() && !s.role.CanManageRoles() {
			return h.reply(texts.ManagersOnly)
		}
		id, usage := h.targetArg(s)
		if usage != nil {
			return *usage
		}
		vars := texts.Vars{"id": strconv.FormatInt(id, 10), "role": string(role)}
		var err error
		if grant {
			_, err = h.staff.GrantRole(ctx, s.update.SenderID, id, role)
		} else {
			_, err = h.staff.RevokeRole(ctx, s.update.SenderID, id, role)
		}
		if err != nil {
			if apperrors.IsConflict(err) {
				return h.reply(texts.AlreadyHandled)
			}
			return h.staffError(err)
		}
		if grant {
			return h.format(texts.RoleGranted, vars)
		}
		return h.format(texts.RoleRevoked, vars)
	}
}

func (h *Handler) approveCallback(ctx context.Context, s *session, arg string) render.Reply {
	return h.staffCallback(s, arg, func(id int64) render.Reply { return h.approve(ctx, s, id) })
}

func (h *Handler) denyCallback(ctx context.Context, s *session, arg string) render.Reply {
	return h.staffCallback(s, arg, func(id int64) render.Reply { return h.deny(ctx, s, id) })
}

func (h *Handler) banCallback(ctx context.Context, s *session, arg string) render.Reply {
	return h.staffCallback(s, arg, func(id int64) render.Reply { return h.ban(ctx, s, id, true) })
}

func (h *Handler) queueCallback(ctx context.Context, s *session, arg string) render.Reply {
	if !s.role.IsStaff() {
		return h.reply(texts.StaffOnly)
	}
	offset, err := strconv.Atoi(arg)
	if err != nil || offset < 0 {
		offset = 0
	}
	return h.queuePage(ctx, s, offset, true)
}

// staffCallback parses the target id and marks the reply as an edit of the
// staff message the button was on.
func (h *Handler) staffCallback(s *session, arg string, fn func(int64) render.Reply) render.Reply {
	if !s.role.IsStaff() {
		return h.reply(texts.StaffOnly)
	}
	id, ok := parseID(arg)
	if !ok {
		logger.Warn().Str("callback", s.update.Callback).Msg("Malformed staff callback")
		return render.Reply{}
	}
	r := fn(id)
	r.Edit = true
	return r
}

func (h *Handler) approve(ctx context.Context, s *session, userID int64) render.Reply {
	res, err := h.staff.Approve(ctx, s.update.SenderID, userID, domain.MethodNone)
	vars := texts.Vars{"id": strconv.FormatInt(userID, 10)}
	if err != nil {
		if apperrors.IsBanned(err) {
			return h.format(texts.ApproveBanned, vars)
		}
		return h.staffError(err)
	}
	if res.Outcome == staff.AlreadyHandled {
		return h.reply(texts.AlreadyHandled)
	}
	return h.format(texts.ApproveSuccess, vars)
}

func (h *Handler) deny(ctx context.Context, s *session, userID int64) render.Reply {
	res, err := h.staff.Deny(ctx, s.update.SenderID, userID)
	if err != nil {
		return h.staffError(err)
	}
	if res.Outcome == staff.AlreadyHandled {
		return h.reply(texts.AlreadyHandled)
	}
	return h.format(texts.DenySuccess, texts.Vars{"id": strconv.FormatInt(userID, 10)})
}

func (h *Handler) ban(ctx context.Context, s *session, userID int64, banned bool) render.Reply {
	var err error
	if banned {
		_, err = h.staff.Ban(ctx, s.update.SenderID, userID)
	} else {
		_, err = h.staff.Unban(ctx, s.update.SenderID, userID)
	}
	if err != nil {
		return h.staffError(err)
	}
	vars := texts.Vars{"id": strconv.FormatInt(userID, 10)}
	if banned {
		return h.format(texts.BanSuccess, vars)
	}
	return h.format(texts.UnbanSuccess, vars)
}

func (h *Handler) queuePage(ctx context.Context, s *session, offset int, edit bool) render.Reply {
	page, err := h.staff.Queue(ctx, s.update.SenderID, offset, staff.QueuePageSize)
	if err != nil {
		return h.staffError(err)
	}
	if page.Total == 0 || len(page.Items) == 0 {
		r := h.reply(texts.QueueEmpty)
		r.Edit = edit
		return r
	}

	lines := []string{h.texts.Format(texts.QueueHeader, texts.Vars{"count": strconv.FormatInt(page.Total, 10)})}
	var rows [][]render.Button
	for i := range page.Items {
		acc := &page.Items[i]
		lines = append(lines, h.texts.Format(texts.QueueItem, texts.Vars{
			"name":   acc.DisplayName(),
			"id":     strconv.FormatInt(acc.ID, 10),
			"method": string(acc.PaidMethod),
			"status": string(acc.PaymentStatus),
		}))
		rows = append(rows, h.decisionRow(acc.ID))
	}

	var nav []render.Button
	if page.HasPrev() {
		nav = append(nav, render.Callback(h.texts.Text(texts.ButtonPrev), callbackData(CallbackQueue, page.PrevOffset())))
	}
	if page.HasNext() {
		nav = append(nav, render.Callback(h.texts.Text(texts.ButtonNext), callbackData(CallbackQueue, page.NextOffset())))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return render.Reply{Text: strings.Join(lines, "\n"), Inline: rows, Edit: edit}
}

// decisionRow holds the approve, deny and ban buttons for one request.
func (h *Handler) decisionRow(userID int64) []render.Button {
	return render.Row(
		render.Callback(h.texts.Text(texts.ButtonApprove), callbackData(CallbackApprove, userID)),
		render.Callback(h.texts.Text(texts.ButtonDeny), callbackData(CallbackDeny, userID)),
		render.Callback(h.texts.Text(texts.ButtonBan), callbackData(CallbackBan, userID)),
	)
}

func (h *Handler) staffError(err error) render.Reply {
	switch {
	case apperrors.IsNotFound(err):
		return h.reply(texts.UserNotFound)
	case apperrors.IsForbidden(err):
		return h.reply(texts.RankTooLow)
	case apperrors.IsValidation(err):
		return h.reply(texts.Fallback)
	}
	logger.Error().Err(err).Msg("Staff action failed")
	return h.reply(texts.PaymentError)
}

// Package bot turns chat updates into calls on the payment and staff
// services and renders the replies. It knows nothing about the transport.
package bot

import (
	"strconv"
	"strings"

	"access-bot-backend/internal/common/validation"
	domain "access-bot-backend/internal/domain/account"
)

// Callback data prefixes and actions.
const (
	CallbackPay          = "pay"
	CallbackPayRub       = "pay_rub"
	CallbackPayUSDT      = "pay_usdt"
	CallbackReceiptSent  = "rub_receipt_sent"
	CallbackCheckInvoice = "check_invoice"
	CallbackApprove      = "admin_approve"
	CallbackDeny         = "admin_deny"
	CallbackBan          = "admin_ban"
	CallbackQueue        = "admin_queue"
)

// Update is one incoming event as the transport parsed it.
type Update struct {
	SenderID  int64
	Username  string
	FirstName string
	LastName  string

	// Command is the command name without the slash and bot suffix.
	Command string
	Args    []string
	// Callback is the raw callback data of a button press.
	Callback string
	Text     string
	// HasAttachment is set for photos and documents.
	HasAttachment bool
	MessageID     int
}

// Profile returns the normalized identity fields of the sender.
func (u Update) Profile() domain.Profile {
	return validation.Profile(domain.Profile{
		ID:        u.SenderID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	})
}

// ParseCommand splits "/cmd@bot a b" into "cmd" and its arguments. ok is
// false for text that is not a command.
func ParseCommand(text string) (name string, args []string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name = fields[0]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), fields[1:], true
}

// callbackData joins an action and its argument.
func callbackData(action string, arg interface{}) string {
	switch v := arg.(type) {
	case int64:
		return action + ":" + strconv.FormatInt(v, 10)
	case int:
		return action + ":" + strconv.Itoa(v)
	case string:
		return action + ":" + v
	}
	return action
}

// splitCallback splits "action:argument".
func splitCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return action, arg
}

func parseID(raw string) (int64, bool) {
	id, err := validation.UserID("user_id", raw)
	return id, err == nil
}

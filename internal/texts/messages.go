package texts

// MessageID names an overridable message. The YAML key of each id is listed in names.
type MessageID int

const (
	Welcome MessageID = iota
	Help
	Support
	Info
	ChooseMethod
	PayRub
	PayUSDT
	Access
	PaymentPending
	PaymentExpired
	PaymentFailed
	PaymentError
	PaymentCheckLater
	RubDisabled
	CryptoDisabled
	InvoiceNotFound
	ReceiptReceived
	ReceiptSent
	ReceiptIgnored
	Fallback
	Banned

	AdminWelcome
	StaffOnly
	ManagersOnly
	CommandUsage
	AlreadyHandled
	ApproveSuccess
	DenySuccess
	ApproveBanned
	UserApproved
	UserDenied
	UserNotFound
	QueueHeader
	QueueEmpty
	QueueItem
	BanSuccess
	UnbanSuccess
	UserBannedNotice
	UserUnbannedNotice
	RoleGranted
	RoleRevoked
	RankTooLow
	RevokeSuccess
	UserAccessRevoked
	StaffNewReceipt
	StaffReceiptFile

	ButtonPay
	ButtonSupport
	ButtonInfo
	ButtonQueue
	ButtonPayRub
	ButtonPayUSDT
	ButtonCheckPayment
	ButtonPayQR
	ButtonReceiptSent
	ButtonPayCrypto
	ButtonApprove
	ButtonDeny
	ButtonBan
	ButtonPrev
	ButtonNext
	Placeholder

	messageCount
)

var names = [messageCount]string{
	Welcome:           "welcome",
	Help:              "help",
	Support:           "support",
	Info:              "info",
	ChooseMethod:      "choose_method",
	PayRub:            "pay_rub",
	PayUSDT:           "pay_usdt",
	Access:            "access",
	PaymentPending:    "payment_pending",
	PaymentExpired:    "payment_expired",
	PaymentFailed:     "payment_failed",
	PaymentError:      "payment_error",
	PaymentCheckLater: "payment_check_later",
	RubDisabled:       "rub_disabled",
	CryptoDisabled:    "crypto_disabled",
	InvoiceNotFound:   "invoice_not_found",
	ReceiptReceived:   "receipt_received",
	ReceiptSent:       "receipt_sent",
	ReceiptIgnored:    "receipt_ignored",
	Fallback:          "fallback",
	Banned:            "banned",

	AdminWelcome:       "admin_welcome",
	StaffOnly:          "staff_only",
	ManagersOnly:       "managers_only",
	CommandUsage:       "command_usage",
	AlreadyHandled:     "already_handled",
	ApproveSuccess:     "approve_success",
	DenySuccess:        "deny_success",
	ApproveBanned:      "approve_banned",
	UserApproved:       "user_approved",
	UserDenied:         "user_denied",
	UserNotFound:       "user_not_found",
	QueueHeader:        "queue_header",
	QueueEmpty:         "queue_empty",
	QueueItem:          "queue_item",
	BanSuccess:         "ban_success",
	UnbanSuccess:       "unban_success",
	UserBannedNotice:   "user_banned_notice",
	UserUnbannedNotice: "user_unbanned_notice",
	RoleGranted:        "role_granted",
	RoleRevoked:        "role_revoked",
	RankTooLow:         "rank_too_low",
	RevokeSuccess:      "revoke_success",
	UserAccessRevoked:  "user_access_revoked",
	StaffNewReceipt:    "staff_new_receipt",
	StaffReceiptFile:   "staff_receipt_file",

	ButtonPay:          "button_pay",
	ButtonSupport:      "button_support",
	ButtonInfo:         "button_info",
	ButtonQueue:        "button_queue",
	ButtonPayRub:       "button_pay_rub",
	ButtonPayUSDT:      "button_pay_usdt",
	ButtonCheckPayment: "button_check_payment",
	ButtonPayQR:        "button_pay_qr",
	ButtonReceiptSent:  "button_receipt_sent",
	ButtonPayCrypto:    "button_pay_crypto",
	ButtonApprove:      "button_approve",
	ButtonDeny:         "button_deny",
	ButtonBan:          "button_ban",
	ButtonPrev:         "button_prev",
	ButtonNext:         "button_next",
	Placeholder:        "placeholder",
}

// String returns the YAML key of id.
func (id MessageID) String() string {
	if id < 0 || id >= messageCount {
		return "unknown"
	}
	return names[id]
}

// Placeholders available everywhere: {price_rub} {currency} {price_usdt}
// {asset} {support} {access_url}. Per-message ones are documented inline.
var defaults = [messageCount]string{
	Welcome: "Привет! 👋\n" +
		"Здесь ты получишь доступ к сервису, который предоставляет:\n\n" +
		"✅ Рабочие аудио/видео-звонки в Telegram и WhatsApp\n" +
		"✅ YouTube и Roblox без ограничений\n" +
		"✅ Быстрый мобильный интернет — где бы ты ни находился\n\n" +
		"💰 Стоимость доступа: {price_rub} {currency}\n" +
		"Нажми кнопку ниже, чтобы продолжить 👇",
	Help: "Здесь ты можешь получить доступ к сервису без ограничений.\n" +
		"Для продолжения выбери действие с помощью кнопок ниже 👇",
	Support:      "Если у тебя есть вопросы, напиши администратору 💬\n{support}",
	Info:         "💳 Получить доступ — {price_rub} {currency}",
	ChooseMethod: "Выбери способ оплаты:\n\n💰 {price_rub} {currency}\n🪙 {price_usdt} {asset}",
	PayRub: "Чтобы оплатить доступ в рублях, нажми кнопку ниже👇\n\n" +
		"Сумма к оплате: {price_rub} {currency}\n" +
		"После оплаты отправь чек в этот чат и нажми кнопку «Я отправил чек».",
	PayUSDT: "Чтобы оплатить доступ криптовалютой, нажми кнопку ниже👇\n\n" +
		"Сумма к оплате: {price_usdt} {asset}\n" +
		"После оплаты нажми кнопку «Проверить оплату».",
	Access: "✅ Оплата подтверждена!\n\n" +
		"Теперь переходи и устанавливай сервис:\n{access_url}",
	PaymentPending:    "Доступ еще не оплачен. Попробуй проверить чуть позже.",
	PaymentExpired:    "Платеж истек. Создай новый счет.",
	PaymentFailed:     "Платеж не прошел. Попробуй создать новый счет.",
	PaymentError:      "Не удалось проверить оплату. Попробуй позже.",
	PaymentCheckLater: "Платежный сервис сейчас недоступен. Проверь оплату через пару минут.",
	RubDisabled:       "Оплата в рублях временно недоступна. Попробуй позже.",
	CryptoDisabled:    "Оплата криптовалютой временно недоступна. Попробуй позже.",
	InvoiceNotFound:   "Счет не найден. Создай новый счет.",
	ReceiptReceived:   "Чек получен. Нажми кнопку «Я отправил чек».",
	ReceiptSent:       "Спасибо! Чек отправлен администратору. Ожидай подтверждения.",
	ReceiptIgnored:    "Сначала выбери оплату в рублях, затем отправь чек.",
	Fallback:          "Для работы с ботом используй кнопки ниже 👇",
	Banned:            "Доступ к боту ограничен.",

	AdminWelcome: "Админ-режим. Доступные команды:\n{commands}",
	StaffOnly:    "Команда доступна только администратору.",
	ManagersOnly: "Команда доступна только владельцу или администратору.",
	// {command}
	CommandUsage:   "Использование: /{command} <user_id>",
	AlreadyHandled: "Запрос уже обработан.",
	// {id}
	ApproveSuccess: "Доступ выдан пользователю {id}.",
	DenySuccess:    "Оплата пользователя {id} отклонена.",
	ApproveBanned:  "Пользователь {id} заблокирован, доступ не выдан.",
	UserApproved:   "✅ Оплата подтверждена. Доступ выдан.\n{access_url}",
	UserDenied:     "❌ Оплата отклонена. Если это ошибка, напиши в поддержку.",
	UserNotFound:   "Пользователь не найден.",
	// {count}
	QueueHeader: "Очередь ожидающих оплат ({count}):",
	QueueEmpty:  "Нет ожидающих оплат.",
	// {name} {id} {method} {status}
	QueueItem:          "{name} ({id}) {method} {status}",
	BanSuccess:         "Пользователь {id} заблокирован.",
	UnbanSuccess:       "Пользователь {id} разблокирован.",
	UserBannedNotice:   "Доступ к боту ограничен администратором.",
	UserUnbannedNotice: "Доступ к боту восстановлен.",
	// {id} {role}
	RoleGranted:       "Пользователю {id} назначена роль {role}.",
	RoleRevoked:       "Пользователь {id} больше не {role}.",
	RankTooLow:        "Недостаточно прав для действия над этим пользователем.",
	RevokeSuccess:     "Доступ пользователя {id} отозван.",
	UserAccessRevoked: "Доступ к сервису отозван. Чтобы продолжить, оформи оплату заново.",
	// {name} {id}
	StaffNewReceipt:  "🧾 {name} ({id}) отправил чек об оплате в рублях.",
	StaffReceiptFile: "📎 Файл чека от {name} ({id}):",

	ButtonPay:          "💳 Оплатить {price_rub} {currency}",
	ButtonSupport:      "💬 Поддержка",
	ButtonInfo:         "ℹ️ Получить доступ",
	ButtonQueue:        "Показать запросы",
	ButtonPayRub:       "💰 В рублях",
	ButtonPayUSDT:      "🪙 В криптовалюте",
	ButtonCheckPayment: "✅ Проверить оплату",
	ButtonPayQR:        "📲 Оплатить по СБП",
	ButtonReceiptSent:  "✅ Я отправил чек",
	ButtonPayCrypto:    "💳 Оплатить",
	ButtonApprove:      "Разрешить доступ",
	ButtonDeny:         "Отклонить доступ",
	ButtonBan:          "Заблокировать",
	ButtonPrev:         "◀ Назад",
	ButtonNext:         "Вперед ▶",
	Placeholder:        "Выберите пункт меню...",
}

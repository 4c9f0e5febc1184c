package models

import "time"

// NotificationKind тип уведомления; совпадает с routing key в RabbitMQ.
type NotificationKind string

const (
	NotifyPaymentApproved NotificationKind = "payment_approved"
	NotifyPaymentDenied   NotificationKind = "payment_denied"
	NotifyLastDay         NotificationKind = "last_day"
	NotifyDueTomorrow     NotificationKind = "due_tomorrow"
	NotifyExpiredRemoval  NotificationKind = "expired_removal"
	NotifyAccessExpired   NotificationKind = "access_expired"
	NotifyAdminNewMember  NotificationKind = "admin_new_member"
	NotifyAdminRenewal    NotificationKind = "admin_renewal"
)

// NotificationKinds все известные типы уведомлений.
func NotificationKinds() []NotificationKind {
	return []NotificationKind{
		NotifyPaymentApproved,
		NotifyPaymentDenied,
		NotifyLastDay,
		NotifyDueTomorrow,
		NotifyExpiredRemoval,
		NotifyAccessExpired,
		NotifyAdminNewMember,
		NotifyAdminRenewal,
	}
}

// Notification исходящее сообщение пользователю или администратору.
// Текст формируется при доставке, здесь только данные.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	ChatID    int64            `json:"chat_id"`
	Subject   Member           `json:"subject"`
	PaidUntil time.Time        `json:"paid_until,omitzero"`
}

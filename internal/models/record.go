// Package models содержит доменные структуры членства в платной группе:
// запись о подписке участника, журнал платежей и строки отчётов.
package models

import "time"

// Record представляет подписку одного участника группы.
// Все даты календарные (полночь UTC), см. пакет calendar.
type Record struct {
	PlatformID      int64     `json:"platform_id"`  // Идентификатор пользователя на платформе, неизменяемый ключ
	Handle          string    `json:"handle"`       // Username без "@", может быть пустым
	FirstName       string    `json:"first_name"`   // Имя, может быть пустым
	LastName        string    `json:"last_name"`    // Фамилия, может быть пустой
	JoinDate        time.Time `json:"join_date"`    // Дата первой регистрации, не меняется
	PaidUntil       time.Time `json:"paid_until"`   // Последний оплаченный день доступа
	LastPaymentDate time.Time `json:"last_payment"` // Дата последнего одобрения платежа
}

// DisplayName возвращает имя и фамилию через пробел.
func (r Record) DisplayName() string {
	switch {
	case r.FirstName == "":
		return r.LastName
	case r.LastName == "":
		return r.FirstName
	default:
		return r.FirstName + " " + r.LastName
	}
}

// PaymentEvent запись журнала одобренных платежей. Только добавляется.
type PaymentEvent struct {
	ID          int64
	PlatformID  int64
	PaymentDate time.Time
	PaidUntil   time.Time
}

// Member профиль пользователя, полученный от платформы.
type Member struct {
	PlatformID int64  `json:"platform_id"`
	Handle     string `json:"handle,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	IsBot      bool   `json:"is_bot,omitempty"`
}

// ExpiringRow строка отчёта о заканчивающихся подписках.
type ExpiringRow struct {
	Handle      string // Username или "N/A"
	DisplayName string // Имя и фамилия
	PaidUntil   string // Дата в формате 2006-01-02
}

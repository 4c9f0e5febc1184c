// Package auth определяет, кто может выполнять административные команды.
package auth

import "slices"

// Policy неизменяемый список администраторов.
type Policy struct {
	admins []int64
}

// NewPolicy создаёт политику; дубликаты и нулевые идентификаторы отбрасываются.
func NewPolicy(admins []int64) *Policy {
	list := make([]int64, 0, len(admins))
	for _, id := range admins {
		if id != 0 && !slices.Contains(list, id) {
			list = append(list, id)
		}
	}
	return &Policy{admins: list}
}

// IsAdmin true, если пользователь администратор.
func (p *Policy) IsAdmin(platformID int64) bool {
	return slices.Contains(p.admins, platformID)
}

// Admins копия списка администраторов в исходном порядке.
func (p *Policy) Admins() []int64 {
	return slices.Clone(p.admins)
}

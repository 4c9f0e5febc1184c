package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_IsAdmin(t *testing.T) {
	p := NewPolicy([]int64{111, 222})

	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{name: "first admin", id: 111, want: true},
		{name: "second admin", id: 222, want: true},
		{name: "regular user", id: 333, want: false},
		{name: "zero id", id: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.IsAdmin(tt.id))
		})
	}
}

func TestPolicy_Admins(t *testing.T) {
	p := NewPolicy([]int64{5, 0, 3, 5})
	assert.Equal(t, []int64{5, 3}, p.Admins())

	list := p.Admins()
	list[0] = 99
	assert.False(t, p.IsAdmin(99))
}

func TestPolicy_Empty(t *testing.T) {
	p := NewPolicy(nil)
	assert.Empty(t, p.Admins())
	assert.False(t, p.IsAdmin(1))
}

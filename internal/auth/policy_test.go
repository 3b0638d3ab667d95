package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPolicyService_ParsesIDLists(t *testing.T) {
	p := NewPolicyService("1, 2", "3,notanumber,4")

	assert.True(t, p.IsAdmin(1))
	assert.True(t, p.IsAdmin(2))
	assert.False(t, p.IsAdmin(3))

	assert.True(t, p.IsAllowed(3))
	assert.True(t, p.IsAllowed(4))
	assert.False(t, p.IsAllowed(99))
}

func TestIsAllowed_EmptyListAllowsEveryone(t *testing.T) {
	p := NewPolicyService("1", "")

	assert.True(t, p.IsAllowed(42))
	assert.True(t, p.IsAllowed(1))
}

func TestIsAllowed_AdminsAlwaysAllowed(t *testing.T) {
	p := NewPolicyService("1", "2")

	assert.True(t, p.IsAllowed(1), "admin not in allowed list is still allowed")
	assert.True(t, p.IsAllowed(2))
	assert.False(t, p.IsAllowed(3))
}

func TestCanAsk(t *testing.T) {
	p := NewPolicyService("", "7")

	assert.True(t, p.CanAsk(7))
	assert.False(t, p.CanAsk(8))
}

func TestCanReindex_AdminOnly(t *testing.T) {
	p := NewPolicyService("1", "")

	assert.True(t, p.CanReindex(1))
	assert.False(t, p.CanReindex(2))
}

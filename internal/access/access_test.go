package access

import (
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestControl_AdminHoldsEveryRole(t *testing.T) {
	control := New("admin")

	assert.True(t, control.Has("admin", entity.AdminRole))
	assert.True(t, control.Has("admin", entity.StaffRole))
	assert.True(t, control.Has("admin", entity.ServerRole))
	assert.False(t, control.Has("alice", entity.StaffRole))
}

func TestControl_GrantAndRevoke(t *testing.T) {
	control := New("admin")

	assert.NoError(t, control.Grant("admin", "alice", entity.StaffRole))
	assert.True(t, control.Has("alice", entity.StaffRole))
	assert.False(t, control.Has("alice", entity.ServerRole))

	assert.NoError(t, control.Revoke("admin", "alice", entity.StaffRole))
	assert.False(t, control.Has("alice", entity.StaffRole))
}

func TestControl_GrantRequiresAdmin(t *testing.T) {
	control := New("admin")

	assert.Equal(t, ErrNotAdmin, control.Grant("alice", "bob", entity.StaffRole))
	assert.Equal(t, ErrNotAdmin, control.Revoke("alice", "bob", entity.StaffRole))
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		actor, target Role
		want          bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleManager, true},
		{RoleAdmin, RoleUser, true},
		{RoleManager, RoleAdmin, false},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleGabai, true},
		{RoleGabai, RoleManager, false},
		{RoleGabai, RoleGabai, true},
		{RoleGabai, RoleUser, true},
		{RoleUser, RoleGabai, false},
		{RoleUser, RoleUser, true},
		{Role("superuser"), RoleUser, false},
		{RoleAdmin, Role(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.actor)+">="+string(tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actor.AtLeast(tt.target))
		})
	}
}

func TestRoleAbove(t *testing.T) {
	assert.True(t, RoleAdmin.Above(RoleManager))
	assert.True(t, RoleGabai.Above(RoleUser))
	assert.False(t, RoleGabai.Above(RoleGabai))
	assert.False(t, RoleUser.Above(RoleGabai))
}

func TestRolesAreStrictlyOrdered(t *testing.T) {
	roles := Roles()
	for i := 0; i < len(roles)-1; i++ {
		assert.True(t, roles[i].Above(roles[i+1]), "%s should be above %s", roles[i], roles[i+1])
		assert.False(t, roles[i+1].AtLeast(roles[i]))
	}
}

func TestRoleElevated(t *testing.T) {
	assert.True(t, RoleAdmin.Elevated())
	assert.True(t, RoleManager.Elevated())
	assert.True(t, RoleGabai.Elevated())
	assert.False(t, RoleUser.Elevated())
	assert.False(t, Role("").Elevated())
}

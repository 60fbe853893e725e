package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyIsValid(t *testing.T) {
	policy := DefaultPolicy()
	require.NoError(t, policy.Validate())

	require.Len(t, policy.Levels, 4)
	assert.Equal(t, 2*time.Minute, policy.Levels[0].Deadline)
	assert.Equal(t, 5*time.Minute, policy.Levels[1].Deadline)
	assert.Equal(t, 10*time.Minute, policy.Levels[2].Deadline)
	assert.Equal(t, 15*time.Minute, policy.Levels[3].Deadline)

	assert.Equal(t, RecipientEmergencyContacts, policy.Levels[0].Recipients)
	assert.Equal(t, RecipientPlatformAdmins, policy.Levels[1].Recipients)
	assert.Equal(t, RecipientAuthorities, policy.Levels[2].Recipients)
	assert.Equal(t, RecipientDispatch, policy.Levels[3].Recipients)

	assert.False(t, policy.Levels[0].Terminal)
	assert.True(t, policy.FinalLevel().Terminal)
}

func TestPolicyValidateRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{
			name:   "no levels",
			mutate: func(p *Policy) { p.Levels = nil },
		},
		{
			name:   "out of sequence",
			mutate: func(p *Policy) { p.Levels[1].Level = 3 },
		},
		{
			name:   "non increasing deadline",
			mutate: func(p *Policy) { p.Levels[2].Deadline = p.Levels[1].Deadline },
		},
		{
			name:   "missing recipient class",
			mutate: func(p *Policy) { p.Levels[0].Recipients = "" },
		},
		{
			name:   "missing template",
			mutate: func(p *Policy) { p.Levels[3].Template = "" },
		},
		{
			name:   "terminal before final level",
			mutate: func(p *Policy) { p.Levels[1].Terminal = true },
		},
		{
			name:   "final level not terminal",
			mutate: func(p *Policy) { p.Levels[3].Terminal = false },
		},
		{
			name:   "ends below the dispatch level",
			mutate: func(p *Policy) { p.Levels = p.Levels[:3]; p.Levels[2].Terminal = true },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultPolicy()
			tt.mutate(policy)
			assert.Error(t, policy.Validate())
		})
	}
}

func TestPolicyLevelsAbove(t *testing.T) {
	policy := DefaultPolicy()

	pending := policy.LevelsAbove(0)
	require.Len(t, pending, 4)
	assert.Equal(t, 1, pending[0].Level)

	pending = policy.LevelsAbove(2)
	require.Len(t, pending, 2)
	assert.Equal(t, 3, pending[0].Level)
	assert.Equal(t, 4, pending[1].Level)

	assert.Nil(t, policy.LevelsAbove(4))
}

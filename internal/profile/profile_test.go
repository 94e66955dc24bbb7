package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Profile
		want Profile
	}{
		{
			name: "empty timezone gets default",
			in:   Profile{ID: "u1", Status: "approved"},
			want: Profile{ID: "u1", Status: StatusApproved, Timezone: DefaultTimezone},
		},
		{
			name: "status is canonicalized",
			in:   Profile{ID: "u2", Status: " Pending ", Timezone: "Europe/Berlin"},
			want: Profile{ID: "u2", Status: StatusPending, Timezone: "Europe/Berlin"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestApproved(t *testing.T) {
	assert.True(t, Profile{Status: StatusApproved}.Approved())
	assert.False(t, Profile{Status: StatusPending}.Approved())
	assert.False(t, Profile{Status: StatusRejected}.Approved())
}

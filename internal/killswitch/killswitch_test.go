package killswitch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Engaged(t *testing.T) {
	s := Static{Flags: map[string]bool{"instant_mode": true}}

	engaged, err := s.Engaged(context.Background(), "instant_mode")
	require.NoError(t, err)
	assert.True(t, engaged)

	engaged, err = s.Engaged(context.Background(), "unknown_switch")
	require.NoError(t, err)
	assert.False(t, engaged, "an unlisted switch name defaults to not engaged")
}

func TestStatic_NilFlagsDefaultsToDisengaged(t *testing.T) {
	var s Static
	engaged, err := s.Engaged(context.Background(), "instant_mode")
	require.NoError(t, err)
	assert.False(t, engaged)
}

package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceClampsAtEnd(t *testing.T) {
	p := New([]string{"a.abc", "b.abc", "c.abc"})

	require.True(t, p.Seek(2))
	assert.False(t, p.Advance())
	assert.Equal(t, 2, p.Index())
	assert.True(t, p.AtEnd())
}

func TestRetreatClampsAtStart(t *testing.T) {
	p := New([]string{"a.abc", "b.abc", "c.abc"})

	assert.False(t, p.Retreat())
	assert.Equal(t, 0, p.Index())
	assert.Equal(t, "a.abc", p.Current())
}

func TestAdvanceRetreatMoveByOne(t *testing.T) {
	p := New([]string{"a.abc", "b.abc", "c.abc"})

	assert.True(t, p.Advance())
	assert.Equal(t, "b.abc", p.Current())
	assert.False(t, p.AtEnd())

	assert.True(t, p.Retreat())
	assert.Equal(t, "a.abc", p.Current())
}

func TestEmptyPlaylistIsInert(t *testing.T) {
	p := New(nil)

	assert.Zero(t, p.Len())
	assert.False(t, p.Advance())
	assert.False(t, p.Retreat())
	assert.Equal(t, "", p.Current())
	assert.True(t, p.AtEnd())
}

func TestParseJSON(t *testing.T) {
	p, err := ParseJSON([]byte(`["one.abc","two.abc"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"one.abc", "two.abc"}, p.Entries())

	_, err = ParseJSON([]byte(`{"not":"a list"}`))
	assert.Error(t, err)
}

func TestSeekClamps(t *testing.T) {
	p := New([]string{"a", "b", "c"})

	p.Seek(99)
	assert.Equal(t, 2, p.Index())
	p.Seek(-5)
	assert.Equal(t, 0, p.Index())
}

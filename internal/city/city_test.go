package city

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByID(t *testing.T) {
	l := Defaults()

	c, ok := l.ByID("92")
	require.True(t, ok)
	assert.Equal(t, "Ottawa", c.Name)

	_, ok = l.ByID("999")
	assert.False(t, ok)
}

func TestEligibleFiltersSkipAndKeepsOrder(t *testing.T) {
	l := List{
		{Name: "A", ID: "1"},
		{Name: "B", ID: "2", Skip: true},
		{Name: "C", ID: "3"},
	}

	got := l.Eligible()
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "C", got[1].Name)
}

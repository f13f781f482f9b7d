package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveParents(t *testing.T) {
	parentMap := map[string]string{
		"c1": "p1",
		"c2": "p1",
		"c3": "p2",
	}

	t.Run("siblings collapse keeping the best score", func(t *testing.T) {
		resolved := ResolveParents([]Candidate{
			{ID: "c1", Score: 0.9},
			{ID: "c2", Score: 0.5},
			{ID: "c3", Score: 0.7},
		}, parentMap)

		require.Len(t, resolved, 2)
		assert.Equal(t, Candidate{ID: "p1", Score: 0.9}, resolved[0])
		assert.Equal(t, Candidate{ID: "p2", Score: 0.7}, resolved[1])
	})

	t.Run("later sibling can raise the parent score", func(t *testing.T) {
		resolved := ResolveParents([]Candidate{
			{ID: "c1", Score: 0.3},
			{ID: "c2", Score: 0.8},
		}, parentMap)

		require.Len(t, resolved, 1)
		assert.Equal(t, Candidate{ID: "p1", Score: 0.8}, resolved[0])
	})

	t.Run("unmapped candidates pass through", func(t *testing.T) {
		resolved := ResolveParents([]Candidate{
			{ID: "standalone", Score: 0.6},
			{ID: "c3", Score: 0.4},
		}, parentMap)

		require.Len(t, resolved, 2)
		assert.Equal(t, "standalone", resolved[0].ID)
		assert.Equal(t, "p2", resolved[1].ID)
	})

	t.Run("empty map is a no-op", func(t *testing.T) {
		in := []Candidate{{ID: "c1", Score: 0.9}}
		assert.Equal(t, in, ResolveParents(in, nil))
	})

	t.Run("result is ordered by score descending", func(t *testing.T) {
		resolved := ResolveParents([]Candidate{
			{ID: "c3", Score: 0.2},
			{ID: "c1", Score: 0.9},
		}, parentMap)

		require.Len(t, resolved, 2)
		assert.Equal(t, "p1", resolved[0].ID)
		assert.Equal(t, "p2", resolved[1].ID)
	})
}

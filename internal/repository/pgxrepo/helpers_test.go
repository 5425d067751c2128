package pgxrepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, dedupeIDs([]int64{3, 1, 3, 2, 1}))
	assert.Empty(t, dedupeIDs(nil))
}

func TestDedupeCodes(t *testing.T) {
	assert.Equal(t, []string{"W1", "W2"}, dedupeCodes([]string{"W1", " W1 ", "W2", ""}))
	assert.Empty(t, dedupeCodes([]string{"", "  "}))
}

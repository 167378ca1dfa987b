package keygen

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeReferenceFormat(t *testing.T) {
	at := time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC)

	ref, err := TradeReference(at)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^BO20261014-[A-Z0-9]{10}$`), ref)
	assert.LessOrEqual(t, len(ref), 36, "Reference must fit the trades.reference column")
}

func TestTradeReferenceUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref, err := TradeReference(time.Now())
		require.NoError(t, err)
		assert.False(t, seen[ref], "Reference %s generated twice", ref)
		seen[ref] = true
	}
}

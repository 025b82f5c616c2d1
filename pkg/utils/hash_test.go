package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKeyIsStable(t *testing.T) {
	assert.Equal(t, HashKey("tagCounts", "s3"), HashKey("tagCounts", "s3"))
	assert.Len(t, HashKey("tagCounts"), 64)
}

func TestHashKeySeparatesParts(t *testing.T) {
	assert.NotEqual(t, HashKey("a,b"), HashKey("a", "b"))
	assert.NotEqual(t, HashKey("ab", "c"), HashKey("a", "bc"))
}

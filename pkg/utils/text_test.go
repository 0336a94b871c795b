package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "", TruncateByRunes("abc", 0))
	assert.Equal(t, "abc", TruncateByRunes("abc", 5))
	assert.Equal(t, "ab", TruncateByRunes("abc", 2))
	assert.Equal(t, "创意", TruncateByRunes("创意文案", 2))
	assert.Equal(t, 4, RuneLen("创意文案"))
}

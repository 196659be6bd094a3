package mongo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageSkip(t *testing.T) {
	assert.Equal(t, int64(0), pageSkip(0, 20))
	assert.Equal(t, int64(0), pageSkip(1, 20))
	assert.Equal(t, int64(20), pageSkip(2, 20))
	assert.Equal(t, int64(math.MaxInt64), pageSkip(math.MaxInt, 100))
	assert.Equal(t, int64(math.MaxInt64), pageSkip(math.MaxInt64/50, 100))
}

package sliceops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSwapBuf(t *testing.T) {
	in := []byte{1, 2, 3, 4}
	out := SwapBuf(in)
	assert.Equal(t, []byte{4, 3, 2, 1}, out)
	assert.Equal(t, []byte{1, 2, 3, 4}, in, "input must not be mutated")

	assert.Equal(t, []byte{7}, SwapBuf([]byte{7}))
	assert.Empty(t, SwapBuf(nil))
}

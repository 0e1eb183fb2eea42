package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEase(t *testing.T) {
	for _, k := range []string{EaseLinear, EaseSmooth, EaseCubic, "bogus"} {
		assert.Equal(t, 0.0, Ease(k, -1), k)
		assert.Equal(t, 1.0, Ease(k, 2), k)
		assert.InDelta(t, 0.5, Ease(k, 0.5), 1e-9, k)
	}
	assert.InDelta(t, 0.25, Ease(EaseLinear, 0.25), 1e-9)
	assert.InDelta(t, 0.15625, Ease(EaseSmooth, 0.25), 1e-9)
	assert.InDelta(t, 0.103515625, Ease(EaseCubic, 0.25), 1e-9)
}

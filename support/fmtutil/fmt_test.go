package fmtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendCompactPixel(t *testing.T) {
	cases := []struct {
		v    float32
		want string
	}{
		{0, "0.0"},
		{12.5, "12.5"},
		{-0.004, "-0.004"},
	}
	for _, c := range cases {
		got := string(AppendCompactPixel(nil, c.v))
		assert.Equal(t, c.want, got)
	}
}

func TestAppendCompactPixelArray(t *testing.T) {
	got := string(AppendCompactPixelArray(nil, []float32{0, 1, -1}))
	assert.Equal(t, "[0.0,1.0,-1.0]", got)
}

// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package fmtutil contains formatting helpers.
package fmtutil

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Hex is a byte slice that renders as a hex-dumped string.
//
// It can be used for easy lazy hex dumping.
type Hex []byte

func (h Hex) String() string { return hex.Dump([]byte(h)) }

// HexSlice is a byte slice that renders as a sequence of hex bytes, instead
// of the default decimal bytes.
//
// Output as: "[4]byte{0x10, 0x20, 0x30, 0x40}"
//
// It can be used for easy lazy hex dumping.
type HexSlice []byte

func (hs HexSlice) String() string {
	var sb bytes.Buffer
	sb.Grow((6 * len(hs)) + 16) // 16 is more than we need for static content.
	fmt.Fprintf(&sb, "[%d]byte{", len(hs))
	for i, b := range hs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "0x%02X", b)
	}
	sb.WriteString("}")
	return sb.String()
}

// AppendCompactPixel appends a compact JSON number representation of v to
// buf, using at most five digits after the decimal point and no trailing
// fractional zeros. This keeps the "setVars" frame sent to display devices as small as
// possible, since it dominates outbound bandwidth and is sent at frame rate.
func AppendCompactPixel(buf []byte, v float32) []byte {
	start := len(buf)
	buf = strconv.AppendFloat(buf, float64(v), 'f', 5, 32)

	// Trim trailing fractional zeros (but keep at least one digit after the
	// point, matching numpy's suppress_small=True rendering).
	if bytes.IndexByte(buf[start:], '.') >= 0 {
		end := len(buf)
		for end > start+1 && buf[end-1] == '0' && buf[end-2] != '.' {
			end--
		}
		buf = buf[:end]
	}
	return buf
}

// AppendCompactPixelArray appends a JSON array of compact pixel values to
// buf, e.g. "[0.0,12.5,-0.004]".
func AppendCompactPixelArray(buf []byte, values []float32) []byte {
	buf = append(buf, '[')
	for i, v := range values {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = AppendCompactPixel(buf, v)
	}
	buf = append(buf, ']')
	return buf
}

// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package network contains generic network constants and utilities.
package network

const (
	// MaxUDPSize is the largest UDP package size.
	MaxUDPSize = 65507
)

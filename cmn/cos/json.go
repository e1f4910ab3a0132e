// Package cos provides common low-level types and utilities for ratmq
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	jsoniter "github.com/json-iterator/go"
)

var JSON = jsoniter.Config{
	EscapeHTML:             false, // we don't send HTML
	ValidateJsonRawMessage: false,
	// Need to be sure that we have exactly the same struct as user requested.
	DisallowUnknownFields: true,
	SortMapKeys:           true,
}.Froze()

func MustMarshal(v any) []byte {
	b, err := JSON.Marshal(v)
	if err != nil {
		Exitf("json marshal failed: %v", err)
	}
	return b
}

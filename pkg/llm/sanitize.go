// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import "github.com/coderunner/engine/pkg/llm/types"

// SanitizeForTarget strips opaque, provider-and-model-scoped Thinking
// signatures from every message whose recorded source provider or model
// doesn't exactly match the target, and drops per-provider extension
// metadata that doesn't belong to the target provider. Messages already
// scoped to the target are returned unchanged. The input slice is not
// mutated; a new slice is returned.
func SanitizeForTarget(messages []types.Message, targetProvider, targetModel string) []types.Message {
	out := make([]types.Message, len(messages))
	for i, msg := range messages {
		if msg.Metadata.Provider == targetProvider && msg.Metadata.Model == targetModel {
			out[i] = msg
			continue
		}
		out[i] = stripThinkingSignatures(msg, targetProvider)
	}
	return out
}

func stripThinkingSignatures(msg types.Message, targetProvider string) types.Message {
	blocks := make([]types.ContentBlock, len(msg.Blocks))
	changed := false
	for i, b := range msg.Blocks {
		if tb, ok := b.(types.ThinkingBlock); ok && tb.Signature != "" {
			blocks[i] = types.ThinkingBlock{Content: tb.Content}
			changed = true
			continue
		}
		blocks[i] = b
	}
	if !changed {
		blocks = msg.Blocks
	}

	meta := msg.Metadata
	if meta.Provider != targetProvider {
		meta.Extensions = nil
	}

	return types.Message{Role: msg.Role, Blocks: blocks, Metadata: meta}
}

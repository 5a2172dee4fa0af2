// Package sse implements the chat-completions style event stream used between
// the chat endpoint and its clients: one "data: <json>" line per token delta,
// closed by "data: [DONE]".
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	dataPrefix  = "data: "
	donePayload = "[DONE]"
)

// Chunk is the JSON payload of a single event.
type Chunk struct {
	Choices []Choice `json:"choices"`
}

// Choice carries one delta.
type Choice struct {
	Delta Delta `json:"delta"`
}

// Delta holds the token text.
type Delta struct {
	Content string `json:"content"`
}

// DeltaFrame encodes content as a complete event, trailing blank line included.
func DeltaFrame(content string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(dataPrefix)
	enc := json.NewEncoder(&buf)
	// 标签文本（<site_config> 等）按原样输出，不转义为 \u003c。
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Chunk{Choices: []Choice{{Delta: Delta{Content: content}}}}); err != nil {
		return nil, fmt.Errorf("failed to marshal delta: %w", err)
	}
	// Encode 已追加一个换行，再补一个空行结束事件。
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// DoneFrame returns the terminating event.
func DoneFrame() []byte {
	return []byte(dataPrefix + donePayload + "\n\n")
}

package backend

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	ssePrefix    = "data: "
	sseDone      = "[DONE]"
	maxSSELine   = 1 << 20
	initSSEAlloc = 64 << 10
)

type streamChunk struct {
	Content  string         `json:"content"`
	IsFinal  bool           `json:"is_final"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// assistantMessage is a fully accumulated assistant reply.
type assistantMessage struct {
	Content  string
	IsFinal  bool
	Metadata map[string]any
}

// readAssistantStream accumulates a server-sent event stream into one
// message. Only "data: " lines are read; lines that are not valid JSON are
// skipped and "[DONE]" ends the stream early.
func readAssistantStream(r io.Reader) (assistantMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, initSSEAlloc), maxSSELine)

	var (
		content strings.Builder
		msg     assistantMessage
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		data := strings.TrimPrefix(line, ssePrefix)
		if data == sseDone {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		content.WriteString(chunk.Content)
		if chunk.IsFinal {
			msg.IsFinal = true
			msg.Metadata = chunk.Metadata
		}
	}
	if err := scanner.Err(); err != nil {
		return assistantMessage{}, fmt.Errorf("read event stream: %w", err)
	}

	msg.Content = strings.TrimSpace(content.String())
	return msg, nil
}

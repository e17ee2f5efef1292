package main

import (
	"encoding/json"
	"fmt"
)

// apiEventKind enumerates the decoded wire events.
type apiEventKind int

const (
	apiMessageStart apiEventKind = iota
	apiContentBlockStart
	apiContentBlockDelta
	apiContentBlockStop
	apiMessageDelta
	apiMessageStop
	apiError
	apiParseError
	apiStreamError
)

func (k apiEventKind) String() string {
	switch k {
	case apiMessageStart:
		return "message_start"
	case apiContentBlockStart:
		return "content_block_start"
	case apiContentBlockDelta:
		return "content_block_delta"
	case apiContentBlockStop:
		return "content_block_stop"
	case apiMessageDelta:
		return "message_delta"
	case apiMessageStop:
		return "message_stop"
	case apiError:
		return "error"
	case apiParseError:
		return "parse_error"
	case apiStreamError:
		return "stream_error"
	}
	return fmt.Sprintf("apiEventKind(%d)", int(k))
}

const (
	blockTypeText    = "text"
	blockTypeToolUse = "tool_use"

	deltaTypeText      = "text_delta"
	deltaTypeInputJSON = "input_json_delta"
)

// apiBlock is the content block announced by content_block_start.
type apiBlock struct {
	Type  string
	Text  string
	ID    string
	Name  string
	Input json.RawMessage // raw "input" value, may be absent
}

type apiDelta struct {
	Type        string
	Text        string
	PartialJSON string
}

// apiEvent is one decoded SSE frame. Index, Block and Delta are only set for
// the content block kinds; Err is set for the three error kinds.
type apiEvent struct {
	Kind  apiEventKind
	Index int
	Block apiBlock
	Delta apiDelta
	Usage *Usage
	Err   error
}

type EventKind int

const (
	EventMessageStart EventKind = iota
	EventTextDelta
	EventToolCallStart
	EventToolExecuting
	EventToolResult
	EventError
	EventMessageStop
)

func (k EventKind) String() string {
	switch k {
	case EventMessageStart:
		return "message_start"
	case EventTextDelta:
		return "text_delta"
	case EventToolCallStart:
		return "tool_call_start"
	case EventToolExecuting:
		return "tool_executing"
	case EventToolResult:
		return "tool_result"
	case EventError:
		return "error"
	case EventMessageStop:
		return "message_stop"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// StreamEvent is what the agent loop reports to the renderer.
type StreamEvent struct {
	Kind    EventKind
	Text    string
	ID      string
	Name    string
	Result  string
	IsError bool
	Err     error
	Usage   *Usage
}

func textDelta(s string) StreamEvent { return StreamEvent{Kind: EventTextDelta, Text: s} }

func errorEvent(err error) StreamEvent { return StreamEvent{Kind: EventError, Err: err} }

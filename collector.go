package main

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

type pendingToolCall struct {
	id        string
	name      string
	args      strings.Builder
	active    bool
	completed bool
}

// toolCallCollector rebuilds tool invocations from the block events of a
// single streamed response. Slots are keyed by content block index; indices
// that never saw a tool_use start stay inactive and ignore deltas.
type toolCallCollector struct {
	slots []*pendingToolCall
}

func (c *toolCallCollector) process(ev apiEvent) {
	if ev.Index < 0 || ev.Index > maxBlockIndex {
		ev.Index = 0
	}
	switch ev.Kind {
	case apiContentBlockStart:
		if ev.Block.Type != blockTypeToolUse {
			return
		}
		for len(c.slots) <= ev.Index {
			c.slots = append(c.slots, &pendingToolCall{})
		}
		p := &pendingToolCall{id: ev.Block.ID, name: ev.Block.Name, active: true}
		p.args.WriteString(initialArgs(ev.Block.Input))
		c.slots[ev.Index] = p
	case apiContentBlockDelta:
		if ev.Delta.Type != deltaTypeInputJSON {
			return
		}
		if p := c.slot(ev.Index); p != nil {
			p.args.WriteString(ev.Delta.PartialJSON)
		}
	case apiContentBlockStop:
		if p := c.slot(ev.Index); p != nil {
			p.completed = true
		}
	}
}

func (c *toolCallCollector) slot(i int) *pendingToolCall {
	if i < 0 || i >= len(c.slots) || !c.slots[i].active {
		return nil
	}
	return c.slots[i]
}

func (c *toolCallCollector) hasCompletedCalls() bool {
	for _, p := range c.slots {
		if p.completed {
			return true
		}
	}
	return false
}

// takeCompleted returns the completed calls in index order and clears every
// slot, completed or not.
func (c *toolCallCollector) takeCompleted() []ToolCall {
	var calls []ToolCall
	for _, p := range c.slots {
		if !p.completed {
			continue
		}
		calls = append(calls, ToolCall{ID: p.id, Name: p.name, Input: objectOrEmpty(p.args.String())})
	}
	c.reset()
	return calls
}

func (c *toolCallCollector) reset() {
	c.slots = nil
}

// initialArgs seeds the argument buffer from the block's input value. Some
// servers send the whole input up front, usually as {} followed by deltas.
func initialArgs(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	v := gjson.ParseBytes(raw)
	switch {
	case v.Type == gjson.String:
		return v.Str
	case v.IsObject() && len(v.Map()) > 0:
		return v.Raw
	}
	return ""
}

func objectOrEmpty(s string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return json.RawMessage("{}")
	}
	return json.RawMessage(s)
}

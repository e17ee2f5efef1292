package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"goa.design/clue/log"
	"golang.org/x/sync/errgroup"
)

const maxParallelTools = 8

type agentState int

const (
	stateRequesting agentState = iota
	stateStreaming
	stateExecutingTools
	stateDone
)

func (s agentState) String() string {
	switch s {
	case stateRequesting:
		return "requesting"
	case stateStreaming:
		return "streaming"
	case stateExecutingTools:
		return "executing_tools"
	case stateDone:
		return "done"
	}
	return fmt.Sprintf("agentState(%d)", int(s))
}

type AgentOptions struct {
	Model     string
	MaxTokens int
	// MaxRounds caps model requests per turn; 0 means no limit.
	MaxRounds     int
	ParallelTools bool
	// SystemPrompt is evaluated before every request.
	SystemPrompt func() string
}

// Agent drives one conversation: request, stream, run tools, repeat until
// the model answers without tool calls. It is not safe for concurrent use.
type Agent struct {
	provider  Provider
	tools     ToolExecutor
	toolDefs  []ToolDef
	session   *Session
	events    chan<- StreamEvent
	opts      AgentOptions
	collector toolCallCollector
	state     agentState
}

// NewAgent wires an agent. events may be nil when nobody renders.
func NewAgent(provider Provider, tools ToolExecutor, session *Session, events chan<- StreamEvent, opts AgentOptions) *Agent {
	if session == nil {
		session = NewSession(opts.Model)
	}
	if opts.SystemPrompt == nil {
		opts.SystemPrompt = func() string { return "" }
	}
	return &Agent{
		provider: provider,
		tools:    tools,
		toolDefs: tools.Definitions(),
		session:  session,
		events:   events,
		opts:     opts,
		state:    stateDone,
	}
}

func (a *Agent) Session() *Session { return a.session }

func (a *Agent) Model() string { return a.opts.Model }

func (a *Agent) SetModel(model string) {
	a.opts.Model = model
	a.session.Model = model
}

func (a *Agent) SetProvider(p Provider) { a.provider = p }

// Submit appends the user's input and runs the loop.
func (a *Agent) Submit(ctx context.Context, input string) error {
	a.session.Append(UserText(input))
	return a.Run(ctx)
}

// Run drives rounds on the current history until the model stops calling
// tools. Request and stream failures are reported once as an EventError and
// returned; they leave the history as it was before the failing round.
func (a *Agent) Run(ctx context.Context) error {
	ctx = log.With(ctx, log.KV{K: "session", V: a.session.ID}, log.KV{K: "model", V: a.opts.Model})
	start := time.Now()
	log.Info(ctx, log.KV{K: "msg", V: "turn started"}, log.KV{K: "messages", V: a.session.Len()}, log.KV{K: "topic", V: a.session.Summary()})

	for round := 1; ; round++ {
		if a.opts.MaxRounds > 0 && round > a.opts.MaxRounds {
			err := fmt.Errorf("stopped after %d rounds without a final answer", a.opts.MaxRounds)
			log.Warn(ctx, log.KV{K: "msg", V: "round limit reached"}, log.KV{K: "rounds", V: a.opts.MaxRounds})
			a.emit(ctx, errorEvent(err))
			a.setState(ctx, stateDone)
			return nil
		}
		if err := ctx.Err(); err != nil {
			a.setState(ctx, stateDone)
			return err
		}

		done, err := a.round(log.With(ctx, log.KV{K: "round", V: round}))
		if err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "turn failed"}, log.KV{K: "round", V: round})
			return err
		}
		if done {
			log.Info(ctx, log.KV{K: "msg", V: "turn finished"}, log.KV{K: "rounds", V: round}, log.KV{K: "duration", V: time.Since(start).String()})
			return nil
		}
	}
}

// round performs one request and reports whether the turn is over.
func (a *Agent) round(ctx context.Context) (bool, error) {
	a.collector.reset()
	var text strings.Builder

	a.setState(ctx, stateRequesting)
	a.emit(ctx, StreamEvent{Kind: EventMessageStart})

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := a.provider.SendStream(streamCtx, Request{
		Model:        a.opts.Model,
		MaxTokens:    a.opts.MaxTokens,
		SystemPrompt: a.opts.SystemPrompt(),
		Messages:     a.session.Messages,
		Tools:        a.toolDefs,
	})
	if err != nil {
		a.setState(ctx, stateDone)
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		a.emit(ctx, errorEvent(err))
		return true, err
	}

	a.setState(ctx, stateStreaming)
	res := a.drain(ctx, stream, &text)
	cancel()
	if res.err == nil && ctx.Err() != nil {
		res.err = ctx.Err()
	}
	if res.err != nil {
		a.setState(ctx, stateDone)
		return true, res.err
	}

	a.session.Usage.Add(res.usage)
	a.emit(ctx, StreamEvent{Kind: EventMessageStop, Usage: &res.usage})

	if a.collector.hasCompletedCalls() {
		calls := a.collector.takeCompleted()
		blocks := make([]ContentBlock, 0, len(calls)+1)
		if text.Len() > 0 {
			blocks = append(blocks, TextBlock(text.String()))
		}
		for _, c := range calls {
			blocks = append(blocks, ToolUseBlock(c.ID, c.Name, c.Input))
		}
		a.session.Append(Message{Role: RoleAssistant, Blocks: blocks})

		a.setState(ctx, stateExecutingTools)
		a.executeTools(ctx, calls)
		return false, nil
	}

	if text.Len() > 0 {
		a.session.Append(Message{Role: RoleAssistant, Blocks: []ContentBlock{TextBlock(text.String())}})
	}
	a.setState(ctx, stateDone)
	return true, res.apiErr
}

type drainResult struct {
	usage  Usage
	apiErr error // server error event; ends the stream but keeps the response
	err    error // aborts the turn
}

// drain consumes the stream up to the first stop marker, server error or
// transport failure.
func (a *Agent) drain(ctx context.Context, stream <-chan apiEvent, text *strings.Builder) drainResult {
	var r drainResult
	for {
		var ev apiEvent
		var ok bool
		select {
		case <-ctx.Done():
			r.err = ctx.Err()
			return r
		case ev, ok = <-stream:
		}
		if !ok {
			return r
		}

		a.collector.process(ev)
		for _, se := range translate(ev, text) {
			a.emit(ctx, se)
		}

		switch ev.Kind {
		case apiMessageStart, apiMessageDelta:
			if ev.Usage != nil {
				if ev.Usage.InputTokens > 0 {
					r.usage.InputTokens = ev.Usage.InputTokens
				}
				if ev.Usage.OutputTokens > 0 {
					r.usage.OutputTokens = ev.Usage.OutputTokens
				}
			}
		case apiMessageStop:
			return r
		case apiError:
			log.Warn(ctx, log.KV{K: "msg", V: "server error event"}, log.KV{K: "err", V: ev.Err.Error()})
			r.apiErr = ev.Err
			return r
		case apiStreamError:
			r.err = ev.Err
			return r
		case apiParseError:
			log.Warn(ctx, log.KV{K: "msg", V: "skipped malformed frame"}, log.KV{K: "err", V: ev.Err.Error()})
		}
	}
}

type toolOutcome struct {
	content string
	isError bool
}

// executeTools runs calls and appends one tool_result message per call, in
// call order regardless of how they were scheduled.
func (a *Agent) executeTools(ctx context.Context, calls []ToolCall) {
	outcomes := make([]toolOutcome, len(calls))

	if a.opts.ParallelTools && len(calls) > 1 {
		for _, c := range calls {
			a.emit(ctx, StreamEvent{Kind: EventToolExecuting, ID: c.ID, Name: c.Name})
		}
		var g errgroup.Group
		g.SetLimit(maxParallelTools)
		for i, c := range calls {
			g.Go(func() error {
				outcomes[i] = a.runTool(ctx, c)
				return nil
			})
		}
		_ = g.Wait()
		for i, c := range calls {
			a.finishTool(ctx, c, outcomes[i])
		}
		return
	}

	for i, c := range calls {
		a.emit(ctx, StreamEvent{Kind: EventToolExecuting, ID: c.ID, Name: c.Name})
		outcomes[i] = a.runTool(ctx, c)
		a.finishTool(ctx, c, outcomes[i])
	}
}

func (a *Agent) runTool(ctx context.Context, c ToolCall) toolOutcome {
	start := time.Now()
	out, err := a.tools.Execute(ctx, c.Name, c.Input)
	kvs := []log.Fielder{
		log.KV{K: "msg", V: "tool executed"},
		log.KV{K: "tool", V: c.Name},
		log.KV{K: "id", V: c.ID},
		log.KV{K: "duration", V: time.Since(start).String()},
	}
	if err != nil {
		log.Info(ctx, append(kvs, log.KV{K: "err", V: err.Error()})...)
		return toolOutcome{content: fmt.Sprintf("error: %v", err), isError: true}
	}
	log.Info(ctx, append(kvs, log.KV{K: "bytes", V: len(out)})...)
	return toolOutcome{content: out}
}

func (a *Agent) finishTool(ctx context.Context, c ToolCall, o toolOutcome) {
	a.emit(ctx, StreamEvent{Kind: EventToolResult, ID: c.ID, Name: c.Name, Result: o.content, IsError: o.isError})
	a.session.Append(Message{Role: RoleUser, Blocks: []ContentBlock{ToolResultBlock(c.ID, o.content, o.isError)}})
}

func (a *Agent) setState(ctx context.Context, s agentState) {
	if a.state != s {
		log.Debug(ctx, log.KV{K: "msg", V: "state"}, log.KV{K: "from", V: a.state.String()}, log.KV{K: "to", V: s.String()})
	}
	a.state = s
}

// emit hands ev to the renderer, giving up if ctx is done.
func (a *Agent) emit(ctx context.Context, ev StreamEvent) {
	if a.events == nil {
		return
	}
	select {
	case a.events <- ev:
	case <-ctx.Done():
	}
}

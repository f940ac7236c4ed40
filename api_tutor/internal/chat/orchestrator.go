package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/llm"
	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/logging"
)

const defaultMaxRounds = 2

const (
	errorAnswer = "I encountered an error while processing your request. Please try again."
	emptyAnswer = "I apologize, but I didn't receive a proper response. Please try again."
)

// Termination reasons reported in OrchestratorResult.
const (
	TerminationDirectAnswer  = "direct_answer"
	TerminationMaxRounds     = "max_rounds"
	TerminationModelError    = "model_error"
	TerminationFollowUpError = "followup_error"
)

type OrchestratorConfig struct {
	LLMProvider  llm.Provider
	Registry     *Registry
	Logger       logging.Logger
	MaxRounds    int
	SystemPrompt string
	ProviderName string
	Model        string
}

// Orchestrator runs the bounded multi-round tool loop for one query at a
// time. It holds no per-query state and is safe for concurrent use.
type Orchestrator struct {
	llmProvider  llm.Provider
	registry     *Registry
	logger       logging.Logger
	maxRounds    int
	systemPrompt string
	providerName string
	model        string
}

type ToolCallRecord struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type RunRequest struct {
	Query      string
	History    string
	Provenance *Provenance
	// MaxRounds overrides the orchestrator default when positive.
	MaxRounds int
}

type OrchestratorResult struct {
	Answer      string
	Rounds      int
	ModelCalls  int
	ToolCalls   []ToolCallRecord
	Termination string
}

type modelReply struct {
	text      string
	toolCalls []llm.ToolCall
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = SystemPrompt
	}
	return &Orchestrator{
		llmProvider:  cfg.LLMProvider,
		registry:     registry,
		logger:       logger,
		maxRounds:    maxRounds,
		systemPrompt: prompt,
		providerName: cfg.ProviderName,
		model:        cfg.Model,
	}
}

func (o *Orchestrator) MaxRounds() int {
	return o.maxRounds
}

// RunSingle answers with a single round: one model call plus at most one
// follow-up after tool use, with no continuation prompt.
func (o *Orchestrator) RunSingle(ctx context.Context, req RunRequest) OrchestratorResult {
	req.MaxRounds = 1
	return o.Run(ctx, req)
}

// Run drives the round loop. It never returns an error: model and tool
// failures are turned into answer text.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) OrchestratorResult {
	maxRounds := req.MaxRounds
	if maxRounds <= 0 {
		maxRounds = o.maxRounds
	}
	rc := newRoundContext(req.Query, req.History)
	tools := o.registry.Schemas()
	var result OrchestratorResult

	finish := func(answer, reason string) OrchestratorResult {
		result.Answer = answer
		result.Termination = reason
		roundsPerQuery.Observe(float64(result.Rounds))
		terminationsTotal.WithLabelValues(reason).Inc()
		o.logger.WithFields(logging.Fields{
			"rounds":      result.Rounds,
			"model_calls": result.ModelCalls,
			"tool_calls":  len(result.ToolCalls),
			"termination": reason,
		}).Debug("Query flow finished")
		return result
	}

	for ; rc.RoundIndex <= maxRounds; rc.RoundIndex++ {
		result.Rounds = rc.RoundIndex
		log := o.logger.WithField("round", rc.RoundIndex)

		messages := []llm.Message{
			{Role: "system", Content: systemContent(o.systemPrompt, rc, maxRounds)},
			{Role: "user", Content: userContent(rc)},
		}

		reply, err := o.complete(ctx, messages, tools)
		result.ModelCalls++
		if err != nil {
			log.WithError(err).Warn("Model call failed")
			if last := rc.lastAnswer(); last != "" {
				return finish(last, TerminationModelError)
			}
			return finish(errorAnswer, TerminationModelError)
		}

		if len(reply.toolCalls) == 0 {
			log.Debug("Model answered without tools")
			return finish(answerText(reply.text), TerminationDirectAnswer)
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   reply.text,
			ToolCalls: reply.toolCalls,
		})
		for _, call := range reply.toolCalls {
			msg, record := o.dispatch(ctx, call, rc, req.Provenance)
			result.ToolCalls = append(result.ToolCalls, record)
			messages = append(messages, msg)
		}

		followUp, err := o.complete(ctx, messages, tools)
		result.ModelCalls++
		if err != nil {
			log.WithError(err).Warn("Follow-up model call failed")
			return finish(fmt.Sprintf(
				"I gathered information using tools (%s) but encountered an error generating the final response: %v",
				strings.Join(rc.ToolsInvoked, ", "), err,
			), TerminationFollowUpError)
		}

		answer := answerText(followUp.text)
		rc.RoundAnswers = append(rc.RoundAnswers, answer)
		log.WithField("tools", len(reply.toolCalls)).Debug("Round completed")
		if rc.RoundIndex == maxRounds {
			return finish(answer, TerminationMaxRounds)
		}
	}

	// Unreachable for maxRounds >= 1.
	return finish(answerText(rc.lastAnswer()), TerminationMaxRounds)
}

// dispatch executes one tool call and returns the tool-result message for
// the follow-up call.
func (o *Orchestrator) dispatch(ctx context.Context, call llm.ToolCall, rc *RoundContext, prov *Provenance) (llm.Message, ToolCallRecord) {
	record := ToolCallRecord{Name: call.Name}
	if call.Arguments != "" && json.Valid([]byte(call.Arguments)) {
		record.Arguments = json.RawMessage(call.Arguments)
	}

	output, err := o.registry.Dispatch(ctx, call.Name, json.RawMessage(call.Arguments), prov)
	if err != nil {
		toolCallsTotal.WithLabelValues(call.Name, "failed").Inc()
		o.logger.WithError(err).WithField("tool", call.Name).Warn("Tool execution failed")
		record.Error = err.Error()
		rc.ToolsInvoked = append(rc.ToolsInvoked, call.Name+" (failed)")
		rc.ToolOutputs = append(rc.ToolOutputs, "Error: "+err.Error())
		return llm.Message{
			Role:       "tool",
			Content:    "Tool execution failed: " + err.Error(),
			Name:       call.Name,
			ToolCallID: call.ID,
			IsError:    true,
		}, record
	}

	toolCallsTotal.WithLabelValues(call.Name, "ok").Inc()
	rc.ToolsInvoked = append(rc.ToolsInvoked, call.Name)
	rc.ToolOutputs = append(rc.ToolOutputs, output)
	return llm.Message{
		Role:       "tool",
		Content:    output,
		Name:       call.Name,
		ToolCallID: call.ID,
	}, record
}

// complete sends one request and drains the stream into text plus the
// merged tool calls.
func (o *Orchestrator) complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (modelReply, error) {
	if o.llmProvider == nil {
		return modelReply{}, errors.New("llm provider is required")
	}
	start := time.Now()
	reply, err := o.drain(ctx, messages, tools)
	llmDuration.WithLabelValues(o.providerName, o.model).Observe(time.Since(start).Seconds())
	if err != nil {
		llmCallsTotal.WithLabelValues(o.providerName, o.model, "error").Inc()
		return modelReply{}, err
	}
	llmCallsTotal.WithLabelValues(o.providerName, o.model, "success").Inc()
	return reply, nil
}

func (o *Orchestrator) drain(ctx context.Context, messages []llm.Message, tools []llm.Tool) (modelReply, error) {
	stream, err := o.llmProvider.Complete(ctx, messages, tools)
	if err != nil {
		return modelReply{}, err
	}
	defer stream.Close()

	var text strings.Builder
	var calls []llm.ToolCall
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return modelReply{}, err
		}
		text.WriteString(chunk.Content)
		if len(chunk.ToolCalls) > 0 {
			calls = mergeToolCalls(calls, chunk.ToolCalls)
		}
	}
	return modelReply{text: text.String(), toolCalls: calls}, nil
}

// mergeToolCalls folds streamed tool-call fragments. A fragment with a known
// ID replaces that call's arguments; providers send cumulative arguments.
func mergeToolCalls(existing, incoming []llm.ToolCall) []llm.ToolCall {
	for _, inc := range incoming {
		found := false
		for i, ex := range existing {
			if ex.ID != "" && ex.ID == inc.ID {
				existing[i].Arguments = inc.Arguments
				if inc.Name != "" {
					existing[i].Name = inc.Name
				}
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, inc)
		}
	}
	return existing
}

func answerText(text string) string {
	if strings.TrimSpace(text) == "" {
		return emptyAnswer
	}
	return text
}

package generator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/danskfisk/ragchatbot/internal/tools"
	"github.com/danskfisk/ragchatbot/pkg/logger"
	"github.com/danskfisk/ragchatbot/pkg/metrics"
)

const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with tools for searching and outlining courses.

Tool usage:
- search_course_content: for questions about specific course content or detailed educational materials
- get_course_outline: for questions about a course's structure, its lessons or its link
- One tool round per question maximum
- If a tool yields no results, say so clearly without offering alternatives

Response protocol:
- General knowledge questions: answer from existing knowledge without using tools
- Course-specific questions: use the appropriate tool first, then answer
- Never mention the tools or your search process in the response

Keep answers brief, concise and focused. Provide only the direct answer to what was asked.`

// Generator drives the chat model through at most one tool round: an
// initial generation, tool execution for every requested call, and a
// single follow-up generation.
type Generator struct {
	model       model.ToolCallingChatModel
	temperature float32
	maxTokens   int

	bm      *metrics.BusinessMetrics
	service string
}

func New(m model.ToolCallingChatModel, temperature float32, maxTokens int) *Generator {
	return &Generator{model: m, temperature: temperature, maxTokens: maxTokens}
}

// WithMetrics attaches per-tool invocation counters.
func (g *Generator) WithMetrics(bm *metrics.BusinessMetrics, service string) *Generator {
	g.bm = bm
	g.service = service
	return g
}

// GenerateResponse answers one query. history is a rendered transcript
// appended to the system prompt; manager supplies the tools the model may
// call. Tool failures are fed back to the model as text; model failures
// propagate to the caller.
func (g *Generator) GenerateResponse(ctx context.Context, query, history string, manager *tools.Manager) (string, error) {
	sys := systemPrompt
	if history != "" {
		sys += "\n\nPrevious conversation:\n" + history
	}
	messages := []*schema.Message{
		schema.SystemMessage(sys),
		schema.UserMessage(query),
	}

	m := g.model
	if manager != nil {
		if defs := manager.Definitions(); len(defs) > 0 {
			bound, err := g.model.WithTools(defs)
			if err != nil {
				return "", fmt.Errorf("failed to bind tools: %w", err)
			}
			m = bound
		}
	}

	opts := []model.Option{
		model.WithTemperature(g.temperature),
		model.WithMaxTokens(g.maxTokens),
	}

	resp, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("model generation failed: %w", err)
	}
	if len(resp.ToolCalls) == 0 || manager == nil {
		return resp.Content, nil
	}

	messages = append(messages, resp)
	for _, call := range resp.ToolCalls {
		logger.Info(ctx, "tool call requested", "tool", call.Function.Name)
		if g.bm != nil {
			g.bm.ToolCallsTotal.WithLabelValues(g.service, call.Function.Name).Inc()
		}
		result := manager.Execute(ctx, call.Function.Name, call.Function.Arguments)
		messages = append(messages, schema.ToolMessage(result, call.ID, schema.WithToolName(call.Function.Name)))
	}

	final, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("model generation failed after tool round: %w", err)
	}
	return final.Content, nil
}

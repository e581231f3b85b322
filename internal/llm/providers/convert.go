package providers

import (
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/zero-day-ai/threatviz/internal/llm"
)

// toSchemaMessages converts gateway messages to langchaingo MessageContent
func toSchemaMessages(messages []llm.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))

	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		if msg.Role == llm.RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		result = append(result, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}

	return result
}

// fromLangchainResponse converts a langchaingo response to a gateway response
func fromLangchainResponse(resp *llms.ContentResponse, model string) *llm.CompletionResponse {
	out := &llm.CompletionResponse{
		ID:           uuid.New().String(),
		Model:        model,
		FinishReason: llm.FinishReasonStop,
	}
	if resp == nil || len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.Content = choice.Content

	switch choice.StopReason {
	case "length", "max_tokens", "MaxTokens":
		out.FinishReason = llm.FinishReasonLength
	case "content_filter", "Safety":
		out.FinishReason = llm.FinishReasonContentFilter
	}

	out.Usage = usageFromInfo(choice.GenerationInfo)
	return out
}

// usageFromInfo reads token counts from GenerationInfo. Key names differ per
// provider, so the known spellings are tried in turn.
func usageFromInfo(info map[string]any) llm.TokenUsage {
	var usage llm.TokenUsage
	if info == nil {
		return usage
	}
	usage.PromptTokens = firstInt(info, "PromptTokens", "InputTokens", "input_tokens")
	usage.CompletionTokens = firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens")
	usage.TotalTokens = firstInt(info, "TotalTokens", "total_tokens")
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

func firstInt(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

// buildCallOptions converts a gateway request to langchaingo call options.
// Temperature is always sent so that 0 reaches the provider instead of its
// own default.
func buildCallOptions(req llm.CompletionRequest) []llms.CallOption {
	callOpts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}

	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}

	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}

	return callOpts
}

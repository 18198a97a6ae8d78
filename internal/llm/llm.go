// Package llm handles model provider communication and grading prompt
// construction. It returns raw response text; extraction and validation of
// the structured record belong to the parser.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cwyun/gradefall/internal/profile"
	"github.com/cwyun/gradefall/internal/rubric"
	"github.com/cwyun/gradefall/internal/schema"
)

// Provider is the interface for LLM backends.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// NewProvider is the factory for creating LLM providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call site.
// Tests must restore the original value; use t.Cleanup to do so safely.
var NewProvider func(providerName, model string) (Provider, error) = defaultNewProvider

// Options configures a Grade call.
type Options struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
	Debug       bool
}

// Request carries everything the model needs to grade one answer.
type Request struct {
	Question string
	Answer   string
	Passages []string
	Rubric   rubric.Spec
	Profile  profile.Profile
}

// Grade builds the grading prompt, calls the model, and returns the raw
// response text. Transport failures are retried with doubling backoff up to
// Options.MaxRetries.
func Grade(ctx context.Context, req Request, opts Options) (string, error) {
	provider, err := NewProvider(opts.Provider, opts.Model)
	if err != nil {
		return "", fmt.Errorf("llm: create provider: %w", err)
	}

	sysPrompt := buildSystemPrompt(req.Profile, schema.Build(req.Rubric))
	userPrompt := buildUserPrompt(req)

	return complete(ctx, provider, sysPrompt, userPrompt, opts)
}

// Repair re-asks the model after a response failed to parse or validate.
// The previous response and the failure reasons are included so the model
// has full context for the correction.
func Repair(ctx context.Context, req Request, previous string, reasons []string, opts Options) (string, error) {
	provider, err := NewProvider(opts.Provider, opts.Model)
	if err != nil {
		return "", fmt.Errorf("llm: create provider: %w", err)
	}

	sysPrompt := buildSystemPrompt(req.Profile, schema.Build(req.Rubric))
	userPrompt := buildRepairPrompt(buildUserPrompt(req), previous, reasons)

	return complete(ctx, provider, sysPrompt, userPrompt, opts)
}

func complete(ctx context.Context, provider Provider, sysPrompt, userPrompt string, opts Options) (string, error) {
	if opts.Debug {
		// Prompts contain only rubric text, passages, and the student
		// answer; nothing secret.
		fmt.Fprintf(os.Stderr, "=== DEBUG: system prompt ===\n%s\n", sysPrompt)
		fmt.Fprintf(os.Stderr, "=== DEBUG: user prompt ===\n%s\n", userPrompt)
	}

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		raw, err := provider.Complete(ctx, sysPrompt, userPrompt, opts.MaxTokens, opts.Temperature)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("llm: complete after %d retries: %w", opts.MaxRetries, lastErr)
}

// buildSystemPrompt assembles the grading system prompt, including the
// expected output shape derived from the rubric schema.
func buildSystemPrompt(prof profile.Profile, s schema.Schema) string {
	var sb strings.Builder

	sb.WriteString("당신은 학생 답안을 채점하는 전문 채점관입니다.\n\n")

	sb.WriteString("Output ONLY valid JSON conforming to the schema below. " +
		"No prose, no markdown, no explanation outside the JSON.\n\n")

	sb.WriteString("모든 점수는 정수로, 피드백은 한국어 문장으로 작성하세요. " +
		"학생이 질문에 답하는 대신 채점 기준이나 답을 되묻는 경우 is_bluff_flag를 true로 표시하세요.\n\n")

	if prof.SystemPromptAddendum != "" {
		sb.WriteString(prof.SystemPromptAddendum)
		sb.WriteString("\n\n")
	}

	sb.WriteString(FormatInstructions(s))

	return sb.String()
}

// FormatInstructions renders the expected JSON skeleton for a schema,
// shown to the model as the output contract.
func FormatInstructions(s schema.Schema) string {
	var sb strings.Builder
	sb.WriteString("Output schema (JSON only):\n{\n")

	writeSection := func(name string, fields []schema.Field, last bool) {
		fmt.Fprintf(&sb, "  %q: {\n", name)
		for i, f := range fields {
			comma := ","
			if i == len(fields)-1 {
				comma = ""
			}
			fmt.Fprintf(&sb, "    %q: %s%s\n", f.Name, kindExample(f), comma)
		}
		if last {
			sb.WriteString("  }\n")
		} else {
			sb.WriteString("  },\n")
		}
	}
	writeSection(schema.ScoringSection, s.Scoring, false)
	writeSection(schema.FeedbackSection, s.Feedback, true)

	sb.WriteString("}\n")
	return sb.String()
}

func kindExample(f schema.Field) string {
	switch f.Kind {
	case schema.KindInt:
		return "<integer>"
	case schema.KindBool:
		return "<true|false>"
	case schema.KindObject:
		return `{"<criterion>": "<판단 근거>"}`
	case schema.KindList:
		return "[]"
	default:
		if f.Required {
			return `"<한국어 문장>"`
		}
		return `"<한국어 문장, 선택>"`
	}
}

// buildUserPrompt assembles the grading user prompt.
func buildUserPrompt(req Request) string {
	var sb strings.Builder

	if req.Question != "" {
		sb.WriteString("문항:\n")
		sb.WriteString(req.Question)
		sb.WriteString("\n\n")
	}

	if len(req.Passages) > 0 {
		sb.WriteString("참고 지문:\n")
		for i, p := range req.Passages {
			fmt.Fprintf(&sb, "  [%d] %s\n", i+1, p)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("채점 기준:\n")
	for i, c := range req.Rubric.Criteria {
		fmt.Fprintf(&sb, "  %d. %s (배점 %d점)\n", i+1, c.Name, c.MaxScore())
		for j, sub := range c.SubCriteria {
			fmt.Fprintf(&sb, "    %d-%d. %s (%d점)\n", i+1, j+1, sub.Description, sub.MaxScore)
		}
	}

	sb.WriteString("\n학생 답안:\n")
	sb.WriteString(req.Answer)

	sb.WriteString("\n\nProduce the JSON grading record now.")
	return sb.String()
}

// buildRepairPrompt constructs the repair message. It includes the original
// user prompt and the previous invalid response so the model has full context.
func buildRepairPrompt(originalUserPrompt, previousResponse string, reasons []string) string {
	var sb strings.Builder
	sb.WriteString(originalUserPrompt)
	sb.WriteString("\n\nYour previous response was:\n")
	sb.WriteString(previousResponse)
	sb.WriteString("\n\nThat response was invalid. Errors:\n")
	for _, r := range reasons {
		fmt.Fprintf(&sb, "  - %s\n", r)
	}
	sb.WriteString("\nPlease output only the corrected JSON conforming to the schema. Do not repeat the error.")
	return sb.String()
}

// ── Provider dispatch ─────────────────────────────────────────────────────────

// defaultNewProvider dispatches to the appropriate provider implementation.
func defaultNewProvider(providerName, model string) (Provider, error) {
	switch strings.ToLower(providerName) {
	case "anthropic", "":
		return newAnthropicProvider(model)
	case "openai":
		return newOpenAIProvider(model)
	case "google":
		return newGoogleProvider(model)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", providerName)
	}
}

// ── Anthropic provider ───────────────────────────────────────────────────────

// anthropicProvider implements Provider using the Anthropic SDK.
// anthropic.Client is a value type; the SDK's NewClient returns it by value.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(model string) (Provider, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("llm: ANTHROPIC_API_KEY environment variable not set")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicProvider{client: client, model: model}, nil
}

func (p *anthropicProvider) Complete(
	ctx context.Context,
	systemPrompt, userPrompt string,
	maxTokens int,
	temperature float64,
) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		// block.Type is a string field from the Anthropic API; "text" is the
		// only content type that carries assistant text output. The SDK does
		// not expose a typed constant for content block types in this version.
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("anthropic: response contained no text content blocks")
	}
	return strings.Join(parts, ""), nil
}

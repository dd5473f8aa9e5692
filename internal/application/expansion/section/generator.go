// Package section 实现分节生成：迭代续写循环、产出净化与要点提取
package section

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"neurotext/internal/domain/entity"
	"neurotext/internal/domain/service"
	workflownode "neurotext/internal/workflow/node"
	workflowport "neurotext/internal/workflow/port"
	workflowprompt "neurotext/internal/workflow/prompt"
	"neurotext/pkg/logger"
	"neurotext/pkg/metrics"
)

const (
	// 单节续写调用的硬上限
	maxAttempts = 20

	// 单次调用的产出词数上限
	chunkCapWords = 4000

	// 收敛阈值：累计词数达到目标的 95% 即停
	convergenceRatio = 0.95

	// 续写提示注入的尾部段落数
	tailParagraphCount = 3

	// 单次产出低于该词数视为未达标，原地重试
	minChunkWords = 50

	// 未达标时的原地重试次数
	underlengthRetries = 2

	// 分节提示中源文的截断上限（词）
	sectionSourceCapWords = 12000

	sectionTruncationMarker = "[SOURCE TRUNCATED]"

	finishReasonLength = "length"
)

var sectionPromptRegistry = workflowprompt.NewRegistry()

// Generator 通过迭代续写把单个小节写到目标长度。
// 每轮把剩余词数与已写尾部注入提示，累计达到目标的 95% 且
// 最后一轮不是因长度截断收尾时停止。
type Generator struct {
	factory workflowport.ChatModelFactory

	// 连续两次续写调用之间的间隔
	delay time.Duration
}

func NewGenerator(factory workflowport.ChatModelFactory, delay time.Duration) *Generator {
	return &Generator{factory: factory, delay: delay}
}

// GenerateInput 单节生成输入
type GenerateInput struct {
	Name        string
	TargetWords int

	SourceText    string
	Outline       string
	SkeletonText  string
	PriorSummary  string
	CoveredPoints []string
	Constraints   []string

	// 对话模式：生成多方对话而非论述散文
	DialogueMode bool
	Participants []string

	Provider    string
	Model       string
	Temperature *float32
}

// Generate 生成一个完整小节。
// 传输层错误直接向上抛出并中止整个任务。
func (g *Generator) Generate(ctx context.Context, in *GenerateInput) (*entity.SectionResult, error) {
	if g == nil || g.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if in.TargetWords <= 0 {
		return nil, fmt.Errorf("section %q has no word budget", in.Name)
	}

	provider := strings.TrimSpace(in.Provider)
	chatModel, err := g.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	var accumulated strings.Builder
	words := 0
	converged := false
	attempts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		remaining := in.TargetWords - words
		if remaining < 1 {
			remaining = 1
		}

		content, finishReason, err := g.callOnce(ctx, chatModel, in, accumulated.String(), attempt == 1, remaining)
		if err != nil {
			return nil, fmt.Errorf("section %q attempt %d: %w", in.Name, attempt, err)
		}

		if accumulated.Len() > 0 {
			accumulated.WriteString("\n\n")
		}
		accumulated.WriteString(content)
		words = workflownode.CountWords(accumulated.String())

		// 因长度截断的回复往往停在句子中间，强制再续一轮收尾
		cutoff := finishReason == finishReasonLength
		if float64(words) >= convergenceRatio*float64(in.TargetWords) && !cutoff {
			converged = true
			break
		}

		logger.Debug(ctx, "section continuation",
			"section", in.Name, "attempt", attempt, "words", words, "target", in.TargetWords, "cutoff", cutoff)

		if attempt < maxAttempts && g.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.delay):
			}
		}
	}

	if !converged {
		logger.Warn(ctx, "section hit attempt ceiling before convergence",
			"section", in.Name, "attempts", attempts, "words", words, "target", in.TargetWords)
	}

	text := Sanitize(accumulated.String())
	result := &entity.SectionResult{
		Name:      in.Name,
		Text:      text,
		KeyClaims: ExtractKeyClaims(text),
		WordCount: workflownode.CountWords(text),
		Attempts:  attempts,
		Converged: converged,
	}

	metrics.SectionGenerationTotal.WithLabelValues(fmt.Sprintf("%t", converged)).Inc()
	metrics.SectionContinuationCalls.WithLabelValues(provider).Observe(float64(attempts))
	return result, nil
}

// callOnce 执行一次生成调用；产出过短时原地重试，保留最长的一次。
func (g *Generator) callOnce(ctx context.Context, chatModel model.BaseChatModel, in *GenerateInput, written string, opening bool, remaining int) (string, string, error) {
	msgs, stage, err := g.buildMessages(ctx, in, written, opening, remaining)
	if err != nil {
		return "", "", err
	}
	callCtx := service.WithStageProvider(ctx, stage, strings.TrimSpace(in.Provider))

	best := ""
	bestFinish := ""
	for try := 0; try <= underlengthRetries; try++ {
		outMsg, err := chatModel.Generate(callCtx, msgs, g.modelOptions(in)...)
		if err != nil {
			return "", "", err
		}
		if outMsg == nil {
			return "", "", fmt.Errorf("empty llm response")
		}
		content := strings.TrimSpace(outMsg.Content)
		if workflownode.CountWords(content) > workflownode.CountWords(best) {
			best = content
			bestFinish = finishReason(outMsg)
		}
		if workflownode.CountWords(content) >= minChunkWords {
			return content, finishReason(outMsg), nil
		}
		logger.Warn(ctx, "underlength generation chunk, retrying",
			"section", in.Name, "words", workflownode.CountWords(content), "try", try+1)
	}
	if best == "" {
		return "", "", fmt.Errorf("provider returned empty content after retries")
	}
	return best, bestFinish, nil
}

func (g *Generator) buildMessages(ctx context.Context, in *GenerateInput, written string, opening bool, remaining int) ([]*schema.Message, string, error) {
	chunkWords := remaining
	if chunkWords > chunkCapWords {
		chunkWords = chunkCapWords
	}

	var id workflowprompt.PromptID
	var stage string
	vars := map[string]any{
		"section_name": in.Name,
		"chunk_words":  chunkWords,
	}

	switch {
	case opening && in.DialogueMode:
		id, stage = workflowprompt.PromptDialogueOpenV1, "dialogue_open"
		vars["participants"] = formatParticipants(in.Participants)
		vars["target_words"] = in.TargetWords
		vars["outline"] = fallback(in.Outline, "(no outline)")
		vars["skeleton"] = fallback(in.SkeletonText, "(no skeleton available)")
		vars["source_text"] = workflownode.TruncateByWords(in.SourceText, sectionSourceCapWords, sectionTruncationMarker)
	case opening:
		id, stage = workflowprompt.PromptSectionOpenV1, "section_open"
		vars["target_words"] = in.TargetWords
		vars["outline"] = fallback(in.Outline, "(no outline)")
		vars["skeleton"] = fallback(in.SkeletonText, "(no skeleton available)")
		vars["covered_points"] = formatCoveredPoints(in.CoveredPoints)
		vars["prior_summary"] = fallback(in.PriorSummary, "(this is the first section)")
		vars["constraints"] = formatConstraints(in.Constraints)
		vars["source_text"] = workflownode.TruncateByWords(in.SourceText, sectionSourceCapWords, sectionTruncationMarker)
	case in.DialogueMode:
		id, stage = workflowprompt.PromptDialogueContV1, "dialogue_continue"
		vars["participants"] = formatParticipants(in.Participants)
		vars["remaining_words"] = remaining
		vars["tail"] = workflownode.TailParagraphs(written, tailParagraphCount)
	default:
		id, stage = workflowprompt.PromptSectionContinueV1, "section_continue"
		vars["remaining_words"] = remaining
		vars["tail"] = workflownode.TailParagraphs(written, tailParagraphCount)
		vars["covered_points"] = formatCoveredPoints(in.CoveredPoints)
	}

	tpl, err := sectionPromptRegistry.ChatTemplate(id)
	if err != nil {
		return nil, "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, "", err
	}
	return msgs, stage, nil
}

func (g *Generator) modelOptions(in *GenerateInput) []model.Option {
	opts := make([]model.Option, 0, 2)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	return opts
}

func finishReason(msg *schema.Message) string {
	if msg == nil || msg.ResponseMeta == nil {
		return ""
	}
	return msg.ResponseMeta.FinishReason
}

func formatCoveredPoints(points []string) string {
	if len(points) == 0 {
		return "(none yet)"
	}
	lines := make([]string, 0, len(points))
	for _, p := range points {
		lines = append(lines, "- "+p)
	}
	return strings.Join(lines, "\n")
}

func formatConstraints(constraints []string) string {
	if len(constraints) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(constraints))
	for _, c := range constraints {
		lines = append(lines, "- "+c)
	}
	return strings.Join(lines, "\n")
}

func formatParticipants(names []string) string {
	if len(names) == 0 {
		return "two unnamed interlocutors"
	}
	return strings.Join(names, ", ")
}

func fallback(s, alt string) string {
	if strings.TrimSpace(s) == "" {
		return alt
	}
	return s
}

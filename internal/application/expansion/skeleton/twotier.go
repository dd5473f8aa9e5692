package skeleton

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"neurotext/internal/domain/service"
	workflownode "neurotext/internal/workflow/node"
	workflowport "neurotext/internal/workflow/port"
	workflowprompt "neurotext/internal/workflow/prompt"
	"neurotext/pkg/logger"
)

const (
	// TwoTierThresholdWords 超过该词数的源文走两级压缩
	TwoTierThresholdWords = 50000

	// 每个压缩分块的词数
	chunkWords = 50000

	// 合并时默认保留的最强论证数
	defaultMergeArguments = 50
)

var reStrongestCount = regexp.MustCompile(`(?i)\b([\d,]+)\s+STRONGEST\b`)

// ChunkSkeletonizer 两级分块压缩器。
// 超大源文先逐块抽取自由文本骨架，再合并为单一元骨架；
// 元骨架与各分块骨架拼接成的压缩稿在下游各阶段取代原始源文。
type ChunkSkeletonizer struct {
	factory workflowport.ChatModelFactory
}

func NewChunkSkeletonizer(factory workflowport.ChatModelFactory) *ChunkSkeletonizer {
	return &ChunkSkeletonizer{factory: factory}
}

// ChunkInput 两级压缩输入
type ChunkInput struct {
	SourceText   string
	Instructions string
	Provider     string
	Model        string
	Temperature  *float32
	MaxTokens    *int

	// OnProgress 每完成一个分块回调一次（done 不含合并调用）
	OnProgress func(done, total int)
}

// Build 执行两级压缩，返回取代源文的压缩表示：
// 元骨架在前，各分块骨架按原文顺序跟在其后。
// 分块按序串行处理，单块失败即整体失败。
func (c *ChunkSkeletonizer) Build(ctx context.Context, in *ChunkInput) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}

	chunks := workflownode.SplitByWords(in.SourceText, chunkWords)
	if len(chunks) == 0 {
		return "", fmt.Errorf("source text is empty")
	}

	provider := strings.TrimSpace(in.Provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return "", err
	}

	chunkTpl, err := skeletonPromptRegistry.ChatTemplate(workflowprompt.PromptChunkSkeletonV1)
	if err != nil {
		return "", err
	}

	sketches := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		vars := map[string]any{
			"chunk_index": i + 1,
			"chunk_total": len(chunks),
			"chunk_text":  chunk,
		}
		msgs, err := chunkTpl.Format(ctx, vars)
		if err != nil {
			return "", err
		}

		callCtx := service.WithStageProvider(ctx, "chunk_skeleton", provider)
		outMsg, err := chatModel.Generate(callCtx, msgs, c.modelOptions(in)...)
		if err != nil {
			return "", fmt.Errorf("chunk %d/%d skeleton failed: %w", i+1, len(chunks), err)
		}
		if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
			return "", fmt.Errorf("chunk %d/%d skeleton is empty", i+1, len(chunks))
		}
		sketches = append(sketches, strings.TrimSpace(outMsg.Content))

		if in.OnProgress != nil {
			in.OnProgress(i+1, len(chunks))
		}
		logger.Debug(ctx, "chunk skeleton done", "chunk", i+1, "total", len(chunks))
	}

	// 单块无需合并，分块骨架即完整压缩稿
	if len(sketches) == 1 {
		return sketches[0], nil
	}

	blocks := make([]string, 0, len(sketches))
	for i, s := range sketches {
		blocks = append(blocks, fmt.Sprintf("=== CHUNK %d of %d ===\n%s", i+1, len(sketches), s))
	}
	chunkSkeletons := strings.Join(blocks, "\n\n")

	meta, err := c.merge(ctx, in, chatModel, chunkSkeletons)
	if err != nil {
		return "", err
	}

	// 下游既要合并后的全局视图，也要分块级的细节
	var composite strings.Builder
	composite.WriteString("=== META-SKELETON ===\n")
	composite.WriteString(meta)
	composite.WriteString("\n\n")
	composite.WriteString(chunkSkeletons)
	return composite.String(), nil
}

func (c *ChunkSkeletonizer) merge(ctx context.Context, in *ChunkInput, chatModel model.BaseChatModel, chunkSkeletons string) (string, error) {
	tpl, err := skeletonPromptRegistry.ChatTemplate(workflowprompt.PromptSkeletonMergeV1)
	if err != nil {
		return "", err
	}

	vars := map[string]any{
		"argument_count":  MergeArgumentCount(in.Instructions),
		"chunk_skeletons": chunkSkeletons,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", err
	}

	callCtx := service.WithStageProvider(ctx, "skeleton_merge", strings.TrimSpace(in.Provider))
	outMsg, err := chatModel.Generate(callCtx, msgs, c.modelOptions(in)...)
	if err != nil {
		return "", fmt.Errorf("skeleton merge failed: %w", err)
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return "", fmt.Errorf("skeleton merge output is empty")
	}
	return strings.TrimSpace(outMsg.Content), nil
}

func (c *ChunkSkeletonizer) modelOptions(in *ChunkInput) []model.Option {
	opts := make([]model.Option, 0, 3)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	return opts
}

// MergeArgumentCount 从指令中解析要保留的最强论证数，未指定时取 50
func MergeArgumentCount(instructions string) int {
	m := reStrongestCount.FindStringSubmatch(instructions)
	if m == nil {
		return defaultMergeArguments
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n <= 0 {
		return defaultMergeArguments
	}
	return n
}

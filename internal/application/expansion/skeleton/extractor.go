// Package skeleton 提供源文档结构骨架的抽取与压缩
package skeleton

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"neurotext/internal/domain/entity"
	"neurotext/internal/domain/service"
	workflownode "neurotext/internal/workflow/node"
	workflowport "neurotext/internal/workflow/port"
	workflowprompt "neurotext/internal/workflow/prompt"
	"neurotext/pkg/logger"
)

const (
	// 单次抽取的源文截断上限（词）
	sourceCapWords = 15000

	truncationMarker = "[SOURCE TRUNCATED FOR EXTRACTION]"

	// 注入提示词的指令文本上限（rune），防止超长指令挤掉源文
	instructionCapRunes = 8000
)

var skeletonPromptRegistry = workflowprompt.NewRegistry()

// Extractor 对源文档做一次结构化骨架抽取。
// 骨架在任务启动时构建一次，之后只读。
type Extractor struct {
	factory workflowport.ChatModelFactory
}

func NewExtractor(factory workflowport.ChatModelFactory) *Extractor {
	return &Extractor{factory: factory}
}

// ExtractInput 骨架抽取输入
type ExtractInput struct {
	SourceText   string
	Instructions string
	Provider     string
	Model        string
	Temperature  *float32
	MaxTokens    *int
}

// Extract 抽取文档骨架。
// 传输层错误向上抛出；结构化解析失败时降级为仅保留 Raw 的空骨架，
// 下游把空骨架当作"无约束可用"，整个流水线照常推进。
func (e *Extractor) Extract(ctx context.Context, in *ExtractInput) (*entity.DocumentSkeleton, error) {
	if e == nil || e.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.SourceText) == "" {
		return nil, fmt.Errorf("source text is empty")
	}

	tpl, err := skeletonPromptRegistry.ChatTemplate(workflowprompt.PromptSkeletonExtractV1)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{
		"instructions": workflownode.TruncateByRunes(strings.TrimSpace(in.Instructions), instructionCapRunes),
		"source_text":  workflownode.TruncateByWords(in.SourceText, sourceCapWords, truncationMarker),
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	ctx = service.WithStageProvider(ctx, "skeleton_extract", strings.TrimSpace(in.Provider))
	chatModel, err := e.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildExtractModelOptions(in, true)...)
	if err != nil && workflownode.IsResponseFormatUnsupportedError(err) {
		outMsg, err = chatModel.Generate(ctx, msgs, buildExtractModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	raw := workflownode.ExtractJSONObject(outMsg.Content)
	var parsed struct {
		Thesis   string            `json:"thesis"`
		Outline  []string          `json:"outline"`
		Glossary map[string]string `json:"glossary"`
		Asserted []string          `json:"asserted"`
		Rejected []string          `json:"rejected"`
		Assumed  []string          `json:"assumed"`
		Entities []string          `json:"entities"`
	}
	if unmarshalErr := json.Unmarshal([]byte(raw), &parsed); unmarshalErr != nil {
		logger.Warn(ctx, "skeleton extraction json unparseable, degrading to raw-only skeleton",
			"error", unmarshalErr)
		return &entity.DocumentSkeleton{Raw: strings.TrimSpace(outMsg.Content)}, nil
	}

	return &entity.DocumentSkeleton{
		Thesis:   strings.TrimSpace(parsed.Thesis),
		Outline:  trimAll(parsed.Outline),
		Glossary: parsed.Glossary,
		Ledger: entity.CommitmentLedger{
			Asserted: trimAll(parsed.Asserted),
			Rejected: trimAll(parsed.Rejected),
			Assumed:  trimAll(parsed.Assumed),
		},
		Entities: trimAll(parsed.Entities),
		Raw:      raw,
	}, nil
}

func buildExtractModelOptions(in *ExtractInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in == nil {
		return opts
	}
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "document_skeleton",
					"strict": false,
					"schema": skeletonJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func skeletonJSONSchema() map[string]any {
	stringArray := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"thesis", "outline", "glossary", "asserted", "rejected", "assumed", "entities"},
		"properties": map[string]any{
			"thesis":   map[string]any{"type": "string"},
			"outline":  stringArray,
			"glossary": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
			"asserted": stringArray,
			"rejected": stringArray,
			"assumed":  stringArray,
			"entities": stringArray,
		},
	}
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

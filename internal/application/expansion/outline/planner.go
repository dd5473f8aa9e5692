package outline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"neurotext/internal/domain/entity"
	"neurotext/internal/domain/service"
	workflownode "neurotext/internal/workflow/node"
	workflowport "neurotext/internal/workflow/port"
	workflowprompt "neurotext/internal/workflow/prompt"
)

// 大纲调用的源文截断上限（词）
const plannerSourceCapWords = 15000

const plannerTruncationMarker = "[SOURCE TRUNCATED FOR PLANNING]"

// 注入提示词的指令文本上限（rune）
const plannerInstructionCapRunes = 8000

var plannerPromptRegistry = workflowprompt.NewRegistry()

// Planner 基于骨架与结构生成渐进式大纲。
// 一次调用产出全文大纲，后续分节生成时整体注入。
type Planner struct {
	factory workflowport.ChatModelFactory
}

func NewPlanner(factory workflowport.ChatModelFactory) *Planner {
	return &Planner{factory: factory}
}

// PlanInput 大纲规划输入
type PlanInput struct {
	SourceText   string
	Instructions string
	Structure    []entity.SectionSpec
	Provider     string
	Model        string
	Temperature  *float32
	MaxTokens    *int
}

// Plan 生成逐节大纲文本。
// 大纲是给后续生成调用的自由文本指引，不做结构化解析。
func (p *Planner) Plan(ctx context.Context, in *PlanInput) (string, error) {
	if p == nil || p.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}

	tpl, err := plannerPromptRegistry.ChatTemplate(workflowprompt.PromptOutlinePlanV1)
	if err != nil {
		return "", err
	}

	vars := map[string]any{
		"structure":    FormatStructure(in.Structure),
		"instructions": workflownode.TruncateByRunes(strings.TrimSpace(in.Instructions), plannerInstructionCapRunes),
		"source_text":  workflownode.TruncateByWords(in.SourceText, plannerSourceCapWords, plannerTruncationMarker),
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", err
	}

	ctx = service.WithStageProvider(ctx, "outline_plan", strings.TrimSpace(in.Provider))
	chatModel, err := p.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return "", err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildPlannerModelOptions(in)...)
	if err != nil {
		return "", err
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return "", fmt.Errorf("empty outline output")
	}
	return strings.TrimSpace(outMsg.Content), nil
}

func buildPlannerModelOptions(in *PlanInput) []model.Option {
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

// FormatStructure 将小节结构渲染为提示词中的编号列表
func FormatStructure(specs []entity.SectionSpec) string {
	if len(specs) == 0 {
		return "(no fixed structure)"
	}
	lines := make([]string, 0, len(specs))
	for i, s := range specs {
		lines = append(lines, fmt.Sprintf("%d. %s (%d words)", i+1, s.Name, s.WordCount))
	}
	return strings.Join(lines, "\n")
}

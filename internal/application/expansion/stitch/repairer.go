// Package stitch 实现全文缝合修复：汇总审计发现，做最小化一致性编辑
package stitch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"neurotext/internal/application/expansion/skeleton"
	"neurotext/internal/domain/entity"
	"neurotext/internal/domain/service"
	workflownode "neurotext/internal/workflow/node"
	workflowport "neurotext/internal/workflow/port"
	workflowprompt "neurotext/internal/workflow/prompt"
	"neurotext/pkg/logger"
	"neurotext/pkg/metrics"
)

var stitchPromptRegistry = workflowprompt.NewRegistry()

// Repair 单条修复指令：在指定小节内做一次原文替换
type Repair struct {
	Section         string `json:"section"`
	ProblematicText string `json:"problematic_text"`
	RepairedText    string `json:"repaired_text"`
}

// Result 缝合轮次的汇总结果
type Result struct {
	Repairs          []Repair `json:"repairs,omitempty"`
	Applied          int      `json:"applied"`
	Skipped          int      `json:"skipped"`
	TerminologyDrift []string `json:"terminology_drift,omitempty"`
	RedundancyNotes  []string `json:"redundancy_notes,omitempty"`
}

// Repairer 在所有小节生成完毕后执行一轮缝合修复。
// 整个轮次是尽力而为的：任何失败只记日志并返回空结果，
// 已生成的文档原样保留。
type Repairer struct {
	factory workflowport.ChatModelFactory
}

func NewRepairer(factory workflowport.ChatModelFactory) *Repairer {
	return &Repairer{factory: factory}
}

// RepairInput 缝合修复输入
type RepairInput struct {
	Reports     []*entity.DeltaReport
	Sections    []*entity.SectionResult
	Skeleton    *entity.DocumentSkeleton
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// Run 执行缝合：一次修复调用，然后把修复逐条套用到小节文本上。
// 没有任何被标记的小节时直接跳过，不发起调用。
func (r *Repairer) Run(ctx context.Context, in *RepairInput) *Result {
	if in == nil || !anyFlagged(in.Reports) {
		return &Result{}
	}
	if r == nil || r.factory == nil {
		logger.Warn(ctx, "stitch repair skipped, llm factory not configured")
		return &Result{}
	}

	proposed, err := r.propose(ctx, in)
	if err != nil {
		logger.Warn(ctx, "stitch repair pass failed, document left as generated", "error", err)
		return &Result{}
	}

	applied, skipped := ApplyRepairs(in.Sections, proposed.Repairs)
	proposed.Applied = applied
	proposed.Skipped = skipped

	metrics.StitchRepairsTotal.WithLabelValues("applied").Add(float64(applied))
	metrics.StitchRepairsTotal.WithLabelValues("skipped").Add(float64(skipped))
	logger.Info(ctx, "stitch repair complete",
		"proposed", len(proposed.Repairs), "applied", applied, "skipped", skipped)
	return proposed
}

func (r *Repairer) propose(ctx context.Context, in *RepairInput) (*Result, error) {
	tpl, err := stitchPromptRegistry.ChatTemplate(workflowprompt.PromptStitchRepairV1)
	if err != nil {
		return nil, err
	}

	reportsJSON, err := json.MarshalIndent(in.Reports, "", "  ")
	if err != nil {
		return nil, err
	}

	vars := map[string]any{
		"delta_reports":      string(reportsJSON),
		"conflicts":          formatConflicts(in.Reports),
		"skeleton_condensed": skeleton.Condense(in.Skeleton),
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, err
	}

	ctx = service.WithStageProvider(ctx, "stitch_repair", strings.TrimSpace(in.Provider))
	chatModel, err := r.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildRepairModelOptions(in, true)...)
	if err != nil && workflownode.IsResponseFormatUnsupportedError(err) {
		outMsg, err = chatModel.Generate(ctx, msgs, buildRepairModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	raw := workflownode.ExtractJSONObject(outMsg.Content)
	var parsed struct {
		Repairs          []Repair `json:"repairs"`
		TerminologyDrift []string `json:"terminology_drift"`
		RedundancyNotes  []string `json:"redundancy_notes"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("unparseable stitch json: %w", err)
	}

	return &Result{
		Repairs:          parsed.Repairs,
		TerminologyDrift: parsed.TerminologyDrift,
		RedundancyNotes:  parsed.RedundancyNotes,
	}, nil
}

func anyFlagged(reports []*entity.DeltaReport) bool {
	for _, r := range reports {
		if r.Flagged() {
			return true
		}
	}
	return false
}

func formatConflicts(reports []*entity.DeltaReport) string {
	var lines []string
	for _, r := range reports {
		for _, c := range r.ConflictsDetected {
			lines = append(lines, fmt.Sprintf("[%s] %s", r.Section, c))
		}
	}
	if len(lines) == 0 {
		return "(no verbatim conflicts, see commitment_status fields)"
	}
	return strings.Join(lines, "\n")
}

func buildRepairModelOptions(in *RepairInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
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
					"name":   "stitch_repair",
					"strict": false,
					"schema": repairJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func repairJSONSchema() map[string]any {
	stringArray := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"repairs", "terminology_drift", "redundancy_notes"},
		"properties": map[string]any{
			"repairs": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"section", "problematic_text", "repaired_text"},
					"properties": map[string]any{
						"section":          map[string]any{"type": "string"},
						"problematic_text": map[string]any{"type": "string"},
						"repaired_text":    map[string]any{"type": "string"},
					},
				},
			},
			"terminology_drift": stringArray,
			"redundancy_notes":  stringArray,
		},
	}
}

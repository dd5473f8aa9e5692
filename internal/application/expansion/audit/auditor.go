// Package audit 实现分节差异审计：对照骨架承诺检查新生成的小节
package audit

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

// 审计调用中小节文本的截断上限（词）
const auditSectionCapWords = 4000

const auditTruncationMarker = "[SECTION TRUNCATED FOR AUDIT]"

var auditPromptRegistry = workflowprompt.NewRegistry()

// Auditor 对每个完成的小节执行一次差异审计。
// 审计是尽力而为的旁路：任何失败都降级为 EXTRACTION_FAILED 报告，
// 绝不中断生成流水线。
type Auditor struct {
	factory workflowport.ChatModelFactory
}

func NewAuditor(factory workflowport.ChatModelFactory) *Auditor {
	return &Auditor{factory: factory}
}

// AuditInput 单节审计输入
type AuditInput struct {
	SectionName string
	SectionText string
	Skeleton    *entity.DocumentSkeleton
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// Audit 审计一个小节，永远返回非 nil 报告。
func (a *Auditor) Audit(ctx context.Context, in *AuditInput) *entity.DeltaReport {
	report := a.run(ctx, in)
	metrics.DeltaAuditTotal.WithLabelValues(string(report.CommitmentStatus)).Inc()
	return report
}

func (a *Auditor) run(ctx context.Context, in *AuditInput) *entity.DeltaReport {
	if in == nil {
		return failedReport("")
	}
	failed := func(err error) *entity.DeltaReport {
		logger.Warn(ctx, "delta audit degraded", "section", in.SectionName, "error", err)
		return failedReport(in.SectionName)
	}
	if a == nil || a.factory == nil {
		return failed(fmt.Errorf("llm factory not configured"))
	}

	tpl, err := auditPromptRegistry.ChatTemplate(workflowprompt.PromptDeltaAuditV1)
	if err != nil {
		return failed(err)
	}

	vars := map[string]any{
		"section_name":       in.SectionName,
		"skeleton_condensed": skeleton.Condense(in.Skeleton),
		"section_text":       workflownode.TruncateByWords(in.SectionText, auditSectionCapWords, auditTruncationMarker),
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return failed(err)
	}

	ctx = service.WithStageProvider(ctx, "delta_audit", strings.TrimSpace(in.Provider))
	chatModel, err := a.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return failed(err)
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildAuditModelOptions(in, true)...)
	if err != nil && workflownode.IsResponseFormatUnsupportedError(err) {
		outMsg, err = chatModel.Generate(ctx, msgs, buildAuditModelOptions(in, false)...)
	}
	if err != nil {
		return failed(err)
	}
	if outMsg == nil {
		return failed(fmt.Errorf("empty llm response"))
	}

	raw := workflownode.ExtractJSONObject(outMsg.Content)
	var parsed struct {
		NewClaims         []string `json:"new_claims"`
		TermsUsed         []string `json:"terms_used"`
		ConflictsDetected []string `json:"conflicts_detected"`
		CommitmentStatus  string   `json:"commitment_status"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return failed(fmt.Errorf("unparseable audit json: %w", err))
	}

	return &entity.DeltaReport{
		Section:           in.SectionName,
		NewClaims:         parsed.NewClaims,
		TermsUsed:         parsed.TermsUsed,
		ConflictsDetected: parsed.ConflictsDetected,
		CommitmentStatus:  normalizeStatus(parsed.CommitmentStatus),
	}
}

func failedReport(section string) *entity.DeltaReport {
	return &entity.DeltaReport{
		Section:          section,
		CommitmentStatus: entity.CommitmentExtractionFailed,
	}
}

func normalizeStatus(s string) entity.CommitmentStatus {
	switch entity.CommitmentStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case entity.CommitmentCompliant:
		return entity.CommitmentCompliant
	case entity.CommitmentViolation:
		return entity.CommitmentViolation
	default:
		return entity.CommitmentUnknown
	}
}

func buildAuditModelOptions(in *AuditInput, enableSchema bool) []model.Option {
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
					"name":   "delta_audit",
					"strict": false,
					"schema": auditJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func auditJSONSchema() map[string]any {
	stringArray := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"new_claims", "terms_used", "conflicts_detected", "commitment_status"},
		"properties": map[string]any{
			"new_claims":         stringArray,
			"terms_used":         stringArray,
			"conflicts_detected": stringArray,
			"commitment_status": map[string]any{
				"type": "string",
				"enum": []any{string(entity.CommitmentCompliant), string(entity.CommitmentViolation)},
			},
		},
	}
}

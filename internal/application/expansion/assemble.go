package expansion

import (
	"strings"

	"neurotext/internal/domain/entity"
	workflownode "neurotext/internal/workflow/node"
)

// Document 流水线的最终产物
type Document struct {
	Text string `json:"text"`

	InputWordCount  int `json:"input_word_count"`
	OutputWordCount int `json:"output_word_count"`
	TargetWordCount int `json:"target_word_count"`
	SectionCount    int `json:"section_count"`

	RepairsApplied int `json:"repairs_applied"`
	RepairsSkipped int `json:"repairs_skipped"`

	// Truncated 因 MaxWords 上限提前收束，产出只包含已完成的小节
	Truncated bool `json:"truncated,omitempty"`

	ElapsedMs int64 `json:"elapsed_ms"`
}

// assemble 按生成顺序拼装全文：每节一行标题加正文，空行分隔
func assemble(sections []*entity.SectionResult) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if s == nil || strings.TrimSpace(s.Text) == "" {
			continue
		}
		parts = append(parts, "## "+s.Name+"\n\n"+strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, "\n\n")
}

func countWords(s string) int {
	return workflownode.CountWords(s)
}

package skeleton

import (
	"fmt"
	"sort"
	"strings"

	"neurotext/internal/domain/entity"
)

// 压缩视图的条目上限
const (
	condensedAssertedMax = 10
	condensedRejectedMax = 5
	condensedTermsMax    = 10
)

// FormatForPrompt 将骨架渲染为分节生成提示词用的完整文本视图。
// 空骨架（仅 Raw 兜底）直接返回 Raw，没有任何内容时给出占位说明。
func FormatForPrompt(s *entity.DocumentSkeleton) string {
	if s == nil {
		return "(no skeleton available)"
	}
	if s.Empty() {
		if strings.TrimSpace(s.Raw) != "" {
			return strings.TrimSpace(s.Raw)
		}
		return "(no skeleton available)"
	}

	var b strings.Builder
	if s.Thesis != "" {
		b.WriteString("THESIS: " + s.Thesis + "\n\n")
	}
	if len(s.Outline) > 0 {
		b.WriteString("ARGUMENT OUTLINE:\n")
		for i, item := range s.Outline {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
		b.WriteString("\n")
	}
	if len(s.Glossary) > 0 {
		b.WriteString("GLOSSARY:\n")
		for _, term := range sortedTerms(s.Glossary) {
			fmt.Fprintf(&b, "- %s: %s\n", term, s.Glossary[term])
		}
		b.WriteString("\n")
	}
	writeList(&b, "ASSERTED", s.Ledger.Asserted, 0)
	writeList(&b, "REJECTED", s.Ledger.Rejected, 0)
	writeList(&b, "ASSUMED", s.Ledger.Assumed, 0)
	writeList(&b, "ENTITIES", s.Entities, 0)
	return strings.TrimSpace(b.String())
}

// Condense 生成审计与缝合调用用的压缩骨架视图：
// 论点一句、最多 10 条断言、5 条否定、10 个术语。
func Condense(s *entity.DocumentSkeleton) string {
	if s == nil || s.Empty() {
		return "(no skeleton available)"
	}

	var b strings.Builder
	if s.Thesis != "" {
		b.WriteString("THESIS: " + s.Thesis + "\n\n")
	}
	writeList(&b, "ASSERTED", s.Ledger.Asserted, condensedAssertedMax)
	writeList(&b, "REJECTED", s.Ledger.Rejected, condensedRejectedMax)
	if len(s.Glossary) > 0 {
		terms := sortedTerms(s.Glossary)
		if len(terms) > condensedTermsMax {
			terms = terms[:condensedTermsMax]
		}
		b.WriteString("KEY TERMS: " + strings.Join(terms, "; ") + "\n\n")
	}
	return strings.TrimSpace(b.String())
}

func writeList(b *strings.Builder, label string, items []string, max int) {
	if len(items) == 0 {
		return
	}
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	b.WriteString(label + ":\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
	b.WriteString("\n")
}

func sortedTerms(m map[string]string) []string {
	terms := make([]string, 0, len(m))
	for t := range m {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

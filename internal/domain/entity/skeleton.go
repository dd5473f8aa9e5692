// Package entity 定义领域实体
package entity

// CommitmentLedger 承诺账本：文档断言、否定、预设的三类命题
type CommitmentLedger struct {
	Asserted []string `json:"asserted,omitempty"`
	Rejected []string `json:"rejected,omitempty"`
	Assumed  []string `json:"assumed,omitempty"`
}

// DocumentSkeleton 源文档的紧凑结构化摘要。
// 每个任务创建一次，之后只读；注入到所有分节生成与差异审计调用。
type DocumentSkeleton struct {
	// Thesis 中心论点
	Thesis string `json:"thesis,omitempty"`

	// Outline 有序论证大纲（8-20 条）
	Outline []string `json:"outline,omitempty"`

	// Glossary 关键术语 -> 上下文定义
	Glossary map[string]string `json:"glossary,omitempty"`

	// Ledger 承诺账本
	Ledger CommitmentLedger `json:"ledger,omitempty"`

	// Entities 需要稳定措辞的实体名
	Entities []string `json:"entities,omitempty"`

	// Raw 原始抽取文本。结构化解析失败时作为兜底保留，
	// 此时其余字段为空，下游必须将空骨架视为"无约束可用"。
	Raw string `json:"raw,omitempty"`
}

// Empty 结构化字段是否全部为空（仅剩 Raw 兜底）
func (s *DocumentSkeleton) Empty() bool {
	if s == nil {
		return true
	}
	return s.Thesis == "" &&
		len(s.Outline) == 0 &&
		len(s.Glossary) == 0 &&
		len(s.Ledger.Asserted) == 0 &&
		len(s.Ledger.Rejected) == 0 &&
		len(s.Ledger.Assumed) == 0 &&
		len(s.Entities) == 0
}

// Package entity 定义领域实体
package entity

// CitationRequest 引用要求
type CitationRequest struct {
	Count      int `json:"count"`
	LastNYears int `json:"last_n_years,omitempty"` // 0 表示不限年份
}

// SectionSpec 小节规格：名称在单个任务内唯一，目标词数非负
type SectionSpec struct {
	Name      string `json:"name"`
	WordCount int    `json:"word_count"`
}

// ParsedInstructions 从自由文本指令中解析出的结构化意图。
// 解析阶段永不失败：没有匹配到的字段保持零值，零值本身就是有效信号。
type ParsedInstructions struct {
	// TargetWordCount 目标总词数，0 表示未指定
	TargetWordCount int `json:"target_word_count,omitempty"`

	// Sections 用户显式声明的小节结构（有序）
	Sections []SectionSpec `json:"sections,omitempty"`

	// Constraints 以指令动词开头的自由文本约束句（原样保留）
	Constraints []string `json:"constraints,omitempty"`

	// Citations 引用要求，nil 表示未提出
	Citations *CitationRequest `json:"citations,omitempty"`

	// 风格开关
	AcademicRegister        bool `json:"academic_register,omitempty"`
	NoBullets               bool `json:"no_bullets,omitempty"`
	RequireSubsections      bool `json:"require_subsections,omitempty"`
	RequireLiteratureReview bool `json:"require_literature_review,omitempty"`

	// Entities 要求引用的权威人名
	Entities []string `json:"entities,omitempty"`

	// 对话体模式及参与者
	DialogueMode         bool     `json:"dialogue_mode,omitempty"`
	DialogueParticipants []string `json:"dialogue_participants,omitempty"`
}

// HasExplicitStructure 用户是否声明了小节结构
func (p *ParsedInstructions) HasExplicitStructure() bool {
	return p != nil && len(p.Sections) > 0
}

// TotalSectionWords 所有小节词数之和
func (p *ParsedInstructions) TotalSectionWords() int {
	if p == nil {
		return 0
	}
	total := 0
	for i := range p.Sections {
		total += p.Sections[i].WordCount
	}
	return total
}

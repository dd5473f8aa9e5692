// Package entity 定义领域实体
package entity

// SectionResult 单个小节的生成结果
type SectionResult struct {
	Name string `json:"name"`
	Text string `json:"text"`

	// KeyClaims 从小节文本中抽取的核心主张（防冗余用，上限 8 条）
	KeyClaims []string `json:"key_claims,omitempty"`

	WordCount int `json:"word_count"`
	Attempts  int `json:"attempts"`

	// Converged 是否在尝试上限内达到目标词数的 95%
	Converged bool `json:"converged"`
}

// CommitmentStatus 小节相对骨架承诺账本的合规状态
type CommitmentStatus string

const (
	CommitmentCompliant        CommitmentStatus = "COMPLIANT"
	CommitmentViolation        CommitmentStatus = "VIOLATION"
	CommitmentUnknown          CommitmentStatus = "UNKNOWN"
	CommitmentExtractionFailed CommitmentStatus = "EXTRACTION_FAILED"
)

// DeltaReport 小节生成完成后的差异审计记录，创建后不可变
type DeltaReport struct {
	Section           string           `json:"section"`
	NewClaims         []string         `json:"new_claims,omitempty"`
	TermsUsed         []string         `json:"terms_used,omitempty"`
	ConflictsDetected []string         `json:"conflicts_detected,omitempty"`
	CommitmentStatus  CommitmentStatus `json:"commitment_status"`
}

// Flagged 该小节是否需要进入缝合修复
func (r *DeltaReport) Flagged() bool {
	if r == nil {
		return false
	}
	return len(r.ConflictsDetected) > 0 || r.CommitmentStatus == CommitmentViolation
}

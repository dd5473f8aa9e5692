package dto

import (
	"neurotext/internal/domain/entity"
)

// CreateExpansionRequest 创建扩写任务请求
type CreateExpansionRequest struct {
	// SourceText 源文档全文
	SourceText string `json:"source_text" binding:"required"`

	// Instructions 自然语言改写指令
	Instructions string `json:"instructions" binding:"required"`

	// TargetWordCount 显式目标词数，0 表示从指令里解析
	TargetWordCount int `json:"target_word_count,omitempty"`

	// MaxWords 产出词数上限，0 表示不限
	MaxWords int `json:"max_words,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Temperature *float32 `json:"temperature,omitempty"`
}

// ExpansionJobResponse 任务状态响应
type ExpansionJobResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	TargetWordCount int `json:"target_word_count,omitempty"`
	InputWordCount  int `json:"input_word_count,omitempty"`
	OutputWordCount int `json:"output_word_count,omitempty"`
	SectionsTotal   int `json:"sections_total,omitempty"`
	SectionsDone    int `json:"sections_done,omitempty"`
	RepairsApplied  int `json:"repairs_applied,omitempty"`

	Result       string `json:"result,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	DurationMs int    `json:"duration_ms,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// FromExpansionJob 领域实体转响应
func FromExpansionJob(job *entity.ExpansionJob) *ExpansionJobResponse {
	if job == nil {
		return nil
	}
	return &ExpansionJobResponse{
		ID:              job.ID,
		Status:          string(job.Status),
		Progress:        job.Progress,
		Provider:        job.Provider,
		Model:           job.Model,
		TargetWordCount: job.TargetWordCount,
		InputWordCount:  job.InputWordCount,
		OutputWordCount: job.OutputWordCount,
		SectionsTotal:   job.SectionsTotal,
		SectionsDone:    job.SectionsDone,
		RepairsApplied:  job.RepairsApplied,
		Result:          job.Result,
		ErrorMessage:    job.ErrorMessage,
		DurationMs:      job.DurationMs,
		CreatedAt:       job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreatedExpansionResponse 创建任务的受理响应
type CreatedExpansionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

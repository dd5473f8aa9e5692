// Package entity 定义领域实体
package entity

import (
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ExpansionJob 扩写任务状态记录。
// 仅作为键值状态存储的载体；管线本身不依赖它的持久化成功与否。
type ExpansionJob struct {
	ID       string    `json:"id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"` // 任务进度 (0-100)

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	TargetWordCount int `json:"target_word_count,omitempty"`
	MaxWords        int `json:"max_words,omitempty"` // 配额上限，0 表示不限

	Instructions string `json:"instructions,omitempty"`

	InputWordCount  int `json:"input_word_count,omitempty"`
	OutputWordCount int `json:"output_word_count,omitempty"`
	SectionsTotal   int `json:"sections_total,omitempty"`
	SectionsDone    int `json:"sections_done,omitempty"`
	RepairsApplied  int `json:"repairs_applied,omitempty"`

	Result       string `json:"result,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	DurationMs  int        `json:"duration_ms,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewExpansionJob 创建新任务
func NewExpansionJob(id, provider, model, instructions string) *ExpansionJob {
	now := time.Now()
	return &ExpansionJob{
		ID:           id,
		Status:       JobStatusPending,
		Provider:     provider,
		Model:        model,
		Instructions: instructions,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Start 开始执行任务
func (j *ExpansionJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Complete 完成任务
func (j *ExpansionJob) Complete(result string, outputWords int) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Result = result
	j.OutputWordCount = outputWords
	j.Progress = 100
	j.CompletedAt = &now
	j.UpdatedAt = now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Fail 任务失败
func (j *ExpansionJob) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// UpdateProgress 更新任务进度
func (j *ExpansionJob) UpdateProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

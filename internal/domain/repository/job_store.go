// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"neurotext/internal/domain/entity"
)

// JobStore 扩写任务状态的键值存储接口
type JobStore interface {
	// Save 写入任务状态记录（覆盖式）
	Save(ctx context.Context, job *entity.ExpansionJob) error

	// GetByID 根据 ID 获取任务状态
	GetByID(ctx context.Context, id string) (*entity.ExpansionJob, error)
}

// SectionStore 小节中间产物的旁路存储接口。
// 写入是尽力而为的副作用：失败由调用方记日志吞掉，绝不中断生成。
type SectionStore interface {
	// SaveSection 持久化一个已完成小节
	SaveSection(ctx context.Context, jobID string, index int, section *entity.SectionResult) error
}

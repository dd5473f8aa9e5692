package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"neurotext/internal/domain/entity"
	apperrors "neurotext/pkg/errors"
)

// JobStore 基于 Redis 的扩写任务状态存储
type JobStore struct {
	client *Client
	ttl    time.Duration
}

// NewJobStore 创建任务状态存储
func NewJobStore(client *Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &JobStore{client: client, ttl: ttl}
}

// Save 写入任务状态记录（覆盖式）
func (s *JobStore) Save(ctx context.Context, job *entity.ExpansionJob) error {
	if job == nil {
		return apperrors.ErrInvalidParam.WithDetail("job is nil")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreError, "failed to marshal job")
	}
	if err := s.client.Set(ctx, jobKey(job.ID), data, s.ttl); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreError, "failed to save job")
	}
	return nil
}

// GetByID 根据 ID 获取任务状态
func (s *JobStore) GetByID(ctx context.Context, id string) (*entity.ExpansionJob, error) {
	data, err := s.client.Get(ctx, jobKey(id))
	if err != nil {
		if IsNil(err) {
			return nil, apperrors.ErrJobNotFound.WithDetail(id)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeStoreError, "failed to load job")
	}
	var job entity.ExpansionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreError, "failed to unmarshal job")
	}
	return &job, nil
}

func jobKey(id string) string {
	return fmt.Sprintf("expansion:job:%s", id)
}

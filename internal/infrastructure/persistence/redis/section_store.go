package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"neurotext/internal/domain/entity"
	apperrors "neurotext/pkg/errors"
)

// SectionStore 基于 Redis 的小节中间产物存储。
// 每个小节完成后写一条；写失败只会被调用方记日志，不会影响生成。
type SectionStore struct {
	client *Client
	ttl    time.Duration
}

// NewSectionStore 创建小节产物存储
func NewSectionStore(client *Client, ttl time.Duration) *SectionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SectionStore{client: client, ttl: ttl}
}

// SaveSection 持久化一个已完成小节
func (s *SectionStore) SaveSection(ctx context.Context, jobID string, index int, section *entity.SectionResult) error {
	if section == nil {
		return apperrors.ErrInvalidParam.WithDetail("section is nil")
	}
	data, err := json.Marshal(section)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreError, "failed to marshal section")
	}
	key := fmt.Sprintf("expansion:job:%s:section:%d", jobID, index)
	if err := s.client.Set(ctx, key, data, s.ttl); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreError, "failed to save section")
	}
	return nil
}

package handler

import (
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"neurotext/internal/application/expansion"
	"neurotext/internal/domain/entity"
	"neurotext/internal/interfaces/http/dto"
	apperrors "neurotext/pkg/errors"
)

// Events 订阅任务进度事件
// @Summary 订阅扩写任务事件
// @Description 通过 SSE 推送任务的进度、大纲、分节完成与终态事件
// @Tags Expansions
// @Produce text/event-stream
// @Param id path string true "任务 ID"
// @Success 200 "SSE stream"
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/expansions/{id}/events [get]
func (h *ExpansionHandler) Events(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		dto.BadRequest(c, "job id is required")
		return
	}

	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		if appErr := apperrors.AsAppError(err); appErr != nil {
			dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
				ErrorCode: string(appErr.Code),
				Details:   appErr.Detail,
			})
			return
		}
		dto.InternalError(c, "failed to load job")
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 已到终态的任务只回放一条终态事件
	if job.Status == entity.JobStatusCompleted || job.Status == entity.JobStatusFailed {
		c.SSEvent("event", terminalEvent(job))
		return
	}

	events, cancel := h.hub.Subscribe(id)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("event", ev)
			// 终态事件后结束流
			return ev.Kind != expansion.EventComplete && ev.Kind != expansion.EventError
		case <-c.Request.Context().Done():
			// 客户端断开
			return false
		}
	})
}

func terminalEvent(job *entity.ExpansionJob) expansion.Event {
	if job.Status == entity.JobStatusFailed {
		return expansion.Event{Kind: expansion.EventError, Error: job.ErrorMessage}
	}
	return expansion.Event{
		Kind:    expansion.EventComplete,
		Percent: 100,
		Document: &expansion.Document{
			Text:            job.Result,
			OutputWordCount: job.OutputWordCount,
			InputWordCount:  job.InputWordCount,
			TargetWordCount: job.TargetWordCount,
			SectionCount:    job.SectionsDone,
			RepairsApplied:  job.RepairsApplied,
			ElapsedMs:       int64(job.DurationMs),
		},
	}
}

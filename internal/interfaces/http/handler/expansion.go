package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"neurotext/internal/application/expansion"
	"neurotext/internal/config"
	"neurotext/internal/domain/entity"
	"neurotext/internal/domain/repository"
	"neurotext/internal/interfaces/http/dto"
	apperrors "neurotext/pkg/errors"
	"neurotext/pkg/logger"
)

// ExpansionHandler 扩写任务处理器
type ExpansionHandler struct {
	cfg      *config.Config
	pipeline *expansion.Pipeline
	jobs     repository.JobStore
	hub      *EventHub
}

// NewExpansionHandler 创建扩写任务处理器
func NewExpansionHandler(cfg *config.Config, pipeline *expansion.Pipeline, jobs repository.JobStore, hub *EventHub) *ExpansionHandler {
	return &ExpansionHandler{
		cfg:      cfg,
		pipeline: pipeline,
		jobs:     jobs,
		hub:      hub,
	}
}

// Create 创建扩写任务
// @Summary 创建扩写任务
// @Description 提交源文档与改写指令，异步执行多遍扩写流水线
// @Tags Expansions
// @Accept json
// @Produce json
// @Param request body dto.CreateExpansionRequest true "扩写请求"
// @Success 202 {object} dto.Response[dto.CreatedExpansionResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/expansions [post]
func (h *ExpansionHandler) Create(c *gin.Context) {
	var req dto.CreateExpansionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.SourceText) == "" {
		dto.BadRequest(c, "source_text must not be blank")
		return
	}
	if len(req.SourceText) > maxSourceTextBytes {
		dto.BadRequest(c, "source_text too large")
		return
	}
	if len(req.Instructions) > maxInstructionsBytes {
		dto.BadRequest(c, "instructions too large")
		return
	}
	if req.TargetWordCount < 0 || req.MaxWords < 0 {
		dto.BadRequest(c, "word counts must be non-negative")
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	job := entity.NewExpansionJob(uuid.New().String(), provider, model, req.Instructions)
	job.TargetWordCount = req.TargetWordCount
	job.MaxWords = req.MaxWords

	if err := h.jobs.Save(c.Request.Context(), job); err != nil {
		logger.Error(c.Request.Context(), "failed to create job record", err)
		dto.InternalError(c, "failed to create job")
		return
	}

	// 与请求生命周期解耦，任务在后台跑完
	go h.runJob(job, &req, provider, model)

	dto.Accepted(c, dto.CreatedExpansionResponse{ID: job.ID, Status: string(job.Status)})
}

// runJob 后台执行流水线并维护任务状态记录
func (h *ExpansionHandler) runJob(job *entity.ExpansionJob, req *dto.CreateExpansionRequest, provider, model string) {
	ctx := logger.WithContext(context.Background(), logger.JobIDKey, job.ID)
	ctx = logger.WithContext(ctx, logger.ProviderKey, provider)

	job.Start()
	h.saveJob(ctx, job)

	sink := expansion.MultiSink{
		h.hub.sinkFor(job.ID),
		h.jobSink(ctx, job),
	}

	doc, err := h.pipeline.Run(ctx, &expansion.Request{
		JobID:           job.ID,
		SourceText:      req.SourceText,
		Instructions:    req.Instructions,
		TargetWordCount: req.TargetWordCount,
		MaxWords:        req.MaxWords,
		Provider:        provider,
		Model:           model,
		Temperature:     req.Temperature,
	}, sink)
	if err != nil {
		logger.Error(ctx, "expansion job failed", err)
		job.Fail(err.Error())
		h.saveJob(ctx, job)
		return
	}

	job.TargetWordCount = doc.TargetWordCount
	job.InputWordCount = doc.InputWordCount
	job.RepairsApplied = doc.RepairsApplied
	job.Complete(doc.Text, doc.OutputWordCount)
	h.saveJob(ctx, job)
}

// jobSink 把流水线事件折算进任务状态记录。
// 进度沿用两段式刻度：骨架阶段 0-45，生成阶段重新从 0 到 100。
func (h *ExpansionHandler) jobSink(ctx context.Context, job *entity.ExpansionJob) expansion.EventSink {
	return expansion.EventSinkFunc(func(ev expansion.Event) {
		switch ev.Kind {
		case expansion.EventProgress:
			job.UpdateProgress(ev.Percent)
		case expansion.EventOutline:
			job.UpdateProgress(ev.Percent)
			job.SectionsTotal = ev.TotalSections
			job.SectionsDone = 0
		case expansion.EventSectionComplete:
			job.UpdateProgress(ev.Percent)
			job.SectionsDone = ev.Index + 1
			job.OutputWordCount = ev.CumulativeWordCount
		case expansion.EventComplete, expansion.EventError:
			// 终态由 runJob 统一落盘
			return
		}
		h.saveJob(ctx, job)
	})
}

func (h *ExpansionHandler) saveJob(ctx context.Context, job *entity.ExpansionJob) {
	if err := h.jobs.Save(ctx, job); err != nil {
		logger.Warn(ctx, "failed to persist job state", "job_id", job.ID, "error", err)
	}
}

// Get 查询任务状态
// @Summary 查询扩写任务
// @Tags Expansions
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.ExpansionJobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/expansions/{id} [get]
func (h *ExpansionHandler) Get(c *gin.Context) {
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

	dto.Success(c, dto.FromExpansionJob(job))
}

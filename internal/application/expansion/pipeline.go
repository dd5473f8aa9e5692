package expansion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"neurotext/internal/application/expansion/audit"
	"neurotext/internal/application/expansion/outline"
	"neurotext/internal/application/expansion/parser"
	"neurotext/internal/application/expansion/section"
	"neurotext/internal/application/expansion/skeleton"
	"neurotext/internal/application/expansion/stitch"
	"neurotext/internal/config"
	"neurotext/internal/domain/entity"
	"neurotext/internal/domain/repository"
	workflowport "neurotext/internal/workflow/port"
	apperrors "neurotext/pkg/errors"
	"neurotext/pkg/logger"
	"neurotext/pkg/metrics"
)

// 未显式给出也解析不出目标词数时的兜底
const defaultTargetWords = 5000

// 骨架阶段的进度刻度（0-45），生成阶段单独从 0 重新数到 100
const (
	progressParsed         = 5
	progressSkeletonBase   = 10
	progressSkeletonSpan   = 30
	progressOutlinePlanned = 45
)

// Pipeline 多遍扩写流水线。
// 各阶段组件无状态且并发安全，一个 Pipeline 实例可服务多个并发任务。
type Pipeline struct {
	parser    *parser.Parser
	extractor *skeleton.Extractor
	chunker   *skeleton.ChunkSkeletonizer
	planner   *outline.Planner
	generator *section.Generator
	auditor   *audit.Auditor
	repairer  *stitch.Repairer

	// sections 为 nil 时跳过中间产物落盘
	sections repository.SectionStore

	sectionDelay time.Duration
}

func NewPipeline(factory workflowport.ChatModelFactory, sections repository.SectionStore, cfg *config.ExpansionConfig) *Pipeline {
	var continuationDelay, sectionDelay time.Duration
	if cfg != nil {
		continuationDelay = cfg.ContinuationDelay
		sectionDelay = cfg.SectionDelay
	}
	return &Pipeline{
		parser:       parser.NewParser(),
		extractor:    skeleton.NewExtractor(factory),
		chunker:      skeleton.NewChunkSkeletonizer(factory),
		planner:      outline.NewPlanner(factory),
		generator:    section.NewGenerator(factory, continuationDelay),
		auditor:      audit.NewAuditor(factory),
		repairer:     stitch.NewRepairer(factory),
		sections:     sections,
		sectionDelay: sectionDelay,
	}
}

// Request 一次扩写请求
type Request struct {
	JobID        string
	SourceText   string
	Instructions string

	// TargetWordCount 显式目标，优先于指令中解析出的值
	TargetWordCount int

	// MaxWords 产出词数上限，跨节检查；0 表示不限
	MaxWords int

	Provider    string
	Model       string
	Temperature *float32
}

// Run 执行完整流水线。
// 生成阶段的传输层错误是致命的；审计与缝合阶段的失败只降级不中断。
func (p *Pipeline) Run(ctx context.Context, req *Request, sink EventSink) (*Document, error) {
	if req == nil {
		return nil, apperrors.New(apperrors.CodeExpansionFailed, "request is nil")
	}
	if strings.TrimSpace(req.SourceText) == "" {
		return nil, apperrors.New(apperrors.CodeExpansionFailed, "source text is empty")
	}
	if sink == nil {
		sink = nopSink{}
	}

	start := time.Now()
	provider := strings.TrimSpace(req.Provider)

	doc, err := p.run(ctx, req, sink, start)
	if err != nil {
		metrics.ExpansionJobsTotal.WithLabelValues("failed").Inc()
		sink.OnEvent(Event{Kind: EventError, Error: err.Error()})
		return nil, err
	}

	metrics.ExpansionJobsTotal.WithLabelValues("completed").Inc()
	metrics.ExpansionJobDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	metrics.ExpansionOutputWords.WithLabelValues(provider).Observe(float64(doc.OutputWordCount))
	sink.OnEvent(Event{Kind: EventComplete, Percent: 100, Document: doc})
	return doc, nil
}

func (p *Pipeline) run(ctx context.Context, req *Request, sink EventSink, start time.Time) (*Document, error) {
	inputWords := countWords(req.SourceText)

	// 阶段一：指令解析（缓存命中时零开销）
	parsed := p.parser.Parse(req.Instructions)
	target := req.TargetWordCount
	if target <= 0 {
		target = parsed.TargetWordCount
	}
	if target <= 0 {
		target = defaultTargetWords
	}
	sink.OnEvent(Event{Kind: EventProgress, Percent: progressParsed, Message: "instructions parsed"})
	logger.Info(ctx, "expansion started",
		"job_id", req.JobID, "input_words", inputWords, "target_words", target, "provider", req.Provider)

	// 阶段二：超大源文先两级压缩，压缩稿在后续所有阶段取代原文
	source := req.SourceText
	if inputWords > skeleton.TwoTierThresholdWords {
		compressed, err := p.chunker.Build(ctx, &skeleton.ChunkInput{
			SourceText:   source,
			Instructions: req.Instructions,
			Provider:     req.Provider,
			Model:        req.Model,
			Temperature:  req.Temperature,
			OnProgress: func(done, total int) {
				percent := progressSkeletonBase + progressSkeletonSpan*done/total
				sink.OnEvent(Event{Kind: EventProgress, Percent: percent,
					Message: fmt.Sprintf("compressed chunk %d/%d", done, total)})
			},
		})
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeSkeletonExtractFailed, "two-tier compression failed")
		}
		source = compressed
	}

	// 阶段三：结构化骨架抽取（解析失败时降级为空骨架，不中断）
	sk, err := p.extractor.Extract(ctx, &skeleton.ExtractInput{
		SourceText:   source,
		Instructions: req.Instructions,
		Provider:     req.Provider,
		Model:        req.Model,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSkeletonExtractFailed, "skeleton extraction failed")
	}
	sink.OnEvent(Event{Kind: EventProgress, Percent: progressSkeletonBase + progressSkeletonSpan, Message: "skeleton extracted"})

	// 阶段四：结构解析与大纲规划
	structure := outline.Resolve(parsed, target)
	if len(structure) == 0 {
		return nil, apperrors.New(apperrors.CodeExpansionFailed, "empty section structure")
	}
	outlineText, err := p.planner.Plan(ctx, &outline.PlanInput{
		SourceText:   source,
		Instructions: req.Instructions,
		Structure:    structure,
		Provider:     req.Provider,
		Model:        req.Model,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeExpansionFailed, "outline planning failed")
	}
	sink.OnEvent(Event{
		Kind:          EventOutline,
		Percent:       progressOutlinePlanned,
		Outline:       outlineText,
		TotalSections: len(structure),
	})

	// 阶段五：逐节生成 + 旁路审计。进度改用生成刻度，从 0 重新计。
	skeletonText := skeleton.FormatForPrompt(sk)
	results := make([]*entity.SectionResult, 0, len(structure))
	reports := make([]*entity.DeltaReport, 0, len(structure))
	var coveredPoints []string
	cumulative := 0
	truncated := false

	for i, spec := range structure {
		// 跨节配额检查：达到上限就收束，已完成的部分原样交付
		if req.MaxWords > 0 && cumulative >= req.MaxWords {
			logger.Warn(ctx, "word ceiling reached, truncating document",
				"job_id", req.JobID, "cumulative", cumulative, "max_words", req.MaxWords, "sections_done", i)
			truncated = true
			break
		}

		res, err := p.generator.Generate(ctx, &section.GenerateInput{
			Name:          spec.Name,
			TargetWords:   spec.WordCount,
			SourceText:    source,
			Outline:       outlineText,
			SkeletonText:  skeletonText,
			PriorSummary:  priorSummary(results),
			CoveredPoints: coveredPoints,
			Constraints:   parsed.Constraints,
			DialogueMode:  parsed.DialogueMode,
			Participants:  parsed.DialogueParticipants,
			Provider:      req.Provider,
			Model:         req.Model,
			Temperature:   req.Temperature,
		})
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeExpansionFailed, "section generation failed").WithDetail(spec.Name)
		}

		results = append(results, res)
		coveredPoints = append(coveredPoints, res.KeyClaims...)
		cumulative += res.WordCount

		reports = append(reports, p.auditor.Audit(ctx, &audit.AuditInput{
			SectionName: res.Name,
			SectionText: res.Text,
			Skeleton:    sk,
			Provider:    req.Provider,
			Model:       req.Model,
			Temperature: req.Temperature,
		}))

		p.saveSection(ctx, req.JobID, i, res)
		sink.OnEvent(sectionEvent(i, len(structure), res, cumulative))

		if i < len(structure)-1 && p.sectionDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.sectionDelay):
			}
		}
	}

	// 阶段六：缝合修复（尽力而为）
	repairRes := p.repairer.Run(ctx, &stitch.RepairInput{
		Reports:  reports,
		Sections: results,
		Skeleton: sk,
		Provider: req.Provider,
		Model:    req.Model,
	})

	text := assemble(results)
	doc := &Document{
		Text:            text,
		InputWordCount:  inputWords,
		OutputWordCount: countWords(text),
		TargetWordCount: target,
		SectionCount:    len(results),
		RepairsApplied:  repairRes.Applied,
		RepairsSkipped:  repairRes.Skipped,
		Truncated:       truncated,
		ElapsedMs:       time.Since(start).Milliseconds(),
	}
	logger.Info(ctx, "expansion finished",
		"job_id", req.JobID, "output_words", doc.OutputWordCount, "sections", doc.SectionCount,
		"repairs_applied", doc.RepairsApplied, "elapsed_ms", doc.ElapsedMs)
	return doc, nil
}

// saveSection 中间产物落盘是尽力而为的，失败只记日志
func (p *Pipeline) saveSection(ctx context.Context, jobID string, index int, res *entity.SectionResult) {
	if p.sections == nil || jobID == "" {
		return
	}
	if err := p.sections.SaveSection(ctx, jobID, index, res); err != nil {
		logger.Warn(ctx, "failed to persist section", "job_id", jobID, "index", index, "error", err)
	}
}

// priorSummary 把已完成小节压成给后续生成调用的上文摘要
func priorSummary(done []*entity.SectionResult) string {
	if len(done) == 0 {
		return ""
	}
	lines := make([]string, 0, len(done))
	for _, s := range done {
		claims := s.KeyClaims
		if len(claims) > 2 {
			claims = claims[:2]
		}
		if len(claims) == 0 {
			lines = append(lines, fmt.Sprintf("%s (%d words)", s.Name, s.WordCount))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", s.Name, strings.Join(claims, " / ")))
	}
	return strings.Join(lines, "\n")
}

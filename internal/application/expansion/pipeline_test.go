package expansion

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurotext/internal/domain/entity"
)

// scriptedModel 按系统提示词分流，模拟各阶段的确定性回复
type scriptedModel struct {
	sectionErr error
	calls      int
}

var reChunkBudget = regexp.MustCompile(`Write up to (\d+) words now`)

func (s *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	s.calls++
	var system, user string
	for _, m := range input {
		switch m.Role {
		case schema.System:
			system = m.Content
		case schema.User:
			user = m.Content
		}
	}

	switch {
	case strings.Contains(system, "structural analyst"):
		return assistantMsg(`{
			"thesis": "The central claim.",
			"outline": ["Point one", "Point two"],
			"glossary": {"term": "definition"},
			"asserted": ["A holds"],
			"rejected": ["B holds"],
			"assumed": ["C holds"],
			"entities": ["Quine"]
		}`), nil
	case strings.Contains(system, "planning a long document"):
		return assistantMsg("1. Abstract: introduces the frame.\n2. Introduction: builds on the frame."), nil
	case strings.Contains(system, "audit one generated section"):
		return assistantMsg(`{"new_claims": [], "terms_used": ["term"], "conflicts_detected": [], "commitment_status": "COMPLIANT"}`), nil
	case strings.Contains(system, "repair cross-section"):
		return assistantMsg(`{"repairs": [], "terminology_drift": [], "redundancy_notes": []}`), nil
	default:
		// 分节生成：按请求的词数预算产出定长文本
		if s.sectionErr != nil {
			return nil, s.sectionErr
		}
		m := reChunkBudget.FindStringSubmatch(user)
		if m == nil {
			return nil, errors.New("no word budget in prompt")
		}
		n, _ := strconv.Atoi(m[1])
		return &schema.Message{
			Role:         schema.Assistant,
			Content:      strings.TrimSpace(strings.Repeat("prose ", n)),
			ResponseMeta: &schema.ResponseMeta{FinishReason: "stop"},
		}, nil
	}
}

func (s *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func assistantMsg(content string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: content}
}

type scriptedFactory struct {
	m model.BaseChatModel
}

func (f *scriptedFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.m, nil
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) OnEvent(ev Event) { r.events = append(r.events, ev) }

func (r *recordingSink) byKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func sourceText() string {
	return strings.TrimSpace(strings.Repeat("The argument shows that perception is theory-laden. ", 25))
}

func TestPipeline_EndToEnd(t *testing.T) {
	p := NewPipeline(&scriptedFactory{m: &scriptedModel{}}, nil, nil)
	sink := &recordingSink{}

	doc, err := p.Run(context.Background(), &Request{
		JobID:        "job-1",
		SourceText:   sourceText(),
		Instructions: "EXPAND TO 5000 WORDS",
	}, sink)
	require.NoError(t, err)
	require.NotNil(t, doc)

	// 目标的 95%-105% 区间
	assert.GreaterOrEqual(t, doc.OutputWordCount, 4750)
	assert.LessOrEqual(t, doc.OutputWordCount, 5250)
	assert.Equal(t, 5000, doc.TargetWordCount)
	assert.Equal(t, 8, doc.SectionCount)
	assert.False(t, doc.Truncated)

	// 标准结构的首尾小节
	assert.Contains(t, doc.Text, "## Abstract")
	assert.Contains(t, doc.Text, "## Conclusion")

	sectionEvents := sink.byKind(EventSectionComplete)
	require.Len(t, sectionEvents, 8)
	assert.Equal(t, "Abstract", sectionEvents[0].SectionName)
	assert.Equal(t, 100, sectionEvents[7].Percent)

	outlineEvents := sink.byKind(EventOutline)
	require.Len(t, outlineEvents, 1)
	assert.Equal(t, 8, outlineEvents[0].TotalSections)
	assert.Equal(t, 45, outlineEvents[0].Percent)

	completeEvents := sink.byKind(EventComplete)
	require.Len(t, completeEvents, 1)
	require.NotNil(t, completeEvents[0].Document)
	assert.Equal(t, doc.OutputWordCount, completeEvents[0].Document.OutputWordCount)
}

func TestPipeline_ExplicitTargetOverridesInstructions(t *testing.T) {
	p := NewPipeline(&scriptedFactory{m: &scriptedModel{}}, nil, nil)

	doc, err := p.Run(context.Background(), &Request{
		SourceText:      sourceText(),
		Instructions:    "EXPAND TO 5000 WORDS",
		TargetWordCount: 2000,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2000, doc.TargetWordCount)
	assert.GreaterOrEqual(t, doc.OutputWordCount, 1900)
	assert.LessOrEqual(t, doc.OutputWordCount, 2150)
}

func TestPipeline_DefaultTargetWhenUnspecified(t *testing.T) {
	p := NewPipeline(&scriptedFactory{m: &scriptedModel{}}, nil, nil)

	doc, err := p.Run(context.Background(), &Request{
		SourceText:   sourceText(),
		Instructions: "make it scholarly",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultTargetWords, doc.TargetWordCount)
}

func TestPipeline_WordCeilingTruncates(t *testing.T) {
	p := NewPipeline(&scriptedFactory{m: &scriptedModel{}}, nil, nil)
	sink := &recordingSink{}

	doc, err := p.Run(context.Background(), &Request{
		SourceText:   sourceText(),
		Instructions: "EXPAND TO 5000 WORDS",
		MaxWords:     1000,
	}, sink)
	require.NoError(t, err)

	assert.True(t, doc.Truncated)
	assert.Less(t, doc.SectionCount, 8)
	assert.Positive(t, doc.SectionCount)
}

func TestPipeline_GenerationErrorIsFatal(t *testing.T) {
	p := NewPipeline(&scriptedFactory{m: &scriptedModel{sectionErr: errors.New("quota exceeded")}}, nil, nil)
	sink := &recordingSink{}

	_, err := p.Run(context.Background(), &Request{
		SourceText:   sourceText(),
		Instructions: "EXPAND TO 5000 WORDS",
	}, sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	errorEvents := sink.byKind(EventError)
	require.Len(t, errorEvents, 1)
	assert.Contains(t, errorEvents[0].Error, "quota exceeded")
}

func TestPipeline_EmptySourceRejected(t *testing.T) {
	p := NewPipeline(&scriptedFactory{m: &scriptedModel{}}, nil, nil)
	_, err := p.Run(context.Background(), &Request{SourceText: "  ", Instructions: "EXPAND TO 5000 WORDS"}, nil)
	require.Error(t, err)
}

func TestPipeline_UserDeclaredStructureHonored(t *testing.T) {
	p := NewPipeline(&scriptedFactory{m: &scriptedModel{}}, nil, nil)

	doc, err := p.Run(context.Background(), &Request{
		SourceText: sourceText(),
		Instructions: "EXPAND TO 3000 WORDS with sections:\n" +
			"1. Opening Statement (1000 words)\n" +
			"2. Rebuttal (2000 words)",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, doc.SectionCount)
	assert.Contains(t, doc.Text, "## Opening Statement")
	assert.Contains(t, doc.Text, "## Rebuttal")
}

func TestPipeline_SectionArtifactsPersisted(t *testing.T) {
	store := &capturingSectionStore{}
	p := NewPipeline(&scriptedFactory{m: &scriptedModel{}}, store, nil)

	_, err := p.Run(context.Background(), &Request{
		JobID:        "job-2",
		SourceText:   sourceText(),
		Instructions: "EXPAND TO 5000 WORDS",
	}, nil)
	require.NoError(t, err)

	require.Len(t, store.saved, 8)
	assert.Equal(t, "Abstract", store.saved[0].Name)
}

type capturingSectionStore struct {
	saved []*entity.SectionResult
}

func (c *capturingSectionStore) SaveSection(_ context.Context, _ string, _ int, s *entity.SectionResult) error {
	c.saved = append(c.saved, s)
	return nil
}

// 大源文场景：分块骨架回复带水印，验证压缩稿把分块级内容带进下游提示词
type chunkCarryModel struct {
	scripted scriptedModel
	prompts  []string
}

func (c *chunkCarryModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var system, user string
	for _, m := range input {
		switch m.Role {
		case schema.System:
			system = m.Content
		case schema.User:
			user = m.Content
		}
	}
	switch {
	case strings.Contains(system, "one chunk of a very large document"):
		return assistantMsg("CHUNK-LEVEL CLAIM: the glacier metaphor."), nil
	case strings.Contains(system, "merge per-chunk structural skeletons"):
		return assistantMsg("MERGED META VIEW"), nil
	default:
		c.prompts = append(c.prompts, system+"\n"+user)
		return c.scripted.Generate(ctx, input, opts...)
	}
}

func (c *chunkCarryModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func TestPipeline_LargeSourceCarriesChunkSkeletonsDownstream(t *testing.T) {
	m := &chunkCarryModel{}
	p := NewPipeline(&scriptedFactory{m: m}, nil, nil)

	// 50,001 词触发两级压缩，切成 50,000+1 两个分块
	source := strings.TrimSpace(strings.Repeat("word ", 50001))
	doc, err := p.Run(context.Background(), &Request{
		SourceText:   source,
		Instructions: "EXPAND TO 5000 WORDS",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, doc)

	// 骨架抽取、大纲规划与分节生成的提示词都要能看到
	// 元骨架和分块级内容
	var extract, plan, section string
	for _, pr := range m.prompts {
		switch {
		case extract == "" && strings.Contains(pr, "structural analyst"):
			extract = pr
		case plan == "" && strings.Contains(pr, "planning a long document"):
			plan = pr
		case section == "" && strings.Contains(pr, "Write up to"):
			section = pr
		}
	}
	for name, pr := range map[string]string{"extract": extract, "plan": plan, "section": section} {
		require.NotEmpty(t, pr, name)
		assert.Contains(t, pr, "CHUNK-LEVEL CLAIM", name)
		assert.Contains(t, pr, "MERGED META VIEW", name)
	}
}

func TestPipeline_TinyTargetStillCompletes(t *testing.T) {
	p := NewPipeline(&scriptedFactory{m: &scriptedModel{}}, nil, nil)
	sink := &recordingSink{}

	doc, err := p.Run(context.Background(), &Request{
		SourceText:      sourceText(),
		Instructions:    "make it brief",
		TargetWordCount: 20,
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, 8, doc.SectionCount)
	assert.Positive(t, doc.OutputWordCount)
	for _, ev := range sink.byKind(EventSectionComplete) {
		assert.GreaterOrEqual(t, ev.SectionWordCount, 1, ev.SectionName)
	}
}

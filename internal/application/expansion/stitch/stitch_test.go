package stitch

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurotext/internal/domain/entity"
)

type stubChatModel struct {
	fn    func(input []*schema.Message) (*schema.Message, error)
	calls int
}

func (s *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	s.calls++
	return s.fn(input)
}

func (s *stubChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type stubFactory struct {
	m model.BaseChatModel
}

func (f *stubFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.m, nil
}

func assistant(content string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: content}
}

func flaggedReport(section, conflict string) *entity.DeltaReport {
	return &entity.DeltaReport{
		Section:           section,
		ConflictsDetected: []string{conflict},
		CommitmentStatus:  entity.CommitmentViolation,
	}
}

func TestApplyRepairs_ExactNameMatch(t *testing.T) {
	sections := []*entity.SectionResult{
		{Name: "Analysis", Text: "Raw sense data exist. More prose follows."},
		{Name: "Discussion", Text: "Untouched text."},
	}
	repairs := []Repair{{
		Section:         "Analysis",
		ProblematicText: "Raw sense data exist.",
		RepairedText:    "No raw sense data exist apart from theory.",
	}}

	applied, skipped := ApplyRepairs(sections, repairs)
	assert.Equal(t, 1, applied)
	assert.Zero(t, skipped)
	assert.Equal(t, "No raw sense data exist apart from theory. More prose follows.", sections[0].Text)
	assert.Equal(t, "Untouched text.", sections[1].Text)
}

func TestApplyRepairs_PrefixAndContainmentFallback(t *testing.T) {
	sections := []*entity.SectionResult{
		{Name: "Chapter 2: The Core Argument", Text: "alpha beta gamma"},
		{Name: "Conclusion", Text: "delta epsilon zeta"},
	}
	repairs := []Repair{
		// 名称前缀匹配
		{Section: "Chapter 2", ProblematicText: "beta", RepairedText: "BETA"},
		// 名称对不上，按内容定位
		{Section: "Closing Remarks", ProblematicText: "epsilon", RepairedText: "EPSILON"},
	}

	applied, skipped := ApplyRepairs(sections, repairs)
	assert.Equal(t, 2, applied)
	assert.Zero(t, skipped)
	assert.Equal(t, "alpha BETA gamma", sections[0].Text)
	assert.Equal(t, "delta EPSILON zeta", sections[1].Text)
}

func TestApplyRepairs_MissingSubstringSkipped(t *testing.T) {
	sections := []*entity.SectionResult{{Name: "Analysis", Text: "alpha beta"}}
	repairs := []Repair{{Section: "Analysis", ProblematicText: "does not appear", RepairedText: "x"}}

	applied, skipped := ApplyRepairs(sections, repairs)
	assert.Zero(t, applied)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "alpha beta", sections[0].Text)
}

func TestApplyRepairs_FirstOccurrenceOnly(t *testing.T) {
	sections := []*entity.SectionResult{{Name: "Analysis", Text: "dup text. dup text."}}
	repairs := []Repair{{Section: "Analysis", ProblematicText: "dup text.", RepairedText: "fixed."}}

	applied, _ := ApplyRepairs(sections, repairs)
	assert.Equal(t, 1, applied)
	assert.Equal(t, "fixed. dup text.", sections[0].Text)
}

func TestRun_NoFlaggedReportsSkipsCall(t *testing.T) {
	stub := &stubChatModel{fn: func([]*schema.Message) (*schema.Message, error) {
		t.Fatal("no call expected")
		return nil, nil
	}}
	r := NewRepairer(&stubFactory{m: stub})

	res := r.Run(context.Background(), &RepairInput{
		Reports: []*entity.DeltaReport{{Section: "Intro", CommitmentStatus: entity.CommitmentCompliant}},
	})
	require.NotNil(t, res)
	assert.Zero(t, stub.calls)
	assert.Empty(t, res.Repairs)
}

func TestRun_AppliesProposedRepairs(t *testing.T) {
	stub := &stubChatModel{fn: func([]*schema.Message) (*schema.Message, error) {
		return assistant(`{
			"repairs": [{"section": "Analysis", "problematic_text": "contradicts the thesis", "repaired_text": "supports the thesis"}],
			"terminology_drift": ["'sense data' vs 'sense-data'"],
			"redundancy_notes": []
		}`), nil
	}}
	r := NewRepairer(&stubFactory{m: stub})

	sections := []*entity.SectionResult{{Name: "Analysis", Text: "This plainly contradicts the thesis here."}}
	res := r.Run(context.Background(), &RepairInput{
		Reports:  []*entity.DeltaReport{flaggedReport("Analysis", "contradiction")},
		Sections: sections,
	})

	assert.Equal(t, 1, res.Applied)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, "This plainly supports the thesis here.", sections[0].Text)
	assert.Len(t, res.TerminologyDrift, 1)
}

func TestRun_WholePassFailureLeavesDocument(t *testing.T) {
	stub := &stubChatModel{fn: func([]*schema.Message) (*schema.Message, error) {
		return nil, errors.New("provider down")
	}}
	r := NewRepairer(&stubFactory{m: stub})

	sections := []*entity.SectionResult{{Name: "Analysis", Text: "original text"}}
	res := r.Run(context.Background(), &RepairInput{
		Reports:  []*entity.DeltaReport{flaggedReport("Analysis", "conflict")},
		Sections: sections,
	})

	require.NotNil(t, res)
	assert.Empty(t, res.Repairs)
	assert.Equal(t, "original text", sections[0].Text)
}

package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurotext/internal/domain/entity"
)

type stubChatModel struct {
	fn func(input []*schema.Message) (*schema.Message, error)
}

func (s *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return s.fn(input)
}

func (s *stubChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type stubFactory struct {
	m   model.BaseChatModel
	err error
}

func (f *stubFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.m, f.err
}

func assistant(content string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: content}
}

func testSkeleton() *entity.DocumentSkeleton {
	return &entity.DocumentSkeleton{
		Thesis: "Perception is theory-laden.",
		Ledger: entity.CommitmentLedger{
			Asserted: []string{"Observation reports presuppose background theory"},
			Rejected: []string{"Raw sense data exist independently of theory"},
		},
	}
}

func TestAudit_SurfacesContradiction(t *testing.T) {
	var prompt string
	stub := &stubChatModel{fn: func(input []*schema.Message) (*schema.Message, error) {
		for _, m := range input {
			if m.Role == schema.User {
				prompt = m.Content
			}
		}
		return assistant(`{
			"new_claims": ["Measurement itself is interpretive"],
			"terms_used": ["theory-laden"],
			"conflicts_detected": ["Section asserts: 'Raw sense data exist independently of theory'"],
			"commitment_status": "VIOLATION"
		}`), nil
	}}
	a := NewAuditor(&stubFactory{m: stub})

	report := a.Audit(context.Background(), &AuditInput{
		SectionName: "Analysis",
		SectionText: "Raw sense data exist independently of theory.",
		Skeleton:    testSkeleton(),
	})

	require.NotNil(t, report)
	assert.Equal(t, entity.CommitmentViolation, report.CommitmentStatus)
	assert.True(t, report.Flagged())
	require.Len(t, report.ConflictsDetected, 1)

	// 压缩骨架必须把否定命题带进提示词
	assert.Contains(t, prompt, "Raw sense data exist independently of theory")
	assert.Contains(t, prompt, "THESIS: Perception is theory-laden.")
}

func TestAudit_CompliantSectionNotFlagged(t *testing.T) {
	stub := &stubChatModel{fn: func([]*schema.Message) (*schema.Message, error) {
		return assistant(`{"new_claims": [], "terms_used": [], "conflicts_detected": [], "commitment_status": "COMPLIANT"}`), nil
	}}
	a := NewAuditor(&stubFactory{m: stub})

	report := a.Audit(context.Background(), &AuditInput{
		SectionName: "Introduction",
		SectionText: "An uncontroversial opening.",
		Skeleton:    testSkeleton(),
	})
	assert.Equal(t, entity.CommitmentCompliant, report.CommitmentStatus)
	assert.False(t, report.Flagged())
}

func TestAudit_UnparseableOutputDegrades(t *testing.T) {
	stub := &stubChatModel{fn: func([]*schema.Message) (*schema.Message, error) {
		return assistant("the section looks fine to me"), nil
	}}
	a := NewAuditor(&stubFactory{m: stub})

	report := a.Audit(context.Background(), &AuditInput{SectionName: "Discussion", Skeleton: testSkeleton()})
	assert.Equal(t, entity.CommitmentExtractionFailed, report.CommitmentStatus)
	assert.Equal(t, "Discussion", report.Section)
	assert.False(t, report.Flagged())
}

func TestAudit_TransportErrorDegrades(t *testing.T) {
	stub := &stubChatModel{fn: func([]*schema.Message) (*schema.Message, error) {
		return nil, errors.New("gateway timeout")
	}}
	a := NewAuditor(&stubFactory{m: stub})

	report := a.Audit(context.Background(), &AuditInput{SectionName: "Conclusion", Skeleton: testSkeleton()})
	assert.Equal(t, entity.CommitmentExtractionFailed, report.CommitmentStatus)
}

func TestAudit_UnknownStatusNormalized(t *testing.T) {
	stub := &stubChatModel{fn: func([]*schema.Message) (*schema.Message, error) {
		return assistant(`{"new_claims": [], "terms_used": [], "conflicts_detected": [], "commitment_status": "mostly fine"}`), nil
	}}
	a := NewAuditor(&stubFactory{m: stub})

	report := a.Audit(context.Background(), &AuditInput{SectionName: "Implications", Skeleton: testSkeleton()})
	assert.Equal(t, entity.CommitmentUnknown, report.CommitmentStatus)
}

func TestAudit_TruncatesLongSection(t *testing.T) {
	var prompt string
	stub := &stubChatModel{fn: func(input []*schema.Message) (*schema.Message, error) {
		for _, m := range input {
			if m.Role == schema.User {
				prompt = m.Content
			}
		}
		return assistant(`{"new_claims": [], "terms_used": [], "conflicts_detected": [], "commitment_status": "COMPLIANT"}`), nil
	}}
	a := NewAuditor(&stubFactory{m: stub})

	long := strings.TrimSpace(strings.Repeat("word ", auditSectionCapWords+200))
	a.Audit(context.Background(), &AuditInput{SectionName: "Chapter 3", SectionText: long, Skeleton: testSkeleton()})
	assert.Contains(t, prompt, auditTruncationMarker)
}

package section

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatModel struct {
	fn    func(call int, input []*schema.Message) (*schema.Message, error)
	calls int
}

func (s *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	s.calls++
	return s.fn(s.calls, input)
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

func reply(words int, finish string) *schema.Message {
	return &schema.Message{
		Role:         schema.Assistant,
		Content:      strings.TrimSpace(strings.Repeat("prose ", words)),
		ResponseMeta: &schema.ResponseMeta{FinishReason: finish},
	}
}

func userContent(input []*schema.Message) string {
	for _, m := range input {
		if m.Role == schema.User {
			return m.Content
		}
	}
	return ""
}

func TestGenerate_ConvergesInOneCall(t *testing.T) {
	stub := &stubChatModel{fn: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		return reply(400, "stop"), nil
	}}
	g := NewGenerator(&stubFactory{m: stub}, 0)

	res, err := g.Generate(context.Background(), &GenerateInput{Name: "Introduction", TargetWords: 400})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 400, res.WordCount)
}

func TestGenerate_IteratesUntilThreshold(t *testing.T) {
	stub := &stubChatModel{fn: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		return reply(300, "stop"), nil
	}}
	g := NewGenerator(&stubFactory{m: stub}, 0)

	res, err := g.Generate(context.Background(), &GenerateInput{Name: "Analysis", TargetWords: 1000})
	require.NoError(t, err)

	// 300+300+300 < 950，第四轮达到 1200
	assert.Equal(t, 4, res.Attempts)
	assert.True(t, res.Converged)
	assert.GreaterOrEqual(t, res.WordCount, 950)
}

func TestGenerate_LengthCutoffForcesExtraPass(t *testing.T) {
	stub := &stubChatModel{fn: func(call int, _ []*schema.Message) (*schema.Message, error) {
		if call == 1 {
			return reply(1000, "length"), nil
		}
		return reply(120, "stop"), nil
	}}
	g := NewGenerator(&stubFactory{m: stub}, 0)

	res, err := g.Generate(context.Background(), &GenerateInput{Name: "Discussion", TargetWords: 1000})
	require.NoError(t, err)

	// 词数已够但首轮被截断，强制追加一轮收尾
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.Converged)
}

func TestGenerate_AttemptCeiling(t *testing.T) {
	stub := &stubChatModel{fn: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		return reply(60, "stop"), nil
	}}
	g := NewGenerator(&stubFactory{m: stub}, 0)

	res, err := g.Generate(context.Background(), &GenerateInput{Name: "Chapter 1", TargetWords: 100000})
	require.NoError(t, err)

	assert.Equal(t, maxAttempts, res.Attempts)
	assert.False(t, res.Converged)
	assert.Positive(t, res.WordCount)
}

func TestGenerate_UnderlengthChunkRetried(t *testing.T) {
	stub := &stubChatModel{fn: func(call int, _ []*schema.Message) (*schema.Message, error) {
		if call <= 2 {
			return reply(5, "stop"), nil
		}
		return reply(200, "stop"), nil
	}}
	g := NewGenerator(&stubFactory{m: stub}, 0)

	res, err := g.Generate(context.Background(), &GenerateInput{Name: "Abstract", TargetWords: 200})
	require.NoError(t, err)

	// 两次欠长产出被原地重试吞掉，仍算一次续写
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, res.Converged)
	assert.Equal(t, 3, stub.calls)
}

func TestGenerate_TransportErrorPropagates(t *testing.T) {
	stub := &stubChatModel{fn: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		return nil, errors.New("rate limited")
	}}
	g := NewGenerator(&stubFactory{m: stub}, 0)

	_, err := g.Generate(context.Background(), &GenerateInput{Name: "Abstract", TargetWords: 200})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGenerate_ContinuationPromptCarriesTail(t *testing.T) {
	var continuation string
	stub := &stubChatModel{fn: func(call int, input []*schema.Message) (*schema.Message, error) {
		if call == 2 {
			continuation = userContent(input)
		}
		msg := reply(300, "stop")
		msg.Content = "Paragraph opening attempt.\n\nDistinctive closing paragraph marker. " + msg.Content
		return msg, nil
	}}
	g := NewGenerator(&stubFactory{m: stub}, 0)

	_, err := g.Generate(context.Background(), &GenerateInput{Name: "Analysis", TargetWords: 5000})
	require.NoError(t, err)

	assert.Contains(t, continuation, "Distinctive closing paragraph marker.")
	assert.Contains(t, continuation, "words are still needed")
}

func TestGenerate_DialogueModeUsesParticipants(t *testing.T) {
	var opening string
	stub := &stubChatModel{fn: func(call int, input []*schema.Message) (*schema.Message, error) {
		if call == 1 {
			opening = userContent(input)
		}
		return reply(500, "stop"), nil
	}}
	g := NewGenerator(&stubFactory{m: stub}, 0)

	_, err := g.Generate(context.Background(), &GenerateInput{
		Name:         "The Exchange",
		TargetWords:  500,
		DialogueMode: true,
		Participants: []string{"Hume", "Kant"},
	})
	require.NoError(t, err)
	assert.Contains(t, opening, "PARTICIPANTS: Hume, Kant")
}

func TestGenerate_OutputSanitized(t *testing.T) {
	stub := &stubChatModel{fn: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		msg := reply(300, "stop")
		msg.Content += "\n\nKEY POINTS:\n- recap one\n- recap two"
		return msg, nil
	}}
	g := NewGenerator(&stubFactory{m: stub}, 0)

	res, err := g.Generate(context.Background(), &GenerateInput{Name: "Introduction", TargetWords: 300})
	require.NoError(t, err)
	assert.NotContains(t, res.Text, "KEY POINTS:")
}

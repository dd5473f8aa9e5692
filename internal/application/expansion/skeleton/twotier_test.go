package skeleton

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func systemContent(input []*schema.Message) string {
	for _, m := range input {
		if m.Role == schema.System {
			return m.Content
		}
	}
	return ""
}

func TestChunkSkeletonizer_SplitsAndMerges(t *testing.T) {
	var progress [][2]int
	stub := &stubChatModel{fn: func(input []*schema.Message) (*schema.Message, error) {
		if strings.Contains(systemContent(input), "merge") {
			return assistant("MERGED META-SKELETON"), nil
		}
		return assistant("chunk sketch"), nil
	}}
	c := NewChunkSkeletonizer(&stubFactory{m: stub})

	// 2.5 个分块的源文
	source := strings.TrimSpace(strings.Repeat("word ", chunkWords*2+chunkWords/2))
	out, err := c.Build(context.Background(), &ChunkInput{
		SourceText: source,
		OnProgress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	require.NoError(t, err)

	// 压缩稿同时携带元骨架和全部分块骨架
	assert.True(t, strings.HasPrefix(out, "=== META-SKELETON ===\nMERGED META-SKELETON"))
	assert.Equal(t, 3, strings.Count(out, "chunk sketch"))
	assert.Contains(t, out, "=== CHUNK 1 of 3 ===")
	assert.Contains(t, out, "=== CHUNK 3 of 3 ===")
	// 3 次分块调用 + 1 次合并
	assert.Equal(t, 4, stub.calls)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestChunkSkeletonizer_SingleChunkSkipsMerge(t *testing.T) {
	stub := &stubChatModel{fn: func(input []*schema.Message) (*schema.Message, error) {
		require.NotContains(t, systemContent(input), "merge")
		return assistant("only sketch"), nil
	}}
	c := NewChunkSkeletonizer(&stubFactory{m: stub})

	out, err := c.Build(context.Background(), &ChunkInput{SourceText: "a short document"})
	require.NoError(t, err)
	assert.Equal(t, "only sketch", out)
	assert.Equal(t, 1, stub.calls)
}

func TestChunkSkeletonizer_ChunkIndexInPrompt(t *testing.T) {
	var seen []string
	stub := &stubChatModel{fn: func(input []*schema.Message) (*schema.Message, error) {
		if !strings.Contains(systemContent(input), "merge") {
			seen = append(seen, userContent(input))
		}
		return assistant("x"), nil
	}}
	c := NewChunkSkeletonizer(&stubFactory{m: stub})

	source := strings.TrimSpace(strings.Repeat("word ", chunkWords+10))
	_, err := c.Build(context.Background(), &ChunkInput{SourceText: source})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Contains(t, seen[0], "1 of 2")
	assert.Contains(t, seen[1], "2 of 2")
}

func TestMergeArgumentCount(t *testing.T) {
	assert.Equal(t, 50, MergeArgumentCount(""))
	assert.Equal(t, 50, MergeArgumentCount("EXPAND TO 200000 WORDS"))
	assert.Equal(t, 30, MergeArgumentCount("keep the 30 STRONGEST arguments"))
	assert.Equal(t, 1200, MergeArgumentCount("the 1,200 STRONGEST claims"))
}

package outline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurotext/internal/domain/entity"
)

func sumWords(specs []entity.SectionSpec) int {
	total := 0
	for _, s := range specs {
		total += s.WordCount
	}
	return total
}

func TestSynthesize_StandardTable(t *testing.T) {
	specs := Synthesize(5000)
	require.Len(t, specs, 8)

	assert.Equal(t, "Abstract", specs[0].Name)
	assert.Equal(t, "Introduction", specs[1].Name)
	assert.Equal(t, "Conclusion", specs[7].Name)
	assert.Equal(t, 5000, sumWords(specs))

	// 分析章占比最大
	assert.Equal(t, "Analysis", specs[4].Name)
	assert.Equal(t, 1250, specs[4].WordCount)
}

func TestSynthesize_StandardTable_ExactSum(t *testing.T) {
	for _, target := range []int{997, 5000, 12345, 49999, 50000} {
		specs := Synthesize(target)
		assert.Equal(t, target, sumWords(specs), "target=%d", target)
	}
}

func TestSynthesize_LargeTable(t *testing.T) {
	specs := Synthesize(120000)
	require.Len(t, specs, 15)

	assert.Equal(t, "Abstract", specs[0].Name)
	assert.Equal(t, 1200, specs[0].WordCount)
	assert.Equal(t, "Introduction", specs[1].Name)
	assert.Equal(t, 6000, specs[1].WordCount)
	assert.Equal(t, "Chapter 1", specs[2].Name)
	assert.Equal(t, "Chapter 12", specs[13].Name)
	assert.Equal(t, "Conclusion", specs[14].Name)
	assert.Equal(t, 4800, specs[14].WordCount)
	assert.Equal(t, 120000, sumWords(specs))
}

func TestSynthesize_LargeTable_ExactSum(t *testing.T) {
	// 阈值以上任意目标，取整余数并入最后一个正文章节
	for _, target := range []int{50001, 75321, 100000, 987654} {
		specs := Synthesize(target)
		require.Len(t, specs, 15, "target=%d", target)
		assert.Equal(t, target, sumWords(specs), "target=%d", target)
		for _, s := range specs {
			assert.Positive(t, s.WordCount, "target=%d section=%s", target, s.Name)
		}
	}
}

func TestSynthesize_ThresholdBoundary(t *testing.T) {
	assert.Len(t, Synthesize(50000), 8)
	assert.Len(t, Synthesize(50001), 15)
}

func TestResolve_UserStructureWins(t *testing.T) {
	parsed := &entity.ParsedInstructions{
		Sections: []entity.SectionSpec{
			{Name: "Opening", WordCount: 1000},
			{Name: "Closing", WordCount: 2000},
		},
	}
	specs := Resolve(parsed, 3000)
	require.Len(t, specs, 2)
	assert.Equal(t, "Opening", specs[0].Name)
	assert.Equal(t, 3000, sumWords(specs))
}

func TestResolve_PartialAllocation(t *testing.T) {
	parsed := &entity.ParsedInstructions{
		Sections: []entity.SectionSpec{
			{Name: "Introduction", WordCount: 2000},
			{Name: "Argument", WordCount: 0},
			{Name: "Objections", WordCount: 0},
			{Name: "Conclusion", WordCount: 1000},
		},
	}
	specs := Resolve(parsed, 10000)
	require.Len(t, specs, 4)
	assert.Equal(t, 2000, specs[0].WordCount)
	assert.Equal(t, 3500, specs[1].WordCount)
	assert.Equal(t, 3500, specs[2].WordCount)
	assert.Equal(t, 1000, specs[3].WordCount)
	assert.Equal(t, 10000, sumWords(specs))
}

func TestResolve_NoStructureSynthesizes(t *testing.T) {
	specs := Resolve(&entity.ParsedInstructions{}, 8000)
	require.Len(t, specs, 8)
	assert.Equal(t, 8000, sumWords(specs))
}

func TestFormatStructure(t *testing.T) {
	got := FormatStructure([]entity.SectionSpec{
		{Name: "Abstract", WordCount: 150},
		{Name: "Analysis", WordCount: 1250},
	})
	assert.Equal(t, "1. Abstract (150 words)\n2. Analysis (1250 words)", got)
	assert.Equal(t, "(no fixed structure)", FormatStructure(nil))
}

func TestSynthesizeTinyTargetKeepsEverySectionPositive(t *testing.T) {
	specs := Synthesize(20)
	require.Len(t, specs, 8)
	for _, s := range specs {
		assert.GreaterOrEqual(t, s.WordCount, 1, s.Name)
	}
	assert.Equal(t, 20, sumWords(specs))
}

func TestResolvePartialAllocationNeverLeavesZero(t *testing.T) {
	parsed := &entity.ParsedInstructions{Sections: []entity.SectionSpec{
		{Name: "Opening", WordCount: 2000},
		{Name: "Rebuttal"},
		{Name: "Closing"},
	}}
	// 已分配词数耗尽目标，零词小节仍要有最小预算
	specs := Resolve(parsed, 2000)
	require.Len(t, specs, 3)
	for _, s := range specs {
		assert.GreaterOrEqual(t, s.WordCount, 1, s.Name)
	}
}

// Package outline 提供结构合成与渐进式大纲规划
package outline

import (
	"neurotext/internal/domain/entity"
)

// LargeTargetThresholdWords 大目标阈值：超过则使用大部头分配表
const LargeTargetThresholdWords = 50000

// 标准分配表：8 个固定小节，百分比合计 100
var standardAllocations = []struct {
	name string
	pct  int
}{
	{"Abstract", 3},
	{"Introduction", 10},
	{"Literature Review", 15},
	{"Methodology", 12},
	{"Analysis", 25},
	{"Discussion", 15},
	{"Implications", 12},
	{"Conclusion", 8},
}

// 大部头分配表的正文章节名，占 90%，均分后余数给最后一章
var largeBodyChapters = []string{
	"Chapter 1", "Chapter 2", "Chapter 3", "Chapter 4",
	"Chapter 5", "Chapter 6", "Chapter 7", "Chapter 8",
	"Chapter 9", "Chapter 10", "Chapter 11", "Chapter 12",
}

const (
	largeAbstractPct     = 1
	largeIntroductionPct = 5
	largeConclusionPct   = 4
)

// Synthesize 按目标词数合成小节结构。
// 两张分配表以 50,000 词为界；词数总和精确等于目标，
// 除非目标小到百分比取整后不足每节 1 词，此时按 1 词下限兜底。
func Synthesize(targetWords int) []entity.SectionSpec {
	if targetWords <= 0 {
		return nil
	}
	if targetWords > LargeTargetThresholdWords {
		return synthesizeLarge(targetWords)
	}
	return synthesizeStandard(targetWords)
}

func synthesizeStandard(target int) []entity.SectionSpec {
	specs := make([]entity.SectionSpec, 0, len(standardAllocations))
	allocated := 0
	for i, a := range standardAllocations {
		words := target * a.pct / 100
		if i == len(standardAllocations)-1 {
			// 取整余数并入最后一个小节，保证总和精确
			words = target - allocated
		}
		// 极小目标下百分比取整会得 0，每节至少 1 词
		if words < 1 {
			words = 1
		}
		allocated += words
		specs = append(specs, entity.SectionSpec{Name: a.name, WordCount: words})
	}
	return specs
}

func synthesizeLarge(target int) []entity.SectionSpec {
	abstract := target * largeAbstractPct / 100
	intro := target * largeIntroductionPct / 100
	conclusion := target * largeConclusionPct / 100

	bodyTotal := target - abstract - intro - conclusion
	perChapter := bodyTotal / len(largeBodyChapters)
	lastChapter := bodyTotal - perChapter*(len(largeBodyChapters)-1)

	specs := make([]entity.SectionSpec, 0, len(largeBodyChapters)+3)
	specs = append(specs, entity.SectionSpec{Name: "Abstract", WordCount: abstract})
	specs = append(specs, entity.SectionSpec{Name: "Introduction", WordCount: intro})
	for i, name := range largeBodyChapters {
		words := perChapter
		if i == len(largeBodyChapters)-1 {
			words = lastChapter
		}
		specs = append(specs, entity.SectionSpec{Name: name, WordCount: words})
	}
	specs = append(specs, entity.SectionSpec{Name: "Conclusion", WordCount: conclusion})
	return specs
}

// Resolve 决定最终结构：用户声明的小节优先，否则按目标词数合成。
// 用户只给出部分词数时，剩余预算均分给未指定的小节。
func Resolve(parsed *entity.ParsedInstructions, targetWords int) []entity.SectionSpec {
	if parsed == nil || !parsed.HasExplicitStructure() {
		return Synthesize(targetWords)
	}

	specs := make([]entity.SectionSpec, len(parsed.Sections))
	copy(specs, parsed.Sections)

	if targetWords <= 0 {
		return specs
	}

	allocated := 0
	var unspecified []int
	for i := range specs {
		if specs[i].WordCount > 0 {
			allocated += specs[i].WordCount
		} else {
			unspecified = append(unspecified, i)
		}
	}
	if len(unspecified) == 0 {
		return specs
	}

	remainder := targetWords - allocated
	if remainder <= 0 {
		return clampPositive(specs)
	}
	per := remainder / len(unspecified)
	for _, idx := range unspecified {
		specs[idx].WordCount = per
	}
	last := unspecified[len(unspecified)-1]
	specs[last].WordCount += remainder - per*len(unspecified)
	return clampPositive(specs)
}

// clampPositive 把剩余的零词小节兜底到 1 词，避免下游拒绝空预算
func clampPositive(specs []entity.SectionSpec) []entity.SectionSpec {
	for i := range specs {
		if specs[i].WordCount < 1 {
			specs[i].WordCount = 1
		}
	}
	return specs
}

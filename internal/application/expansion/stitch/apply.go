package stitch

import (
	"strings"

	"neurotext/internal/domain/entity"
	workflownode "neurotext/internal/workflow/node"
)

// ApplyRepairs 把修复逐条套用到小节上，返回应用/跳过的条数。
// 小节定位依次尝试：名称精确匹配、名称前缀匹配、全文包含扫描。
// problematic_text 在定位到的小节里找不到时该条跳过，只替换首次出现。
func ApplyRepairs(sections []*entity.SectionResult, repairs []Repair) (applied, skipped int) {
	for _, rep := range repairs {
		target := locateSection(sections, rep)
		if target == nil || strings.TrimSpace(rep.ProblematicText) == "" {
			skipped++
			continue
		}
		if !strings.Contains(target.Text, rep.ProblematicText) {
			skipped++
			continue
		}
		target.Text = strings.Replace(target.Text, rep.ProblematicText, rep.RepairedText, 1)
		target.WordCount = workflownode.CountWords(target.Text)
		applied++
	}
	return applied, skipped
}

func locateSection(sections []*entity.SectionResult, rep Repair) *entity.SectionResult {
	name := strings.TrimSpace(rep.Section)
	if name != "" {
		for _, s := range sections {
			if strings.EqualFold(s.Name, name) {
				return s
			}
		}
		lower := strings.ToLower(name)
		for _, s := range sections {
			if strings.HasPrefix(strings.ToLower(s.Name), lower) || strings.HasPrefix(lower, strings.ToLower(s.Name)) {
				return s
			}
		}
	}
	// 名称对不上时退化为按内容定位
	if strings.TrimSpace(rep.ProblematicText) != "" {
		for _, s := range sections {
			if strings.Contains(s.Text, rep.ProblematicText) {
				return s
			}
		}
	}
	return nil
}

package section

import (
	"regexp"
	"strings"
)

// 模型尾注里常见的元信息行前缀，整行剔除
var metadataPrefixes = []string{
	"KEY POINTS:",
	"SECTION SUMMARY:",
	"SUMMARY:",
	"WORD COUNT:",
	"NOTES:",
}

// 标题行内嵌的词数标注，如 "Introduction (500 words)"
var reHeadingWordCount = regexp.MustCompile(`^(.*?)\s*\(\s*[\d,]+\s*words?\s*\)\s*$`)

// Sanitize 清理模型产出：剔除元信息行与分隔线，
// 并抹掉标题行里带出来的词数标注。被剔除行后紧跟的一个空行一并吞掉。
func Sanitize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	skipBlank := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if skipBlank {
			skipBlank = false
			if trimmed == "" {
				continue
			}
		}

		if isMetadataLine(trimmed) || isSeparatorLine(trimmed) {
			skipBlank = true
			continue
		}

		if isHeadingLine(trimmed) {
			if m := reHeadingWordCount.FindStringSubmatch(line); m != nil {
				out = append(out, strings.TrimRight(m[1], " \t"))
				continue
			}
		}

		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

func isMetadataLine(trimmed string) bool {
	upper := strings.ToUpper(trimmed)
	for _, p := range metadataPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// isSeparatorLine 识别纯分隔线：只由 -=*_# 组成且长度不小于 3
func isSeparatorLine(trimmed string) bool {
	if len(trimmed) < 3 {
		return false
	}
	for _, r := range trimmed {
		switch r {
		case '-', '=', '*', '_', '#':
		default:
			return false
		}
	}
	return true
}

// isHeadingLine 判断一行是否像标题：markdown 标题，或不以句号结尾的短行
func isHeadingLine(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "#") {
		return true
	}
	if strings.HasSuffix(trimmed, ".") {
		return false
	}
	return len(strings.Fields(trimmed)) <= 8
}

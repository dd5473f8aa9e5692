package node

import (
	"strings"
	"unicode/utf8"
)

// TruncateByRunes 按 rune 数截断字符串
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// CountWords 统计英文词数（按空白切分）
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// TruncateByWords 按词数截断；截断发生时在结尾追加 marker
func TruncateByWords(s string, maxWords int, marker string) string {
	if maxWords <= 0 {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) <= maxWords {
		return s
	}
	out := strings.Join(fields[:maxWords], " ")
	if marker != "" {
		out += "\n\n" + marker
	}
	return out
}

// SplitByWords 按固定词数切块；最后一块可以更短
func SplitByWords(s string, chunkWords int) []string {
	if chunkWords <= 0 {
		return nil
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	chunks := make([]string, 0, len(fields)/chunkWords+1)
	for start := 0; start < len(fields); start += chunkWords {
		end := start + chunkWords
		if end > len(fields) {
			end = len(fields)
		}
		chunks = append(chunks, strings.Join(fields[start:end], " "))
	}
	return chunks
}

// TailParagraphs 取文本末尾的 n 个非空段落，用于续写提示的上下文窗口
func TailParagraphs(s string, n int) string {
	if n <= 0 {
		return ""
	}
	parts := strings.Split(s, "\n\n")
	kept := make([]string, 0, n)
	for i := len(parts) - 1; i >= 0 && len(kept) < n; i-- {
		p := strings.TrimSpace(parts[i])
		if p == "" {
			continue
		}
		kept = append([]string{p}, kept...)
	}
	return strings.Join(kept, "\n\n")
}

package section

import (
	"regexp"
	"strings"
)

const (
	// 每节保留的关键论断上限
	keyClaimsCap = 8

	// 去重用的归一化前缀长度
	claimDedupePrefixLen = 60

	// 无论断句时兜底取开头的句子数
	claimFallbackSentences = 3
)

// 论断动词：含有这些动词的句子视为关键论断候选
var reClaimVerb = regexp.MustCompile(`(?i)\b(argues?|demonstrates?|establishe[sd]|shows?|proves?|contends?|maintains?|asserts?|suggests?|entails?|implies|follows)\b`)

var reClaimSentenceSplit = regexp.MustCompile(`(?m)[.!?]+(?:\s+|$)`)

// ExtractKeyClaims 从小节文本中提取关键论断。
// 取含论断动词的句子，按 60 字符归一化前缀去重，最多 8 条；
// 一条都没有时退而取开头的前 3 句。
func ExtractKeyClaims(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	claims := make([]string, 0, keyClaimsCap)
	for _, s := range sentences {
		if !reClaimVerb.MatchString(s) {
			continue
		}
		key := dedupeKey(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		claims = append(claims, s)
		if len(claims) == keyClaimsCap {
			return claims
		}
	}
	if len(claims) > 0 {
		return claims
	}

	// 兜底：开头几句当作该节的要点
	n := claimFallbackSentences
	if len(sentences) < n {
		n = len(sentences)
	}
	return sentences[:n]
}

func splitSentences(text string) []string {
	parts := reClaimSentenceSplit.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dedupeKey(s string) string {
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if len(key) > claimDedupePrefixLen {
		key = key[:claimDedupePrefixLen]
	}
	return key
}

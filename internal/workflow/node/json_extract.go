package node

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject 从模型回复中剥出首个完整的 JSON 对象。
// 骨架抽取、小节审计与缝合修复解析的都是顶层对象；即便请求了
// json_schema，部分提供商仍会把对象包进 markdown 代码栅栏，
// 或在前后附上解释性文字，这里统一先做一次清洗。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	raw = stripCodeFence(raw)

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return raw
	}

	// 从首个 { 起按括号深度扫描到配对的 }，跳过字符串字面量内部
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				candidate := raw[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate
				}
				return raw
			}
		}
	}
	// 括号未配对，原样交给调用方的 Unmarshal 报错
	return raw
}

// stripCodeFence 剥掉包裹全文的 ``` 或 ```json 代码栅栏
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := s[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		// 丢弃栅栏行上的语言标注
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// Package parser 从自由文本指令中解析结构化扩写意图
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"neurotext/internal/domain/entity"
)

// Parser 指令解析器。
// 按指令原文逐字缓存解析结果：同一指令串在进程生命期内只解析一次，
// 重复调用返回同一个指针。缓存只增不减，指令串很短，由请求量自然封顶。
type Parser struct {
	mu    sync.RWMutex
	cache map[string]*entity.ParsedInstructions
	group singleflight.Group
}

// NewParser 创建指令解析器
func NewParser() *Parser {
	return &Parser{
		cache: make(map[string]*entity.ParsedInstructions),
	}
}

// Parse 解析指令文本。永不失败：匹配不到的字段保持零值。
func (p *Parser) Parse(instructions string) *entity.ParsedInstructions {
	p.mu.RLock()
	if cached, ok := p.cache[instructions]; ok {
		p.mu.RUnlock()
		return cached
	}
	p.mu.RUnlock()

	// singleflight 合并并发的相同解析请求
	v, _, _ := p.group.Do(instructions, func() (interface{}, error) {
		parsed := parseInstructions(instructions)
		p.mu.Lock()
		p.cache[instructions] = parsed
		p.mu.Unlock()
		return parsed, nil
	})
	return v.(*entity.ParsedInstructions)
}

// 词数表达模式，按优先级排列，先中先得
var wordCountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)EXPAND(?:\s+(?:IT|THIS|THE\s+\w+))?\s+TO\s+([\d,]+(?:\.\d+)?)\s*(K?)[\s-]*WORDS?`),
	regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*(K?)[\s-]+WORD\s+THESIS`),
	regexp.MustCompile(`(?i)TARGET\s+OF\s+([\d,]+(?:\.\d+)?)\s*(K?)\s*WORDS?`),
	regexp.MustCompile(`(?i)\b([\d,]+(?:\.\d+)?)(K)\b`),
}

var (
	reChapterParen  = regexp.MustCompile(`(?im)CHAPTER\s+([IVXLCDM]+|\d+)\s*[:.]?\s*([^(\n]*?)\s*\(([\d,]+)\s*WORDS?\)`)
	reChapterDash   = regexp.MustCompile(`(?im)CHAPTER\s+([IVXLCDM]+|\d+)\s*[:.]?\s*([^\-–\n]*?)\s*[-–]\s*([\d,]+)\s*WORDS?\b`)
	reNumberedParen = regexp.MustCompile(`(?m)^\s*(\d{1,2})[.)]\s*([^(\n]+?)\s*\(([\d,]+)\s*[Ww][Oo][Rr][Dd][Ss]?\)`)
	reNumberedDash  = regexp.MustCompile(`(?m)^\s*(\d{1,2})[.)]\s*([^\-–\n]+?)\s*[-–]\s*([\d,]+)\s*[Ww][Oo][Rr][Dd][Ss]?\b`)
	// 无词数的编号行：名称里不允许数字，带词数的行不会落到这里
	reNumberedBare = regexp.MustCompile(`(?m)^\s*(\d{1,2})[.)]\s+([A-Za-z][A-Za-z ,:&/'-]{1,60})\s*$`)
	reNamedParen    = regexp.MustCompile(`(?m)\b([A-Z][A-Z &/]{2,40}?)\s*\(([\d,]+)\s*[Ww][Oo][Rr][Dd][Ss]?\)`)

	reCitationCount = regexp.MustCompile(`(?i)(?:AT\s+LEAST\s+)?([\d,]+)\s*(?:RECENT\s+|SCHOLARLY\s+|ACADEMIC\s+)?(?:SOURCES|CITATIONS|REFERENCES)`)
	reCitationYears = regexp.MustCompile(`(?i)LAST\s+([\d,]+)\s+YEARS`)

	reEntityList = regexp.MustCompile(`(?i)(?:CITE|REFERENCE)\s+(?:THE\s+)?PHILOSOPHERS?\s*\(([^)]+)\)`)

	reAcademic    = regexp.MustCompile(`(?i)\b(?:ACADEMIC|SCHOLARLY)\b`)
	reNoBullets   = regexp.MustCompile(`(?i)\b(?:NO\s+BULLETS?|NO\s+LISTS?|FULL\s+PROSE|CONTINUOUS\s+PROSE)\b`)
	reSubsections = regexp.MustCompile(`(?i)\bSUB-?SECTIONS?\b`)
	reLitReview   = regexp.MustCompile(`(?i)\bLITERATURE\s+REVIEW\b`)

	reDialogueKeyword = regexp.MustCompile(`(?i)\b(?:DIALOGUE|CONVERSATION|DEBATE\s+BETWEEN|DISCUSSION\s+BETWEEN)\b`)
	reBetweenClause   = regexp.MustCompile(`(?i)BETWEEN\s+([^.\n]+)`)
	reAndSplit        = regexp.MustCompile(`(?i)\s+AND\s+`)

	reSentenceSplit = regexp.MustCompile(`[.!?\n]+`)
)

// 小节名称缩写 -> 规范名
var sectionAbbreviations = map[string]string{
	"INTRO":      "INTRODUCTION",
	"CONCL":      "CONCLUSION",
	"ABS":        "ABSTRACT",
	"LIT REVIEW": "LITERATURE REVIEW",
	"METH":       "METHODOLOGY",
	"METHODS":    "METHODOLOGY",
	"BIB":        "BIBLIOGRAPHY",
	"REFS":       "REFERENCES",
}

// 兜底扫描用的已知权威人名
var knownAuthorities = []string{
	"Plato", "Aristotle", "Descartes", "Spinoza", "Leibniz", "Locke", "Berkeley",
	"Hume", "Kant", "Hegel", "Schopenhauer", "Nietzsche", "Frege", "Russell",
	"Wittgenstein", "Quine", "Kripke", "Davidson", "Putnam", "Searle", "Fodor",
	"Chalmers", "Dennett", "Chomsky", "Freud", "James",
}

// 约束句的起始指令动词
var constraintVerbs = map[string]bool{
	"MUST":     true,
	"MAINTAIN": true,
	"IDENTIFY": true,
	"STATE":    true,
}

func parseInstructions(instructions string) *entity.ParsedInstructions {
	out := &entity.ParsedInstructions{}
	if strings.TrimSpace(instructions) == "" {
		return out
	}

	upper := strings.ToUpper(instructions)

	out.TargetWordCount = extractWordCount(instructions, upper)
	out.Sections = extractSections(instructions)
	out.Citations = extractCitations(instructions)
	out.Entities = extractEntities(instructions)

	out.AcademicRegister = reAcademic.MatchString(instructions)
	out.NoBullets = reNoBullets.MatchString(instructions)
	out.RequireSubsections = reSubsections.MatchString(instructions)
	out.RequireLiteratureReview = reLitReview.MatchString(instructions)

	out.DialogueMode, out.DialogueParticipants = extractDialogue(instructions)
	out.Constraints = extractConstraints(instructions)

	distributeSectionWords(out)
	return out
}

// extractWordCount 按优先级尝试各词数表达模式，先中先得。
// 紧邻 WORDS 的 k/K 后缀按千倍换算；与 THESIS 共现的小于 500 的
// 数字按千为单位理解（"50 word thesis" 意为五万词论文）。
func extractWordCount(s, upper string) int {
	for _, re := range wordCountPatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n := parseNumber(m[1])
		if n <= 0 {
			continue
		}
		if len(m) > 2 && strings.EqualFold(m[2], "K") {
			n *= 1000
		}
		count := int(n)
		if count < 500 && strings.Contains(upper, "THESIS") {
			count *= 1000
		}
		return count
	}
	return 0
}

func parseNumber(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}

// extractSections 识别多种表面形式的章节声明。
// 去重键是规范化大写名称的前 15 个字符，先出现者保留。
func extractSections(s string) []entity.SectionSpec {
	var sections []entity.SectionSpec
	seen := make(map[string]bool)

	add := func(name string, words int) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := dedupeKey(name)
		if seen[key] {
			return
		}
		seen[key] = true
		sections = append(sections, entity.SectionSpec{Name: name, WordCount: words})
	}

	for _, m := range reChapterParen.FindAllStringSubmatch(s, -1) {
		add(chapterName(m[1], m[2]), int(parseNumber(m[3])))
	}
	for _, m := range reChapterDash.FindAllStringSubmatch(s, -1) {
		add(chapterName(m[1], m[2]), int(parseNumber(m[3])))
	}
	for _, m := range reNumberedParen.FindAllStringSubmatch(s, -1) {
		add(canonicalSectionName(m[2]), int(parseNumber(m[3])))
	}
	for _, m := range reNumberedDash.FindAllStringSubmatch(s, -1) {
		add(canonicalSectionName(m[2]), int(parseNumber(m[3])))
	}
	for _, m := range reNamedParen.FindAllStringSubmatch(s, -1) {
		name := strings.TrimSpace(m[1])
		// 过滤掉诸如 "EXPAND TO" 被误捕的伪名称：要求不含指令动词
		if strings.Contains(name, "EXPAND") || strings.Contains(name, "TARGET") {
			continue
		}
		add(canonicalSectionName(name), int(parseNumber(m[2])))
	}

	// 无词数的编号行视为章节声明，词数留给 distributeSectionWords 分配
	for _, m := range reNumberedBare.FindAllStringSubmatch(s, -1) {
		name := strings.TrimSpace(m[2])
		first := strings.ToUpper(strings.Fields(name)[0])
		if constraintVerbs[first] || strings.Contains(strings.ToUpper(name), "EXPAND") {
			continue
		}
		add(canonicalSectionName(name), 0)
	}

	return sections
}

// chapterName 组装章节名：罗马数字转阿拉伯数字，标题保留原大小写
func chapterName(numeral, title string) string {
	n := 0
	if isRoman(strings.ToUpper(numeral)) && !isArabic(numeral) {
		n = romanToArabic(strings.ToUpper(numeral))
	} else {
		n = int(parseNumber(numeral))
	}
	if n <= 0 {
		return ""
	}
	name := "CHAPTER " + strconv.Itoa(n)
	title = strings.TrimSpace(title)
	if title != "" {
		name += ": " + title
	}
	return name
}

func isArabic(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// canonicalSectionName 展开已知缩写
func canonicalSectionName(name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := sectionAbbreviations[strings.ToUpper(name)]; ok {
		return canonical
	}
	return name
}

func dedupeKey(name string) string {
	key := strings.ToUpper(strings.Join(strings.Fields(name), " "))
	if len(key) > 15 {
		key = key[:15]
	}
	return key
}

func extractCitations(s string) *entity.CitationRequest {
	m := reCitationCount.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	req := &entity.CitationRequest{Count: int(parseNumber(m[1]))}
	if y := reCitationYears.FindStringSubmatch(s); y != nil {
		req.LastNYears = int(parseNumber(y[1]))
	}
	return req
}

// extractEntities 优先取 CITE/REFERENCE PHILOSOPHERS (...) 的显式列表，
// 否则兜底扫描文本中出现的已知人名。
func extractEntities(s string) []string {
	if m := reEntityList.FindStringSubmatch(s); m != nil {
		return splitNameList(m[1])
	}

	var found []string
	for _, name := range knownAuthorities {
		if strings.Contains(s, name) {
			found = append(found, name)
		}
	}
	return found
}

func splitNameList(s string) []string {
	s = reAndSplit.ReplaceAllString(s, ",")
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// extractDialogue 检测对话体触发词；发现 BETWEEN X AND Y 从句时，
// 无论触发词检查结果如何都强制开启对话模式。
func extractDialogue(s string) (bool, []string) {
	dialogue := reDialogueKeyword.MatchString(s)

	m := reBetweenClause.FindStringSubmatch(s)
	if m == nil {
		return dialogue, nil
	}
	participants := splitNameList(m[1])
	if len(participants) >= 2 {
		return true, participants
	}
	return dialogue, nil
}

// extractConstraints 收集以指令动词开头的句子，原样保留
func extractConstraints(s string) []string {
	var out []string
	for _, sentence := range reSentenceSplit.Split(s, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		first := strings.ToUpper(strings.Fields(sentence)[0])
		if constraintVerbs[first] {
			out = append(out, sentence)
		}
	}
	return out
}

// distributeSectionWords 维护词数分配不变式：
// 目标词数已知时，未标词数的小节均分剩余预算，余数给最后一个。
func distributeSectionWords(p *entity.ParsedInstructions) {
	if p.TargetWordCount <= 0 || len(p.Sections) == 0 {
		return
	}

	allocated := 0
	var unspecified []int
	for i := range p.Sections {
		if p.Sections[i].WordCount > 0 {
			allocated += p.Sections[i].WordCount
		} else {
			unspecified = append(unspecified, i)
		}
	}
	if len(unspecified) == 0 {
		return
	}

	remainder := p.TargetWordCount - allocated
	if remainder <= 0 {
		return
	}

	per := remainder / len(unspecified)
	for _, idx := range unspecified {
		p.Sections[idx].WordCount = per
	}
	// 余数并入最后一个未指定小节，保证总和精确等于目标
	last := unspecified[len(unspecified)-1]
	p.Sections[last].WordCount += remainder - per*len(unspecified)
}

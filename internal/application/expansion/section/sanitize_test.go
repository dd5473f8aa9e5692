package section

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_StripsMetadataLines(t *testing.T) {
	in := "The argument proceeds in three steps.\n\nKEY POINTS:\n\nMore prose follows here."
	got := Sanitize(in)
	assert.Equal(t, "The argument proceeds in three steps.\n\nMore prose follows here.", got)
}

func TestSanitize_StripsSeparators(t *testing.T) {
	in := "First paragraph.\n---\nSecond paragraph.\n======\nThird paragraph."
	got := Sanitize(in)
	assert.NotContains(t, got, "---")
	assert.NotContains(t, got, "======")
	assert.Contains(t, got, "Second paragraph.")
}

func TestSanitize_KeepsShortDashes(t *testing.T) {
	// 两个字符的破折号不是分隔线
	in := "A claim.\n--\nfollowed by prose."
	assert.Equal(t, in, Sanitize(in))
}

func TestSanitize_RewritesHeadingWordCount(t *testing.T) {
	in := "## Introduction (500 words)\n\nProse body of the section."
	got := Sanitize(in)
	assert.Contains(t, got, "## Introduction\n")
	assert.NotContains(t, got, "(500 words)")
}

func TestSanitize_RewritesBareHeadingAnnotation(t *testing.T) {
	in := "Literature Review (1,200 words)\n\nThe review begins."
	got := Sanitize(in)
	assert.Contains(t, got, "Literature Review\n")
	assert.NotContains(t, got, "1,200")
}

func TestSanitize_LeavesProseWithParentheticalWordCounts(t *testing.T) {
	// 以句号结尾的整句不是标题，不改写
	in := "The abstract runs to a modest length (300 words) by design of the journal."
	assert.Equal(t, in, Sanitize(in))
}

func TestSanitize_SwallowsBlankAfterStrippedLine(t *testing.T) {
	in := "Prose one.\nSECTION SUMMARY: recap\n\nProse two."
	assert.Equal(t, "Prose one.\nProse two.", Sanitize(in))
}

func TestSanitize_CaseInsensitiveMarkers(t *testing.T) {
	in := "Body.\nKey Points: a, b, c\nMore body."
	got := Sanitize(in)
	assert.NotContains(t, got, "Key Points")
}

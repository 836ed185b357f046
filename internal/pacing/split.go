package pacing

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	listItemRe = regexp.MustCompile(`^\s*(?:\d{1,3}[.)]|[-*•])\s+\S`)

	// Spans that contain sentence punctuation but must never be cut.
	protectedRe = regexp.MustCompile(strings.Join([]string{
		`(?:R\$|US\$|\$|€|£)\s?\d+(?:[.,]\d+)*`,
		`\+?\d{0,3}\s?\(?\d{2,3}\)?[\s-]?\d{4,5}-\d{4}`,
		`\d+(?:[.,]\d+)+`,
		`(?i)\b(?:dr|dra|sr|sra|prof|ex|aprox|obs|vs|p\.\s?ex)\.`,
	}, "|"))

	sentenceEndRe = regexp.MustCompile(`[.!?…]+["'”)\]]*\s+`)
	placeholderRe = regexp.MustCompile("\ue000(\\d+)\ue001")
)

type block struct {
	list  bool
	items int
	lines []string
}

// splitBlocks groups lines into contiguous list blocks and blank-line
// separated prose paragraphs. A blank line between two list items does not
// end the list; an indented line right under an item continues it.
func splitBlocks(text string) []block {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		blocks  []block
		current *block
		blank   bool
	)
	flush := func() {
		if current != nil && len(current.lines) > 0 {
			blocks = append(blocks, *current)
		}
		current = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t")
		if strings.TrimSpace(line) == "" {
			if current != nil && !current.list {
				flush()
			}
			blank = true
			continue
		}

		switch {
		case listItemRe.MatchString(line):
			if current == nil || !current.list {
				flush()
				current = &block{list: true}
			}
			current.items++
			current.lines = append(current.lines, strings.TrimSpace(line))
		case current != nil && current.list && !blank && line != strings.TrimLeft(line, " \t"):
			current.lines = append(current.lines, line)
		default:
			if current == nil || current.list {
				flush()
				current = &block{}
			}
			current.lines = append(current.lines, strings.TrimSpace(line))
		}
		blank = false
	}
	flush()
	return blocks
}

// splitSentences cuts a paragraph after sentence punctuation followed by
// whitespace, leaving protected spans intact.
func splitSentences(paragraph string) []string {
	masked, spans := mask(paragraph)

	var sentences []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(masked, -1) {
		if s := strings.TrimSpace(masked[start:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(masked[start:]); s != "" {
		sentences = append(sentences, s)
	}

	for i, s := range sentences {
		sentences[i] = unmask(s, spans)
	}
	return sentences
}

// Placeholders use private-use runes so they never match sentence
// punctuation.
const (
	maskOpen  = "\ue000"
	maskClose = "\ue001"
)

func mask(s string) (string, []string) {
	var spans []string
	masked := protectedRe.ReplaceAllStringFunc(s, func(m string) string {
		spans = append(spans, m)
		return maskOpen + strconv.Itoa(len(spans)-1) + maskClose
	})
	return masked, spans
}

func unmask(s string, spans []string) string {
	if len(spans) == 0 {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		i, err := strconv.Atoi(m[len(maskOpen) : len(m)-len(maskClose)])
		if err != nil || i >= len(spans) {
			return m
		}
		return spans[i]
	})
}

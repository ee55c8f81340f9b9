package models

import (
	"regexp"
	"strings"
)

// QAPair is one question/answer pair parsed from the admin JSONL export form.
type QAPair struct {
	Question string
	Answer   string
}

var (
	questionLine = regexp.MustCompile(`(?i)^\s*Q\s*[:\-]\s*(.*)$`)
	answerLine   = regexp.MustCompile(`(?i)^\s*A\s*[:\-]\s*(.*)$`)
)

// ParseQAPairs extracts Q/A pairs from free-form text. A pair is a `Q :` line
// followed by an `A :` line; lines between an answer line and the next
// question line are folded into the answer, so answers may span multiple
// lines. Blank lines and stray text before a question are ignored.
func ParseQAPairs(text string) []QAPair {
	var pairs []QAPair
	var question string
	var answer []string
	inAnswer := false

	flush := func() {
		if inAnswer {
			pairs = append(pairs, QAPair{
				Question: question,
				Answer:   strings.TrimSpace(strings.Join(answer, "\n")),
			})
		}
		question = ""
		answer = nil
		inAnswer = false
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		if m := questionLine.FindStringSubmatch(line); m != nil {
			flush()
			question = strings.TrimSpace(m[1])
			continue
		}
		if m := answerLine.FindStringSubmatch(line); m != nil && question != "" && !inAnswer {
			inAnswer = true
			answer = append(answer, strings.TrimSpace(m[1]))
			continue
		}
		if inAnswer && strings.TrimSpace(line) != "" {
			answer = append(answer, strings.TrimSpace(line))
		}
	}
	flush()

	return pairs
}

// CountQAPairs reports how many pairs ParseQAPairs would return. The admin
// page uses this for the live pair count before uploading.
func CountQAPairs(text string) int {
	return len(ParseQAPairs(text))
}

package validation

import (
	"regexp"
	"strings"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/tools"
)

const (
	minAnswerLength        = 3
	descriptionAcceptWords = 2
	resultAcceptWords      = 5
)

var (
	outcomeRe = regexp.MustCompile(`(?i)\b(increas\w*|grew|grow\w*|doubl\w*|tripl\w*|sav\w*|earn\w*|revenue|profit\w*|improv\w*|reduc\w*|boost\w*|achiev\w*|landed|closed|sales)\b|\d|%|[$€£¥]`)
	relationRe = regexp.MustCompile(`(?i)\b(clients?|customers?|helped|helping|students?|members?)\b`)
)

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// fastAccept reports whether answer passes the category's heuristics without
// asking a model. The model validator is unreliable for terse but valid
// answers, so these rules only ever accept, never reject.
func fastAccept(category tools.Category, answer string) bool {
	switch category {
	case tools.CategoryDescription:
		return wordCount(answer) >= descriptionAcceptWords
	case tools.CategoryResult:
		return outcomeRe.MatchString(answer) ||
			relationRe.MatchString(answer) ||
			wordCount(answer) >= resultAcceptWords
	default:
		return false
	}
}

package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/Reg-Kris/pyairtable-automation-service/internal/automation"
)

var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "excellent": {}, "amazing": {}, "love": {},
	"happy": {}, "wonderful": {}, "fantastic": {}, "helpful": {}, "thanks": {},
	"thank": {}, "awesome": {}, "perfect": {}, "best": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "terrible": {}, "awful": {}, "hate": {}, "angry": {},
	"broken": {}, "worst": {}, "useless": {}, "slow": {}, "wrong": {},
	"problem": {}, "issue": {}, "fail": {}, "failed": {},
}

// SentimentAction scores a text field from the execution context with a
// small word-list heuristic. It mostly exists so later actions can gate on
// sentiment; anything needing real NLP belongs in an external handler.
type SentimentAction struct{}

// NewSentimentAction creates the analyze_sentiment action handler
func NewSentimentAction() *SentimentAction {
	return &SentimentAction{}
}

func (a *SentimentAction) Type() string {
	return "analyze_sentiment"
}

// Execute reads the text at parameters.field (a dot-path into the execution
// context, default "content.body") and returns a sentiment label and score
func (a *SentimentAction) Execute(ctx context.Context, parameters map[string]interface{}, execContext map[string]interface{}) (map[string]interface{}, error) {
	field, ok := parameters["field"].(string)
	if !ok || field == "" {
		field = "content.body"
	}

	value, found := automation.ResolveField(execContext, field)
	if !found {
		return nil, fmt.Errorf("analyze_sentiment: field %s not present in context", field)
	}

	text, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("analyze_sentiment: field %s is not text", field)
	}

	score := 0
	words := strings.Fields(strings.ToLower(text))
	for _, word := range words {
		word = strings.Trim(word, ".,!?;:\"'()")
		if _, ok := positiveWords[word]; ok {
			score++
		}
		if _, ok := negativeWords[word]; ok {
			score--
		}
	}

	label := "neutral"
	switch {
	case score > 0:
		label = "positive"
	case score < 0:
		label = "negative"
	}

	return map[string]interface{}{
		"sentiment": label,
		"score":     score,
		"words":     len(words),
	}, nil
}

// Package intent implements a single-pass, rule-based classifier for user
// utterances. It is pure: no state, no I/O.
package intent

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Label is one of the closed set of intents the classifier can produce.
type Label string

const (
	Empty           Label = "empty"
	Greeting        Label = "greeting"
	SummaryRequest  Label = "summary_request"
	CreativeRequest Label = "creative_request"
	ActionRequest   Label = "action_request"
	Question        Label = "question"
	ShortPrompt     Label = "short_prompt"
	Statement       Label = "statement"
)

// Result is the outcome of analyzing one utterance.
type Result struct {
	Intent     Label               `json:"intent"`
	Confidence float64             `json:"confidence"`
	Keywords   []string            `json:"keywords"`
	Entities   map[string][]string `json:"entities"`
	Urgent     bool                `json:"urgent"`
}

// Rule tables, matched by case-insensitive substring. First table hit wins.
var (
	greetings = []string{"bonjour", "salut", "bonsoir", "coucou", "hello", "bien le bonjour"}

	summaryTriggers = []string{"résume", "résumer", "synthèse", "bilan", "résumé"}

	creativeTriggers = []string{
		"écris", "écrire", "rédige", "rédiger", "poème", "haïku",
		"hymne", "histoire", "discours", "texte", "scénario",
	}

	actionTriggers = []string{
		"plan", "liste", "tâche", "tâches", "prochaine étape",
		"actions", "dois-je", "fais", "faire", "propose", "priorise",
	}

	questionWords = []string{
		"qui", "quoi", "comment", "pourquoi", "où", "ou", "quand",
		"combien", "lequel", "laquelle", "est-ce", "est ce",
	}

	urgencyWords = []string{
		"urgent", "urgence", "immédiat", "important",
		"rapidement", "tout de suite", "vite",
	}
)

const maxKeywords = 6

var (
	keywordRE = regexp.MustCompile(`[a-zA-ZÀ-ÖØ-öø-ÿ0-9]{3,}`)

	isoDateRE    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	frenchDateRE = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	numberRE     = regexp.MustCompile(`\b\d+[\.,]?\d*\b`)
	refRE        = regexp.MustCompile(`\b[A-Z]{2,}-?\d{2,}\b`)
)

// Analyze classifies a single utterance. Blank input yields the empty
// result with zero confidence.
func Analyze(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Intent: Empty, Keywords: []string{}, Entities: map[string][]string{}}
	}

	label := classify(text)
	urgent := detectUrgency(text)

	confidence := 0.6
	if label == Statement || label == ShortPrompt {
		confidence = 0.4
	}
	if urgent {
		confidence = math.Min(1.0, confidence+0.2)
	}

	return Result{
		Intent:     label,
		Confidence: math.Round(confidence*100) / 100,
		Keywords:   extractKeywords(text),
		Entities:   extractEntities(text),
		Urgent:     urgent,
	}
}

func classify(text string) Label {
	low := strings.ToLower(text)
	switch {
	case containsAny(low, greetings):
		return Greeting
	case containsAny(low, summaryTriggers):
		return SummaryRequest
	case containsAny(low, creativeTriggers):
		return CreativeRequest
	case containsAny(low, actionTriggers):
		return ActionRequest
	case isQuestion(low):
		return Question
	case len(strings.Fields(low)) <= 3:
		return ShortPrompt
	}
	return Statement
}

func isQuestion(low string) bool {
	if strings.Contains(low, "?") {
		return true
	}
	for _, word := range questionWords {
		if strings.HasPrefix(low, word) || strings.Contains(low, " "+word+" ") {
			return true
		}
	}
	return false
}

func detectUrgency(text string) bool {
	return containsAny(strings.ToLower(text), urgencyWords)
}

func containsAny(low string, table []string) bool {
	for _, word := range table {
		if strings.Contains(low, word) {
			return true
		}
	}
	return false
}

// extractKeywords returns up to 6 alphanumeric runs of length >= 3, most
// frequent first, ties broken by first occurrence.
func extractKeywords(text string) []string {
	words := keywordRE.FindAllString(strings.ToLower(text), -1)
	counts := make(map[string]int, len(words))
	order := make([]string, 0, len(words))
	for _, w := range words {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

// extractEntities pulls dates, numbers and reference codes. A category is
// present in the result only when at least one match was found.
func extractEntities(text string) map[string][]string {
	entities := make(map[string][]string)

	var dates []string
	dates = append(dates, isoDateRE.FindAllString(text, -1)...)
	dates = append(dates, frenchDateRE.FindAllString(text, -1)...)
	if len(dates) > 0 {
		entities["dates"] = dates
	}
	if nums := numberRE.FindAllString(text, -1); len(nums) > 0 {
		entities["numbers"] = nums
	}
	if refs := refRE.FindAllString(text, -1); len(refs) > 0 {
		entities["refs"] = refs
	}
	return entities
}

// Package intent extracts shopping preferences from chat text with a fixed
// keyword vocabulary. Parsing is deterministic.
package intent

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dmitrymomot/handoff/internal/session"
)

// Result is the outcome of parsing one message in its conversation.
type Result struct {
	Intent     session.Intent `json:"intent"`
	Tags       []string       `json:"tags"`
	Summary    string         `json:"summary"`
	Confidence float64        `json:"confidence"`
}

// Parser turns a message and the prior history into an intent.
type Parser interface {
	Parse(text string, history []session.Message) Result
}

// RuleParser is the keyword-based Parser. A cases.Caser is not safe for
// concurrent use, so one is built per call.
type RuleParser struct{}

// NewRuleParser creates a RuleParser.
func NewRuleParser() *RuleParser {
	return &RuleParser{}
}

// amount matches 200, 199.99 and 1,500.
const amount = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`

var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s*` + amount + `\s*(k)?\b`),
	regexp.MustCompile(`\b` + amount + `\s*(k)?\s*(?:dollars|usd|bucks)\b`),
	regexp.MustCompile(`\b(?:budget|under|below|max|maximum|up to|less than|around)\s*(?:is|of|:)?\s*\$?` + amount + `\s*(k)?\b`),
}

// Parse re-derives the intent from every user message in history followed
// by text. Later mentions override earlier ones.
func (p *RuleParser) Parse(text string, history []session.Message) Result {
	var (
		in   session.Intent
		tags []string
	)

	messages := make([]string, 0, len(history)+1)
	for _, m := range history {
		if m.Sender == session.SenderUser {
			messages = append(messages, m.Text)
		}
	}
	if strings.TrimSpace(text) != "" && (len(messages) == 0 || messages[len(messages)-1] != text) {
		messages = append(messages, text)
	}

	for _, m := range messages {
		next, nextTags := p.parseOne(m)
		in = in.Merge(next)
		for _, t := range nextTags {
			if !slices.Contains(tags, t) {
				tags = append(tags, t)
			}
		}
	}
	if tags == nil {
		tags = []string{}
	}

	return Result{
		Intent:     in,
		Tags:       tags,
		Summary:    p.summarize(in),
		Confidence: confidence(in),
	}
}

func (p *RuleParser) parseOne(text string) (session.Intent, []string) {
	normalized := p.normalize(text)
	padded := " " + words(normalized) + " "

	var (
		in   session.Intent
		tags []string
	)

	if v := lastMatch(padded, occasions); v != "" {
		in.Occasion = v
		tags = append(tags, occasionTags[v])
	}
	if v := lastMatch(padded, seasons); v != "" {
		in.Season = v
		tags = append(tags, seasonTags[v])
	}
	if v := lastMatch(padded, styles); v != "" {
		in.Style = v
		tags = append(tags, styleTags[v])
	}
	for _, phrase := range urgencyPhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			in.Urgency = UrgencyHigh
			tags = append(tags, TagUrgent)
			break
		}
	}
	for _, w := range preferenceWords {
		if strings.Contains(padded, " "+w+" ") {
			in.Preferences = append(in.Preferences, w)
		}
	}

	if b, ok := parseBudget(normalized); ok {
		in.Budget = b
		switch {
		case b <= budgetFriendlyMax:
			tags = append(tags, TagBudgetFriendly)
		case b >= premiumMin:
			tags = append(tags, TagPremium)
		}
	}

	return in, tags
}

// normalize lowercases and strips diacritics.
func (p *RuleParser) normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return cases.Lower(language.English).String(folded)
}

func (p *RuleParser) summarize(in session.Intent) string {
	if in.IsZero() {
		return "Tell me about the occasion, season, style or budget you have in mind."
	}

	var parts []string
	if in.Occasion != "" {
		parts = append(parts, cases.Title(language.English).String(in.Occasion)+" outfit")
	}
	if in.Season != "" {
		parts = append(parts, "for "+in.Season)
	}
	if in.Style != "" {
		parts = append(parts, in.Style+" style")
	}
	if in.Budget > 0 {
		parts = append(parts, "budget up to $"+strconv.FormatFloat(in.Budget, 'f', -1, 64))
	}
	if len(in.Preferences) > 0 {
		parts = append(parts, "prefers "+strings.Join(in.Preferences, ", "))
	}
	if in.Urgency == UrgencyHigh {
		parts = append(parts, "needed soon")
	}
	return fmt.Sprintf("Looking for: %s.", strings.Join(parts, "; "))
}

// confidence grows with the number of core fields identified.
func confidence(in session.Intent) float64 {
	found := 0
	for _, set := range []bool{in.Occasion != "", in.Season != "", in.Style != "", in.Budget > 0} {
		if set {
			found++
		}
	}
	if found == 0 {
		if len(in.Preferences) > 0 || in.Urgency != "" {
			return 0.2
		}
		return 0
	}
	return min(0.25+0.2*float64(found), 1)
}

// words replaces every run of non-alphanumerics with one space.
func words(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func lastMatch(padded string, vocabulary []keyword) string {
	best, bestAt := "", -1
	for _, k := range vocabulary {
		if at := strings.LastIndex(padded, " "+k.phrase+" "); at > bestAt {
			best, bestAt = k.value, at
		}
	}
	return best
}

func parseBudget(s string) (float64, bool) {
	for _, re := range budgetPatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || v <= 0 {
			continue
		}
		if len(m) > 2 && m[2] == "k" {
			v *= 1000
		}
		return v, true
	}
	return 0, false
}

// TagsFor returns the tags implied by an already merged intent.
func TagsFor(in session.Intent) []string {
	tags := []string{}
	if t, ok := occasionTags[in.Occasion]; ok {
		tags = append(tags, t)
	}
	if t, ok := seasonTags[in.Season]; ok {
		tags = append(tags, t)
	}
	if t, ok := styleTags[in.Style]; ok {
		tags = append(tags, t)
	}
	if in.Urgency == UrgencyHigh {
		tags = append(tags, TagUrgent)
	}
	switch {
	case in.Budget > 0 && in.Budget <= budgetFriendlyMax:
		tags = append(tags, TagBudgetFriendly)
	case in.Budget >= premiumMin:
		tags = append(tags, TagPremium)
	}
	return tags
}

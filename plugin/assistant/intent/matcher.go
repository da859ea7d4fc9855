// Package intent classifies free-text messages into workflow intents.
//
// Three independent detectors run on every message (appointment,
// service request, FAQ action), then a fixed priority multiplier picks
// the winner. Letting several detectors "want" the same turn and
// resolving deterministically keeps the routing explainable.
package intent

import (
	"context"
	"strings"
	"unicode"

	"github.com/solmari/civassist/store"
)

// Type identifies the kind of workflow intent detected in a message.
type Type string

const (
	TypeAppointment    Type = "appointment"
	TypeServiceRequest Type = "service_request"
	TypeFAQAction      Type = "faq_action"
)

// Intent is an ephemeral classification result for a single turn.
type Intent struct {
	Type       Type
	Confidence float64
	Keywords   []string

	// Rule is set for service-request intents that resolved to a routing
	// rule. FAQ is set for FAQ-action intents.
	Rule *store.RoutingRule
	FAQ  *store.FAQ
}

// ConfigSource supplies the active routing rules and FAQs.
type ConfigSource interface {
	ListActiveRoutingRules(ctx context.Context) ([]*store.RoutingRule, error)
	ListActiveFAQs(ctx context.Context) ([]*store.FAQ, error)
}

// Matcher detects workflow intents against configured rules and FAQs.
type Matcher struct {
	configs ConfigSource
}

// NewMatcher creates a matcher backed by the given config source.
func NewMatcher(configs ConfigSource) *Matcher {
	return &Matcher{configs: configs}
}

// Priority multipliers applied to detector confidence before the final pick.
// The service-request multiplier only applies when a routing rule matched.
const (
	appointmentWeight    = 1.2
	serviceRequestWeight = 1.1
	faqActionWeight      = 0.8

	faqOverlapThreshold = 0.3
)

// appointmentKeywords are booking verbs in English and Spanish.
var appointmentKeywords = []string{
	"appointment", "schedule", "book", "booking", "reserve", "reservation",
	"cita", "agendar", "reservar", "programar", "turno",
}

// appointmentExclusions are phrases indicating an informational question
// about meetings rather than a request to book one. Any hit suppresses
// appointment intent entirely.
var appointmentExclusions = []string{
	"council meeting", "town hall meeting", "public meeting", "board meeting",
	"when is the meeting", "meeting agenda", "agenda for",
	"reunion del concejo", "reunion publica", "agenda de la reunion",
}

// requestKeywords are complaint and report verbs in English and Spanish.
var requestKeywords = []string{
	"report", "complaint", "complain", "broken", "issue", "problem",
	"fix", "repair", "damaged", "not working", "pothole", "graffiti",
	"reportar", "queja", "quejar", "roto", "problema", "arreglar",
	"reparar", "danado", "no funciona", "bache",
}

// Detect classifies a message. Nil means no workflow intent qualified and
// the turn should fall through to conversational chat.
func (m *Matcher) Detect(ctx context.Context, message string) (*Intent, error) {
	normalized := normalize(message)
	if normalized == "" {
		return nil, nil
	}

	// The multiplier ranks candidates but the reported confidence stays
	// the detector's own 0-1 score.
	type candidate struct {
		intent *Intent
		score  float64
	}
	var candidates []candidate

	if c := m.detectAppointment(normalized); c != nil {
		candidates = append(candidates, candidate{c, c.Confidence * appointmentWeight})
	}

	rules, err := m.configs.ListActiveRoutingRules(ctx)
	if err != nil {
		return nil, err
	}
	if c := m.detectServiceRequest(normalized, rules); c != nil {
		candidates = append(candidates, candidate{c, c.Confidence * serviceRequestWeight})
	}

	faqs, err := m.configs.ListActiveFAQs(ctx)
	if err != nil {
		return nil, err
	}
	if c := m.detectFAQAction(normalized, faqs); c != nil {
		candidates = append(candidates, candidate{c, c.Confidence * faqActionWeight})
	}

	var best *candidate
	for i := range candidates {
		if best == nil || candidates[i].score > best.score {
			best = &candidates[i]
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.intent, nil
}

func (m *Matcher) detectAppointment(normalized string) *Intent {
	// Exclusions win over keywords, always. "When is the next council
	// meeting" must not start a booking flow.
	for _, phrase := range appointmentExclusions {
		if strings.Contains(normalized, phrase) {
			return nil
		}
	}

	matched := matchKeywords(normalized, appointmentKeywords)
	if len(matched) == 0 {
		return nil
	}
	return &Intent{
		Type:       TypeAppointment,
		Confidence: clamp(0.3 + 0.3*float64(len(matched))),
		Keywords:   matched,
	}
}

func (m *Matcher) detectServiceRequest(normalized string, rules []*store.RoutingRule) *Intent {
	matched := matchKeywords(normalized, requestKeywords)
	if len(matched) == 0 {
		return nil
	}

	// The intent is only actionable when it resolves to a concrete
	// department. Catch-all rules never win here.
	rule := resolveRule(normalized, rules)
	if rule == nil {
		return nil
	}
	return &Intent{
		Type:       TypeServiceRequest,
		Confidence: clamp(0.25 + 0.25*float64(len(matched))),
		Keywords:   matched,
		Rule:       rule,
	}
}

// ResolveRule classifies free text against routing rules by best keyword
// overlap. Used by the service-request flow when no category was pre-seeded.
func ResolveRule(message string, rules []*store.RoutingRule) *store.RoutingRule {
	return resolveRule(normalize(message), rules)
}

// resolveRule picks the active non-catch-all rule with the highest
// keyword hit count. Ties keep the first rule encountered.
func resolveRule(normalized string, rules []*store.RoutingRule) *store.RoutingRule {
	var best *store.RoutingRule
	bestHits := 0
	for _, rule := range rules {
		if rule.CatchAll {
			continue
		}
		hits := 0
		for _, kw := range rule.Keywords {
			if strings.Contains(normalized, normalize(kw)) {
				hits++
			}
		}
		if hits > bestHits {
			best = rule
			bestHits = hits
		}
	}
	return best
}

func (m *Matcher) detectFAQAction(normalized string, faqs []*store.FAQ) *Intent {
	messageWords := significantWords(normalized)
	if len(messageWords) == 0 {
		return nil
	}

	var best *store.FAQ
	bestScore := 0.0
	for _, faq := range faqs {
		if faq.WorkflowAction == "" {
			continue
		}
		questionWords := significantWords(normalize(faq.Question))
		if len(questionWords) == 0 {
			continue
		}
		hits := 0
		for _, qw := range questionWords {
			if overlaps(qw, messageWords) {
				hits++
			}
		}
		score := float64(hits) / float64(len(questionWords))
		if score > faqOverlapThreshold && score > bestScore {
			best = faq
			bestScore = score
		}
	}
	if best == nil {
		return nil
	}
	return &Intent{
		Type:       TypeFAQAction,
		Confidence: bestScore,
		FAQ:        best,
	}
}

// overlaps reports whether word matches any message word by substring
// containment in either direction, so "appointments" matches "appointment".
func overlaps(word string, messageWords []string) bool {
	for _, mw := range messageWords {
		if strings.Contains(mw, word) || strings.Contains(word, mw) {
			return true
		}
	}
	return false
}

// significantWords returns words longer than 2 runes.
func significantWords(normalized string) []string {
	var words []string
	for _, w := range strings.Fields(normalized) {
		if len([]rune(w)) > 2 {
			words = append(words, w)
		}
	}
	return words
}

func matchKeywords(normalized string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// diacriticFolds maps accented Latin letters to their base letter so
// "reunión" and "reunion" normalize identically. Keyword lists are written
// unaccented.
var diacriticFolds = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c',
}

// normalize lowercases, folds diacritics, strips punctuation while keeping
// letters and digits, and collapses whitespace.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if folded, ok := diacriticFolds[r]; ok {
			r = folded
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

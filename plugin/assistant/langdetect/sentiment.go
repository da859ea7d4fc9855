package langdetect

import "strings"

// Sentiment is a coarse sentiment category for a resident message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentUrgent   Sentiment = "urgent"
)

// Escalate reports whether a turn with this sentiment should be flagged for
// human follow-up.
func (s Sentiment) Escalate() bool {
	return s == SentimentNegative || s == SentimentUrgent
}

var urgentMarkers = []string{
	"emergency", "urgent", "right now", "immediately", "asap", "dangerous",
	"flooding", "fire", "gas leak", "injured",
	"urgente", "emergencia", "inmediatamente", "peligro",
	"ijans", "danje", "prese", "touswit",
}

var negativeMarkers = []string{
	"angry", "terrible", "awful", "horrible", "frustrated", "disappointed",
	"unacceptable", "worst", "broken", "not working", "still waiting",
	"no one", "nobody", "complaint", "fed up", "ridiculous",
	"enojado", "molesto", "terrible", "pésimo", "queja", "no funciona",
	"fache", "move", "pa bon", "plenyen",
}

var positiveMarkers = []string{
	"thank", "thanks", "great", "awesome", "wonderful", "appreciate",
	"helpful", "perfect", "excellent", "love",
	"gracias", "excelente", "perfecto", "maravilloso",
	"mèsi", "mesi", "bon bagay", "anpil",
}

// ClassifySentiment assigns a coarse sentiment category. Urgency dominates;
// otherwise negative beats positive on equal evidence.
func ClassifySentiment(text string) Sentiment {
	lower := strings.ToLower(text)

	if countMarkers(lower, urgentMarkers) > 0 {
		return SentimentUrgent
	}

	neg := countMarkers(lower, negativeMarkers)
	pos := countMarkers(lower, positiveMarkers)
	switch {
	case neg > 0 && neg >= pos:
		return SentimentNegative
	case pos > 0:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

package channel

import (
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
)

// smsMaxLength is the provider's concatenated-message limit. Longer bodies
// are truncated with an ellipsis rather than rejected.
const smsMaxLength = 1600

// SMSKeyword classifies carrier-mandated keyword messages.
type SMSKeyword string

const (
	SMSKeywordNone   SMSKeyword = ""
	SMSKeywordOptOut SMSKeyword = "opt_out"
	SMSKeywordOptIn  SMSKeyword = "opt_in"
	SMSKeywordHelp   SMSKeyword = "help"
)

// Keyword sets are exact whole-message matches, case-insensitive. Substring
// matching would swallow sentences that merely contain the word.
var (
	optOutWords = []string{"stop", "stopall", "unsubscribe", "quit", "end", "parar", "alto"}
	optInWords  = []string{"start", "unstop", "empezar"}
	helpWords   = []string{"help", "info", "ayuda", "ed"}
)

// ClassifySMSKeyword checks a message body against the keyword sets. These
// short-circuit before the chat processor ever runs.
func ClassifySMSKeyword(body string) SMSKeyword {
	normalized := strings.ToLower(strings.TrimSpace(body))
	for _, w := range optOutWords {
		if normalized == w {
			return SMSKeywordOptOut
		}
	}
	for _, w := range optInWords {
		if normalized == w {
			return SMSKeywordOptIn
		}
	}
	for _, w := range helpWords {
		if normalized == w {
			return SMSKeywordHelp
		}
	}
	return SMSKeywordNone
}

// SMSEvent is one parsed inbound SMS webhook.
type SMSEvent struct {
	MessageID string
	From      string
	To        string
	Body      string
}

// ParseSMSInbound extracts the fields of an SMS webhook form post.
func ParseSMSInbound(form url.Values) SMSEvent {
	return SMSEvent{
		MessageID: form.Get("MessageSid"),
		From:      form.Get("From"),
		To:        form.Get("To"),
		Body:      form.Get("Body"),
	}
}

// TruncateSMS bounds an outbound body to the concatenation limit, appending
// an ellipsis when content was dropped.
func TruncateSMS(body string) string {
	runes := []rune(body)
	if len(runes) <= smsMaxLength {
		return body
	}
	return string(runes[:smsMaxLength-1]) + "…"
}

type smsMessage struct {
	XMLName xml.Name `xml:"Message"`
	Text    string   `xml:",chardata"`
}

type smsResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message smsMessage
}

// RenderSMSReply serializes an outbound body as the provider's webhook
// reply document, flattening markdown and enforcing the length limit.
func RenderSMSReply(body string) (string, error) {
	doc := smsResponse{Message: smsMessage{Text: TruncateSMS(PlainText(body))}}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}

var optOutConfirmations = map[langdetect.Language]string{
	langdetect.English: "You have been unsubscribed from city messages. Reply START to resubscribe.",
	langdetect.Spanish: "Se ha cancelado su suscripción a los mensajes de la ciudad. Responda EMPEZAR para volver a suscribirse.",
	langdetect.Creole:  "Ou dezabòne nan mesaj vil la. Reponn START pou abòne ankò.",
}

var optInConfirmations = map[langdetect.Language]string{
	langdetect.English: "Welcome back! You are subscribed to city messages. Reply STOP to unsubscribe, HELP for help.",
	langdetect.Spanish: "¡Bienvenido de nuevo! Está suscrito a los mensajes de la ciudad. Responda PARAR para cancelar, AYUDA para ayuda.",
	langdetect.Creole:  "Byenveni ankò! Ou abòne nan mesaj vil la. Reponn STOP pou dezabòne, ED pou èd.",
}

var helpTexts = map[langdetect.Language]string{
	langdetect.English: "City assistant: text any question about city services. Reply STOP to unsubscribe. Msg&data rates may apply.",
	langdetect.Spanish: "Asistente de la ciudad: envíe cualquier pregunta sobre servicios municipales. Responda PARAR para cancelar.",
	langdetect.Creole:  "Asistan vil la: voye nenpòt kesyon sou sèvis vil yo. Reponn STOP pou dezabòne.",
}

// SMSKeywordReply returns the fixed localized confirmation for a keyword.
func SMSKeywordReply(keyword SMSKeyword, lang langdetect.Language) string {
	var table map[langdetect.Language]string
	switch keyword {
	case SMSKeywordOptOut:
		table = optOutConfirmations
	case SMSKeywordOptIn:
		table = optInConfirmations
	case SMSKeywordHelp:
		table = helpTexts
	default:
		return ""
	}
	if msg, ok := table[lang]; ok {
		return msg
	}
	return table[langdetect.English]
}

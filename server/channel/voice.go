package channel

import (
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/solmari/civassist/plugin/assistant/langdetect"
)

// TwiML verb types. Every rendered document ends in either a Gather (keep
// listening) or a Hangup; a call is never left open without a next step.

// Say speaks text to the caller.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

// Gather collects speech or digits and posts them to Action.
type Gather struct {
	XMLName   xml.Name `xml:"Gather"`
	Input     string   `xml:"input,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Language  string   `xml:"language,attr,omitempty"`
	Say       []Say    `xml:"Say"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// VoiceResponse is a TwiML document.
type VoiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

// Render serializes the document with the XML declaration Twilio expects.
func (r *VoiceResponse) Render() (string, error) {
	out, err := xml.Marshal(r)
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}

// VoiceEvent is one parsed inbound voice webhook.
type VoiceEvent struct {
	CallID string
	From   string
	Digits string
	Speech string
}

// ParseVoiceInbound extracts the fields of a voice webhook form post.
func ParseVoiceInbound(form url.Values) VoiceEvent {
	return VoiceEvent{
		CallID: form.Get("CallSid"),
		From:   form.Get("From"),
		Digits: form.Get("Digits"),
		Speech: form.Get("SpeechResult"),
	}
}

// Input returns the caller's effective input, preferring speech.
func (e VoiceEvent) Input() string {
	if e.Speech != "" {
		return e.Speech
	}
	return e.Digits
}

// voiceLocales maps supported languages to speech locales.
var voiceLocales = map[langdetect.Language]string{
	langdetect.English: "en-US",
	langdetect.Spanish: "es-US",
	langdetect.Creole:  "fr-FR",
}

func voiceLocale(lang langdetect.Language) string {
	if locale, ok := voiceLocales[lang]; ok {
		return locale
	}
	return voiceLocales[langdetect.English]
}

const voiceListenTimeout = 6

// VoiceGreeting renders the call-start language menu. No input falls
// through to a goodbye and hangup.
func VoiceGreeting(actionURL string) *VoiceResponse {
	return &VoiceResponse{Verbs: []interface{}{
		Gather{
			Input:     "dtmf",
			Action:    actionURL,
			Method:    "POST",
			Timeout:   voiceListenTimeout,
			NumDigits: 1,
			Say: []Say{
				{Language: "en-US", Text: "Welcome to the city assistant. For English, press 1."},
				{Language: "es-US", Text: "Para español, oprima 2."},
				{Language: "fr-FR", Text: "Pou kreyòl, peze 3."},
			},
		},
		Say{Language: "en-US", Text: "We didn't receive a selection. Goodbye."},
		Hangup{},
	}}
}

// LanguageForDigit maps a greeting menu digit to a language.
func LanguageForDigit(digit string) (langdetect.Language, bool) {
	switch digit {
	case "1":
		return langdetect.English, true
	case "2":
		return langdetect.Spanish, true
	case "3":
		return langdetect.Creole, true
	}
	return langdetect.English, false
}

var voiceContinuePrompts = map[langdetect.Language]string{
	langdetect.English: "Is there anything else I can help you with?",
	langdetect.Spanish: "¿Puedo ayudarle con algo más?",
	langdetect.Creole:  "Èske mwen ka ede ou ak yon lòt bagay?",
}

var voiceEscalatePrompts = map[langdetect.Language]string{
	langdetect.English: "If you would like to speak with a staff member, please say agent.",
	langdetect.Spanish: "Si desea hablar con un miembro del personal, diga agente.",
	langdetect.Creole:  "Si ou vle pale ak yon anplwaye, di ajan.",
}

var voiceGoodbyes = map[langdetect.Language]string{
	langdetect.English: "Thank you for calling. Goodbye.",
	langdetect.Spanish: "Gracias por llamar. Adiós.",
	langdetect.Creole:  "Mèsi paske ou rele. Orevwa.",
}

// VoiceTurn renders an assistant reply as spoken text followed by another
// listen prompt. Escalations offer a staff transfer before continuing.
func VoiceTurn(message string, lang langdetect.Language, escalate bool, actionURL string) *VoiceResponse {
	locale := voiceLocale(lang)
	says := []Say{{Language: locale, Text: PlainText(message)}}
	if escalate {
		says = append(says, Say{Language: locale, Text: voiceEscalatePrompts[resolveVoiceLang(lang)]})
	}
	says = append(says, Say{Language: locale, Text: voiceContinuePrompts[resolveVoiceLang(lang)]})

	return &VoiceResponse{Verbs: []interface{}{
		Gather{
			Input:    "speech dtmf",
			Action:   actionURL,
			Method:   "POST",
			Timeout:  voiceListenTimeout,
			Language: locale,
			Say:      says,
		},
		Say{Language: locale, Text: voiceGoodbyes[resolveVoiceLang(lang)]},
		Hangup{},
	}}
}

var voiceWelcomes = map[langdetect.Language]string{
	langdetect.English: "How can I help you today?",
	langdetect.Spanish: "¿Cómo puedo ayudarle hoy?",
	langdetect.Creole:  "Kijan mwen ka ede ou jodi a?",
}

// VoiceLanguageSelected confirms the caller's language choice and starts
// listening for the first question.
func VoiceLanguageSelected(lang langdetect.Language, actionURL string) *VoiceResponse {
	locale := voiceLocale(lang)
	return &VoiceResponse{Verbs: []interface{}{
		Gather{
			Input:    "speech dtmf",
			Action:   actionURL,
			Method:   "POST",
			Timeout:  voiceListenTimeout,
			Language: locale,
			Say:      []Say{{Language: locale, Text: voiceWelcomes[resolveVoiceLang(lang)]}},
		},
		Say{Language: locale, Text: voiceGoodbyes[resolveVoiceLang(lang)]},
		Hangup{},
	}}
}

var voiceHandoffIntros = map[langdetect.Language]string{
	langdetect.English: "Your resume code is:",
	langdetect.Spanish: "Su código para continuar es:",
	langdetect.Creole:  "Kòd ou pou kontinye se:",
}

// VoiceHandoffCode announces a cross-channel code, spelling it character by
// character so it survives dictation.
func VoiceHandoffCode(code string, lang langdetect.Language, actionURL string) *VoiceResponse {
	locale := voiceLocale(lang)
	resolved := resolveVoiceLang(lang)

	spelled := strings.Join(strings.Split(code, ""), ", ")
	return &VoiceResponse{Verbs: []interface{}{
		Say{Language: locale, Text: voiceHandoffIntros[resolved]},
		Say{Language: locale, Text: spelled},
		Say{Language: locale, Text: spelled},
		Gather{
			Input:    "speech dtmf",
			Action:   actionURL,
			Method:   "POST",
			Timeout:  voiceListenTimeout,
			Language: locale,
			Say:      []Say{{Language: locale, Text: voiceContinuePrompts[resolved]}},
		},
		Say{Language: locale, Text: voiceGoodbyes[resolved]},
		Hangup{},
	}}
}

// VoiceGoodbye renders a terminal goodbye.
func VoiceGoodbye(lang langdetect.Language) *VoiceResponse {
	return &VoiceResponse{Verbs: []interface{}{
		Say{Language: voiceLocale(lang), Text: voiceGoodbyes[resolveVoiceLang(lang)]},
		Hangup{},
	}}
}

func resolveVoiceLang(lang langdetect.Language) langdetect.Language {
	if _, ok := voiceContinuePrompts[lang]; ok {
		return lang
	}
	return langdetect.English
}

package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Language
	}{
		{"plain english", "I want to schedule an appointment", English},
		{"english question", "When is the next trash pickup?", English},
		{"spanish request", "Necesito hacer una cita por favor", Spanish},
		{"spanish with punctuation", "¿Cómo puedo pagar mi factura?", Spanish},
		{"creole greeting", "Bonjou, mwen bezwen yon randevou", Creole},
		{"creole with diacritics", "Èske ou ka ede mwen tanpri", Creole},
		{"empty defaults to english", "", English},
		{"numbers default to english", "12345", English},
		// Creole wins ties against Spanish by design.
		{"creole over spanish tie", "mwen vle yon cita", Creole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Detect(tt.input))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected Language
		ok       bool
	}{
		{"en", English, true},
		{"ES", Spanish, true},
		{"ht", Creole, true},
		{"es-US", Spanish, true},
		{"en_GB", English, true},
		{"fr", English, false},
		{"", English, false},
	}

	for _, tt := range tests {
		lang, ok := Normalize(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		if ok {
			assert.Equal(t, tt.expected, lang, tt.input)
		}
	}
}

func TestClassifySentiment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Sentiment
	}{
		{"neutral question", "What are the library hours?", SentimentNeutral},
		{"positive thanks", "Thank you, that was very helpful!", SentimentPositive},
		{"negative complaint", "This is unacceptable, I am still waiting", SentimentNegative},
		{"urgent flooding", "My street is flooding right now", SentimentUrgent},
		{"urgent beats positive", "Thanks but this is an emergency", SentimentUrgent},
		{"spanish complaint", "El servicio no funciona, es terrible", SentimentNegative},
		{"creole thanks", "Mèsi anpil pou èd ou", SentimentPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifySentiment(tt.input))
		})
	}
}

func TestSentimentEscalate(t *testing.T) {
	assert.False(t, SentimentPositive.Escalate())
	assert.False(t, SentimentNeutral.Escalate())
	assert.True(t, SentimentNegative.Escalate())
	assert.True(t, SentimentUrgent.Escalate())
}

// Package chat implements the conversational turn processor: language and
// sentiment resolution, knowledge grounding, the primary/secondary AI call
// and the audit trail. A chat turn never fails visibly; every internal
// error degrades to a localized fallback message.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solmari/civassist/plugin/assistant/knowledge"
	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/server/ai"
	"github.com/solmari/civassist/store"
)

// Token budgets per channel. SMS replies must fit a handful of segments.
const (
	smsTokenBudget     = 100
	defaultTokenBudget = 500

	knowledgeLimit = 3
	auditTimeout   = 5 * time.Second
)

// Turn is one inbound chat message in canonical form.
type Turn struct {
	Channel session.Channel
	UserID  string
	Message string
	// RequestedLanguage, when set by the channel (user menu pick, profile
	// locale), wins over detection.
	RequestedLanguage string
	// Domain scopes knowledge retrieval for multi-tenant content.
	Domain string
}

// Response is the canonical chat result consumed by channel adapters.
type Response struct {
	Message        string               `json:"message"`
	Language       langdetect.Language  `json:"language"`
	Sentiment      langdetect.Sentiment `json:"sentiment"`
	Sources        []knowledge.Result   `json:"sources,omitempty"`
	Escalate       bool                 `json:"escalate"`
	ConversationID string               `json:"conversation_id"`
}

// Processor runs conversational turns.
type Processor struct {
	sessions  session.Store
	retriever knowledge.Retriever
	provider  ai.Provider
	store     *store.Store
}

// NewProcessor creates a chat processor. retriever and store may be nil in
// reduced deployments; the processor degrades gracefully without them.
func NewProcessor(sessions session.Store, retriever knowledge.Retriever, provider ai.Provider, s *store.Store) *Processor {
	return &Processor{sessions: sessions, retriever: retriever, provider: provider, store: s}
}

// Process runs one turn. The returned response is always well formed; the
// error return only reports session-store failures that make a turn
// impossible to attribute.
func (p *Processor) Process(ctx context.Context, turn Turn) (*Response, error) {
	lang := p.resolveLanguage(turn)

	sess, err := p.sessions.GetOrCreate(ctx, turn.Channel, turn.UserID, lang)
	if err != nil {
		return nil, err
	}
	if turn.RequestedLanguage == "" && len(sess.Messages) > 0 {
		// Mid-conversation language flips are jarring; keep the session
		// language unless the user explicitly asks.
		lang = sess.Language
	} else if lang != sess.Language {
		if err := p.sessions.SetLanguage(ctx, turn.Channel, turn.UserID, lang); err != nil {
			slog.Warn("failed to persist session language", "error", err)
		}
	}

	if err := p.sessions.AddMessage(ctx, turn.Channel, turn.UserID, session.RoleUser, turn.Message); err != nil {
		slog.Warn("failed to record user message", "error", err)
	}

	sentiment := langdetect.ClassifySentiment(turn.Message)
	escalate := sentiment.Escalate()

	sources := p.retrieve(ctx, turn)

	history := make([]ai.Message, 0, len(sess.Messages)+1)
	for _, m := range sess.Messages {
		history = append(history, ai.Message{Role: m.Role, Content: m.Content})
	}
	history = append(history, ai.Message{Role: session.RoleUser, Content: turn.Message})

	system := buildSystemPrompt(lang, sources, escalate)
	reply, err := p.provider.Complete(ctx, system, history, tokenBudget(turn.Channel))
	if err != nil {
		slog.Error("all AI providers failed for turn", "channel", turn.Channel, "error", err)
		reply = apologies[lang]
	}

	if err := p.sessions.AddMessage(ctx, turn.Channel, turn.UserID, session.RoleAssistant, reply); err != nil {
		slog.Warn("failed to record assistant message", "error", err)
	}

	p.audit(turn, reply, lang, sentiment, escalate)

	return &Response{
		Message:        reply,
		Language:       lang,
		Sentiment:      sentiment,
		Sources:        sources,
		Escalate:       escalate,
		ConversationID: sess.ID,
	}, nil
}

func (p *Processor) resolveLanguage(turn Turn) langdetect.Language {
	if turn.RequestedLanguage != "" {
		if lang, ok := langdetect.Normalize(turn.RequestedLanguage); ok {
			return lang
		}
	}
	return langdetect.Detect(turn.Message)
}

func (p *Processor) retrieve(ctx context.Context, turn Turn) []knowledge.Result {
	if p.retriever == nil {
		return nil
	}
	sources, err := p.retriever.Query(ctx, turn.Message, knowledgeLimit, turn.Domain)
	if err != nil {
		// Retrieval is best effort. The model answers unassisted.
		slog.Warn("knowledge retrieval failed", "error", err)
		return nil
	}
	return sources
}

// audit writes the conversation log without blocking the turn. Failures
// are swallowed.
func (p *Processor) audit(turn Turn, reply string, lang langdetect.Language, sentiment langdetect.Sentiment, escalate bool) {
	if p.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		err := p.store.CreateConversationLog(ctx, &store.ConversationLog{
			Channel:          string(turn.Channel),
			UserID:           turn.UserID,
			UserMessage:      turn.Message,
			AssistantMessage: reply,
			Language:         string(lang),
			Sentiment:        string(sentiment),
			Escalated:        escalate,
			CreatedTs:        time.Now().Unix(),
		})
		if err != nil {
			slog.Warn("failed to write conversation log", "error", err)
		}
	}()
}

func tokenBudget(channel session.Channel) int {
	if channel == session.ChannelSMS {
		return smsTokenBudget
	}
	return defaultTokenBudget
}

// systemPrompts parameterize the assistant's behavior per language.
var systemPrompts = map[langdetect.Language]string{
	langdetect.English: "You are a helpful assistant for city residents. Answer questions about municipal services briefly and accurately. Reply in English.",
	langdetect.Spanish: "Eres un asistente para los residentes de la ciudad. Responde preguntas sobre servicios municipales de forma breve y precisa. Responde en español.",
	langdetect.Creole:  "Ou se yon asistan pou rezidan vil la. Reponn kesyon sou sèvis minisipal yo yon fason kout e egzat. Reponn an kreyòl ayisyen.",
}

var escalationNotes = map[langdetect.Language]string{
	langdetect.English: "The resident sounds upset or the matter is urgent. Acknowledge their concern and offer to connect them with a staff member.",
	langdetect.Spanish: "El residente parece molesto o el asunto es urgente. Reconozca su preocupación y ofrezca conectarlo con un miembro del personal.",
	langdetect.Creole:  "Rezidan an sanble fache oswa koze a ijan. Rekonèt enkyetid li epi ofri konekte li ak yon anplwaye.",
}

// apologies are the exact fallback strings returned when every provider
// fails. One per supported language.
var apologies = map[langdetect.Language]string{
	langdetect.English: "I'm sorry, I'm having trouble responding right now. Please try again in a moment or call City Hall for assistance.",
	langdetect.Spanish: "Lo siento, tengo problemas para responder en este momento. Inténtelo de nuevo en un momento o llame al ayuntamiento.",
	langdetect.Creole:  "Mwen regrèt, mwen gen pwoblèm pou reponn kounye a. Tanpri eseye ankò nan yon moman oswa rele Meri a pou asistans.",
}

// Apology returns the localized hard-fallback string for a language.
func Apology(lang langdetect.Language) string {
	if msg, ok := apologies[lang]; ok {
		return msg
	}
	return apologies[langdetect.English]
}

func buildSystemPrompt(lang langdetect.Language, sources []knowledge.Result, escalate bool) string {
	var b strings.Builder
	if prompt, ok := systemPrompts[lang]; ok {
		b.WriteString(prompt)
	} else {
		b.WriteString(systemPrompts[langdetect.English])
	}

	if len(sources) > 0 {
		b.WriteString("\n\nUse the following city content when it is relevant:\n")
		for i, src := range sources {
			b.WriteString(fmt.Sprintf("%d. %s", i+1, src.Title))
			if src.Section != "" {
				b.WriteString(" - " + src.Section)
			}
			b.WriteString("\n")
			b.WriteString(src.Content)
			b.WriteString("\n")
		}
	}

	if escalate {
		if note, ok := escalationNotes[lang]; ok {
			b.WriteString("\n\n")
			b.WriteString(note)
		}
	}
	return b.String()
}

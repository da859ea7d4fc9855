// Package assistant wires the conversation engine together: one inbound
// command per turn is routed to the cancel handler, the active workflow
// step, the intent matcher or the chat processor, in that order.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/solmari/civassist/plugin/assistant/chat"
	"github.com/solmari/civassist/plugin/assistant/intent"
	"github.com/solmari/civassist/plugin/assistant/knowledge"
	"github.com/solmari/civassist/plugin/assistant/langdetect"
	"github.com/solmari/civassist/plugin/assistant/session"
	"github.com/solmari/civassist/plugin/assistant/state"
	"github.com/solmari/civassist/plugin/assistant/workflow"
)

// Reply is the canonical engine output rendered by channel adapters.
type Reply struct {
	Message        string               `json:"message"`
	Options        []workflow.Option    `json:"options,omitempty"`
	Language       langdetect.Language  `json:"language"`
	Sentiment      langdetect.Sentiment `json:"sentiment,omitempty"`
	Sources        []knowledge.Result   `json:"sources,omitempty"`
	Escalate       bool                 `json:"escalate"`
	ConversationID string               `json:"conversation_id,omitempty"`
}

// Turn is one inbound event in canonical form.
type Turn struct {
	Channel           session.Channel
	UserID            string
	Command           workflow.Command
	RequestedLanguage string
	Domain            string
}

// Engine routes conversation turns.
type Engine struct {
	sessions    session.Store
	machine     *state.Machine
	matcher     *intent.Matcher
	appointment *workflow.AppointmentFlow
	request     *workflow.ServiceRequestFlow
	chat        *chat.Processor
}

// NewEngine creates the turn router.
func NewEngine(
	sessions session.Store,
	machine *state.Machine,
	matcher *intent.Matcher,
	appointment *workflow.AppointmentFlow,
	request *workflow.ServiceRequestFlow,
	processor *chat.Processor,
) *Engine {
	return &Engine{
		sessions:    sessions,
		machine:     machine,
		matcher:     matcher,
		appointment: appointment,
		request:     request,
		chat:        processor,
	}
}

// HandleTurn processes one inbound command and always produces a reply.
func (e *Engine) HandleTurn(ctx context.Context, turn Turn) (*Reply, error) {
	if !turn.Channel.Valid() {
		return nil, session.ErrInvalidChannel
	}

	lang := e.resolveLanguage(ctx, turn)
	sessionID := sessionScopedID(turn.Channel, turn.UserID)

	if turn.Command.Kind == workflow.CommandHandoff {
		return e.redeemHandoff(ctx, turn, lang)
	}

	st, err := e.machine.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Cancel wins over step parsing whenever a workflow is active.
	if turn.Command.Kind == workflow.CommandCancel && st.InWorkflow() {
		if err := e.machine.ClearWorkflow(ctx, sessionID); err != nil {
			return nil, err
		}
		return &Reply{Message: workflow.CancelAck(st.Language), Language: st.Language}, nil
	}

	if st.InWorkflow() {
		return e.stepWorkflow(ctx, turn, st)
	}

	if turn.Command.Kind == workflow.CommandText {
		reply, handled, err := e.tryStartWorkflow(ctx, turn, sessionID, lang)
		if err != nil {
			return nil, err
		}
		if handled {
			return reply, nil
		}
	}

	return e.chatTurn(ctx, turn)
}

// GenerateHandoff creates a cross-channel resume code for the caller's
// live session.
func (e *Engine) GenerateHandoff(ctx context.Context, channel session.Channel, userID string) (string, error) {
	return e.sessions.GenerateHandoffToken(ctx, channel, userID)
}

func (e *Engine) resolveLanguage(ctx context.Context, turn Turn) langdetect.Language {
	if turn.RequestedLanguage != "" {
		if lang, ok := langdetect.Normalize(turn.RequestedLanguage); ok {
			return lang
		}
	}
	return langdetect.Detect(turn.Command.Input())
}

func (e *Engine) stepWorkflow(ctx context.Context, turn Turn, st *state.State) (*Reply, error) {
	var result *workflow.Result
	var err error
	switch st.Workflow {
	case state.WorkflowAppointment:
		result, err = e.appointment.Step(ctx, st, turn.Command)
	case state.WorkflowServiceRequest:
		result, err = e.request.Step(ctx, st, turn.Command)
	default:
		// Unknown workflow in stored state. Reset and fall back to chat.
		if clearErr := e.machine.ClearWorkflow(ctx, st.SessionID); clearErr != nil {
			return nil, clearErr
		}
		return e.chatTurn(ctx, turn)
	}
	if err != nil {
		return nil, err
	}

	e.recordWorkflowTurn(ctx, turn, result.Message)
	return &Reply{
		Message:  result.Message,
		Options:  result.Options,
		Language: st.Language,
	}, nil
}

// tryStartWorkflow runs intent detection and enters the matching workflow.
// handled is false when no intent qualified.
func (e *Engine) tryStartWorkflow(ctx context.Context, turn Turn, sessionID string, lang langdetect.Language) (*Reply, bool, error) {
	detected, err := e.matcher.Detect(ctx, turn.Command.Input())
	if err != nil {
		slog.Warn("intent detection failed", "error", err)
		return nil, false, nil
	}
	if detected == nil {
		return nil, false, nil
	}

	switch detected.Type {
	case intent.TypeAppointment:
		result, err := e.appointment.Start(ctx, sessionID, lang)
		if err != nil {
			return nil, false, err
		}
		e.recordWorkflowTurn(ctx, turn, result.Message)
		return &Reply{Message: result.Message, Options: result.Options, Language: lang}, true, nil

	case intent.TypeServiceRequest:
		result, err := e.request.Start(ctx, sessionID, lang, detected.Rule)
		if err != nil {
			return nil, false, err
		}
		e.recordWorkflowTurn(ctx, turn, result.Message)
		return &Reply{Message: result.Message, Options: result.Options, Language: lang}, true, nil

	case intent.TypeFAQAction:
		return e.startFAQAction(ctx, turn, sessionID, lang, detected)
	}
	return nil, false, nil
}

// startFAQAction answers with the FAQ text and immediately enters the
// workflow the FAQ is configured to trigger.
func (e *Engine) startFAQAction(ctx context.Context, turn Turn, sessionID string, lang langdetect.Language, detected *intent.Intent) (*Reply, bool, error) {
	var result *workflow.Result
	var err error
	switch detected.FAQ.WorkflowAction {
	case string(state.WorkflowAppointment):
		result, err = e.appointment.Start(ctx, sessionID, lang)
	case string(state.WorkflowServiceRequest):
		result, err = e.request.Start(ctx, sessionID, lang, nil)
	default:
		// An action we don't recognize still has a useful answer.
		return &Reply{Message: detected.FAQ.Answer, Language: lang}, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	message := detected.FAQ.Answer
	if result.Message != "" {
		message = message + "\n\n" + result.Message
	}
	e.recordWorkflowTurn(ctx, turn, message)
	return &Reply{Message: message, Options: result.Options, Language: lang}, true, nil
}

func (e *Engine) chatTurn(ctx context.Context, turn Turn) (*Reply, error) {
	resp, err := e.chat.Process(ctx, chat.Turn{
		Channel:           turn.Channel,
		UserID:            turn.UserID,
		Message:           turn.Command.Input(),
		RequestedLanguage: turn.RequestedLanguage,
		Domain:            turn.Domain,
	})
	if err != nil {
		return nil, err
	}
	return &Reply{
		Message:        resp.Message,
		Language:       resp.Language,
		Sentiment:      resp.Sentiment,
		Sources:        resp.Sources,
		Escalate:       resp.Escalate,
		ConversationID: resp.ConversationID,
	}, nil
}

func (e *Engine) redeemHandoff(ctx context.Context, turn Turn, lang langdetect.Language) (*Reply, error) {
	sess, err := e.sessions.RedeemHandoffToken(ctx, turn.Command.Token, turn.Channel, turn.UserID)
	if err != nil {
		return &Reply{Message: handoffError(lang, err), Language: lang}, nil
	}
	return &Reply{
		Message:        handoffResumed[resolvedLang(sess.Language)],
		Language:       sess.Language,
		ConversationID: sess.ID,
	}, nil
}

// recordWorkflowTurn keeps workflow exchanges in session history so a
// cross-channel handoff carries them. Best effort.
func (e *Engine) recordWorkflowTurn(ctx context.Context, turn Turn, reply string) {
	if input := strings.TrimSpace(turn.Command.Input()); input != "" {
		if err := e.sessions.AddMessage(ctx, turn.Channel, turn.UserID, session.RoleUser, input); err != nil {
			slog.Warn("failed to record workflow turn", "error", err)
			return
		}
	}
	if err := e.sessions.AddMessage(ctx, turn.Channel, turn.UserID, session.RoleAssistant, reply); err != nil {
		slog.Warn("failed to record workflow turn", "error", err)
	}
}

// sessionScopedID keys workflow state the same way sessions are keyed so
// a session and its workflow expire together per channel.
func sessionScopedID(channel session.Channel, userID string) string {
	return fmt.Sprintf("%s:%s", channel, userID)
}

var handoffResumed = map[langdetect.Language]string{
	langdetect.English: "Welcome back! I've restored your conversation. Where were we?",
	langdetect.Spanish: "¡Bienvenido de nuevo! He restaurado su conversación. ¿En qué estábamos?",
	langdetect.Creole:  "Byenveni ankò! Mwen restore konvèsasyon ou. Kote nou te ye?",
}

var handoffErrors = map[langdetect.Language]map[error]string{
	langdetect.English: {
		session.ErrTokenMalformed:   "That code doesn't look right. Please check it and try again.",
		session.ErrTokenExpired:     "That code has expired. Please request a new one from your original conversation.",
		session.ErrTokenAlreadyUsed: "That code was already used. Please request a new one from your original conversation.",
	},
	langdetect.Spanish: {
		session.ErrTokenMalformed:   "Ese código no parece correcto. Verifíquelo e inténtelo de nuevo.",
		session.ErrTokenExpired:     "Ese código ha expirado. Solicite uno nuevo desde su conversación original.",
		session.ErrTokenAlreadyUsed: "Ese código ya fue utilizado. Solicite uno nuevo desde su conversación original.",
	},
	langdetect.Creole: {
		session.ErrTokenMalformed:   "Kòd sa a pa sanble kòrèk. Tanpri verifye li epi eseye ankò.",
		session.ErrTokenExpired:     "Kòd sa a ekspire. Tanpri mande yon nouvo nan konvèsasyon orijinal ou.",
		session.ErrTokenAlreadyUsed: "Kòd sa a deja itilize. Tanpri mande yon nouvo nan konvèsasyon orijinal ou.",
	},
}

func handoffError(lang langdetect.Language, err error) string {
	table := handoffErrors[resolvedLang(lang)]
	for sentinel, msg := range table {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return table[session.ErrTokenMalformed]
}

func resolvedLang(lang langdetect.Language) langdetect.Language {
	if _, ok := handoffResumed[lang]; ok {
		return lang
	}
	return langdetect.English
}

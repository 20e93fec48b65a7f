package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

// phoneNumberRegex strips everything that is not a digit from a recipient.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// TurnHandler processes one inbound user message for a conversation and
// returns the assistant reply. Satisfied by the flow orchestrator through a
// small adapter in the API layer.
type TurnHandler func(ctx context.Context, conversationID, message string) (string, error)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error
}

// TwilioService implements Service over the Twilio WhatsApp API. Inbound
// webhook messages are mapped to conversations keyed by the sender's phone
// number, handed to the turn handler, and the reply is sent back out.
type TwilioService struct {
	client  Sender
	handler TurnHandler
}

// NewTwilioService creates a TwilioService with the given sender.
func NewTwilioService(client Sender) *TwilioService {
	return &TwilioService{client: client}
}

// SetTurnHandler installs the handler for inbound messages.
func (s *TwilioService) SetTurnHandler(handler TurnHandler) {
	s.handler = handler
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number. It removes all non-numeric characters and validates the
// result has at least 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	if recipient != canonical {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// SendMessage sends a message via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// ConversationIDForSender derives a stable conversation ID from a WhatsApp
// sender, so a user's WhatsApp thread maps to one conversation.
func ConversationIDForSender(canonical string) string {
	return "wa_" + canonical
}

// WebhookHandler handles inbound Twilio webhook requests: it parses the
// message, runs the conversation turn, and replies to the sender.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := strings.TrimPrefix(r.FormValue("From"), "whatsapp:")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	canonical, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("Twilio webhook invalid sender", "error", err)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	if s.handler == nil {
		slog.Error("Twilio webhook has no turn handler installed")
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	conversationID := ConversationIDForSender(canonical)
	slog.Info("Inbound WhatsApp message", "conversationID", conversationID)

	reply, err := s.handler(r.Context(), conversationID, body)
	if err != nil {
		slog.Error("Turn handler failed for inbound message", "error", err, "conversationID", conversationID)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if err := s.client.SendMessage(r.Context(), canonical, reply); err != nil {
		slog.Error("Failed to send WhatsApp reply", "error", err, "conversationID", conversationID)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

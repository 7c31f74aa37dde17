// ABOUTME: HTTP handlers for auth, users and conversations
// ABOUTME: Request/response DTOs with validation; message sending stays on the websocket

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/conversation"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/users"
)

const refreshCookieName = "parley_refresh"

// Handlers bundles the HTTP surface's dependencies.
type Handlers struct {
	users         *users.Service
	conversations *conversation.Service
	tokens        *auth.JWTVerifier
	authCfg       config.AuthConfig
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewHandlers creates the handler set. Pass nil logger for default.
func NewHandlers(us *users.Service, cs *conversation.Service, tokens *auth.JWTVerifier, authCfg config.AuthConfig, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		users:         us,
		conversations: cs,
		tokens:        tokens,
		authCfg:       authCfg,
		validate:      validator.New(),
		logger:        logger.With("component", "api"),
	}
}

// decodeValid decodes a JSON body and runs struct validation.
func (h *Handlers) decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return validator.ValidationErrors{}
	}
	return h.validate.Struct(dst)
}

type signupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *Handlers) issueTokens(w http.ResponseWriter, userID string) error {
	access, err := h.tokens.Generate(userID, h.authCfg.AccessTokenTTL)
	if err != nil {
		return err
	}
	refresh, err := h.tokens.GenerateRefresh(userID, h.authCfg.RefreshTokenTTL)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refresh,
		Path:     "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.authCfg.RefreshTokenTTL / time.Second),
	})

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access})
	return nil
}

// SignUp registers an account and returns an access token.
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := h.decodeValid(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.issueTokens(w, user.ID); err != nil {
		writeError(w, h.logger, err)
	}
}

// SignIn exchanges email/password for an access token and refresh cookie.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := h.decodeValid(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.issueTokens(w, user.ID); err != nil {
		writeError(w, h.logger, err)
	}
}

// Refresh rotates the refresh cookie and returns a fresh access token.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		writeError(w, h.logger, auth.ErrInvalidToken)
		return
	}

	userID, err := h.tokens.VerifyRefresh(cookie.Value)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.issueTokens(w, userID); err != nil {
		writeError(w, h.logger, err)
	}
}

type availabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// UsernameAvailability answers from the bloom filter without touching the store.
func (h *Handlers) UsernameAvailability(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "username is required", Kind: "invalid_operation"})
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{
		Username:  username,
		Available: h.users.UsernameAvailable(username),
	})
}

type createConversationRequest struct {
	ParticipantID       string `json:"participantId"`
	ParticipantUsername string `json:"participantUsername"`
	ParticipantEmail    string `json:"participantEmail"`
}

type conversationDTO struct {
	ID            string    `json:"id"`
	UserIDLow     string    `json:"userIdLow"`
	UserIDHigh    string    `json:"userIdHigh"`
	LastMessageID *string   `json:"lastMessageId"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toConversationDTO(c *store.Conversation) conversationDTO {
	return conversationDTO{
		ID:            c.ID,
		UserIDLow:     c.UserIDLow,
		UserIDHigh:    c.UserIDHigh,
		LastMessageID: c.LastMessageID,
		CreatedAt:     c.CreatedAt,
	}
}

// resolveParticipant turns any of the accepted participant identifiers
// into a user, preferring the explicit id.
func (h *Handlers) resolveParticipant(r *http.Request, req createConversationRequest) (*store.User, error) {
	switch {
	case req.ParticipantID != "":
		return h.users.ByID(r.Context(), req.ParticipantID)
	case req.ParticipantUsername != "":
		return h.users.ByUsername(r.Context(), req.ParticipantUsername)
	case req.ParticipantEmail != "":
		return h.users.ByEmail(r.Context(), req.ParticipantEmail)
	default:
		return nil, validator.ValidationErrors{}
	}
}

// CreateOrGetConversation resolves the canonical conversation with
// another user, creating it on first contact.
func (h *Handlers) CreateOrGetConversation(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, validator.ValidationErrors{})
		return
	}

	participant, err := h.resolveParticipant(r, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	conv, err := h.conversations.Resolve(r.Context(), identity.UserID, participant.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toConversationDTO(conv))
}

type participantDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type messageDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toMessageDTO(m *store.DirectMessage) messageDTO {
	return messageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

type conversationSummaryDTO struct {
	Conversation conversationDTO `json:"conversation"`
	Participant  participantDTO  `json:"participant"`
	LastMessage  *messageDTO     `json:"lastMessage"`
}

// ListConversations returns the caller's conversations, most recently
// active first.
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	summaries, err := h.conversations.ListForUser(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	dtos := lo.Map(summaries, func(s *store.ConversationSummary, _ int) conversationSummaryDTO {
		dto := conversationSummaryDTO{
			Conversation: toConversationDTO(s.Conversation),
			Participant:  participantDTO{ID: s.Other.ID, Username: s.Other.Username},
		}
		if s.LastMessage != nil {
			msg := toMessageDTO(s.LastMessage)
			dto.LastMessage = &msg
		}
		return dto
	})

	writeJSON(w, http.StatusOK, dtos)
}

type messagePageResponse struct {
	Messages   []messageDTO `json:"messages"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// GetMessages returns one cursor page of a conversation's history.
func (h *Handlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())
	conversationID := mux.Vars(r)["conversationId"]

	limit := conversation.DefaultPageLimit
	if raw := r.URL.Query().Get("take"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "take must be a positive integer", Kind: "invalid_operation"})
			return
		}
		limit = parsed
	}

	page, err := h.conversations.PageMessages(r.Context(), identity.UserID, conversationID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messagePageResponse{
		Messages:   lo.Map(page.Messages, func(m *store.DirectMessage, _ int) messageDTO { return toMessageDTO(m) }),
		NextCursor: page.NextCursor,
	})
}

// Healthz reports process liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

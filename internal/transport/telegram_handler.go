package transport

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"uniform-shop/internal/middleware"
	"uniform-shop/internal/service"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramSecretHeader carries the secret registered with setWebhook
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramHandler receives operator actions from the shop chat
type TelegramHandler struct {
	chatService service.ChatService
	secret      string
	logger      *zap.Logger
}

// NewTelegramHandler creates a TelegramHandler. An empty secret disables
// the header check.
func NewTelegramHandler(chatService service.ChatService, secret string, logger *zap.Logger) *TelegramHandler {
	return &TelegramHandler{
		chatService: chatService,
		secret:      secret,
		logger:      logger,
	}
}

// RegisterRoutes registers the chat webhook
func (h *TelegramHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/webhooks/telegram", h.Webhook)
}

// Webhook decodes one update and hands it to the chat service
func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(TelegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("Rejected chat webhook", zap.String("remote_addr", r.RemoteAddr))
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid secret token")
			return
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&update); err != nil {
		h.logger.Debug("Malformed chat update", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid update")
		return
	}

	if err := h.chatService.HandleUpdate(r.Context(), update); err != nil {
		h.logger.Error("Failed to handle chat update",
			zap.Int("update_id", update.UpdateID),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to handle update")
		return
	}

	w.WriteHeader(http.StatusOK)
}

package service

import (
	"context"
	"errors"
	"strings"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/notify"
	"uniform-shop/internal/repository"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ChatService applies operator actions taken in the shop chat
type ChatService interface {
	// HandleUpdate processes one webhook delivery. Only database failures
	// are returned; chat echo failures are logged.
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

type chatService struct {
	orders    OrderService
	orderRepo repository.OrderRepository
	chat      notify.ChatNotifier
	chatID    int64
	shopName  string
	logger    *zap.Logger
}

// NewChatService creates a ChatService that only trusts updates from chatID
func NewChatService(
	orders OrderService,
	orderRepo repository.OrderRepository,
	chat notify.ChatNotifier,
	chatID int64,
	shopName string,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		orders:    orders,
		orderRepo: orderRepo,
		chat:      chat,
		chatID:    chatID,
		shopName:  shopName,
		logger:    logger,
	}
}

func (s *chatService) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return s.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.ReplyToMessage != nil:
		return s.handleReply(ctx, update.Message)
	}
	return nil
}

// handleCallback applies a status button pressed under a notification
func (s *chatService) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	// Only the operator chat may change orders
	if cq.Message == nil || !s.fromOperatorChat(cq.Message) {
		s.answer(ctx, cq.ID, "Not allowed here")
		return nil
	}

	// Extract status from callback data
	raw, ok := strings.CutPrefix(cq.Data, notify.CallbackPrefix)
	if !ok {
		s.answer(ctx, cq.ID, "Unknown action")
		return nil
	}

	order, err := s.transition(ctx, int64(cq.Message.MessageID), raw)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		s.answer(ctx, cq.ID, "Order not found")
		return nil
	case errors.Is(err, domain.ErrInvalidStatus):
		s.answer(ctx, cq.ID, "Unknown status")
		return nil
	case err != nil:
		return err
	}

	s.answer(ctx, cq.ID, "Order marked "+string(order.Status))
	return nil
}

// handleReply applies a status word typed in reply to a notification
func (s *chatService) handleReply(ctx context.Context, msg *tgbotapi.Message) error {
	if !s.fromOperatorChat(msg) {
		return nil
	}

	// Anything other than a status word is chatter
	word := strings.ToLower(strings.TrimSpace(msg.Text))
	if _, err := domain.ParseOrderStatus(word); err != nil {
		s.logger.Debug("Ignoring chat reply", zap.String("text", msg.Text))
		return nil
	}

	_, err := s.transition(ctx, int64(msg.ReplyToMessage.MessageID), word)
	if errors.Is(err, repository.ErrOrderNotFound) {
		s.logger.Info("Chat reply does not match an order",
			zap.Int("message_id", msg.ReplyToMessage.MessageID),
		)
		return nil
	}
	return err
}

// transition writes the new status and then echoes it into the original
// notification. The database write is authoritative.
func (s *chatService) transition(ctx context.Context, messageID int64, status string) (*domain.Order, error) {
	// Find order by notification message
	order, err := s.orderRepo.FindByChatMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	// Update status
	updated, err := s.orders.UpdateStatus(ctx, order.ID, status)
	if err != nil {
		return nil, err
	}

	// Final statuses drop the action buttons
	withActions := updated.Status != domain.OrderStatusCollected && updated.Status != domain.OrderStatusCancelled
	if err := s.chat.Edit(ctx, messageID, notify.StatusUpdateSummary(s.shopName, updated), withActions); err != nil {
		s.logger.Error("Failed to update chat notification",
			zap.String("order_id", updated.ID.String()),
			zap.Int64("message_id", messageID),
			zap.Error(err),
		)
	}

	return updated, nil
}

func (s *chatService) answer(ctx context.Context, callbackID, text string) {
	if err := s.chat.AnswerCallback(ctx, callbackID, text); err != nil {
		s.logger.Error("Failed to answer callback", zap.String("callback_id", callbackID), zap.Error(err))
	}
}

func (s *chatService) fromOperatorChat(msg *tgbotapi.Message) bool {
	return msg.Chat != nil && msg.Chat.ID == s.chatID
}

package notify

import (
	"context"
	"time"

	"uniform-shop/internal/domain"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Dispatcher fans an order out to the operator chat and the customer's
// inbox. Each channel fails on its own; neither can fail the order.
type Dispatcher struct {
	chat     ChatNotifier
	mailer   Mailer
	recorder Recorder
	shopName string
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher builds a dispatcher. A nil chat or mailer disables that
// channel.
func NewDispatcher(chat ChatNotifier, mailer Mailer, recorder Recorder, shopName string, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		chat:     chat,
		mailer:   mailer,
		recorder: recorder,
		shopName: shopName,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

type chatResult struct {
	messageID int64
	sentAt    time.Time
}

type emailResult struct {
	messageID string
	sentAt    time.Time
}

// Dispatch runs both deliveries and waits for them. It ignores cancellation
// of ctx and is bounded by the dispatcher timeout. Recorded outcomes are
// copied onto order.
func (d *Dispatcher) Dispatch(ctx context.Context, order *domain.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	var (
		wg    conc.WaitGroup
		chat  *chatResult
		email *emailResult
	)

	wg.Go(func() { chat = d.notifyChat(ctx, order) })
	wg.Go(func() { email = d.sendConfirmation(ctx, order) })

	if recovered := wg.WaitAndRecover(); recovered != nil {
		d.logger.Error("Notification panicked",
			zap.String("order_id", order.ID.String()),
			zap.String("panic", recovered.String()),
		)
	}

	if chat != nil {
		order.ChatMessageID = &chat.messageID
		order.NotificationSentAt = &chat.sentAt
	}
	if email != nil {
		order.EmailMessageID = &email.messageID
		order.EmailSentAt = &email.sentAt
	}
}

func (d *Dispatcher) notifyChat(ctx context.Context, order *domain.Order) *chatResult {
	if d.chat == nil {
		d.logger.Debug("Chat notifications disabled", zap.String("order_id", order.ID.String()))
		return nil
	}

	messageID, err := d.chat.Send(ctx, OrderSummary(d.shopName, order))
	if err != nil {
		d.logger.Error("Failed to send chat notification",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil
	}

	// Record the message id so operator callbacks can find the order
	sentAt := d.now().UTC()
	err = d.retryOnce(order, "chat", func() error {
		return d.recorder.MarkChatNotified(ctx, order.ID, messageID, sentAt)
	})
	if err != nil {
		// The message is out; this line is the only trace of its id
		d.logger.Error("Failed to record chat notification",
			zap.String("order_id", order.ID.String()),
			zap.Int64("message_id", messageID),
			zap.Time("sent_at", sentAt),
			zap.Error(err),
		)
		return nil
	}

	d.logger.Info("Chat notification sent",
		zap.String("order_id", order.ID.String()),
		zap.Int64("message_id", messageID),
	)
	return &chatResult{messageID: messageID, sentAt: sentAt}
}

func (d *Dispatcher) sendConfirmation(ctx context.Context, order *domain.Order) *emailResult {
	if d.mailer == nil {
		d.logger.Debug("Confirmation emails disabled", zap.String("order_id", order.ID.String()))
		return nil
	}

	email, err := OrderConfirmation(d.shopName, order)
	if err != nil {
		d.logger.Error("Failed to render confirmation email",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil
	}

	messageID, err := d.mailer.Send(ctx, email)
	if err != nil {
		d.logger.Error("Failed to send confirmation email",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil
	}

	sentAt := d.now().UTC()
	err = d.retryOnce(order, "email", func() error {
		return d.recorder.MarkEmailSent(ctx, order.ID, messageID, sentAt)
	})
	if err != nil {
		d.logger.Error("Failed to record confirmation email",
			zap.String("order_id", order.ID.String()),
			zap.String("message_id", messageID),
			zap.Time("sent_at", sentAt),
			zap.Error(err),
		)
		return nil
	}

	d.logger.Info("Confirmation email sent",
		zap.String("order_id", order.ID.String()),
		zap.String("message_id", messageID),
	)
	return &emailResult{messageID: messageID, sentAt: sentAt}
}

// retryOnce runs record a second time if the first attempt fails
func (d *Dispatcher) retryOnce(order *domain.Order, channel string, record func() error) error {
	err := record()
	if err == nil {
		return nil
	}

	d.logger.Warn("Retrying notification record",
		zap.String("order_id", order.ID.String()),
		zap.String("channel", channel),
		zap.Error(err),
	)
	return record()
}

// Package notify delivers confirmation requests and run notifications to a
// human through Telegram, using the Telego library.
//
// Confirmation requests are sent as messages with a Confirm/Reject inline
// keyboard; button presses come back through long polling and resolve the
// pending request in the broker.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/confirm"
	"github.com/rota-dev/rota/internal/logger"
)

const (
	sendTimeout           = 10 * time.Second
	answerCallbackTimeout = 5 * time.Second
)

// BotAPI is the slice of the Telego bot the notifier uses; tests substitute
// a fake.
type BotAPI interface {
	GetMe(ctx context.Context) (*telego.User, error)
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, opts ...telego.LongPollingOption) (<-chan telego.Update, error)
}

// Responder receives the human's decision for a pending request.
type Responder interface {
	HandleResponse(requestID string, confirmed bool, reason string)
}

// Notifier is the Telegram notification channel. It implements
// confirm.Presenter.
type Notifier struct {
	cfg       config.TelegramConfig
	logger    *logger.Logger
	responder Responder
	bot       BotAPI
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a Telegram notifier. BindResponder must be called before
// Present; Start must be called before anything is delivered.
func New(cfg config.TelegramConfig, log *logger.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: log}
}

// BindResponder wires the broker in after construction. The notifier and the
// broker reference each other, so one of the two links is set late.
func (n *Notifier) BindResponder(r Responder) {
	n.responder = r
}

// Start initializes the bot and begins long polling for button presses.
// A disabled channel starts successfully and delivers nothing.
func (n *Notifier) Start(ctx context.Context) error {
	if !n.enabled() {
		n.logger.Info("telegram notifications disabled")
		return nil
	}

	bot, err := telego.NewBot(n.cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	n.bot = bot
	n.ctx, n.cancel = context.WithCancel(ctx)

	botUser, err := n.bot.GetMe(n.ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	n.logger.Info("telegram notifier started",
		logger.Field{Key: "bot_id", Value: botUser.ID},
		logger.Field{Key: "username", Value: botUser.Username})

	go n.longPoll()
	return nil
}

// Stop tears down the long polling loop.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.logger.Info("telegram notifier stopped")
}

// Enabled reports whether the channel is fully configured.
func (n *Notifier) Enabled() bool {
	return n.enabled()
}

func (n *Notifier) enabled() bool {
	return n.cfg.Enabled && n.cfg.Token != "" && n.cfg.ChatID != 0
}

// Present sends the confirmation request with a Confirm/Reject keyboard.
// If delivery is impossible the request is rejected right away so the
// waiting run is released.
func (n *Notifier) Present(req confirm.Request) {
	if n.bot == nil || !n.enabled() {
		n.logger.Warn("cannot present confirmation, telegram channel unavailable",
			logger.Field{Key: "request_id", Value: req.ID},
			logger.Field{Key: "unit", Value: req.UnitID})
		n.responder.HandleResponse(req.ID, false, "presentation failed")
		return
	}

	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.cfg.ChatID},
		Text:   fmt.Sprintf("%s needs confirmation:\n\n%s", req.UnitName, req.Message),
		ReplyMarkup: &telego.InlineKeyboardMarkup{
			InlineKeyboard: [][]telego.InlineKeyboardButton{{
				{Text: "Confirm", CallbackData: confirmCallbackData(req.ID, true)},
				{Text: "Reject", CallbackData: confirmCallbackData(req.ID, false)},
			}},
		},
	}

	sendCtx, cancel := context.WithTimeout(n.ctx, sendTimeout)
	defer cancel()
	if _, err := n.bot.SendMessage(sendCtx, params); err != nil {
		n.logger.ErrorCtx(n.ctx, "failed to send confirmation request", err,
			logger.Field{Key: "request_id", Value: req.ID},
			logger.Field{Key: "unit", Value: req.UnitID})
		n.responder.HandleResponse(req.ID, false, "presentation failed")
		return
	}

	n.logger.InfoCtx(n.ctx, "confirmation request sent",
		logger.Field{Key: "request_id", Value: req.ID},
		logger.Field{Key: "unit", Value: req.UnitID})
}

// NotifyRunFailure reports a failed run to the configured chat.
func (n *Notifier) NotifyRunFailure(unitName, errText string) {
	if n.bot == nil || !n.enabled() {
		return
	}

	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.cfg.ChatID},
		Text:   fmt.Sprintf("%s failed: %s", unitName, errText),
	}

	sendCtx, cancel := context.WithTimeout(n.ctx, sendTimeout)
	defer cancel()
	if _, err := n.bot.SendMessage(sendCtx, params); err != nil {
		n.logger.ErrorCtx(n.ctx, "failed to send run failure notification", err,
			logger.Field{Key: "unit", Value: unitName})
	}
}

// longPoll receives updates until the context is cancelled.
func (n *Notifier) longPoll() {
	updates, err := n.bot.UpdatesViaLongPolling(n.ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		n.logger.ErrorCtx(n.ctx, "failed to start long polling", err)
		return
	}

	for {
		select {
		case <-n.ctx.Done():
			n.logger.Info("long polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				n.logger.Info("updates channel closed")
				return
			}
			n.handleUpdate(update)
		}
	}
}

// handleUpdate routes button presses; everything else is ignored.
func (n *Notifier) handleUpdate(update telego.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}

	requestID, confirmed, ok := parseConfirmCallback(cq.Data)
	if !ok {
		n.logger.WarnCtx(n.ctx, "unrecognized callback data",
			logger.Field{Key: "data", Value: cq.Data})
		n.answerCallback(cq.ID, "")
		return
	}

	reason := "user rejected"
	answer := "Rejected"
	if confirmed {
		reason = "user confirmed"
		answer = "Confirmed"
	}
	n.responder.HandleResponse(requestID, confirmed, reason)
	n.answerCallback(cq.ID, answer)
}

// answerCallback acknowledges the button press so the client stops showing
// the loading animation.
func (n *Notifier) answerCallback(callbackQueryID, text string) {
	ctx, cancel := context.WithTimeout(n.ctx, answerCallbackTimeout)
	defer cancel()

	err := n.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	})
	if err != nil {
		n.logger.ErrorCtx(n.ctx, "failed to answer callback query", err,
			logger.Field{Key: "callback_query_id", Value: callbackQueryID})
	}
}

// confirmCallbackData encodes a decision button: confirm:<request-id>:yes|no.
func confirmCallbackData(requestID string, confirmed bool) string {
	answer := "no"
	if confirmed {
		answer = "yes"
	}
	return "confirm:" + requestID + ":" + answer
}

// parseConfirmCallback decodes callback data produced by confirmCallbackData.
func parseConfirmCallback(data string) (requestID string, confirmed bool, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "confirm" || parts[1] == "" {
		return "", false, false
	}
	switch parts[2] {
	case "yes":
		return parts[1], true, true
	case "no":
		return parts[1], false, true
	default:
		return "", false, false
	}
}

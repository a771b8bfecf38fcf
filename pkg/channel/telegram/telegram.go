package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"jawabbot/pkg/answer"
	"jawabbot/pkg/bus"
	"jawabbot/pkg/channel"
	"jawabbot/pkg/config"
	"jawabbot/pkg/logger"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const typingRefreshInterval = 4 * time.Second

const (
	privateCommandText = "Command hanya bisa digunakan di groups atau supergroups. 😅"
	emptySearchText    = "Tulis pertanyaanmu setelah /cari, contoh: /cari apa itu fotosintesis"
	notFoundText       = "Maaf, jawaban untuk pertanyaan itu belum ditemukan. 😔"
	failureText        = "Maaf, terjadi kesalahan saat mencari jawaban. Coba lagi nanti ya. 🙏"
)

// botAPI is the subset of *telego.Bot the adapter sends through.
type botAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error)
	SendChatAction(ctx context.Context, params *telego.SendChatActionParams) error
	AnswerInlineQuery(ctx context.Context, params *telego.AnswerInlineQueryParams) error
}

// DeliveryError reports a payload Telegram refused to accept.
type DeliveryError struct {
	Index int
	Err   error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return ""
	}

	return fmt.Sprintf("deliver payload %d: %v", e.Index, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// Adapter bridges Telegram updates into pipeline requests and delivers the results.
type Adapter struct {
	cfg       config.TelegramConfig
	bot       config.BotConfig
	fallback  bool
	parseMode string
	log       *slog.Logger

	// username is the bot's own handle, filled from getMe when Run starts.
	username string

	wg sync.WaitGroup
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, bot config.BotConfig, answerCfg config.AnswerConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	parseMode := strings.TrimSpace(cfg.ParseMode)
	if parseMode == "" {
		parseMode = telego.ModeMarkdown
	}

	return &Adapter{
		cfg:       cfg,
		bot:       bot,
		fallback:  answerCfg.FallbackEnabled(),
		parseMode: parseMode,
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and handles every update in its own goroutine.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("fetch bot identity: %w", err)
	}
	a.username = me.Username

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started", "username", a.username)
	defer a.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.handleUpdate(ctx, bot, update, handler)
			}()
		}
	}
}

// handleUpdate routes one update to the welcome, reply or inline flow.
func (a *Adapter) handleUpdate(ctx context.Context, api botAPI, update telego.Update, handler channel.Handler) {
	switch {
	case update.InlineQuery != nil:
		a.handleInlineQuery(ctx, api, update, handler)
	case update.Message != nil:
		a.handleMessage(ctx, api, update, handler)
	}
}

func (a *Adapter) handleMessage(ctx context.Context, api botAPI, update telego.Update, handler channel.Handler) {
	message := update.Message
	text := strings.TrimSpace(message.Text)
	if text == "" {
		// Only text questions are answerable.
		return
	}

	chatID := message.Chat.ID
	command, target, args := parseCommand(text)
	if command != "" && !a.addressedToBot(target) {
		a.log.Debug("Ignoring command for another bot", "command", command, "target", target, "chat_id", chatID)
		return
	}

	var query string
	switch command {
	case "start":
		a.sendNotice(ctx, api, chatID, a.bot.WelcomeText)
		return
	case "cari":
		if !isGroupChat(message.Chat.Type) {
			a.sendNotice(ctx, api, chatID, privateCommandText)
			return
		}
		if args == "" {
			a.sendNotice(ctx, api, chatID, emptySearchText)
			return
		}
		query = args
	case "":
		if message.Chat.Type != telego.ChatTypePrivate {
			return
		}
		query = text
	default:
		a.log.Debug("Ignoring unknown command", "command", command, "chat_id", chatID)
		return
	}

	senderID := ""
	if message.From != nil {
		senderID = strconv.FormatInt(message.From.ID, 10)
	}

	inbound := bus.InboundMessage{
		Channel:  channelName,
		Mode:     bus.ModeReply,
		SenderID: senderID,
		ChatID:   strconv.FormatInt(chatID, 10),
		ChatType: message.Chat.Type,
		Content:  query,
		Metadata: map[string]string{
			"update_id":  strconv.Itoa(update.UpdateID),
			"message_id": strconv.Itoa(message.MessageID),
		},
	}
	a.log.Info("Received question", "chat_id", chatID, "sender_id", senderID, "content", logger.Preview(query))

	stopTyping := a.startTypingIndicator(ctx, api, chatID)
	outbound, err := handler(ctx, inbound)
	stopTyping()

	if err != nil || outbound.Failed() {
		if err == nil {
			err = fmt.Errorf("%s: %s", outbound.ErrorKind, outbound.Error)
		}
		a.log.Warn("Question not answered", "chat_id", chatID, "error_kind", outbound.ErrorKind, "error", err)
		if text := a.fallbackText(outbound.ErrorKind); text != "" {
			a.sendNotice(ctx, api, chatID, text)
		}
		return
	}

	a.log.Info("Sending answer", "chat_id", chatID, "payloads", len(outbound.Payloads))
	if err := a.deliver(ctx, api, chatID, outbound.Payloads); err != nil {
		a.log.Error("Failed to deliver answer", "chat_id", chatID, "error", err)
	}
}

func (a *Adapter) handleInlineQuery(ctx context.Context, api botAPI, update telego.Update, handler channel.Handler) {
	inlineQuery := update.InlineQuery
	query := strings.TrimSpace(inlineQuery.Query)
	if query == "" {
		return
	}

	inbound := bus.InboundMessage{
		Channel:  channelName,
		Mode:     bus.ModeInline,
		SenderID: strconv.FormatInt(inlineQuery.From.ID, 10),
		Content:  query,
		Metadata: map[string]string{
			"update_id":       strconv.Itoa(update.UpdateID),
			"inline_query_id": inlineQuery.ID,
		},
	}
	a.log.Debug("Received inline query", "sender_id", inbound.SenderID, "content", logger.Preview(query))

	outbound, err := handler(ctx, inbound)
	if err != nil {
		a.log.Warn("Inline query degraded to empty results", "error_kind", outbound.ErrorKind, "error", err)
	}

	results := a.inlineResults(outbound.InlineResults)
	if err := api.AnswerInlineQuery(ctx, tu.InlineQuery(inlineQuery.ID, results...)); err != nil {
		a.log.Error("Failed to answer inline query", "inline_query_id", inlineQuery.ID, "error", err)
	}
}

// deliver sends payloads in order and stops at the first failure.
func (a *Adapter) deliver(ctx context.Context, api botAPI, chatID int64, payloads []answer.Payload) error {
	for i, payload := range payloads {
		if err := a.sendPayload(ctx, api, chatID, payload); err != nil {
			return &DeliveryError{Index: i, Err: err}
		}
	}

	return nil
}

// sendPayload sends one payload, retrying once without markup when Telegram cannot parse it.
func (a *Adapter) sendPayload(ctx context.Context, api botAPI, chatID int64, payload answer.Payload) error {
	parseMode := ""
	if payload.Mode == answer.MarkupRich {
		parseMode = a.parseMode
	}

	err := a.send(ctx, api, chatID, payload, parseMode)
	if err != nil && parseMode != "" && isParseError(err) {
		a.log.Debug("Retrying payload without markup", "chat_id", chatID, "error", err)
		err = a.send(ctx, api, chatID, payload, "")
	}

	return err
}

func (a *Adapter) send(ctx context.Context, api botAPI, chatID int64, payload answer.Payload, parseMode string) error {
	if payload.HasMedia() {
		params := tu.Photo(tu.ID(chatID), tu.FileFromURL(payload.MediaURL)).
			WithCaption(payload.Text).
			WithReplyMarkup(a.replyKeyboard())
		params.ParseMode = parseMode
		_, err := api.SendPhoto(ctx, params)
		return err
	}

	params := tu.Message(tu.ID(chatID), payload.Text).WithReplyMarkup(a.replyKeyboard())
	params.ParseMode = parseMode
	_, err := api.SendMessage(ctx, params)
	return err
}

func (a *Adapter) sendNotice(ctx context.Context, api botAPI, chatID int64, text string) {
	if err := a.send(ctx, api, chatID, answer.Payload{Text: text, Mode: answer.MarkupPlain}, ""); err != nil {
		a.log.Error("Failed to send telegram message", "chat_id", chatID, "error", err)
	}
}

// fallbackText picks the user-visible notice for a failed reply, or "" to stay silent.
func (a *Adapter) fallbackText(kind string) string {
	if !a.fallback {
		return ""
	}

	switch kind {
	case answer.KindCanceled:
		return ""
	case answer.KindNoResults:
		return notFoundText
	default:
		return failureText
	}
}

func (a *Adapter) inlineResults(items []answer.InlineResult) []telego.InlineQueryResult {
	keyboard := a.inlineKeyboard()
	results := make([]telego.InlineQueryResult, 0, len(items))

	for _, item := range items {
		switch item.Kind {
		case answer.InlinePhoto:
			result := tu.ResultPhoto(item.ID, item.PhotoURL, item.PhotoURL).
				WithCaption(item.Caption).
				WithParseMode(telego.ModeHTML).
				WithDescription(item.Description)
			if keyboard != nil {
				result = result.WithReplyMarkup(keyboard)
			}
			results = append(results, result)
		default:
			result := tu.ResultArticle(item.ID, item.Title, tu.TextMessage(item.Body).WithParseMode(telego.ModeHTML)).
				WithDescription(item.Description)
			if keyboard != nil {
				result = result.WithReplyMarkup(keyboard)
			}
			results = append(results, result)
		}
	}

	return results
}

// replyKeyboard is attached to every chat message: link buttons plus a switch-inline button.
func (a *Adapter) replyKeyboard() *telego.InlineKeyboardMarkup {
	row := a.linkButtons()
	row = append(row, tu.InlineKeyboardButton(a.bot.InlineButtonText).WithSwitchInlineQuery(""))
	return tu.InlineKeyboard(row)
}

// inlineKeyboard is attached to inline results: link buttons only.
func (a *Adapter) inlineKeyboard() *telego.InlineKeyboardMarkup {
	row := a.linkButtons()
	if len(row) == 0 {
		return nil
	}

	return tu.InlineKeyboard(row)
}

func (a *Adapter) linkButtons() []telego.InlineKeyboardButton {
	buttons := make([]telego.InlineKeyboardButton, 0, len(a.bot.Links)+1)
	for _, link := range a.bot.Links {
		if strings.TrimSpace(link.Text) == "" || strings.TrimSpace(link.URL) == "" {
			continue
		}
		buttons = append(buttons, tu.InlineKeyboardButton(link.Text).WithURL(link.URL))
	}

	return buttons
}

// parseCommand splits "/cmd@bot args" into a lowercase command name, the bot it is
// addressed to (without "@", "" when unaddressed) and its arguments.
// Plain text returns an empty command and the text unchanged.
func parseCommand(text string) (command, target, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", "", text
	}

	head, rest, _ := strings.Cut(text, " ")
	if index := strings.IndexAny(head, "\n\t"); index >= 0 {
		rest = head[index+1:] + " " + rest
		head = head[:index]
	}

	name := strings.TrimPrefix(head, "/")
	name, target, _ = strings.Cut(name, "@")

	return strings.ToLower(name), target, strings.TrimSpace(rest)
}

// addressedToBot reports whether a command suffix names this bot. Unaddressed commands
// always match; so does everything before the bot identity is known.
func (a *Adapter) addressedToBot(target string) bool {
	if target == "" || a.username == "" {
		return true
	}

	return strings.EqualFold(target, a.username)
}

func isGroupChat(chatType string) bool {
	return chatType == telego.ChatTypeGroup || chatType == telego.ChatTypeSupergroup
}

func isParseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}

// startTypingIndicator sends an initial typing action and refreshes it periodically
// until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, api botAPI, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := api.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}

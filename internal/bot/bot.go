// Package bot routes Telegram commands to the entry store and keeps the
// group's board message current.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/patrickmn/go-cache"

	"flightboard_bot/internal/airport"
	"flightboard_bot/internal/config"
	"flightboard_bot/internal/entry"
	"flightboard_bot/internal/metrics"
	"flightboard_bot/internal/storage"
)

// telegramAPI is the narrow slice of the Telegram client the bot uses.
// Sending goes through MakeRequest so forum-topic fields unsupported by the
// typed config structs can be passed explicitly.
type telegramAPI interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// statusUnknown marks a failed membership lookup; it grants nothing.
const statusUnknown = "unknown"

// Bot is the Telegram bot that handles user commands and publishes the board.
type Bot struct {
	api     telegramAPI
	store   storage.Storage
	parser  *entry.Parser
	cfg     *config.Config
	members *cache.Cache
	log     *slog.Logger
	now     func() time.Time
}

// New creates a Bot with the given Telegram token, storage, airport
// resolver, and config.
func New(token string, store storage.Storage, airports *airport.Resolver, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:     api,
		store:   store,
		parser:  entry.NewParser(airports),
		cfg:     cfg,
		members: cache.New(cache.NoExpiration, time.Minute),
		log:     log,
		now:     time.Now,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() || update.Message.From == nil {
				continue
			}
			msg := update.Message
			if msg.Chat.ID != b.cfg.GroupID && !b.isMember(msg.From.ID) {
				b.reply(msg, "This bot is only available to group members.")
				continue
			}
			b.claimFor(ctx, msg.From)
			b.handleCommand(ctx, msg)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	b.log.Debug("command", "cmd", cmd, "chat_id", msg.Chat.ID, "user_id", msg.From.ID)
	metrics.CommandsTotal.WithLabelValues(cmd).Inc()

	switch cmd {
	case "start":
		b.handleStart(msg)
	case "help":
		b.handleHelp(msg)
	case "add":
		b.handleAdd(ctx, msg, args)
	case "remove":
		b.handleRemove(ctx, msg, args)
	case "clear":
		b.handleClear(msg)
	case "list":
		b.handleList(ctx, msg)
	case "import":
		b.handleImport(ctx, msg, args)
	case "publish":
		b.handlePublish(ctx, msg)
	default:
		b.reply(msg, "Unknown command. Use /help for a list of commands.")
	}
}

// claimFor opportunistically attributes unclaimed imported entries to the
// interacting user. Runs on every authenticated interaction.
func (b *Bot) claimFor(ctx context.Context, from *tgbotapi.User) {
	if from.UserName == "" {
		return
	}
	n, err := b.store.ClaimImports(ctx, from.ID, from.UserName)
	if err != nil {
		b.log.Error("claim imports", "user_id", from.ID, "error", err)
		return
	}
	if n > 0 {
		b.log.Info("imported entries claimed", "user_id", from.ID, "username", from.UserName, "count", n)
	}
}

// isMember reports whether the user belongs to the configured group.
// Lookups are cached with distinct TTLs for granted and denied outcomes,
// and failures deny access.
func (b *Bot) isMember(userID int64) bool {
	return isMemberStatus(b.memberStatus(userID))
}

// isAdmin reports whether the user administrates the configured group.
func (b *Bot) isAdmin(userID int64) bool {
	return isAdminStatus(b.memberStatus(userID))
}

func (b *Bot) memberStatus(userID int64) string {
	key := strconv.FormatInt(userID, 10)
	if v, ok := b.members.Get(key); ok {
		return v.(string)
	}

	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: b.cfg.GroupID,
			UserID: userID,
		},
	})
	if err != nil {
		// Fail closed: uncertainty never grants access.
		b.log.Warn("membership lookup failed", "user_id", userID, "error", err)
		b.members.Set(key, statusUnknown, b.cfg.NonMemberCacheTTL)
		return statusUnknown
	}

	ttl := b.cfg.NonMemberCacheTTL
	if isMemberStatus(member.Status) {
		ttl = b.cfg.MemberCacheTTL
	}
	b.members.Set(key, member.Status, ttl)
	return member.Status
}

func isMemberStatus(status string) bool {
	switch status {
	case "creator", "administrator", "member":
		return true
	}
	return false
}

func isAdminStatus(status string) bool {
	return status == "creator" || status == "administrator"
}

// sendMessage posts text to a chat and returns the new message ID. threadID
// targets a forum topic; replyTo quotes a message; markup attaches an inline
// keyboard. Zero values omit the field.
func (b *Bot) sendMessage(chatID int64, threadID, replyTo int, text string, markup any) (int, error) {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", chatID)
	params["text"] = text
	params.AddNonZero("message_thread_id", threadID)
	params.AddNonZero("reply_to_message_id", replyTo)
	if markup != nil {
		if err := params.AddInterface("reply_markup", markup); err != nil {
			return 0, fmt.Errorf("encode reply markup: %w", err)
		}
	}

	resp, err := b.api.MakeRequest("sendMessage", params)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}

	var msg tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return 0, fmt.Errorf("decode sent message: %w", err)
	}
	return msg.MessageID, nil
}

// deleteMessage removes a message. Callers treat failure as benign; the
// message may already be gone.
func (b *Bot) deleteMessage(chatID int64, messageID int) error {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", messageID)
	if _, err := b.api.MakeRequest("deleteMessage", params); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	if _, err := b.sendMessage(msg.Chat.ID, 0, msg.MessageID, text, nil); err != nil {
		b.log.Error("send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

// PublishBoard re-posts the board: read the active entries, best-effort
// delete the previous board message, post the new one, and record its ID.
// The stored message ID is only updated after a successful post.
func (b *Bot) PublishBoard(ctx context.Context) error {
	entries, err := b.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	text := FormatBoard(entries)

	last, err := b.store.GetLastMessage(ctx, b.cfg.GroupID)
	if err != nil {
		b.log.Warn("read last board message", "error", err)
	} else if last != nil {
		if err := b.deleteMessage(last.ChatID, last.MessageID); err != nil {
			b.log.Warn("delete old board message", "message_id", last.MessageID, "error", err)
		}
	}

	id, err := b.sendMessage(b.cfg.GroupID, b.cfg.TopicID, 0, text, nil)
	if err != nil {
		return fmt.Errorf("post board: %w", err)
	}
	if err := b.store.SetLastMessage(ctx, b.cfg.GroupID, id); err != nil {
		return fmt.Errorf("record board message: %w", err)
	}

	metrics.BoardRepublished.Inc()
	return nil
}

func (b *Bot) republish(ctx context.Context) {
	if err := b.PublishBoard(ctx); err != nil {
		b.log.Error("republish board", "error", err)
	}
}

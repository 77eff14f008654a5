package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"flightboard_bot/internal/model"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	b.ackCallback(cb.ID)

	parts := strings.SplitN(cb.Data, ":", 2)
	if len(parts) != 2 || cb.Message == nil {
		return
	}

	action := parts[0]
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return
	}

	b.claimFor(ctx, cb.From)

	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", cb.Message.Chat.ID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case "clear":
		// The confirmation button carries the requester's ID; a tap by
		// anyone else is ignored.
		if id != cb.From.ID {
			return
		}
		n, err := b.store.ClearEntries(ctx, cb.From.ID, model.ReasonManual)
		if err != nil {
			b.log.Error("clear entries", "user_id", cb.From.ID, "error", err)
			b.send(cb.Message.Chat.ID, "Database error, please try again later.")
			return
		}
		b.send(cb.Message.Chat.ID, fmt.Sprintf("Removed %d entries.", n))
		if n > 0 {
			b.republish(ctx)
		}
	case "noop":
		b.send(cb.Message.Chat.ID, "Cancelled.")
	}
}

func (b *Bot) ackCallback(id string) {
	params := make(tgbotapi.Params)
	params["callback_query_id"] = id
	if _, err := b.api.MakeRequest("answerCallbackQuery", params); err != nil {
		b.log.Error("answer callback", "error", err)
	}
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.sendMessage(chatID, 0, 0, text, nil); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

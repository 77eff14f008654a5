package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"flightboard_bot/internal/entry"
	"flightboard_bot/internal/metrics"
	"flightboard_bot/internal/model"
	"flightboard_bot/internal/storage"
)

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	b.reply(msg, `Welcome to the flight board!

Announce when and where you are flying:
/add 1115 BER IST — November 15th, Berlin to Istanbul

Entries disappear automatically at midnight local time at the
departure airport. Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	b.reply(msg, `Commands:
/add <MMDD> <DEP> <ARR> — announce a flight (e.g. /add 1115 BER IST)
/remove <MMDD> [<DEP> <ARR>] — remove one of your entries
/clear — remove all of your entries
/list — show the current board

Dates may be up to 7 days ahead. Separators can be spaces,
a slash, or a hyphen: "1115 ber ist", "1115 ber/ist", "1115-ber-ist".
You can hold at most 3 entries at a time.

Admin commands:
/import — re-import a previously posted board, one line per entry
/publish — force a fresh board message`)
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message, args string) {
	if args == "" {
		b.reply(msg, "Usage: /add <MMDD> <DEP> <ARR>, e.g. /add 1115 BER IST")
		return
	}

	e, err := b.parser.Parse(args, b.now())
	if err != nil {
		b.reply(msg, parseErrorMessage(err))
		return
	}

	uid := msg.From.ID
	e.UserID = &uid
	e.Username = displayName(msg.From)
	e.OriginalText = strings.TrimSpace(msg.Text)

	if err := b.store.AddEntry(ctx, e); err != nil {
		var quota *storage.QuotaExceededError
		var dup *storage.DuplicateEntryError
		switch {
		case errors.As(err, &quota):
			b.replyWithEntries(ctx, msg, fmt.Sprintf(
				"Cannot add %q: you already have the maximum of %d entries. Remove one first.",
				quota.OriginalText, quota.Limit))
		case errors.As(err, &dup):
			b.replyWithEntries(ctx, msg, fmt.Sprintf(
				"Cannot add %q: this entry already exists.", dup.OriginalText))
		default:
			b.log.Error("add entry", "user_id", uid, "error", err)
			b.reply(msg, "Database error, please try again later.")
		}
		return
	}

	metrics.EntriesAdded.Inc()
	b.reply(msg, "Added: "+FormatEntryLine(*e))
	b.republish(ctx)
}

func (b *Bot) handleRemove(ctx context.Context, msg *tgbotapi.Message, args string) {
	if args == "" {
		b.reply(msg, "Usage: /remove <MMDD> [<DEP> <ARR>]")
		return
	}

	rm, err := b.parser.ParseRemoval(args, b.now())
	if err != nil {
		b.reply(msg, parseErrorMessage(err))
		return
	}

	uid := msg.From.ID
	if rm.DateOnly {
		entries, err := b.store.ListUserActive(ctx, uid)
		if err != nil {
			b.log.Error("list user entries", "user_id", uid, "error", err)
			b.reply(msg, "Database error, please try again later.")
			return
		}
		var matches []model.Entry
		for _, e := range entries {
			if e.Date == rm.Date {
				matches = append(matches, e)
			}
		}
		switch len(matches) {
		case 0:
			b.reply(msg, fmt.Sprintf("No entries found for %s.", mmdd(rm.Date)))
			return
		case 1:
			rm.Departure = matches[0].Departure
			rm.Arrival = matches[0].Arrival
		default:
			b.replyWithEntries(ctx, msg, fmt.Sprintf(
				"Multiple entries found for %s. Specify departure and arrival, e.g. /remove %s %s %s",
				mmdd(rm.Date), mmdd(rm.Date), matches[0].Departure, matches[0].Arrival))
			return
		}
	}

	removed, err := b.store.RemoveEntry(ctx, uid, rm.Date, rm.Departure, rm.Arrival, model.ReasonManual)
	if err != nil {
		b.log.Error("remove entry", "user_id", uid, "error", err)
		b.reply(msg, "Database error, please try again later.")
		return
	}
	if !removed {
		b.reply(msg, fmt.Sprintf("No entries found for %s %s %s.", mmdd(rm.Date), rm.Departure, rm.Arrival))
		return
	}

	b.reply(msg, fmt.Sprintf("Removed %s %s / %s.", mmdd(rm.Date), rm.Departure, rm.Arrival))
	b.republish(ctx)
}

func (b *Bot) handleClear(msg *tgbotapi.Message) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, remove all", fmt.Sprintf("clear:%d", msg.From.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "noop:0"),
		),
	)
	if _, err := b.sendMessage(msg.Chat.ID, 0, msg.MessageID, "Remove all of your entries?", markup); err != nil {
		b.log.Error("send clear confirmation", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) handleList(ctx context.Context, msg *tgbotapi.Message) {
	entries, err := b.store.ListActive(ctx)
	if err != nil {
		b.log.Error("list entries", "error", err)
		b.reply(msg, "Database error, please try again later.")
		return
	}
	b.reply(msg, FormatBoard(entries))
}

// handleImport parses a previously posted board, one line per entry, and
// stores each line as an unclaimed entry. Admin only.
func (b *Bot) handleImport(ctx context.Context, msg *tgbotapi.Message, args string) {
	if !b.isAdmin(msg.From.ID) {
		b.reply(msg, "Only group administrators can import a board.")
		return
	}
	if args == "" {
		b.reply(msg, "Usage: /import followed by board lines, e.g.\n/import 1115 BER / IST @alice")
		return
	}

	var imported, skipped int
	for _, line := range strings.Split(args, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == EmptyBoard {
			continue
		}
		e, err := b.parser.ParseImportLine(line, b.now())
		if err != nil {
			b.log.Debug("skipping import line", "line", line, "error", err)
			skipped++
			continue
		}
		if err := b.store.AddEntry(ctx, e); err != nil {
			b.log.Error("import entry", "line", line, "error", err)
			skipped++
			continue
		}
		metrics.EntriesAdded.Inc()
		imported++
	}

	reply := fmt.Sprintf("Imported %d entries.", imported)
	if skipped > 0 {
		reply = fmt.Sprintf("Imported %d entries, skipped %d lines.", imported, skipped)
	}
	b.reply(msg, reply)

	if imported > 0 {
		b.republish(ctx)
	}
}

func (b *Bot) handlePublish(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.reply(msg, "Only group administrators can republish the board.")
		return
	}
	if err := b.PublishBoard(ctx); err != nil {
		b.log.Error("publish board", "error", err)
		b.reply(msg, "Could not publish the board, please try again later.")
		return
	}
	b.reply(msg, "Board published.")
}

// replyWithEntries appends the user's current entries to an error reply so
// the user sees their state alongside the failure reason.
func (b *Bot) replyWithEntries(ctx context.Context, msg *tgbotapi.Message, text string) {
	entries, err := b.store.ListUserActive(ctx, msg.From.ID)
	if err != nil {
		b.log.Error("list user entries", "user_id", msg.From.ID, "error", err)
		b.reply(msg, text)
		return
	}
	b.reply(msg, text+"\n\n"+FormatUserEntries(entries))
}

func parseErrorMessage(err error) string {
	var pe *entry.ParseError
	if !errors.As(err, &pe) {
		return "Could not understand that, use /help for examples."
	}
	switch pe.Kind {
	case entry.KindDateLimit:
		return fmt.Sprintf("Cannot add %q: the date must be within the next 7 days.", pe.Input)
	default:
		return fmt.Sprintf("Cannot parse %q. Expected format: MMDD DEP ARR, e.g. \"1115 BER IST\".", pe.Input)
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}

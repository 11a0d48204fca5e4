// Package notify delivers out-of-band messages over Telegram: passcode
// delivery to bundle creators, approval alerts to the approver chat and
// security alerts for the logging pipeline. Delivery is best-effort;
// failures are logged and never propagated to the caller.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"qrshare/entity"
	"qrshare/internal/config"
	"qrshare/lib/sl"
)

type Telegram struct {
	api            *tgbotapi.Bot
	approverChatId int64
	alertChatId    int64
	log            *slog.Logger
}

func NewTelegram(conf *config.Config, log *slog.Logger) (*Telegram, error) {
	if !conf.Telegram.Enabled {
		return nil, fmt.Errorf("telegram notifications are disabled in configuration")
	}
	api, err := tgbotapi.NewBot(conf.Telegram.ApiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{
		api:            api,
		approverChatId: conf.Telegram.ApproverChatId,
		alertChatId:    conf.Telegram.AlertChatId,
		log:            log.With(sl.Module("notify")),
	}, nil
}

// PasscodeCreated delivers the plaintext passcode to the creator's chat.
// This is the only path the plaintext ever travels after hashing.
func (t *Telegram) PasscodeCreated(b *entity.Bundle, plaintext string, chatId int64) {
	msg := fmt.Sprintf("Passcode for bundle *%s*\n`%s`", b.Title, plaintext)
	t.send(chatId, msg)
}

func (t *Telegram) ApprovalRequested(b *entity.Bundle) {
	if t.approverChatId == 0 {
		return
	}
	msg := fmt.Sprintf("Bundle *%s* by %s is awaiting approval\nid: `%s`",
		b.Title, b.CreatorId, b.PublicId)
	t.send(t.approverChatId, msg)
}

func (t *Telegram) ApprovalDecided(b *entity.Bundle) {
	if t.approverChatId == 0 {
		return
	}
	msg := fmt.Sprintf("Bundle *%s* %s by %s",
		b.Title, b.Approval.Status, b.Approval.Approver)
	t.send(t.approverChatId, msg)
}

// SendAlert implements logger.Sender for the security alert channel.
func (t *Telegram) SendAlert(text string) {
	if t.alertChatId == 0 {
		return
	}
	t.send(t.alertChatId, text)
}

func (t *Telegram) send(chatId int64, text string) {
	if text == "" {
		t.log.With(slog.Int64("id", chatId)).Debug("empty message")
		return
	}
	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "Markdown",
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
		// retry without markdown in case formatting was the problem
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Error("sending plain message", sl.Err(err))
		}
	}
}

// Package telegram is a chat front-end for the classification pipeline.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Brownie44l1/produce-classifier/internal/errlog"
	"github.com/Brownie44l1/produce-classifier/internal/i18n"
	"github.com/Brownie44l1/produce-classifier/internal/model"
)

// Largest photo we are willing to download
const maxPhotoBytes = 10 << 20

type fetchFunc func(fileID string) ([]byte, error)

// Bot answers photos with the predicted label, in the sender's language.
type Bot struct {
	api      *tgbotapi.BotAPI
	log      logs.Log
	pipeline *model.Pipeline
	errors   *errlog.Logger
	catalog  *i18n.Catalog
	fetch    fetchFunc
}

func NewBot(token string, log logs.Log, pipeline *model.Pipeline, errors *errlog.Logger, catalog *i18n.Catalog) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Infof("Telegram bot authorized on account %v", api.Self.UserName)

	b := &Bot{
		api:      api,
		log:      log,
		pipeline: pipeline,
		errors:   errors,
		catalog:  catalog,
	}
	b.fetch = b.downloadFile
	return b, nil
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			b.send(update.Message.Chat.ID, b.reply(ctx, update.Message))
		}
	}
}

// reply produces the answer to one incoming message.
func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message) string {
	m := b.messagesFor(msg)

	if msg.IsCommand() {
		return m.Help
	}

	fileID := imageFileID(msg)
	if fileID == "" {
		return m.NoImage
	}

	data, err := b.fetch(fileID)
	if err != nil {
		b.log.Warnf("Failed to download telegram file %v: %v", fileID, err)
		return m.ErrUnknown
	}

	pred, err := b.classify(ctx, data)
	if err != nil {
		return m.ForError(err)
	}
	result, confidence := m.Prediction(pred.Label, pred.Confidence)
	return result + "\n" + confidence
}

func (b *Bot) classify(ctx context.Context, data []byte) (pred *model.Prediction, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pred = nil
			err = fmt.Errorf("%w: panic: %v", model.ErrInference, rec)
		}
		if err != nil {
			b.errors.LogError(err)
			b.log.Warnf("Telegram classification failed (%v): %v", model.KindName(err), err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	return b.pipeline.Classify(ctx, data)
}

func (b *Bot) messagesFor(msg *tgbotapi.Message) *i18n.Messages {
	if msg.From == nil {
		return b.catalog.Default()
	}
	return b.catalog.Match(msg.From.LanguageCode)
}

// imageFileID picks the largest photo size, or an image sent as a document.
func imageFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID
	}
	return ""
}

func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	resp, err := http.Get(file.Link(b.api.Token))
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: %v", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Errorf("Failed to send telegram message: %v", err)
	}
}

// Package telegram adapts the bot to the Telegram Bot API via telebot.
package telegram

import (
	"context"
	"fmt"
	"path/filepath"

	tele "gopkg.in/telebot.v3"

	"github.com/SayonaraQ/downloadbot/internal/deliver"
	"github.com/SayonaraQ/downloadbot/internal/model"
)

// Transport implements deliver.Transport on a telebot connection.
type Transport struct {
	bot *tele.Bot
}

func fileFor(src deliver.Source) tele.File {
	switch s := src.(type) {
	case deliver.LocalFile:
		return tele.FromDisk(s.Path)
	case deliver.RemoteRef:
		return tele.File{FileID: s.ID}
	}
	return tele.File{}
}

func (t *Transport) SendText(ctx context.Context, chat int64, text string) error {
	_, err := t.bot.Send(tele.ChatID(chat), text)
	return err
}

func (t *Transport) SendMedia(ctx context.Context, chat int64, m deliver.Media) (string, error) {
	to := tele.ChatID(chat)
	file := fileFor(m.Source)

	switch m.Kind {
	case model.KindPhoto:
		msg, err := t.bot.Send(to, &tele.Photo{File: file, Caption: m.Caption})
		if err != nil {
			return "", err
		}
		return msg.Photo.FileID, nil
	case model.KindVideo:
		msg, err := t.bot.Send(to, &tele.Video{File: file, Caption: m.Caption, Streaming: true})
		if err != nil {
			return "", err
		}
		return msg.Video.FileID, nil
	default:
		doc := &tele.Document{File: file, Caption: m.Caption}
		if local, ok := m.Source.(deliver.LocalFile); ok {
			doc.FileName = filepath.Base(local.Path)
		}
		msg, err := t.bot.Send(to, doc)
		if err != nil {
			return "", err
		}
		return msg.Document.FileID, nil
	}
}

func (t *Transport) SendAudio(ctx context.Context, chat int64, path, title string) error {
	_, err := t.bot.Send(tele.ChatID(chat), &tele.Audio{
		File:  tele.FromDisk(path),
		Title: title,
	})
	return err
}

func (t *Transport) SendGroup(ctx context.Context, chat int64, items []deliver.Media) ([]string, error) {
	album := make(tele.Album, 0, len(items))
	for _, m := range items {
		file := fileFor(m.Source)
		switch m.Kind {
		case model.KindPhoto:
			album = append(album, &tele.Photo{File: file, Caption: m.Caption})
		case model.KindVideo:
			album = append(album, &tele.Video{File: file, Caption: m.Caption, Streaming: true})
		default:
			return nil, fmt.Errorf("kind %s not allowed in a media group", m.Kind)
		}
	}

	msgs, err := t.bot.SendAlbum(tele.ChatID(chat), album)
	if err != nil {
		return nil, err
	}

	refs := make([]string, len(items))
	for i, msg := range msgs {
		if i >= len(refs) {
			break
		}
		switch {
		case msg.Photo != nil:
			refs[i] = msg.Photo.FileID
		case msg.Video != nil:
			refs[i] = msg.Video.FileID
		case msg.Document != nil:
			refs[i] = msg.Document.FileID
		}
	}
	return refs, nil
}

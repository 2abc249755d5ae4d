// Package deliver sends acquired media through the chat transport,
// promoting successfully sent local files into transport references so later
// deliveries of the same cached entry skip local I/O entirely.
package deliver

import (
	"context"

	"github.com/SayonaraQ/downloadbot/internal/model"
)

// Source is the tagged origin of a media payload: either a file on disk or
// a reference previously assigned by the transport.
type Source interface {
	isSource()
}

// LocalFile is a payload streamed from disk.
type LocalFile struct {
	Path string
}

// RemoteRef is a payload resent by transport reference, with no upload.
type RemoteRef struct {
	ID string
}

func (LocalFile) isSource() {}
func (RemoteRef) isSource() {}

// Media is one payload to send.
type Media struct {
	Kind    model.Kind
	Source  Source
	Caption string
}

// Transport is the boundary to the chat-messaging collaborator. Every
// successful send returns the transport's reference for the payload,
// reusable for later sends.
type Transport interface {
	SendText(ctx context.Context, chat int64, text string) error
	// SendMedia sends one photo, video, or document.
	SendMedia(ctx context.Context, chat int64, m Media) (ref string, err error)
	// SendAudio sends a local audio file with a display title.
	SendAudio(ctx context.Context, chat int64, path, title string) error
	// SendGroup sends 2..10 ordered photo/video payloads in one call and
	// returns per-item references, aligned with the input order.
	SendGroup(ctx context.Context, chat int64, items []Media) ([]string, error)
}

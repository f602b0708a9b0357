package runtime

import (
	"context"
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/moderation"
	"direct-chat/observability"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

type RouterConfig struct {
	Registry    contract.IRegistry
	Store       contract.MessageStore
	Attachments contract.AttachmentStore
	Indexer     contract.MessageIndexer // optional
	Moderator   *moderation.Moderator   // optional
	Metrics     *observability.Metrics  // optional
	Now         func() time.Time        // defaults to time.Now
}

// Router persists inbound messages and pushes them to the receiver's live connections.
type Router struct {
	registry    contract.IRegistry
	store       contract.MessageStore
	attachments contract.AttachmentStore
	indexer     contract.MessageIndexer
	moderator   *moderation.Moderator
	metrics     *observability.Metrics
	now         func() time.Time
	log         *slog.Logger
}

func NewRouter(log *slog.Logger, cfg RouterConfig) *Router {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		registry:    cfg.Registry,
		store:       cfg.Store,
		attachments: cfg.Attachments,
		indexer:     cfg.Indexer,
		moderator:   cfg.Moderator,
		metrics:     cfg.Metrics,
		now:         now,
		log:         log,
	}
}

// Route handles one send request of sender.
//
// A request without receiver, or with neither text nor file, is dropped and
// returns (nil, nil). Otherwise the message is persisted exactly once, then
// delivered to every live connection of the receiver and acknowledged to the
// sending connection. An offline receiver is not an error.
// Nothing is delivered when the attachment or the store fails.
func (r *Router) Route(ctx context.Context, sender contract.Connection, cmd domain.RouteCommand) (*domain.Message, error) {
	start := time.Now()
	identity, ok := r.registry.Identity(sender)
	if !ok {
		return nil, errors.ErrUnauthenticated
	}
	if cmd.ReceiverID == "" || cmd.IsEmpty() {
		r.metrics.RecordRoute(observability.Dropped, time.Since(start))
		r.log.Debug("Empty message dropped", "conn_id", sender.ID(), "user_id", identity.UserID)
		return nil, nil
	}

	newMessage := domain.NewMessage{
		SenderID:   identity.UserID,
		ReceiverID: cmd.ReceiverID,
		Text:       cmd.Text,
	}

	if cmd.File != nil {
		filename := GenerateFilename(cmd.File.Name, r.now())
		if err := r.attachments.Write(filename, cmd.File.Data); err != nil {
			r.metrics.RecordRoute(observability.FileError, time.Since(start))
			return nil, fmt.Errorf("%w: %v", errors.ErrAttachmentFailure, err)
		}
		newMessage.File = &domain.FileRef{Name: cmd.File.Name, StoredFilename: filename}
	}

	if newMessage.Text != "" {
		censored, matched := r.moderator.Censor(newMessage.Text)
		if len(matched) > 0 {
			r.log.Debug("Message censored", "user_id", identity.UserID, "matches", len(matched))
		}
		newMessage.Text = censored
		newMessage.Lang = detectLang(censored)
	}

	msg, err := r.store.Create(ctx, newMessage)
	if err != nil {
		r.metrics.RecordRoute(observability.StoreError, time.Since(start))
		// No message will ever point to the attachment
		if newMessage.File != nil {
			if rmErr := r.attachments.Remove(newMessage.File.StoredFilename); rmErr != nil {
				r.log.Warn("Orphan attachment not removed", "filename", newMessage.File.StoredFilename, "error", rmErr)
			}
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreFailure, err)
	}

	if r.indexer != nil {
		if err := r.indexer.Index(msg); err != nil {
			r.log.Warn("Message not indexed", "message_id", msg.ID, "error", err)
		}
	}

	delivered := r.deliver(ctx, msg)

	ack := domain.AckFrame{
		MessageID:  msg.ID.String(),
		ReceiverID: msg.ReceiverID,
		File:       msg.StoredFilename(),
		CreatedAt:  msg.CreatedAt,
	}
	if err := sender.Send(ctx, ack); err != nil {
		r.metrics.RecordDeliveryFailure()
		r.log.Debug("Ack not delivered", "conn_id", sender.ID(), "error", err)
	}

	outcome := observability.Offline
	if delivered > 0 {
		outcome = observability.Delivered
	}
	r.metrics.RecordRoute(outcome, time.Since(start))
	return &msg, nil
}

// deliver pushes msg to every connection currently bound to the receiver.
// The sender's own connection is never a target unless it messages itself.
func (r *Router) deliver(ctx context.Context, msg domain.Message) int {
	frame := domain.MessageFrame{Message: msg}
	delivered := 0
	for _, conn := range r.registry.Lookup(msg.ReceiverID) {
		if err := conn.Send(ctx, frame); err != nil {
			r.metrics.RecordDeliveryFailure()
			r.log.Debug("Message not delivered", "conn_id", conn.ID(), "message_id", msg.ID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// GenerateFilename names a stored attachment after the upload time, a short
// random suffix and the original extension ("bin" when there is none).
func GenerateFilename(original string, now time.Time) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(original), "."))
	if ext == "" || strings.IndexFunc(ext, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) >= 0 {
		ext = "bin"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), suffix, ext)
}

func detectLang(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}

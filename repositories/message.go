package repositories

import (
	"context"
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const defaultPageSize = 50

var _ contract.MessageStore = (*MessageRepository)(nil)

type IMessageRepository interface {
	contract.MessageStore
	Page(ctx context.Context, userA, userB string, cursor *string) ([]domain.Message, *string, error)
	Get(ctx context.Context, userA, userB string, refs []MessageRef) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int

	clock sync.Mutex
	last  time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID             uuid.UUID
	SenderID       string
	ReceiverID     string
	Text           string
	FileName       string
	StoredFilename string
	Lang           string
	At             time.Time
}

// Create assigns an ID and a creation time, then persists the message once.
// The key is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep both directions of a conversation under one prefix.
func (m *MessageRepository) Create(ctx context.Context, msg domain.NewMessage) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	dm := DiskMessage{
		ID:         uuid.New(),
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		Lang:       msg.Lang,
		At:         m.now(),
	}
	if msg.File != nil {
		dm.FileName = msg.File.Name
		dm.StoredFilename = msg.File.StoredFilename
	}
	if err := m.StoreMessage(dm); err != nil {
		return domain.Message{}, err
	}
	return toMessage(dm), nil
}

// StoreMessage writes an already built record.
func (m *MessageRepository) StoreMessage(message DiskMessage) error {
	key := messageKey(message)
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, marshalMessage(message))
	})
}

// now returns a strictly increasing timestamp so that two messages created in
// the same nanosecond keep their creation order.
func (m *MessageRepository) now() time.Time {
	m.clock.Lock()
	defer m.clock.Unlock()
	at := time.Now().UTC()
	if !at.After(m.last) {
		at = m.last.Add(time.Nanosecond)
	}
	m.last = at
	return at
}

func messageKey(message DiskMessage) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s",
		conversationPrefix(message.SenderID, message.ReceiverID),
		message.At.UnixNano(),
		message.ID,
	))
}

func conversationPrefix(userA, userB string) string {
	return fmt.Sprintf("msg:%s:", domain.ConversationKey(userA, userB))
}

// Find returns the conversation between userA and userB, oldest first.
// When limitMessages is set only the most recent messages are kept.
func (m *MessageRepository) Find(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	var diskMessages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefix(userA, userB))
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Newest first, so the limit keeps the tail of the conversation
		for it.Seek(append(prefix, 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if m.limitMessages != nil && len(diskMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			var dm DiskMessage
			err := it.Item().Value(func(val []byte) error {
				var err error
				dm, err = unmarshalMessage(val)
				return err
			})
			if err != nil {
				return err
			}
			diskMessages = append(diskMessages, dm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Reverse(lo.Map(diskMessages, func(dm DiskMessage, _ int) domain.Message {
		return toMessage(dm)
	})), nil
}

// Page walks the conversation backwards, newest first, starting after cursor.
// The returned cursor is the key suffix of the last message of the page.
func (m *MessageRepository) Page(ctx context.Context, userA, userB string, cursor *string) ([]domain.Message, *string, error) {
	var diskMessages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := conversationPrefix(userA, userB)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			seekKey = append([]byte(prefixStr), 0xFF)
		default:
			seekKey = []byte(prefixStr + *cursor)
		}

		it.Seek(seekKey)
		// The cursor itself was already returned by the previous page
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(diskMessages) == m.pageSize() {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				dm, err := unmarshalMessage(val)
				if err != nil {
					return err
				}
				diskMessages = append(diskMessages, dm)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	messages := lo.Map(diskMessages, func(dm DiskMessage, _ int) domain.Message {
		return toMessage(dm)
	})
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

func (m *MessageRepository) pageSize() int {
	if m.limitMessages != nil && *m.limitMessages > 0 {
		return *m.limitMessages
	}
	return defaultPageSize
}

// Get resolves search hits back to stored messages, keeping the order of refs.
// Refs that no longer exist are skipped.
func (m *MessageRepository) Get(ctx context.Context, userA, userB string, refs []MessageRef) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(refs))
	err := m.db.View(func(txn *badger.Txn) error {
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := messageKey(DiskMessage{ID: ref.ID, SenderID: userA, ReceiverID: userB, At: ref.At})
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				dm, err := unmarshalMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, toMessage(dm))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func toMessage(dm DiskMessage) domain.Message {
	message := domain.Message{
		ID:         dm.ID,
		SenderID:   dm.SenderID,
		ReceiverID: dm.ReceiverID,
		Text:       dm.Text,
		Lang:       dm.Lang,
		CreatedAt:  dm.At,
	}
	if dm.StoredFilename != "" {
		message.File = &domain.FileRef{Name: dm.FileName, StoredFilename: dm.StoredFilename}
	}
	return message
}

// Scan visits every stored message whose key starts with prefix, in key order.
// An empty prefix walks all conversations.
func (m *MessageRepository) Scan(ctx context.Context, prefix string, visit func(key string, message DiskMessage) error) error {
	if !strings.HasPrefix(prefix, "msg:") {
		prefix = "msg:" + prefix
	}
	return m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var dm DiskMessage
			err := item.Value(func(val []byte) error {
				var err error
				dm, err = unmarshalMessage(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("key %s: %w", item.Key(), err)
			}
			if err := visit(string(item.Key()), dm); err != nil {
				return err
			}
		}
		return nil
	})
}

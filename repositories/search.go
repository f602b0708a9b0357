package repositories

import (
	"context"
	"direct-chat/contract"
	"direct-chat/domain"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

var _ contract.MessageIndexer = (*SearchIndex)(nil)

const (
	fieldText         = "text"
	fieldConversation = "conversation"
	fieldSender       = "sender"
	fieldLang         = "lang"
	fieldAt           = "at"
)

// MessageRef locates a message in the badger store from a search hit.
type MessageRef struct {
	ID uuid.UUID
	At time.Time
}

// SearchIndex keeps a full-text index of message texts, scoped by conversation.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

// Index adds a message to the index. Messages without text are skipped.
func (s *SearchIndex) Index(msg domain.Message) error {
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField(fieldText, msg.Text)).
		AddField(bluge.NewKeywordField(fieldConversation, domain.ConversationKey(msg.SenderID, msg.ReceiverID))).
		AddField(bluge.NewKeywordField(fieldSender, msg.SenderID).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldAt, msg.CreatedAt).StoreValue().Sortable())
	if msg.Lang != "" {
		doc.AddField(bluge.NewKeywordField(fieldLang, msg.Lang).StoreValue())
	}

	if err := s.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", msg.ID, err)
	}
	return nil
}

// Search returns the most recent messages of the conversation between userA
// and userB whose text matches terms, newest first.
func (s *SearchIndex) Search(ctx context.Context, userA, userB, terms string, limit int) ([]MessageRef, error) {
	if strings.TrimSpace(terms) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	reader, err := s.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Debug("Unable to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField(fieldText)).
		AddMust(bluge.NewTermQuery(domain.ConversationKey(userA, userB)).SetField(fieldConversation))
	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"-" + fieldAt})

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}

	var refs []MessageRef
	match, err := iterator.Next()
	for err == nil && match != nil {
		var ref MessageRef
		var decodeErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				ref.ID, decodeErr = uuid.Parse(string(value))
			case fieldAt:
				ref.At, decodeErr = bluge.DecodeDateTime(value)
			}
			return decodeErr == nil
		})
		if err == nil {
			err = decodeErr
		}
		if err != nil {
			return nil, fmt.Errorf("read search hit: %w", err)
		}
		refs = append(refs, ref)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return refs, nil
}

package services

import (
	"context"
	"direct-chat/domain"
	"direct-chat/repositories"
	"strings"

	"github.com/samber/lo"
)

const defaultSearchLimit = 50

type IChatService interface {
	History(ctx context.Context, caller, peer string) ([]domain.Message, error)
	Page(ctx context.Context, caller, peer string, cursor *string) ([]domain.Message, *string, error)
	Search(ctx context.Context, caller, peer, query string) ([]domain.Message, error)
	People() ([]domain.Identity, error)
	Online() domain.OnlineSet
}

type MessageSearcher interface {
	Search(ctx context.Context, userA, userB, terms string, limit int) ([]repositories.MessageRef, error)
}

type OnlineSource interface {
	Snapshot() domain.OnlineSet
}

// ChatService serves the read side of conversations over HTTP.
type ChatService struct {
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
	searcher MessageSearcher
	online   OnlineSource
}

func NewChatService(messages repositories.IMessageRepository, users repositories.IUserRepository,
	searcher MessageSearcher, online OnlineSource) *ChatService {
	return &ChatService{messages: messages, users: users, searcher: searcher, online: online}
}

// History returns the conversation between caller and peer, oldest first.
func (s *ChatService) History(ctx context.Context, caller, peer string) ([]domain.Message, error) {
	return s.messages.Find(ctx, caller, peer)
}

// Page returns older messages newest first, starting after cursor.
func (s *ChatService) Page(ctx context.Context, caller, peer string, cursor *string) ([]domain.Message, *string, error) {
	return s.messages.Page(ctx, caller, peer, cursor)
}

// Search matches query against the texts of the caller/peer conversation only.
func (s *ChatService) Search(ctx context.Context, caller, peer, query string) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Message{}, nil
	}
	refs, err := s.searcher.Search(ctx, caller, peer, query, defaultSearchLimit)
	if err != nil {
		return nil, err
	}
	return s.messages.Get(ctx, caller, peer, refs)
}

// People lists every registered account.
func (s *ChatService) People() ([]domain.Identity, error) {
	users, err := s.users.ListUsers()
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u repositories.User, _ int) domain.Identity {
		return domain.Identity{UserID: u.ID, Username: u.Username}
	}), nil
}

func (s *ChatService) Online() domain.OnlineSet {
	return s.online.Snapshot()
}

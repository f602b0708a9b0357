//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"direct-chat/domain"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one live transport session as seen by the core.
// Send must not block longer than the transport's own delivery timeout.
type Connection interface {
	ID() string
	Send(ctx context.Context, frame domain.Frame) error
	Ping() error
	Close() error
}

type IRegistry interface {
	Register(conn Connection, identity *domain.Identity)
	Unregister(conn Connection) bool
	Lookup(userID string) []Connection
	Snapshot() domain.OnlineSet
	Connections() []Connection
	Identity(conn Connection) (domain.Identity, bool)
}

type IdentityVerifier interface {
	Verify(token string) (domain.Identity, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg domain.NewMessage) (domain.Message, error)
	Find(ctx context.Context, userA, userB string) ([]domain.Message, error)
}

type AttachmentStore interface {
	Write(filename string, data []byte) error
	// Remove deletes a written attachment, a missing file is not an error.
	Remove(filename string) error
	URLFor(filename string) string
}

// MessageIndexer receives every persisted message for full-text search.
type MessageIndexer interface {
	Index(msg domain.Message) error
}

type Broadcaster interface {
	NotifyAll(ctx context.Context)
}

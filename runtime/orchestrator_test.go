package runtime

import (
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/mocks"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var slowHeartbeat = HeartbeatConfig{PingInterval: time.Minute, PongGrace: time.Minute}

type orchestratorFixture struct {
	registry     *Registry
	verifier     *mocks.MockIdentityVerifier
	store        *mocks.MockMessageStore
	supervisor   *mocks.MockISupervisor
	orchestrator *Orchestrator
	// observer is an anonymous connection registered directly, it only counts broadcasts
	observer *fakeConn
}

func newOrchestratorFixture(t *testing.T, heartbeat HeartbeatConfig) orchestratorFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	f := orchestratorFixture{
		registry:   NewRegistry(),
		verifier:   mocks.NewMockIdentityVerifier(ctrl),
		store:      mocks.NewMockMessageStore(ctrl),
		supervisor: mocks.NewMockISupervisor(ctrl),
		observer:   newFakeConn(),
	}
	router := NewRouter(log, RouterConfig{
		Registry:    f.registry,
		Store:       f.store,
		Attachments: mocks.NewMockAttachmentStore(ctrl),
	})
	f.orchestrator = NewOrchestrator(log, f.registry, NewPresence(f.registry, log, nil), router, f.supervisor,
		OrchestratorConfig{Verifier: f.verifier, Heartbeat: heartbeat})
	f.registry.Register(f.observer, nil)
	return f
}

func (f orchestratorFixture) broadcasts() int {
	return len(f.observer.FramesOf(domain.PresenceKind))
}

func lastOnline(conn *fakeConn) domain.OnlineSet {
	frames := conn.FramesOf(domain.PresenceKind)
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1].(domain.PresenceFrame).Online
}

func TestOrchestrator_Accept_Registers_And_Broadcasts(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, slowHeartbeat)
	ctx := context.Background()

	alice := newFakeConn()
	f.verifier.EXPECT().Verify("alice-token").Return(*user("alice"), nil)

	// When alice connects with a valid token
	session := f.orchestrator.Accept(ctx, alice, "alice-token")
	t.Cleanup(func() { f.orchestrator.Disconnect(ctx, session) })

	// Then she is online and everybody, herself included, is told so
	identity, ok := session.Identity()
	req.True(ok)
	req.Equal("alice-id", identity.UserID)
	req.Equal(1, f.broadcasts())
	req.Equal(domain.OnlineSet{*user("alice")}, lastOnline(f.observer))
	req.Equal(domain.OnlineSet{*user("alice")}, lastOnline(alice))
}

func TestOrchestrator_Auth_Failure_Stays_Anonymous(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, slowHeartbeat)
	ctx := context.Background()

	stranger := newFakeConn()
	f.verifier.EXPECT().Verify("expired").Return(domain.Identity{}, errors.ErrAuthFailure)

	session := f.orchestrator.Accept(ctx, stranger, "expired")
	t.Cleanup(func() { f.orchestrator.Disconnect(ctx, session) })

	// Then the connection is kept open, learns the OnlineSet, but is not part of it
	_, ok := session.Identity()
	req.False(ok)
	req.Zero(stranger.closes.Load())
	req.Len(stranger.FramesOf(domain.PresenceKind), 1)
	req.Empty(lastOnline(stranger))
	req.Empty(f.registry.Snapshot())

	// And anything it sends is dropped without reaching the store
	f.orchestrator.Route(ctx, session, domain.RouteCommand{ReceiverID: "bob-id", Text: "hi"})
	req.Empty(stranger.FramesOf(domain.ErrorKind))
}

func TestOrchestrator_Disconnect_Broadcasts_Once(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, slowHeartbeat)
	ctx := context.Background()

	alice := newFakeConn()
	f.verifier.EXPECT().Verify(gomock.Any()).Return(*user("alice"), nil)
	session := f.orchestrator.Accept(ctx, alice, "token")
	req.Equal(1, f.broadcasts())

	// When the transport and the shutdown path both disconnect alice
	f.orchestrator.Disconnect(ctx, session)
	f.orchestrator.Disconnect(ctx, session)

	// Then only the effective removal is broadcast
	req.Equal(2, f.broadcasts())
	req.Empty(lastOnline(f.observer))
	req.Equal(Dead, session.heartbeat.State())
	req.GreaterOrEqual(alice.closes.Load(), int32(1))
}

func TestOrchestrator_Heartbeat_Timeout_Tears_Down(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, testHeartbeat)
	ctx := context.Background()

	silent := newFakeConn()
	f.verifier.EXPECT().Verify(gomock.Any()).Return(*user("bob"), nil)
	f.orchestrator.Accept(ctx, silent, "token")
	req.Equal(1, f.broadcasts())

	// When bob never answers the ping
	req.Eventually(func() bool { return f.broadcasts() == 2 },
		time.Second, 5*time.Millisecond)

	// Then he is removed, his connection closed, and exactly one more broadcast went out
	req.Empty(f.registry.Snapshot())
	req.Empty(f.registry.Lookup("bob-id"))
	req.Equal(int32(1), silent.closes.Load())
	time.Sleep(5 * testHeartbeat.PingInterval)
	req.Equal(2, f.broadcasts())
}

func TestOrchestrator_Pong_Keeps_Session(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, testHeartbeat)
	ctx := context.Background()

	alice := newFakeConn()
	f.verifier.EXPECT().Verify(gomock.Any()).Return(*user("alice"), nil)
	session := f.orchestrator.Accept(ctx, alice, "token")
	t.Cleanup(func() { f.orchestrator.Disconnect(ctx, session) })

	// When the client keeps answering
	deadline := time.Now().Add(8 * testHeartbeat.PingInterval)
	for time.Now().Before(deadline) {
		session.Pong()
		time.Sleep(testHeartbeat.PongGrace / 2)
	}

	req.Len(f.registry.Lookup("alice-id"), 1)
	req.Equal(1, f.broadcasts())
}

func TestOrchestrator_Store_Failure_Answers_Sender(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, slowHeartbeat)
	ctx := context.Background()

	alice := newFakeConn()
	f.verifier.EXPECT().Verify(gomock.Any()).Return(*user("alice"), nil)
	session := f.orchestrator.Accept(ctx, alice, "token")
	t.Cleanup(func() { f.orchestrator.Disconnect(ctx, session) })

	f.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(domain.Message{}, fmt.Errorf("badger closed"))

	f.orchestrator.Route(ctx, session, domain.RouteCommand{ReceiverID: "bob-id", Text: "hello"})

	frames := alice.FramesOf(domain.ErrorKind)
	req.Len(frames, 1)
	req.Equal(domain.StoreFailureCode, frames[0].(domain.ErrorFrame).Code)
	req.Empty(alice.FramesOf(domain.AckKind))
}

func TestOrchestrator_Register_Then_Unregister_Restores_State(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, slowHeartbeat)
	ctx := context.Background()

	alice := newFakeConn()
	f.verifier.EXPECT().Verify("a").Return(*user("alice"), nil)
	aliceSession := f.orchestrator.Accept(ctx, alice, "a")
	t.Cleanup(func() { f.orchestrator.Disconnect(ctx, aliceSession) })
	before := f.registry.Snapshot()

	bob := newFakeConn()
	f.verifier.EXPECT().Verify("b").Return(*user("bob"), nil)
	f.orchestrator.Disconnect(ctx, f.orchestrator.Accept(ctx, bob, "b"))

	req.Equal(before, f.registry.Snapshot())
}

func TestOrchestrator_Start_And_Stop(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t, slowHeartbeat)
	ctx := context.Background()

	worker := mocks.NewMockWorker(gomock.NewController(t))
	f.orchestrator.Add(worker)
	f.supervisor.EXPECT().Add(worker).Return(f.supervisor)
	f.supervisor.EXPECT().Run(ctx)
	f.supervisor.EXPECT().Stop()

	alice := newFakeConn()
	f.verifier.EXPECT().Verify(gomock.Any()).Return(*user("alice"), nil)
	session := f.orchestrator.Accept(ctx, alice, "token")
	t.Cleanup(func() { f.orchestrator.Disconnect(ctx, session) })

	f.orchestrator.Start(ctx)
	f.orchestrator.Stop()

	// Every live connection was closed, anonymous ones included
	req.Equal(int32(1), alice.closes.Load())
	req.Equal(int32(1), f.observer.closes.Load())
}

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set")
	}
}

// Step prints a colorized header then runs fn as a subtest
func (s *BaseSuite) Step(name string, fn func()) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
	s.Run(name, fn)
}

// User is a freshly registered account with its session cookie.
type User struct {
	ID       string
	Username string
	Token    *http.Cookie
}

// Register creates a unique account so that runs never collide.
func (s *BaseSuite) Register(prefix string) User {
	username := prefix + uuid.NewString()[:8]
	body, err := json.Marshal(map[string]string{"username": username, "password": "E2eComplexPass1!"})
	s.Require().NoError(err)

	resp, err := http.Post("http://"+s.Config.ServerAddr+"/register", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created struct {
		UserID string `json:"userId"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "token" {
			return User{ID: created.UserID, Username: username, Token: cookie}
		}
	}
	s.FailNow("no token cookie on register")
	return User{}
}

// Dial opens the WebSocket as user, nil dials anonymously.
func (s *BaseSuite) Dial(user *User) *websocket.Conn {
	endpoint := url.URL{Scheme: "ws", Host: s.Config.ServerAddr, Path: "/ws"}
	header := http.Header{}
	if user != nil {
		header.Set("Cookie", user.Token.String())
	}
	conn, _, err := websocket.DefaultDialer.Dial(endpoint.String(), header)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

// Next reads frames until one of the wanted type arrives.
func (s *BaseSuite) Next(conn *websocket.Conn, frameType string) map[string]any {
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		_, raw, err := conn.ReadMessage()
		s.Require().NoError(err, "waiting for a %s frame", frameType)
		if s.Config.DebugJSON {
			s.T().Log(string(raw))
		}
		var frame map[string]any
		s.Require().NoError(json.Unmarshal(raw, &frame))
		if frame["type"] == frameType {
			return frame
		}
	}
}

// WithHealth provides a health client when E2E_GRPC_ADDR is set.
func (s *BaseSuite) WithHealth(fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.GrpcAddr == "" {
		s.T().Log("E2E_GRPC_ADDR not set, health check skipped")
		return
	}
	conn, err := grpc.NewClient(s.Config.GrpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}

package e2e

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type testDirectMessageSuite struct {
	BaseSuite
}

func TestDirectMessageSuite(t *testing.T) {
	suite.Run(t, &testDirectMessageSuite{})
}

func (s *testDirectMessageSuite) TestFullDirectMessageFlow() {
	alice := s.Register("alice")
	bob := s.Register("bob")

	s.Step("Step 0: Health reports serving", func() {
		s.WithHealth(func(ctx context.Context, client healthpb.HealthClient) {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
			s.Require().NoError(err)
			s.Require().Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
		})
	})

	aliceConn := s.Dial(&alice)
	s.Next(aliceConn, "presence")
	bobConn := s.Dial(&bob)

	s.Step("Step 1: Both users see each other online", func() {
		presence := s.Next(aliceConn, "presence")
		online := presence["online"].([]any)
		ids := map[string]bool{}
		for _, u := range online {
			ids[u.(map[string]any)["userId"].(string)] = true
		}
		s.Require().True(ids[alice.ID])
		s.Require().True(ids[bob.ID])
	})

	s.Step("Step 2: Text message is delivered and acknowledged", func() {
		s.Require().NoError(aliceConn.WriteJSON(map[string]any{"type": "message", "receiverId": bob.ID, "text": "hello from e2e"}))
		message := s.Next(bobConn, "message")
		s.Require().Equal("hello from e2e", message["text"])
		s.Require().Equal(alice.ID, message["sender"])
		ack := s.Next(aliceConn, "ack")
		s.Require().Equal(message["id"], ack["id"])
	})

	s.Step("Step 3: Attachment is stored and served", func() {
		data := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("e2e attachment"))
		s.Require().NoError(bobConn.WriteJSON(map[string]any{
			"receiverId": alice.ID,
			"file":       map[string]string{"name": "note.txt", "data": data},
		}))
		message := s.Next(aliceConn, "message")
		filename, ok := message["file"].(string)
		s.Require().True(ok)

		request, err := http.NewRequest(http.MethodGet, "http://"+s.Config.ServerAddr+"/uploads/"+filename, nil)
		s.Require().NoError(err)
		request.AddCookie(alice.Token)
		resp, err := http.DefaultClient.Do(request)
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		s.Require().NoError(err)
		s.Require().Equal("e2e attachment", string(body))
	})

	s.Step("Step 4: History holds both messages", func() {
		request, err := http.NewRequest(http.MethodGet, "http://"+s.Config.ServerAddr+"/messages/"+bob.ID, nil)
		s.Require().NoError(err)
		request.AddCookie(alice.Token)
		resp, err := http.DefaultClient.Do(request)
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Require().Equal(http.StatusOK, resp.StatusCode)
	})

	s.Step("Step 5: Leaving is broadcast", func() {
		s.Require().NoError(bobConn.Close())
		presence := s.Next(aliceConn, "presence")
		for _, u := range presence["online"].([]any) {
			s.Require().NotEqual(bob.ID, u.(map[string]any)["userId"])
		}
	})
}

func TestDirectMessageSuite_Anonymous(t *testing.T) {
	suite.Run(t, &testAnonymousSuite{})
}

type testAnonymousSuite struct {
	BaseSuite
}

func (s *testAnonymousSuite) TestAnonymousConnectionOnlyObserves() {
	conn := s.Dial(nil)
	s.Next(conn, "presence")

	user := s.Register("carol")
	s.Dial(&user)
	presence := s.Next(conn, "presence")
	s.Require().NotEmpty(presence["online"])
}

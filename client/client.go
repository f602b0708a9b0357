package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Username      string `env:"CHAT_USERNAME,required=true"`
	Password      string `env:"CHAT_PASSWORD,required=true"`
	Register      bool   `env:"CHAT_REGISTER,default=false"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

type frame struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	File      *string   `json:"file"`
	CreatedAt time.Time `json:"createdAt"`
	Code      string    `json:"code"`
	Reason    string    `json:"reason"`
	Online    []struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	} `json:"online"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run logs in, opens the WebSocket and relays stdin lines of the form
// "<receiverId> <text>" until Ctrl+C or the server closes the connection.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := login(ctx, config)
	if err != nil {
		return exitRuntime, err
	}

	endpoint := url.URL{Scheme: "ws", Host: config.ServerAddress, Path: "/ws"}
	header := http.Header{"Cookie": {"token=" + token.Value}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", endpoint.String(), err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()
	color.Green.Printf(">>> Connected to %s as %s (type \"<userId> <text>\", Ctrl+C to quit)\n", config.ServerAddress, config.Username)

	go readStdin(ctx, conn)

	done := make(chan error, 1)
	go func() { done <- readFrames(conn) }()

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return exitOK, nil
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("connection error: %w", err)
	}
}

func login(ctx context.Context, config Config) (*http.Cookie, error) {
	path := "/login"
	if config.Register {
		path = "/register"
	}
	body, _ := json.Marshal(map[string]string{"username": config.Username, "password": config.Password})
	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+config.ServerAddress+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s failed: %s", path, resp.Status)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "token" {
			return cookie, nil
		}
	}
	return nil, fmt.Errorf("%s: no token returned", path)
}

func readStdin(ctx context.Context, conn *websocket.Conn) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		receiver, text, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok || receiver == "" || text == "" {
			color.Yellow.Println("usage: <userId> <text>")
			continue
		}
		if err := conn.WriteJSON(map[string]string{"type": "message", "receiverId": receiver, "text": text}); err != nil {
			color.Red.Println("send failed:", err)
			return
		}
	}
}

func readFrames(conn *websocket.Conn) error {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		switch f.Type {
		case "presence":
			names := make([]string, 0, len(f.Online))
			for _, u := range f.Online {
				names = append(names, fmt.Sprintf("%s (%s)", u.Username, u.UserID))
			}
			color.Cyan.Printf("online: %s\n", strings.Join(names, ", "))
		case "message":
			line := fmt.Sprintf("[%s] %s: %s", f.CreatedAt.Local().Format(time.TimeOnly), f.Sender, f.Text)
			if f.File != nil {
				line += " [file " + *f.File + "]"
			}
			color.White.Println(line)
		case "ack":
			color.Gray.Printf("sent %s to %s\n", f.ID[:8], f.Receiver)
		case "error":
			color.Red.Printf("not sent: %s (%s)\n", f.Reason, f.Code)
		}
	}
}

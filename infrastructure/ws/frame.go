// Package ws is the WebSocket transport. It turns frames into domain commands
// and domain frames back into JSON, everything else is delegated to runtime.
package ws

import (
	"direct-chat/domain"
	"direct-chat/errors"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// inboundFrame is the only frame a client may send. A missing type means
// "message" so that older clients keep working. Receivers are user IDs,
// which are always UUIDs.
type inboundFrame struct {
	Type       string       `json:"type" validate:"omitempty,oneof=message"`
	ReceiverID string       `json:"receiverId" validate:"omitempty,uuid"`
	Text       string       `json:"text"`
	File       *inboundFile `json:"file,omitempty"`
}

type inboundFile struct {
	Name string `json:"name" validate:"required,max=255"`
	Data string `json:"data" validate:"required,datauri"`
}

// DecodeCommand parses one inbound frame. Any parse or validation failure is
// reported as ErrMalformedFrame.
func DecodeCommand(raw []byte) (domain.RouteCommand, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return domain.RouteCommand{}, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	if err := validate.Struct(frame); err != nil {
		return domain.RouteCommand{}, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}

	cmd := domain.RouteCommand{ReceiverID: frame.ReceiverID, Text: frame.Text}
	if frame.File != nil {
		data, err := decodeDataURL(frame.File.Data)
		if err != nil {
			return domain.RouteCommand{}, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
		}
		cmd.File = &domain.FileUpload{Name: frame.File.Name, Data: data}
	}
	return cmd, nil
}

// decodeDataURL returns the payload of "data:<mime>;base64,<payload>".
func decodeDataURL(dataURL string) ([]byte, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return nil, fmt.Errorf("not a data url")
	}
	if !strings.HasSuffix(header, ";base64") {
		return []byte(payload), nil
	}
	return base64.StdEncoding.DecodeString(payload)
}

type onlineUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type presenceFrame struct {
	Type   domain.FrameKind `json:"type"`
	Online []onlineUser     `json:"online"`
}

type messageFrame struct {
	Type      domain.FrameKind `json:"type"`
	ID        string           `json:"id"`
	Text      string           `json:"text,omitempty"`
	Sender    string           `json:"sender"`
	Receiver  string           `json:"receiver"`
	File      *string          `json:"file"`
	CreatedAt time.Time        `json:"createdAt"`
}

type ackFrame struct {
	Type      domain.FrameKind `json:"type"`
	ID        string           `json:"id"`
	Receiver  string           `json:"receiver"`
	File      *string          `json:"file"`
	CreatedAt time.Time        `json:"createdAt"`
}

type errorFrame struct {
	Type   domain.FrameKind `json:"type"`
	Code   domain.ErrorCode `json:"code"`
	Reason string           `json:"reason"`
}

// EncodeFrame renders an outbound frame as tagged JSON.
func EncodeFrame(frame domain.Frame) ([]byte, error) {
	switch f := frame.(type) {
	case domain.PresenceFrame:
		return json.Marshal(presenceFrame{
			Type: domain.PresenceKind,
			Online: lo.Map(f.Online, func(i domain.Identity, _ int) onlineUser {
				return onlineUser{UserID: i.UserID, Username: i.Username}
			}),
		})
	case domain.MessageFrame:
		return json.Marshal(messageFrame{
			Type:      domain.MessageKind,
			ID:        f.Message.ID.String(),
			Text:      f.Message.Text,
			Sender:    f.Message.SenderID,
			Receiver:  f.Message.ReceiverID,
			File:      optional(f.Message.StoredFilename()),
			CreatedAt: f.Message.CreatedAt,
		})
	case domain.AckFrame:
		return json.Marshal(ackFrame{
			Type:      domain.AckKind,
			ID:        f.MessageID,
			Receiver:  f.ReceiverID,
			File:      optional(f.File),
			CreatedAt: f.CreatedAt,
		})
	case domain.ErrorFrame:
		return json.Marshal(errorFrame{Type: domain.ErrorKind, Code: f.Code, Reason: f.Reason})
	default:
		return nil, fmt.Errorf("unsupported frame %T", frame)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

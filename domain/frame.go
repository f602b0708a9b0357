package domain

import "time"

type FrameKind string

const (
	PresenceKind FrameKind = "presence"
	MessageKind  FrameKind = "message"
	AckKind      FrameKind = "ack"
	ErrorKind    FrameKind = "error"
)

// Frame is an outbound event pushed to a connection.
// The transport decides how each variant is encoded on the wire.
type Frame interface {
	Kind() FrameKind
}

type PresenceFrame struct {
	Online OnlineSet
}

func (PresenceFrame) Kind() FrameKind { return PresenceKind }

// MessageFrame is delivered to every live connection of the receiver.
type MessageFrame struct {
	Message Message
}

func (MessageFrame) Kind() FrameKind { return MessageKind }

// AckFrame confirms to the sending connection that its message was persisted.
type AckFrame struct {
	MessageID  string
	ReceiverID string
	File       string
	CreatedAt  time.Time
}

func (AckFrame) Kind() FrameKind { return AckKind }

type ErrorCode string

const (
	StoreFailureCode      ErrorCode = "store_failure"
	AttachmentFailureCode ErrorCode = "attachment_failure"
)

type ErrorFrame struct {
	Code   ErrorCode
	Reason string
}

func (ErrorFrame) Kind() FrameKind { return ErrorKind }

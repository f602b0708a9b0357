package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in protobuf wire format so that fields can be added
// without rewriting existing entries. Unknown fields are skipped on read.

const (
	msgFieldID protowire.Number = iota + 1
	msgFieldSender
	msgFieldReceiver
	msgFieldText
	msgFieldFileName
	msgFieldStoredFilename
	msgFieldLang
	msgFieldAt
)

const (
	userFieldID protowire.Number = iota + 1
	userFieldUsername
	userFieldPasswordHash
	userFieldCreatedAt
)

func marshalMessage(m DiskMessage) []byte {
	var b []byte
	b = appendString(b, msgFieldID, m.ID.String())
	b = appendString(b, msgFieldSender, m.SenderID)
	b = appendString(b, msgFieldReceiver, m.ReceiverID)
	b = appendString(b, msgFieldText, m.Text)
	b = appendString(b, msgFieldFileName, m.FileName)
	b = appendString(b, msgFieldStoredFilename, m.StoredFilename)
	b = appendString(b, msgFieldLang, m.Lang)
	b = protowire.AppendTag(b, msgFieldAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.At.UnixNano()))
	return b
}

func unmarshalMessage(b []byte) (DiskMessage, error) {
	var m DiskMessage
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) error {
		switch num {
		case msgFieldID:
			id, err := uuid.Parse(s)
			if err != nil {
				return err
			}
			m.ID = id
		case msgFieldSender:
			m.SenderID = s
		case msgFieldReceiver:
			m.ReceiverID = s
		case msgFieldText:
			m.Text = s
		case msgFieldFileName:
			m.FileName = s
		case msgFieldStoredFilename:
			m.StoredFilename = s
		case msgFieldLang:
			m.Lang = s
		case msgFieldAt:
			m.At = time.Unix(0, int64(v)).UTC()
		}
		return nil
	})
	return m, err
}

func marshalUser(u User) []byte {
	var b []byte
	b = appendString(b, userFieldID, u.ID)
	b = appendString(b, userFieldUsername, u.Username)
	b = appendString(b, userFieldPasswordHash, u.PasswordHash)
	b = protowire.AppendTag(b, userFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.CreatedAt.Unix()))
	return b
}

func unmarshalUser(b []byte) (User, error) {
	var u User
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) error {
		switch num {
		case userFieldID:
			u.ID = s
		case userFieldUsername:
			u.Username = s
		case userFieldPasswordHash:
			u.PasswordHash = s
		case userFieldCreatedAt:
			u.CreatedAt = time.Unix(int64(v), 0).UTC()
		}
		return nil
	})
	return u, err
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// consumeFields walks every field of b. Bytes fields are passed as s, varints as v.
func consumeFields(b []byte, visit func(num protowire.Number, s string, v uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
			}
			if err := visit(num, s, 0); err != nil {
				return err
			}
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("decode field %d: %w", num, protowire.ParseError(n))
			}
			if err := visit(num, "", v); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

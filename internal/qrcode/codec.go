package qrcode

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qrattend/internal/student"
)

// PayloadType is the marker every attendance QR carries. Decoding rejects
// anything else.
const PayloadType = "attendance_qr"

// Payload is the transient bundle embedded in a QR code. It is never
// persisted; the ledger entry a scan produces is the durable artifact.
type Payload struct {
	StudentID  string    `json:"studentId"`
	Name       string    `json:"name"`
	RollNo     string    `json:"rollNo"`
	Department string    `json:"department"`
	Year       int       `json:"year"`
	IssuedAt   time.Time `json:"timestamp"`
	Type       string    `json:"type"`
}

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind string

const (
	// MalformedPayload covers unparseable documents and missing fields.
	MalformedPayload DecodeErrorKind = "malformed_payload"
	// UnexpectedType means the document parsed but is not an attendance QR.
	UnexpectedType DecodeErrorKind = "unexpected_type"
)

// DecodeError reports why a transport string was rejected.
type DecodeError struct {
	Kind   DecodeErrorKind
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode qr payload: %s: %s", e.Kind, e.Reason)
}

// AsDecodeError unwraps err into a DecodeError, or nil.
func AsDecodeError(err error) *DecodeError {
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// Encode serializes a student's identity and issue timestamp into the QR
// transport string. No side effects.
func Encode(s student.Student, issuedAt time.Time) (string, error) {
	if s.ID == "" || s.Name == "" || s.RollNo == "" {
		return "", errors.New("encode qr payload: student identity incomplete")
	}
	raw, err := json.Marshal(Payload{
		StudentID:  s.ID,
		Name:       s.Name,
		RollNo:     s.RollNo,
		Department: s.Department,
		Year:       s.Year,
		IssuedAt:   issuedAt.UTC(),
		Type:       PayloadType,
	})
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return string(raw), nil
}

// Decode parses a transport string back into a Payload. It never returns a
// partially populated payload: malformed documents and missing required
// fields fail with MalformedPayload, a wrong type marker with UnexpectedType.
func Decode(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, &DecodeError{Kind: MalformedPayload, Reason: err.Error()}
	}
	if p.Type != PayloadType {
		return Payload{}, &DecodeError{Kind: UnexpectedType, Reason: fmt.Sprintf("type %q", p.Type)}
	}
	switch {
	case p.StudentID == "":
		return Payload{}, &DecodeError{Kind: MalformedPayload, Reason: "missing studentId"}
	case p.Name == "":
		return Payload{}, &DecodeError{Kind: MalformedPayload, Reason: "missing name"}
	case p.RollNo == "":
		return Payload{}, &DecodeError{Kind: MalformedPayload, Reason: "missing rollNo"}
	case p.IssuedAt.IsZero():
		return Payload{}, &DecodeError{Kind: MalformedPayload, Reason: "missing timestamp"}
	}
	return p, nil
}

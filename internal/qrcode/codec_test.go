package qrcode

import (
	"testing"
	"time"

	"qrattend/internal/student"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	issued := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	s := student.Student{
		ID:         "42",
		Name:       "A",
		RollNo:     "R1",
		Department: "CS",
		Year:       2,
	}

	raw, err := Encode(s, issued)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.StudentID != s.ID || p.Name != s.Name || p.RollNo != s.RollNo ||
		p.Department != s.Department || p.Year != s.Year {
		t.Errorf("identity fields not recovered: %+v", p)
	}
	if !p.IssuedAt.Equal(issued) {
		t.Errorf("issuedAt = %v, want %v", p.IssuedAt, issued)
	}
	if p.Type != PayloadType {
		t.Errorf("type = %q, want %q", p.Type, PayloadType)
	}
}

func TestEncodeRejectsIncompleteIdentity(t *testing.T) {
	_, err := Encode(student.Student{ID: "1", Name: "x"}, time.Now())
	if err == nil {
		t.Fatal("expected error for missing roll number")
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind DecodeErrorKind
	}{
		{"not json", "definitely not json", MalformedPayload},
		{"empty object", "{}", UnexpectedType},
		{"wrong type marker", `{"studentId":"1","name":"A","rollNo":"R1","timestamp":"2025-03-14T09:30:00Z","type":"library_pass"}`, UnexpectedType},
		{"missing studentId", `{"name":"A","rollNo":"R1","timestamp":"2025-03-14T09:30:00Z","type":"attendance_qr"}`, MalformedPayload},
		{"missing name", `{"studentId":"1","rollNo":"R1","timestamp":"2025-03-14T09:30:00Z","type":"attendance_qr"}`, MalformedPayload},
		{"missing rollNo", `{"studentId":"1","name":"A","timestamp":"2025-03-14T09:30:00Z","type":"attendance_qr"}`, MalformedPayload},
		{"missing timestamp", `{"studentId":"1","name":"A","rollNo":"R1","type":"attendance_qr"}`, MalformedPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Decode(tc.raw)
			de := AsDecodeError(err)
			if de == nil {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if de.Kind != tc.kind {
				t.Errorf("kind = %s, want %s", de.Kind, tc.kind)
			}
			if p != (Payload{}) {
				t.Errorf("expected zero payload on error, got %+v", p)
			}
		})
	}
}

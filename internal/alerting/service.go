package alerting

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"qrattend/internal/attendance"
	"qrattend/internal/student"
)

// DefaultThreshold is the attendance percentage under which a student is
// alerted.
const DefaultThreshold = 75

// Roster lists the students the sweep walks.
type Roster interface {
	ListAll(ctx context.Context) ([]student.Student, error)
	GetByID(ctx context.Context, id string) (*student.Student, error)
}

// Ledger provides per-student stats.
type Ledger interface {
	Stats(ctx context.Context, studentID string) (attendance.Stats, error)
}

// Sender delivers one message to one phone number.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

// SendErrorKind classifies per-student delivery failures.
type SendErrorKind string

const (
	MissingContact SendErrorKind = "missing_contact"
	SendFailed     SendErrorKind = "send_failed"
)

// Outcome records one qualifying student of an alert sweep: the computed
// stats and how the external send went. A failed send never aborts the rest
// of the sweep.
type Outcome struct {
	Student student.Student  `json:"student"`
	Stats   attendance.Stats `json:"stats"`
	Sent    bool             `json:"sent"`
	Error   SendErrorKind    `json:"error,omitempty"`
	Detail  string           `json:"detail,omitempty"`
}

// Service runs low-attendance alert sweeps.
type Service struct {
	roster Roster
	ledger Ledger
	sender Sender
}

// NewService wires the sweep dependencies.
func NewService(roster Roster, ledger Ledger, sender Sender) *Service {
	return &Service{roster: roster, ledger: ledger, sender: sender}
}

func message(stats attendance.Stats) string {
	return fmt.Sprintf(
		"Alert: Your attendance is %d%% (%d/%d). Please improve your attendance to avoid academic issues.",
		stats.Percentage, stats.Present, stats.Total,
	)
}

// CheckAndSendAlerts walks every student with at least one record and sends
// exactly one message per student under the threshold, sequentially. The
// returned outcomes cover qualifying students only, delivery failures
// included, so callers can report partial success.
func (s *Service) CheckAndSendAlerts(ctx context.Context, threshold int) ([]Outcome, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	students, err := s.roster.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert sweep: list students: %w", err)
	}

	outcomes := make([]Outcome, 0)
	for _, st := range students {
		stats, err := s.ledger.Stats(ctx, st.ID)
		if err != nil {
			logrus.Errorf("alert sweep: stats for %s: %v", st.ID, err)
			continue
		}
		if stats.Total == 0 || stats.Percentage >= threshold {
			continue
		}
		outcomes = append(outcomes, s.alert(ctx, st, stats))
	}
	return outcomes, nil
}

// EvaluateStudent applies the same rule to a single student, for the
// background path after a recorded scan. Returns nil when the student does
// not qualify.
func (s *Service) EvaluateStudent(ctx context.Context, studentID string, threshold int) (*Outcome, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	st, err := s.roster.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", studentID, err)
	}
	if st == nil {
		return nil, nil
	}
	stats, err := s.ledger.Stats(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: stats: %w", studentID, err)
	}
	if stats.Total == 0 || stats.Percentage >= threshold {
		return nil, nil
	}
	out := s.alert(ctx, *st, stats)
	return &out, nil
}

func (s *Service) alert(ctx context.Context, st student.Student, stats attendance.Stats) Outcome {
	out := Outcome{Student: st, Stats: stats}
	if st.Phone == "" {
		out.Error = MissingContact
		out.Detail = "no phone number on file"
		return out
	}
	if err := s.sender.Send(ctx, st.Phone, message(stats)); err != nil {
		out.Error = SendFailed
		out.Detail = err.Error()
		return out
	}
	out.Sent = true
	return out
}

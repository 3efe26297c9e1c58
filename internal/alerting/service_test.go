package alerting

import (
	"context"
	"errors"
	"testing"

	"qrattend/internal/attendance"
	"qrattend/internal/student"
)

type fakeRoster struct {
	students []student.Student
}

func (r *fakeRoster) ListAll(context.Context) ([]student.Student, error) {
	return r.students, nil
}

func (r *fakeRoster) GetByID(_ context.Context, id string) (*student.Student, error) {
	for _, s := range r.students {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, nil
}

type fakeLedger struct {
	stats map[string]attendance.Stats
}

func (l *fakeLedger) Stats(_ context.Context, id string) (attendance.Stats, error) {
	return l.stats[id], nil
}

type fakeSender struct {
	sent   []string // destination phones, in order
	failTo map[string]bool
}

func (s *fakeSender) Send(_ context.Context, to, _ string) error {
	if s.failTo[to] {
		return errors.New("gateway timeout")
	}
	s.sent = append(s.sent, to)
	return nil
}

func stats(present, total int) attendance.Stats {
	return attendance.Stats{
		Total:      total,
		Present:    present,
		Absent:     total - present,
		Percentage: attendance.Percentage(present, total),
	}
}

func fixture() (*fakeRoster, *fakeLedger) {
	roster := &fakeRoster{students: []student.Student{
		{ID: "1", Name: "A", Phone: "+100"},
		{ID: "2", Name: "B", Phone: "+200"},
		{ID: "3", Name: "C", Phone: "+300"},
	}}
	ledger := &fakeLedger{stats: map[string]attendance.Stats{
		"1": stats(6, 10), // 60
		"2": stats(8, 10), // 80
		"3": stats(4, 10), // 40
	}}
	return roster, ledger
}

func TestCheckAndSendAlertsThreshold(t *testing.T) {
	roster, ledger := fixture()
	sender := &fakeSender{}
	svc := NewService(roster, ledger, sender)

	outcomes, err := svc.CheckAndSendAlerts(context.Background(), 75)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// Only the 60% and 40% students qualify; the 80% student yields no
	// outcome at all.
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Student.ID != "1" || outcomes[1].Student.ID != "3" {
		t.Errorf("outcomes for wrong students: %s, %s", outcomes[0].Student.ID, outcomes[1].Student.ID)
	}
	for _, o := range outcomes {
		if !o.Sent {
			t.Errorf("outcome for %s not sent: %s", o.Student.ID, o.Detail)
		}
	}
	if len(sender.sent) != 2 {
		t.Errorf("sender called %d times, want 2", len(sender.sent))
	}
}

func TestAlertSkipsStudentsWithNoRecords(t *testing.T) {
	roster := &fakeRoster{students: []student.Student{{ID: "1", Name: "A", Phone: "+100"}}}
	ledger := &fakeLedger{stats: map[string]attendance.Stats{"1": stats(0, 0)}}
	svc := NewService(roster, ledger, &fakeSender{})

	outcomes, err := svc.CheckAndSendAlerts(context.Background(), 75)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("got %d outcomes for recordless roster, want 0", len(outcomes))
	}
}

func TestAlertMissingContactStillCounted(t *testing.T) {
	roster := &fakeRoster{students: []student.Student{{ID: "1", Name: "A"}}} // no phone
	ledger := &fakeLedger{stats: map[string]attendance.Stats{"1": stats(1, 10)}}
	sender := &fakeSender{}
	svc := NewService(roster, ledger, sender)

	outcomes, err := svc.CheckAndSendAlerts(context.Background(), 75)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Sent || outcomes[0].Error != MissingContact {
		t.Errorf("expected MissingContact outcome, got %+v", outcomes[0])
	}
	if len(sender.sent) != 0 {
		t.Errorf("sender called for student without phone")
	}
}

func TestAlertSendFailureDoesNotAbortSweep(t *testing.T) {
	roster, ledger := fixture()
	sender := &fakeSender{failTo: map[string]bool{"+100": true}}
	svc := NewService(roster, ledger, sender)

	outcomes, err := svc.CheckAndSendAlerts(context.Background(), 75)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Error != SendFailed || outcomes[0].Sent {
		t.Errorf("expected SendFailed for first student, got %+v", outcomes[0])
	}
	if !outcomes[1].Sent {
		t.Errorf("send failure aborted remaining students: %+v", outcomes[1])
	}
}

func TestEvaluateStudent(t *testing.T) {
	roster, ledger := fixture()
	sender := &fakeSender{}
	svc := NewService(roster, ledger, sender)

	out, err := svc.EvaluateStudent(context.Background(), "3", 75)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out == nil || !out.Sent || out.Stats.Percentage != 40 {
		t.Errorf("unexpected outcome: %+v", out)
	}

	out, err = svc.EvaluateStudent(context.Background(), "2", 75)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out != nil {
		t.Errorf("80%% student qualified: %+v", out)
	}

	out, err = svc.EvaluateStudent(context.Background(), "missing", 75)
	if err != nil || out != nil {
		t.Errorf("unknown student: out=%+v err=%v", out, err)
	}
}

func TestMessageTemplate(t *testing.T) {
	got := message(stats(6, 10))
	want := "Alert: Your attendance is 60% (6/10). Please improve your attendance to avoid academic issues."
	if got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

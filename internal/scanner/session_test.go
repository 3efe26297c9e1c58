package scanner

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"qrattend/internal/attendance"
	"qrattend/internal/qrcode"
	"qrattend/internal/student"
)

type fakeDirectory struct {
	students map[string]student.Student
	err      error
}

func (d *fakeDirectory) GetByID(_ context.Context, id string) (*student.Student, error) {
	if d.err != nil {
		return nil, d.err
	}
	if s, ok := d.students[id]; ok {
		return &s, nil
	}
	return nil, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	records []attendance.Record
	err     error
}

func (l *fakeLedger) ExistsForDate(_ context.Context, studentID, date string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.StudentID == studentID && r.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) Mark(_ context.Context, studentID, lecture, status string) (attendance.Record, error) {
	if l.err != nil {
		return attendance.Record{}, l.err
	}
	now := time.Now()
	rec := attendance.Record{
		ID:        "rec-" + studentID,
		StudentID: studentID,
		Lecture:   lecture,
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04:05"),
		Status:    status,
	}
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
	return rec, nil
}

func (l *fakeLedger) forToday(studentID string) []attendance.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	today := time.Now().Format("2006-01-02")
	var out []attendance.Record
	for _, r := range l.records {
		if r.StudentID == studentID && r.Date == today {
			out = append(out, r)
		}
	}
	return out
}

// frameSource delivers a fixed sequence of frames, then blocks until the
// context is cancelled.
type frameSource struct {
	mu       sync.Mutex
	frames   []image.Image
	acquired bool
	released int
	acqErr   error
}

func (f *frameSource) Acquire(context.Context) error {
	if f.acqErr != nil {
		return f.acqErr
	}
	f.mu.Lock()
	f.acquired = true
	f.mu.Unlock()
	return nil
}

func (f *frameSource) Frame(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	if len(f.frames) > 0 {
		frame := f.frames[0]
		f.frames = f.frames[1:]
		f.mu.Unlock()
		return frame, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *frameSource) Release() {
	f.mu.Lock()
	f.released++
	f.mu.Unlock()
}

func (f *frameSource) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func testStudent() student.Student {
	return student.Student{ID: "42", Name: "A", RollNo: "R1", Department: "CS", Year: 2}
}

func encodeFor(t *testing.T, s student.Student) string {
	t.Helper()
	raw, err := qrcode.Encode(s, time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func qrFrame(t *testing.T, raw string) image.Image {
	t.Helper()
	data, err := qrcode.RenderPNG(raw, 256)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	return img
}

func blankFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 32, 32))
}

func newTestSession(dir *fakeDirectory, ledger *fakeLedger) *Session {
	return NewSession(dir, ledger, "General Lecture")
}

func TestSubmitCodeMarksPresent(t *testing.T) {
	dir := &fakeDirectory{students: map[string]student.Student{"42": testStudent()}}
	ledger := &fakeLedger{}
	s := newTestSession(dir, ledger)

	res, err := s.SubmitCode(context.Background(), encodeFor(t, testStudent()))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Student.Name != "A" {
		t.Errorf("resolved name = %q, want A", res.Student.Name)
	}
	if res.Record.Status != attendance.StatusPresent {
		t.Errorf("record status = %q, want present", res.Record.Status)
	}
	if got := ledger.forToday("42"); len(got) != 1 {
		t.Errorf("ledger has %d records for today, want 1", len(got))
	}

	_, stats := s.Snapshot()
	if stats.Success != 1 || stats.Total != 1 {
		t.Errorf("session stats wrong: %+v", stats)
	}
}

func TestSubmitCodeDuplicateForToday(t *testing.T) {
	dir := &fakeDirectory{students: map[string]student.Student{"42": testStudent()}}
	ledger := &fakeLedger{}
	s := newTestSession(dir, ledger)
	raw := encodeFor(t, testStudent())

	if _, err := s.SubmitCode(context.Background(), raw); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := s.SubmitCode(context.Background(), raw)
	re := AsResolutionError(err)
	if re == nil || re.Kind != DuplicateForToday {
		t.Fatalf("expected DuplicateForToday, got %v", err)
	}
	if got := ledger.forToday("42"); len(got) != 1 {
		t.Errorf("ledger has %d records for today, want exactly 1", len(got))
	}

	_, stats := s.Snapshot()
	if stats.Duplicates != 1 {
		t.Errorf("duplicate counter = %d, want 1", stats.Duplicates)
	}
}

func TestSubmitCodeStudentNotFound(t *testing.T) {
	dir := &fakeDirectory{students: map[string]student.Student{}}
	s := newTestSession(dir, &fakeLedger{})

	_, err := s.SubmitCode(context.Background(), encodeFor(t, testStudent()))
	re := AsResolutionError(err)
	if re == nil || re.Kind != StudentNotFound {
		t.Fatalf("expected StudentNotFound, got %v", err)
	}
}

func TestSubmitCodeRejectsBadPayload(t *testing.T) {
	s := newTestSession(&fakeDirectory{}, &fakeLedger{})

	_, err := s.SubmitCode(context.Background(), "not a payload")
	if qrcode.AsDecodeError(err) == nil {
		t.Fatalf("expected DecodeError, got %v", err)
	}

	_, stats := s.Snapshot()
	if stats.Errors != 1 {
		t.Errorf("error counter = %d, want 1", stats.Errors)
	}
}

func TestCaptureLoopResolvesFirstDecodedFrame(t *testing.T) {
	dir := &fakeDirectory{students: map[string]student.Student{"42": testStudent()}}
	ledger := &fakeLedger{}
	s := newTestSession(dir, ledger)

	var succeeded sync.WaitGroup
	succeeded.Add(1)
	s.OnSuccess = func(Result) { succeeded.Done() }

	src := &frameSource{frames: []image.Image{
		blankFrame(), // dropped silently
		qrFrame(t, encodeFor(t, testStudent())),
	}}

	if err := s.Start(context.Background(), src); err != nil {
		t.Fatalf("start: %v", err)
	}
	succeeded.Wait()
	s.Stop()

	if st := s.State(); st != StateIdle {
		t.Errorf("state after stop = %s, want idle", st)
	}
	if got := ledger.forToday("42"); len(got) != 1 {
		t.Errorf("ledger has %d records, want 1", len(got))
	}
	if src.releaseCount() == 0 {
		t.Error("camera never released")
	}
	last := s.LastResult()
	if last == nil || last.Student.Name != "A" {
		t.Errorf("last result = %+v", last)
	}
}

func TestStartAcquireFailureStaysIdle(t *testing.T) {
	s := newTestSession(&fakeDirectory{}, &fakeLedger{})
	src := &frameSource{acqErr: &CaptureError{Kind: PermissionDenied, Reason: "denied"}}

	err := s.Start(context.Background(), src)
	ce := AsCaptureError(err)
	if ce == nil || ce.Kind != PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if st := s.State(); st != StateIdle {
		t.Errorf("state = %s, want idle", st)
	}
}

func TestStartAcquireGenericErrorMapsToDeviceUnavailable(t *testing.T) {
	s := newTestSession(&fakeDirectory{}, &fakeLedger{})
	src := &frameSource{acqErr: errors.New("device busy")}

	err := s.Start(context.Background(), src)
	ce := AsCaptureError(err)
	if ce == nil || ce.Kind != DeviceUnavailable {
		t.Fatalf("expected DeviceUnavailable, got %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := newTestSession(&fakeDirectory{}, &fakeLedger{})
	src := &frameSource{} // no frames: loop blocks until cancelled

	if err := s.Start(context.Background(), src); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := s.State(); st != StateCapturing {
		t.Fatalf("state = %s, want capturing", st)
	}

	s.Stop() // while capturing
	s.Stop() // already idle

	if st := s.State(); st != StateIdle {
		t.Errorf("state = %s, want idle", st)
	}
	if src.releaseCount() != 1 {
		t.Errorf("release count = %d, want 1", src.releaseCount())
	}

	// Caller may immediately start again.
	if err := s.Start(context.Background(), src); err != nil {
		t.Fatalf("restart: %v", err)
	}
	s.Stop()
}

func TestLedgerFailureSurfacesAsError(t *testing.T) {
	dir := &fakeDirectory{students: map[string]student.Student{"42": testStudent()}}
	ledger := &fakeLedger{err: errors.New("connection refused")}
	s := newTestSession(dir, ledger)

	_, err := s.SubmitCode(context.Background(), encodeFor(t, testStudent()))
	if err == nil {
		t.Fatal("expected backend error")
	}
	if AsResolutionError(err) != nil || qrcode.AsDecodeError(err) != nil {
		t.Errorf("backend failure misclassified: %v", err)
	}
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"qrattend/internal/attendance"
	"qrattend/internal/qrcode"
	"qrattend/internal/student"
)

// Directory is the roster lookup the pipeline resolves identities against.
type Directory interface {
	GetByID(ctx context.Context, id string) (*student.Student, error)
}

// Ledger is the slice of the attendance ledger the pipeline touches: the
// same-day duplicate probe and the append on the success path.
type Ledger interface {
	ExistsForDate(ctx context.Context, studentID, date string) (bool, error)
	Mark(ctx context.Context, studentID, lecture, status string) (attendance.Record, error)
}

// FrameSource is an exclusively-owned camera handle. Acquire fails with a
// CaptureError when the device is busy or access is denied; Frame blocks
// until the next frame is available; Release must be safe to call twice.
type FrameSource interface {
	Acquire(ctx context.Context) error
	Frame(ctx context.Context) (image.Image, error)
	Release()
}

// State of a scan session.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateResolved  State = "resolved"
	StateFailed    State = "failed"
)

// Result is a successful scan: the resolved student and the ledger entry the
// scan produced.
type Result struct {
	Student   student.Student   `json:"student"`
	Record    attendance.Record `json:"record"`
	Timestamp time.Time         `json:"timestamp"`
}

// Outcome is one entry in the session's rolling scan log, kept in memory for
// on-screen statistics only.
type Outcome struct {
	StudentID string    `json:"student_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	RollNo    string    `json:"roll_no,omitempty"`
	Status    string    `json:"status"` // success | duplicate | error
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Stats aggregates the session's outcome log.
type Stats struct {
	Total      int `json:"total"`
	Success    int `json:"success"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// ErrAlreadyCapturing is returned by Start while a capture loop is running.
var ErrAlreadyCapturing = errors.New("scan session already capturing")

const outcomeLogCap = 50

// Session drives the capture pipeline: acquire a frame source, sample frames
// until one decodes, resolve the identity against the directory, guard
// against same-day duplicates, and append the ledger entry. The only durable
// side effect is that append; everything else the session holds dies with it.
type Session struct {
	dir     Directory
	ledger  Ledger
	lecture string

	// OnSuccess, when set, observes every successfully recorded scan
	// (camera or manual). Used to feed the live dashboard and the alert
	// queue; failures there must not affect the scan result.
	OnSuccess func(Result)

	mu     sync.Mutex
	state  State
	source FrameSource
	cancel context.CancelFunc
	done   chan struct{}
	last   *Result
	log    []Outcome
	stats  Stats
}

// NewSession creates an idle session. lecture is stamped on records the
// session appends; empty falls back to the ledger default.
func NewSession(dir Directory, ledger Ledger, lecture string) *Session {
	return &Session{dir: dir, ledger: ledger, lecture: lecture, state: StateIdle}
}

// State returns the current pipeline state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the rolling outcome log (newest first) and its counters.
func (s *Session) Snapshot() ([]Outcome, Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := make([]Outcome, len(s.log))
	copy(log, s.log)
	return log, s.stats
}

// LastResult returns the most recent successful scan, if any.
func (s *Session) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	res := *s.last
	return &res
}

// Start acquires the frame source and begins sampling. On acquisition
// failure the session stays Idle and the CaptureError is returned.
func (s *Session) Start(ctx context.Context, src FrameSource) error {
	s.mu.Lock()
	if s.state == StateCapturing {
		s.mu.Unlock()
		return ErrAlreadyCapturing
	}
	s.mu.Unlock()

	if err := src.Acquire(ctx); err != nil {
		if ce := AsCaptureError(err); ce != nil {
			return ce
		}
		return &CaptureError{Kind: DeviceUnavailable, Reason: err.Error()}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.source = src
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateCapturing
	done := s.done
	s.mu.Unlock()

	go s.captureLoop(runCtx, src, done)
	return nil
}

// Stop cancels sampling, waits for the loop to release the camera, and
// returns the session to Idle. Safe from any state and idempotent; once it
// returns no further frame is sampled, so callers may immediately Start again.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.done = nil
	s.state = StateIdle
	s.mu.Unlock()
}

// captureLoop samples frames cooperatively: one decode attempt per delivered
// frame, the next attempt only after the previous one finishes. Frames with
// no readable code are dropped silently.
func (s *Session) captureLoop(ctx context.Context, src FrameSource, done chan struct{}) {
	defer close(done)
	defer src.Release()

	for {
		frame, err := src.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.finish(StateFailed)
			s.record(Outcome{Status: "error", Detail: fmt.Sprintf("frame source: %v", err), At: time.Now()})
			return
		}

		framesSampled.Inc()
		payload, err := qrcode.DecodeImage(frame)
		if errors.Is(err, qrcode.ErrNoCode) {
			continue
		}
		if err != nil {
			// A code was located but its payload is not ours.
			s.finish(StateFailed)
			s.record(Outcome{Status: "error", Detail: err.Error(), At: time.Now()})
			return
		}

		// First successful decode: stop sampling before touching the
		// backend so the camera is held no longer than needed.
		src.Release()

		res, rerr := s.resolve(ctx, payload)
		s.recordResolution(payload, res, rerr)
		if rerr != nil {
			s.finish(StateFailed)
		} else {
			s.finish(StateResolved)
		}
		return
	}
}

func (s *Session) finish(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// SubmitCode is the manual entry path: an operator-typed transport string
// runs through the same decode, lookup, duplicate-check, append sequence as
// a camera frame. Valid in any session state.
func (s *Session) SubmitCode(ctx context.Context, raw string) (Result, error) {
	payload, err := qrcode.Decode(raw)
	if err != nil {
		s.record(Outcome{Status: "error", Detail: err.Error(), At: time.Now()})
		return Result{}, err
	}
	res, err := s.resolve(ctx, payload)
	s.recordResolution(payload, res, err)
	return res, err
}

// resolve turns a decoded payload into a ledger entry.
func (s *Session) resolve(ctx context.Context, p qrcode.Payload) (Result, error) {
	st, err := s.dir.GetByID(ctx, p.StudentID)
	if err != nil {
		return Result{}, fmt.Errorf("directory lookup: %w", err)
	}
	if st == nil {
		return Result{}, &ResolutionError{Kind: StudentNotFound, StudentID: p.StudentID}
	}

	today := time.Now().Format("2006-01-02")
	exists, err := s.ledger.ExistsForDate(ctx, st.ID, today)
	if err != nil {
		return Result{}, fmt.Errorf("duplicate probe: %w", err)
	}
	if exists {
		return Result{}, &ResolutionError{Kind: DuplicateForToday, StudentID: st.ID, Name: st.Name}
	}

	rec, err := s.ledger.Mark(ctx, st.ID, s.lecture, attendance.StatusPresent)
	if err != nil {
		return Result{}, fmt.Errorf("ledger append: %w", err)
	}

	res := Result{Student: *st, Record: rec, Timestamp: time.Now()}
	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	if s.OnSuccess != nil {
		s.OnSuccess(res)
	}
	return res, nil
}

func (s *Session) recordResolution(p qrcode.Payload, res Result, err error) {
	o := Outcome{StudentID: p.StudentID, Name: p.Name, RollNo: p.RollNo, At: time.Now()}
	switch {
	case err == nil:
		o.Status = "success"
		o.Name = res.Student.Name
		o.RollNo = res.Student.RollNo
	case AsResolutionError(err) != nil && AsResolutionError(err).Kind == DuplicateForToday:
		o.Status = "duplicate"
		o.Detail = err.Error()
	default:
		o.Status = "error"
		o.Detail = err.Error()
	}
	s.record(o)
	if err != nil {
		logrus.Infof("scan for %s resolved as %s", p.StudentID, o.Status)
	}
}

func (s *Session) record(o Outcome) {
	scanOutcomes.WithLabelValues(o.Status).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append([]Outcome{o}, s.log...)
	if len(s.log) > outcomeLogCap {
		s.log = s.log[:outcomeLogCap]
	}
	s.stats.Total++
	switch o.Status {
	case "success":
		s.stats.Success++
	case "duplicate":
		s.stats.Duplicates++
	default:
		s.stats.Errors++
	}
}

// Notice is the queue message published after a recorded scan; the worker
// re-evaluates just that student's attendance.
type Notice struct {
	StudentID string `json:"student_id"`
	RecordID  string `json:"record_id"`
	Date      string `json:"date"`
}

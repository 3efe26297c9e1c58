package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"qrattend/internal/alerting"
	"qrattend/internal/attendance"
	"qrattend/internal/config"
	"qrattend/internal/queue"
	"qrattend/internal/scanner"
	"qrattend/internal/smsclient"
	"qrattend/internal/store"
	"qrattend/internal/student"
)

// Worker consumes recorded-scan notices and re-evaluates that student's
// attendance, auto-sending a low-attendance SMS at most once per student per
// day. The manual sweep in the API covers the rest of the roster.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:scans")
	}

	students := student.NewService(student.NewRepository(db.Client))
	ledger := attendance.NewService(attendance.NewRepository(db.Client), cfg.DefaultLecture)
	sms := smsclient.New(cfg.SMSFunctionURL, cfg.SMSFunctionKey, cfg.SMSSkip)
	alerts := alerting.NewService(roster{students}, ledger, sms)

	if !cfg.SMSSkip {
		if err := sms.Health(ctx); err != nil {
			logrus.Warnf("sms function not reachable: %v", err)
		} else {
			logrus.Info("sms function connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		logrus.Fatalf("queue consume init failed: %v", err)
	}

	logrus.Info("worker started, waiting for scan notices...")
	for msg := range messages {
		if msg.Kind != "scan" {
			continue
		}

		var notice scanner.Notice
		if err := json.Unmarshal(msg.Body, &notice); err != nil {
			logrus.Errorf("bad scan notice: %v", err)
			continue
		}

		// One auto-alert per student per day; the key outlives the day
		// so clock skew around midnight cannot double-send.
		guard := "qrattend:alerted:" + notice.StudentID + ":" + notice.Date
		ok, err := redisClient.Client.SetNX(ctx, guard, 1, 48*time.Hour).Result()
		if err != nil {
			logrus.Errorf("alert guard for %s: %v", notice.StudentID, err)
			continue
		}
		if !ok {
			continue
		}

		outcome, err := alerts.EvaluateStudent(ctx, notice.StudentID, cfg.AlertThreshold)
		if err != nil {
			logrus.Errorf("evaluate %s failed: %v", notice.StudentID, err)
			continue
		}
		if outcome == nil {
			continue
		}
		if outcome.Sent {
			logrus.Infof("auto-alert sent to %s (%d%%)", outcome.Student.ID, outcome.Stats.Percentage)
		} else {
			logrus.Warnf("auto-alert for %s not sent: %s %s", outcome.Student.ID, outcome.Error, outcome.Detail)
		}
	}

	logrus.Info("worker stopped")
}

// roster adapts the student service to the alerting interfaces.
type roster struct {
	students *student.Service
}

func (r roster) ListAll(ctx context.Context) ([]student.Student, error) {
	return r.students.ListAll(ctx)
}

func (r roster) GetByID(ctx context.Context, id string) (*student.Student, error) {
	st, err := r.students.Get(ctx, id)
	if err == student.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

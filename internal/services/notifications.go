package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/metrics"
	"github.com/harentsoaR/consultation-api/internal/models"
	"github.com/harentsoaR/consultation-api/internal/queue"
)

// NewRequestMeta is the student context included in a new-request notice.
type NewRequestMeta struct {
	StudentEmail      string `json:"studentEmail"`
	StudentDepartment string `json:"studentDepartment"`
	StudentBatchNo    string `json:"studentBatchNo"`
	StudentMessage    string `json:"studentMessage"`
}

// StatusMeta is the schedule context included in a status-change notice.
type StatusMeta struct {
	FinalDateTime      *time.Time `json:"finalDateTime,omitempty"`
	RoomNumber         string     `json:"roomNumber,omitempty"`
	ProposedDateTime   *time.Time `json:"proposedDateTime,omitempty"`
	ProposedRoomNumber string     `json:"proposedRoomNumber,omitempty"`
}

// Notifier delivers booking notices. Callers log a returned error and carry on;
// the booking change it describes is already committed.
type Notifier interface {
	NotifyNewRequest(ctx context.Context, facultyEmail, studentName, topic string, meta NewRequestMeta) error
	NotifyStatusChange(ctx context.Context, studentEmail string, status models.BookingStatus, facultyName string, meta StatusMeta) error
}

// NoopNotifier is used when mail credentials are not configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyNewRequest(context.Context, string, string, string, NewRequestMeta) error {
	return nil
}

func (NoopNotifier) NotifyStatusChange(context.Context, string, models.BookingStatus, string, StatusMeta) error {
	return nil
}

// AsyncNotifier hands each notice to a goroutine so the request returns before
// delivery. Delivery failures are only logged.
type AsyncNotifier struct {
	next    Notifier
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewAsyncNotifier(next Notifier, timeout time.Duration, logger *zap.Logger) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AsyncNotifier{next: next, timeout: timeout, logger: logger}
}

func (a *AsyncNotifier) NotifyNewRequest(ctx context.Context, facultyEmail, studentName, topic string, meta NewRequestMeta) error {
	a.dispatch(ctx, JobNewRequest, facultyEmail, func(ctx context.Context) error {
		return a.next.NotifyNewRequest(ctx, facultyEmail, studentName, topic, meta)
	})
	return nil
}

func (a *AsyncNotifier) NotifyStatusChange(ctx context.Context, studentEmail string, status models.BookingStatus, facultyName string, meta StatusMeta) error {
	a.dispatch(ctx, JobStatusChange, studentEmail, func(ctx context.Context) error {
		return a.next.NotifyStatusChange(ctx, studentEmail, status, facultyName, meta)
	})
	return nil
}

func (a *AsyncNotifier) dispatch(parent context.Context, kind, to string, send func(context.Context) error) {
	// detached from the request so returning the response does not abort delivery
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.timeout)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		if err := send(ctx); err != nil {
			metrics.Notifications.WithLabelValues(kind, "delivery_failed").Inc()
			a.logger.Warn("Notification delivery failed",
				zap.String("kind", kind),
				zap.String("to", to),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight deliveries finish, for graceful shutdown.
func (a *AsyncNotifier) Wait() {
	a.wg.Wait()
}

// Job kinds carried on the notification queue.
const (
	JobNewRequest   = "new_request"
	JobStatusChange = "status_change"
)

// Job is the queued form of one notice.
type Job struct {
	To          string               `json:"to"`
	StudentName string               `json:"studentName,omitempty"`
	Topic       string               `json:"topic,omitempty"`
	FacultyName string               `json:"facultyName,omitempty"`
	Status      models.BookingStatus `json:"status,omitempty"`
	NewRequest  *NewRequestMeta      `json:"newRequest,omitempty"`
	Schedule    *StatusMeta          `json:"schedule,omitempty"`
}

// QueueNotifier publishes notices for cmd/mailer to deliver.
type QueueNotifier struct {
	q queue.Queue
}

func NewQueueNotifier(q queue.Queue) *QueueNotifier {
	return &QueueNotifier{q: q}
}

func (n *QueueNotifier) NotifyNewRequest(ctx context.Context, facultyEmail, studentName, topic string, meta NewRequestMeta) error {
	return n.publish(ctx, JobNewRequest, Job{To: facultyEmail, StudentName: studentName, Topic: topic, NewRequest: &meta})
}

func (n *QueueNotifier) NotifyStatusChange(ctx context.Context, studentEmail string, status models.BookingStatus, facultyName string, meta StatusMeta) error {
	return n.publish(ctx, JobStatusChange, Job{To: studentEmail, Status: status, FacultyName: facultyName, Schedule: &meta})
}

func (n *QueueNotifier) publish(ctx context.Context, kind string, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode %s job: %w", kind, err)
	}
	if err := n.q.Publish(ctx, queue.Message{Type: kind, Body: body}); err != nil {
		return fmt.Errorf("publish %s job: %w", kind, err)
	}
	return nil
}

// Deliver decodes a queued job and sends it through n.
func Deliver(ctx context.Context, msg queue.Message, n Notifier) error {
	var job Job
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return fmt.Errorf("decode %s job: %w", msg.Type, err)
	}
	switch msg.Type {
	case JobNewRequest:
		var meta NewRequestMeta
		if job.NewRequest != nil {
			meta = *job.NewRequest
		}
		return n.NotifyNewRequest(ctx, job.To, job.StudentName, job.Topic, meta)
	case JobStatusChange:
		var meta StatusMeta
		if job.Schedule != nil {
			meta = *job.Schedule
		}
		return n.NotifyStatusChange(ctx, job.To, job.Status, job.FacultyName, meta)
	default:
		return fmt.Errorf("unknown job type %q", msg.Type)
	}
}

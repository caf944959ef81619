package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/harentsoaR/consultation-api/internal/models"
	"github.com/harentsoaR/consultation-api/internal/queue"
)

func TestAsyncNotifierDelivers(t *testing.T) {
	next := &recordingNotifier{err: errors.New("smtp down")}
	async := NewAsyncNotifier(next, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := async.NotifyNewRequest(ctx, "rao@sru.edu.in", "Asha", "Thesis", NewRequestMeta{}); err != nil {
		t.Fatalf("dispatch returned delivery error: %v", err)
	}
	// the request finishing must not abort delivery
	cancel()
	if err := async.NotifyStatusChange(ctx, "asha@sru.edu.in", models.BookingStatusRejected, "Dr. Rao", StatusMeta{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	async.Wait()

	if len(next.newReqs) != 1 || len(next.statusMsgs) != 1 {
		t.Fatalf("expected both notices delivered, got %d and %d", len(next.newReqs), len(next.statusMsgs))
	}
}

func TestQueueNotifierRoundTrip(t *testing.T) {
	q := queue.NewInMemory(4)
	n := NewQueueNotifier(q)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := n.NotifyNewRequest(ctx, "rao@sru.edu.in", "Asha", "Thesis", NewRequestMeta{StudentBatchNo: "2022"}); err != nil {
		t.Fatalf("publish new request: %v", err)
	}
	if err := n.NotifyStatusChange(ctx, "asha@sru.edu.in", models.BookingStatusApproved, "Dr. Rao", StatusMeta{FinalDateTime: &at, RoomNumber: "204"}); err != nil {
		t.Fatalf("publish status: %v", err)
	}

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	rec := &recordingNotifier{}
	for i := 0; i < 2; i++ {
		msg := <-msgs
		if err := Deliver(ctx, msg, rec); err != nil {
			t.Fatalf("deliver %s: %v", msg.Type, err)
		}
	}

	if len(rec.newReqs) != 1 || rec.newReqs[0].Meta.StudentBatchNo != "2022" {
		t.Fatalf("new request not decoded: %+v", rec.newReqs)
	}
	got := rec.lastStatus(t)
	if got.Status != models.BookingStatusApproved || got.Meta.RoomNumber != "204" || !got.Meta.FinalDateTime.Equal(at) {
		t.Fatalf("status notice not decoded: %+v", got)
	}

	if err := Deliver(ctx, queue.Message{Type: "sms", Body: []byte(`{}`)}, rec); err == nil {
		t.Fatalf("unknown job type accepted")
	}
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func TestMailNotifierAddressesMessages(t *testing.T) {
	sender := &fakeSender{}
	n := &MailNotifier{from: "portal@gmail.com", client: sender, logger: zap.NewNop()}
	ctx := context.Background()

	if err := n.NotifyNewRequest(ctx, "rao@sru.edu.in", "Asha", "Thesis", NewRequestMeta{}); err != nil {
		t.Fatalf("new request: %v", err)
	}
	if err := n.NotifyStatusChange(ctx, "asha@sru.edu.in", models.BookingStatusRejected, "Dr. Rao", StatusMeta{}); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := n.NotifyStatusChange(ctx, "asha@sru.edu.in", models.BookingStatusPending, "Dr. Rao", StatusMeta{}); err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(sender.msgs) != 2 {
		t.Fatalf("expected 2 messages, pending must not send; got %d", len(sender.msgs))
	}

	want := []struct{ to, subject string }{
		{"rao@sru.edu.in", "[Consultation Portal] New Booking Request from Asha"},
		{"asha@sru.edu.in", "Your Consultation with Dr. Rao was Rejected"},
	}
	for i, w := range want {
		rcpts, err := sender.msgs[i].GetRecipients()
		if err != nil || len(rcpts) != 1 || rcpts[0] != w.to {
			t.Fatalf("message %d recipients %v, %v", i, rcpts, err)
		}
		if subj := sender.msgs[i].GetGenHeader(mail.HeaderSubject); len(subj) != 1 || subj[0] != w.subject {
			t.Fatalf("message %d subject %v", i, subj)
		}
	}

	sender.err = errors.New("535 auth failed")
	if err := n.NotifyNewRequest(ctx, "rao@sru.edu.in", "Asha", "Thesis", NewRequestMeta{}); err == nil {
		t.Fatalf("send failure swallowed by mailer")
	}
}

func TestStatusTemplate(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		status models.BookingStatus
		meta   StatusMeta
		want   []string
	}{
		{models.BookingStatusApproved, StatusMeta{FinalDateTime: &at, RoomNumber: "204"}, []string{"APPROVED", "Wed, 01 May 2024 10:00 UTC", "204"}},
		{models.BookingStatusReschedule, StatusMeta{ProposedRoomNumber: "105"}, []string{"RESCHEDULE", "Suggested Room:</strong> 105"}},
		{models.BookingStatusCancelled, StatusMeta{}, []string{"CANCELLED"}},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		data := struct {
			Status      models.BookingStatus
			FacultyName string
			Meta        StatusMeta
		}{tc.status, "Dr. <Rao>", tc.meta}
		if err := statusTmpl.Execute(&buf, data); err != nil {
			t.Fatalf("%s: render: %v", tc.status, err)
		}
		body := buf.String()
		for _, w := range tc.want {
			if !strings.Contains(body, w) {
				t.Fatalf("%s: body missing %q:\n%s", tc.status, w, body)
			}
		}
		if strings.Contains(body, "<Rao>") {
			t.Fatalf("faculty name not escaped")
		}
	}
}

package dialog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/command-bridge/internal/audit"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("Are you sure?", "", "")
	require.Equal(t, Unopened, s.State())
	assert.Equal(t, SeverityInfo, s.Severity)
	assert.NotEmpty(t, s.ID)

	require.ErrorIs(t, s.Resolve(Confirmed), ErrNotOpen)

	require.NoError(t, s.Open())
	require.Equal(t, Open, s.State())
	require.ErrorIs(t, s.Open(), ErrAlreadyOpen)
	require.ErrorIs(t, s.Resolve(Open), ErrInvalidResolution)

	require.NoError(t, s.Resolve(Confirmed))
	require.Equal(t, Confirmed, s.State())
	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed after resolution")
	}

	require.ErrorIs(t, s.Resolve(Declined), ErrAlreadyResolved)
	require.ErrorIs(t, s.Resolve(Confirmed), ErrAlreadyResolved)
	require.ErrorIs(t, s.Open(), ErrAlreadyResolved)
	assert.Equal(t, Confirmed, s.State())
}

func TestParseSeverityAndPolicy(t *testing.T) {
	sev, err := ParseSeverity(" Warning ")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, sev)
	_, err = ParseSeverity("fatal")
	assert.Error(t, err)

	policy, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyQueue, policy)
	_, err = ParsePolicy("race")
	assert.Error(t, err)
}

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Record(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestConfirmUserAccepts(t *testing.T) {
	rec := &recorder{}
	var seen *Session
	svc := NewService(Options{
		Audit: rec,
		Presenter: PresenterFunc(func(_ context.Context, s *Session) (State, error) {
			seen = s
			assert.Equal(t, Open, s.State())
			return Confirmed, nil
		}),
	})

	ctx := audit.WithRequestID(context.Background(), "req-1")
	state, err := svc.Confirm(ctx, Request{Prompt: "Are you sure?", Title: "Delete", Severity: SeverityWarning})
	require.NoError(t, err)
	assert.Equal(t, Confirmed, state)
	require.NotNil(t, seen)
	assert.Equal(t, "Are you sure?", seen.Prompt)
	assert.Equal(t, Confirmed, seen.State())
	assert.ErrorIs(t, seen.Resolve(Declined), ErrAlreadyResolved)
	assert.Nil(t, svc.Current())

	require.Len(t, rec.events, 2)
	assert.Equal(t, audit.EventDialogOpen, rec.events[0].Type)
	assert.Equal(t, audit.EventDialogResolved, rec.events[1].Type)
	assert.Equal(t, "confirmed", rec.events[1].Message)
	assert.Equal(t, "req-1", rec.events[1].RequestID)
	assert.Equal(t, seen.ID, rec.events[1].SessionID)
}

func TestConfirmPresenterFailureDeclines(t *testing.T) {
	svc := NewService(Options{Presenter: PresenterFunc(func(context.Context, *Session) (State, error) {
		return "", errors.New("no terminal")
	})})
	state, err := svc.Confirm(context.Background(), Request{Prompt: "ok?"})
	assert.Equal(t, Declined, state)
	assert.EqualError(t, err, "no terminal")

	svc = NewService(Options{Presenter: PresenterFunc(func(context.Context, *Session) (State, error) {
		return Open, nil
	})})
	state, err = svc.Confirm(context.Background(), Request{Prompt: "ok?"})
	assert.Equal(t, Declined, state)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = NewService(Options{}).Confirm(context.Background(), Request{Prompt: "ok?"})
	assert.Error(t, err)
}

func TestConfirmTimeoutDeclines(t *testing.T) {
	svc := NewService(Options{
		Timeout: 20 * time.Millisecond,
		Presenter: PresenterFunc(func(ctx context.Context, _ *Session) (State, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}),
	})
	state, err := svc.Confirm(context.Background(), Request{Prompt: "still there?"})
	require.NoError(t, err)
	assert.Equal(t, Declined, state)
}

// blockingPresenter answers prompts in the order the test releases them.
type blockingPresenter struct {
	opened  chan *Session
	answers chan State
}

func newBlockingPresenter() *blockingPresenter {
	return &blockingPresenter{opened: make(chan *Session, 8), answers: make(chan State)}
}

func (p *blockingPresenter) Present(ctx context.Context, s *Session) (State, error) {
	p.opened <- s
	select {
	case st := <-p.answers:
		return st, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestOverlapQueuePresentsSequentially(t *testing.T) {
	p := newBlockingPresenter()
	svc := NewService(Options{Presenter: p, Policy: PolicyQueue})

	results := make(chan State, 2)
	go func() {
		st, _ := svc.Confirm(context.Background(), Request{Prompt: "first"})
		results <- st
	}()
	first := <-p.opened
	assert.Equal(t, "first", first.Prompt)
	assert.Same(t, first, svc.Current())

	go func() {
		st, _ := svc.Confirm(context.Background(), Request{Prompt: "second"})
		results <- st
	}()

	select {
	case s := <-p.opened:
		t.Fatalf("second prompt %q presented while first is open", s.Prompt)
	case <-time.After(50 * time.Millisecond):
	}

	p.answers <- Confirmed
	assert.Equal(t, Confirmed, <-results)

	second := <-p.opened
	assert.Equal(t, "second", second.Prompt)
	p.answers <- Declined
	assert.Equal(t, Declined, <-results)
}

func TestOverlapRejectFailsSecondRequest(t *testing.T) {
	p := newBlockingPresenter()
	svc := NewService(Options{Presenter: p, Policy: PolicyReject})

	done := make(chan State, 1)
	go func() {
		st, _ := svc.Confirm(context.Background(), Request{Prompt: "first"})
		done <- st
	}()
	<-p.opened

	_, err := svc.Confirm(context.Background(), Request{Prompt: "second"})
	require.ErrorIs(t, err, ErrBusy)

	p.answers <- Confirmed
	assert.Equal(t, Confirmed, <-done)

	go func() { p.answers <- Declined }()
	go func() { <-p.opened }()
	st, err := svc.Confirm(context.Background(), Request{Prompt: "third"})
	require.NoError(t, err)
	assert.Equal(t, Declined, st)
}

func TestQueuedWaiterLeavesOnCancel(t *testing.T) {
	p := newBlockingPresenter()
	svc := NewService(Options{Presenter: p})

	done := make(chan State, 1)
	go func() {
		st, _ := svc.Confirm(context.Background(), Request{Prompt: "first"})
		done <- st
	}()
	<-p.opened

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Confirm(ctx, Request{Prompt: "impatient"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	p.answers <- Confirmed
	assert.Equal(t, Confirmed, <-done)

	go func() { p.answers <- Confirmed }()
	go func() { <-p.opened }()
	st, err := svc.Confirm(context.Background(), Request{Prompt: "next"})
	require.NoError(t, err)
	assert.Equal(t, Confirmed, st)
}

func TestNotify(t *testing.T) {
	rec := &recorder{}
	var got Notification
	svc := NewService(Options{
		Audit: rec,
		Notifier: NotifierFunc(func(_ context.Context, n Notification) error {
			got = n
			return nil
		}),
	})

	n := NewNotification("Build", "done", "")
	assert.Equal(t, SeverityInfo, n.Severity)
	assert.NotEmpty(t, n.ID)

	ctx := audit.WithRequestID(context.Background(), "req-9")
	require.NoError(t, svc.Notify(ctx, n))
	assert.Equal(t, n, got)
	assert.Nil(t, svc.Current())

	require.Len(t, rec.events, 1)
	assert.Equal(t, audit.EventNotify, rec.events[0].Type)
	assert.Equal(t, "req-9", rec.events[0].RequestID)
	assert.Equal(t, n.ID, rec.events[0].SessionID)
	assert.Equal(t, "info", rec.events[0].Message)
}

func TestNotifyFailures(t *testing.T) {
	assert.ErrorIs(t, NewService(Options{}).Notify(context.Background(), NewNotification("t", "", "")), ErrNoNotifier)

	rec := &recorder{}
	svc := NewService(Options{
		Audit: rec,
		Notifier: NotifierFunc(func(context.Context, Notification) error {
			return errors.New("no display")
		}),
	})
	err := svc.Notify(context.Background(), NewNotification("t", "", SeverityError))
	assert.EqualError(t, err, "no display")
	require.Len(t, rec.events, 1)
	assert.Equal(t, "no display", rec.events[0].Message)
}

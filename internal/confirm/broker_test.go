package confirm

import (
	"sync"
	"testing"
	"time"

	"github.com/rota-dev/rota/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturePresenter records presented requests and hands them to the test.
type capturePresenter struct {
	mu   sync.Mutex
	reqs []Request
	seen chan Request
}

func newCapturePresenter() *capturePresenter {
	return &capturePresenter{seen: make(chan Request, 8)}
}

func (p *capturePresenter) Present(req Request) {
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()
	p.seen <- req
}

// failingPresenter models a surface that cannot deliver; per contract it
// must immediately reject the request.
type failingPresenter struct {
	broker *Broker
}

func (p *failingPresenter) Present(req Request) {
	p.broker.HandleResponse(req.ID, false, "presentation failed")
}

func TestConfirmed(t *testing.T) {
	presenter := newCapturePresenter()
	broker := New(presenter, logger.Discard())

	done := make(chan bool, 1)
	go func() {
		done <- broker.RequestConfirmation("deploy", "Deploy", "push to prod?", 5*time.Second)
	}()

	req := <-presenter.seen
	assert.Equal(t, "deploy", req.UnitID)
	assert.Equal(t, "Deploy", req.UnitName)
	assert.Equal(t, "push to prod?", req.Message)
	assert.NotEmpty(t, req.ID)

	broker.HandleResponse(req.ID, true, "user confirmed")
	assert.True(t, <-done)
	assert.False(t, broker.HasPending())
}

func TestRejected(t *testing.T) {
	presenter := newCapturePresenter()
	broker := New(presenter, logger.Discard())

	done := make(chan bool, 1)
	go func() {
		done <- broker.RequestConfirmation("deploy", "Deploy", "push?", 5*time.Second)
	}()

	req := <-presenter.seen
	broker.HandleResponse(req.ID, false, "user rejected")
	assert.False(t, <-done)
}

func TestTimeoutRejects(t *testing.T) {
	presenter := newCapturePresenter()
	broker := New(presenter, logger.Discard())

	start := time.Now()
	confirmed := broker.RequestConfirmation("deploy", "Deploy", "push?", 50*time.Millisecond)

	assert.False(t, confirmed)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.False(t, broker.HasPending())
}

func TestDoubleResolutionIsNoOp(t *testing.T) {
	presenter := newCapturePresenter()
	broker := New(presenter, logger.Discard())

	done := make(chan bool, 1)
	go func() {
		done <- broker.RequestConfirmation("deploy", "Deploy", "push?", time.Minute)
	}()

	req := <-presenter.seen
	broker.HandleResponse(req.ID, true, "")
	// Late duplicate (e.g. a racing timeout) must not wake anything again.
	broker.HandleResponse(req.ID, false, "timeout")
	broker.HandleResponse(req.ID, false, "timeout")

	assert.True(t, <-done)

	select {
	case extra := <-done:
		t.Fatalf("waiter woke a second time with %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnknownIDIsNoOp(t *testing.T) {
	broker := New(newCapturePresenter(), logger.Discard())
	// Must neither panic nor block.
	broker.HandleResponse("no-such-id", true, "")
}

func TestResponseCancelsTimeout(t *testing.T) {
	presenter := newCapturePresenter()
	broker := New(presenter, logger.Discard())

	done := make(chan bool, 1)
	go func() {
		done <- broker.RequestConfirmation("deploy", "Deploy", "push?", 80*time.Millisecond)
	}()

	req := <-presenter.seen
	broker.HandleResponse(req.ID, true, "")
	assert.True(t, <-done)

	// Give the (cancelled) timeout a chance to misfire.
	time.Sleep(120 * time.Millisecond)
	assert.False(t, broker.HasPending())
}

func TestPresentationFailureRejectsImmediately(t *testing.T) {
	presenter := &failingPresenter{}
	broker := New(presenter, logger.Discard())
	presenter.broker = broker

	confirmed := broker.RequestConfirmation("deploy", "Deploy", "push?", time.Minute)
	assert.False(t, confirmed)
}

func TestIndependentConcurrentRequests(t *testing.T) {
	presenter := newCapturePresenter()
	broker := New(presenter, logger.Discard())

	first := make(chan bool, 1)
	second := make(chan bool, 1)
	go func() {
		first <- broker.RequestConfirmation("a", "A", "first?", time.Minute)
	}()
	go func() {
		second <- broker.RequestConfirmation("b", "B", "second?", time.Minute)
	}()

	reqA := <-presenter.seen
	reqB := <-presenter.seen
	if reqA.UnitID != "a" {
		reqA, reqB = reqB, reqA
	}

	require.True(t, broker.HasPending())
	assert.Len(t, broker.PendingRequests(), 2)

	broker.HandleResponse(reqA.ID, true, "")
	broker.HandleResponse(reqB.ID, false, "")

	assert.True(t, <-first)
	assert.False(t, <-second)
	assert.False(t, broker.HasPending())
}

func TestPendingRequestsOrderedByCreation(t *testing.T) {
	presenter := newCapturePresenter()
	broker := New(presenter, logger.Discard())

	go broker.RequestConfirmation("a", "A", "first?", time.Minute)
	<-presenter.seen
	time.Sleep(5 * time.Millisecond)
	go broker.RequestConfirmation("b", "B", "second?", time.Minute)
	<-presenter.seen

	reqs := broker.PendingRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "a", reqs[0].UnitID)
	assert.Equal(t, "b", reqs[1].UnitID)

	for _, r := range reqs {
		broker.HandleResponse(r.ID, false, "cleanup")
	}
}

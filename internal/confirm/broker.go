// Package confirm brokers human approval requests between suspended unit
// runs and whatever surface presents them (Telegram, a UI, a test double).
//
// A run that needs approval parks on RequestConfirmation until an external
// response or the timeout resolves its request id. Resolution is
// exactly-once: the first of {response, timeout} wins, the loser becomes a
// silent no-op.
package confirm

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rota-dev/rota/internal/logger"
)

// Request describes one outstanding approval request.
type Request struct {
	ID        string
	UnitID    string
	UnitName  string
	Message   string
	CreatedAt time.Time
}

// Presenter surfaces an approval request to a human. Implementations that
// cannot deliver must call Broker.HandleResponse(req.ID, false,
// "presentation failed") so the waiting run is released.
type Presenter interface {
	Present(req Request)
}

// pending couples a request with its one-shot result channel and the timer
// that converts silence into rejection.
type pending struct {
	request Request
	result  chan bool
	timer   *time.Timer
}

// Broker is the process-wide registry of outstanding approval requests.
type Broker struct {
	mu        sync.Mutex
	requests  map[string]*pending
	presenter Presenter
	logger    *logger.Logger
}

// New creates a broker that delivers requests through the given presenter.
func New(presenter Presenter, log *logger.Logger) *Broker {
	return &Broker{
		requests:  make(map[string]*pending),
		presenter: presenter,
		logger:    log,
	}
}

// RequestConfirmation registers a new request, presents it, and blocks until
// a response arrives or the timeout fires. It returns true only for an
// explicit confirmation; rejection, dismissal and timeout all return false.
func (b *Broker) RequestConfirmation(unitID, unitName, message string, timeout time.Duration) bool {
	req := Request{
		ID:        uuid.NewString(),
		UnitID:    unitID,
		UnitName:  unitName,
		Message:   message,
		CreatedAt: time.Now(),
	}

	p := &pending{
		request: req,
		result:  make(chan bool, 1),
	}
	p.timer = time.AfterFunc(timeout, func() {
		b.HandleResponse(req.ID, false, "timeout")
	})

	b.mu.Lock()
	b.requests[req.ID] = p
	b.mu.Unlock()

	b.logger.Info("confirmation requested",
		logger.Field{Key: "request_id", Value: req.ID},
		logger.Field{Key: "unit", Value: unitID},
		logger.Field{Key: "timeout", Value: timeout})

	b.presenter.Present(req)

	return <-p.result
}

// HandleResponse resolves a request. It is the sole resolution entrypoint,
// used by presenters, the timeout, and anything else delivering a human
// decision. Unknown or already-resolved ids are silent no-ops.
func (b *Broker) HandleResponse(requestID string, confirmed bool, reason string) {
	b.mu.Lock()
	p, ok := b.requests[requestID]
	if ok {
		delete(b.requests, requestID)
	}
	b.mu.Unlock()

	if !ok {
		return
	}

	// Cancel the timeout if it has not fired yet; if it has, removing the
	// entry above already made the late response a no-op.
	p.timer.Stop()

	if reason != "" {
		b.logger.Info("confirmation resolved",
			logger.Field{Key: "request_id", Value: requestID},
			logger.Field{Key: "unit", Value: p.request.UnitID},
			logger.Field{Key: "confirmed", Value: confirmed},
			logger.Field{Key: "reason", Value: reason})
	}

	p.result <- confirmed
}

// PendingRequests returns the outstanding requests, oldest first.
func (b *Broker) PendingRequests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Request, 0, len(b.requests))
	for _, p := range b.requests {
		out = append(out, p.request)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// HasPending reports whether any request is awaiting a response.
func (b *Broker) HasPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests) > 0
}

package api

import (
	"context"
	"errors"
	"time"
)

// RequestKind distinguishes cheap metadata calls from endpoints that do
// real work per request.
type RequestKind int

const (
	// RequestGeneral marks inexpensive lookups that still queue per IP
	// so one client cannot flood the server with concurrent requests.
	RequestGeneral RequestKind = iota
	// RequestHeavy marks endpoints whose responses cost real CPU (QR
	// rendering, large pages). A cooldown follows each heavy call.
	RequestHeavy
)

// ErrBusy is returned when an IP already has a full queue of waiting
// requests. Handlers translate it to 429.
var ErrBusy = errors.New("too many queued requests")

// perIPQueue bounds how many requests a single IP may have waiting.
const perIPQueue = 32

// RateLimiter serializes requests per client IP. A coordinator goroutine
// owns the IP table and each IP gets its own worker goroutine, so no
// state is ever shared between goroutines — it is communicated.
type RateLimiter struct {
	heavyCooldown time.Duration
	requests      chan keyedRequest
	now           func() time.Time
}

type keyedRequest struct {
	ip  string
	req ipRequest
}

type ipRequest struct {
	ctx      context.Context
	kind     RequestKind
	arrived  time.Time
	response chan acquireResponse
}

type acquireResponse struct {
	release      chan struct{}
	waitDuration time.Duration
	err          error
}

// Permit is an acquired slot. Release it when the handler is done so the
// next queued request for the same IP proceeds.
type Permit struct {
	release      chan struct{}
	WaitNotice   bool
	WaitDuration time.Duration
}

// Release frees the slot. Safe to call twice; the second call is a no-op.
func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	close(p.release)
	p.release = nil
}

// NewRateLimiter starts the coordinator goroutine immediately.
func NewRateLimiter(heavyCooldown time.Duration) *RateLimiter {
	l := &RateLimiter{
		heavyCooldown: heavyCooldown,
		requests:      make(chan keyedRequest),
		now:           time.Now,
	}
	go l.coordinate()
	return l
}

// Acquire reserves a slot for ip. A nil limiter grants everything, so
// callers need no feature flag around it.
func (l *RateLimiter) Acquire(ctx context.Context, ip string, kind RequestKind) (*Permit, error) {
	if l == nil {
		return &Permit{}, nil
	}

	respCh := make(chan acquireResponse, 1)
	req := ipRequest{ctx: ctx, kind: kind, arrived: l.now(), response: respCh}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case l.requests <- keyedRequest{ip: ip, req: req}:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.err != nil {
			return nil, resp.err
		}
		return &Permit{
			release:      resp.release,
			WaitNotice:   resp.waitDuration > 50*time.Millisecond,
			WaitDuration: resp.waitDuration,
		}, nil
	}
}

// coordinate owns the per-IP worker table. Workers are created on demand
// and live for the process; the set of distinct client IPs bounds them.
func (l *RateLimiter) coordinate() {
	workers := make(map[string]chan ipRequest)
	for kr := range l.requests {
		worker, ok := workers[kr.ip]
		if !ok {
			worker = make(chan ipRequest, perIPQueue)
			workers[kr.ip] = worker
			go l.serveIP(worker)
		}
		select {
		case worker <- kr.req:
		default:
			kr.req.response <- acquireResponse{err: ErrBusy}
		}
	}
}

// serveIP grants one permit at a time for a single IP.
func (l *RateLimiter) serveIP(queue chan ipRequest) {
	for req := range queue {
		if req.ctx.Err() != nil {
			continue // caller gave up while queued
		}

		release := make(chan struct{})
		req.response <- acquireResponse{
			release:      release,
			waitDuration: l.now().Sub(req.arrived),
		}

		select {
		case <-release:
		case <-req.ctx.Done():
			// Handler abandoned the request; treat as released.
		}

		if req.kind == RequestHeavy && l.heavyCooldown > 0 {
			time.Sleep(l.heavyCooldown)
		}
	}
}

/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/acronis/go-usagekit/quota"
)

type mockResult struct {
	allow      bool
	retryAfter time.Duration
	err        error
}

// mockLimiter returns scripted results, the last one is repeated.
type mockLimiter struct {
	mu      sync.Mutex
	results []mockResult
	calls   int
	weights []uint64
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return m.AllowN(ctx, key, 1)
}

func (m *mockLimiter) AllowN(_ context.Context, _ string, n uint64) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weights = append(m.weights, n)
	res := m.results[len(m.results)-1]
	if m.calls < len(m.results) {
		res = m.results[m.calls]
	}
	m.calls++
	return res.allow, res.retryAfter, res.err
}

func (m *mockLimiter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRequestHandler struct {
	ctx       context.Context
	key       string
	bypass    bool
	getKeyErr error
	weight    uint64

	executeCalled bool
	rejectParams  *Params
	errorParams   *Params
	handledErr    error
}

func (h *mockRequestHandler) GetContext() context.Context {
	if h.ctx == nil {
		return context.Background()
	}
	return h.ctx
}

func (h *mockRequestHandler) GetKey() (string, bool, error) {
	return h.key, h.bypass, h.getKeyErr
}

func (h *mockRequestHandler) GetWeight() (uint64, error) {
	if h.weight == 0 {
		return 1, nil
	}
	return h.weight, nil
}

func (h *mockRequestHandler) Execute() error {
	h.executeCalled = true
	return nil
}

func (h *mockRequestHandler) OnReject(params Params) error {
	h.rejectParams = &params
	return nil
}

func (h *mockRequestHandler) OnError(params Params, err error) error {
	h.errorParams = &params
	h.handledErr = err
	return err
}

// BacklogTestSuite contains tests for backlog slots
type BacklogTestSuite struct {
	suite.Suite
}

func TestBacklog(t *testing.T) {
	suite.Run(t, new(BacklogTestSuite))
}

func (ts *BacklogTestSuite) TestBacklogSlotsProvider_SameKeyReturnsSameSlots() {
	provider, err := newBacklogSlotsProvider(5, 0)
	ts.Require().NoError(err)
	ts.Equal(provider("a"), provider("b"), "all keys share slots when maxKeys=0")
	ts.Equal(5, cap(provider("a")))
}

func (ts *BacklogTestSuite) TestBacklogSlotsProvider_DifferentKeysWithLRU() {
	provider, err := newBacklogSlotsProvider(5, 100)
	ts.Require().NoError(err)

	slots1 := provider("test-key-1")
	slots2 := provider("test-key-2")
	ts.NotEqual(slots1, slots2, "different keys should have different slots")
	ts.Equal(slots1, provider("test-key-1"))
	ts.Equal(5, cap(slots2))
}

// RequestProcessorTestSuite contains tests for RequestProcessor
type RequestProcessorTestSuite struct {
	suite.Suite
}

func TestRequestProcessor(t *testing.T) {
	suite.Run(t, new(RequestProcessorTestSuite))
}

func (ts *RequestProcessorTestSuite) TestNewRequestProcessor() {
	_, err := NewRequestProcessor(&mockLimiter{}, BacklogParams{Limit: -1})
	ts.EqualError(err, "backlog limit should not be negative, got -1")

	_, err = NewRequestProcessor(&mockLimiter{}, BacklogParams{MaxKeys: -1})
	ts.EqualError(err, "max keys for backlog should not be negative, got -1")

	processor, err := NewRequestProcessor(&mockLimiter{}, BacklogParams{})
	ts.Require().NoError(err)
	ts.Nil(processor.getBacklogSlots)
	ts.Equal(DefaultBacklogTimeout, processor.backlogTimeout)

	processor, err = NewRequestProcessor(&mockLimiter{}, BacklogParams{Limit: 1, MaxKeys: 10, Timeout: time.Second})
	ts.Require().NoError(err)
	ts.NotNil(processor.getBacklogSlots)
	ts.Equal(time.Second, processor.backlogTimeout)
}

func (ts *RequestProcessorTestSuite) TestProcessRequest() {
	limiterErr := errors.New("limiter failure")

	tests := []struct {
		name          string
		results       []mockResult
		backlogParams BacklogParams
		handler       *mockRequestHandler
		wantExecute   bool
		wantReject    *Params
		wantErr       error
	}{
		{
			name:        "bypass",
			results:     []mockResult{{allow: false}},
			handler:     &mockRequestHandler{key: "k", bypass: true},
			wantExecute: true,
		},
		{
			name:        "admitted",
			results:     []mockResult{{allow: true}},
			handler:     &mockRequestHandler{key: "k", weight: 5},
			wantExecute: true,
		},
		{
			name:       "rejected without backlog",
			results:    []mockResult{{allow: false, retryAfter: time.Second}},
			handler:    &mockRequestHandler{key: "k", weight: 5},
			wantReject: &Params{Key: "k", Weight: 5, EstimatedRetryAfter: time.Second},
		},
		{
			name:    "limiter error",
			results: []mockResult{{err: limiterErr}},
			handler: &mockRequestHandler{key: "k"},
			wantErr: limiterErr,
		},
		{
			name:    "get key error",
			results: []mockResult{{allow: true}},
			handler: &mockRequestHandler{getKeyErr: limiterErr},
			wantErr: limiterErr,
		},
		{
			name: "backlogged and admitted later",
			results: []mockResult{
				{allow: false, retryAfter: 10 * time.Millisecond},
				{allow: false, retryAfter: 10 * time.Millisecond},
				{allow: true},
			},
			backlogParams: BacklogParams{Limit: 1, MaxKeys: 10, Timeout: time.Second},
			handler:       &mockRequestHandler{key: "k"},
			wantExecute:   true,
		},
		{
			name:          "backlog timeout",
			results:       []mockResult{{allow: false, retryAfter: 10 * time.Millisecond}},
			backlogParams: BacklogParams{Limit: 1, MaxKeys: 10, Timeout: 50 * time.Millisecond},
			handler:       &mockRequestHandler{key: "k"},
			wantReject: &Params{
				Key: "k", Weight: 1, RequestBacklogged: true, EstimatedRetryAfter: 10 * time.Millisecond},
		},
		{
			name:          "never admissible request is not backlogged",
			results:       []mockResult{{allow: false}},
			backlogParams: BacklogParams{Limit: 1, MaxKeys: 10, Timeout: time.Second},
			handler:       &mockRequestHandler{key: "k", weight: 100},
			wantReject:    &Params{Key: "k", Weight: 100},
		},
	}

	for _, tt := range tests {
		tt := tt
		ts.Run(tt.name, func() {
			processor, err := NewRequestProcessor(&mockLimiter{results: tt.results}, tt.backlogParams)
			ts.Require().NoError(err)

			err = processor.ProcessRequest(tt.handler)
			if tt.wantErr != nil {
				ts.ErrorIs(err, tt.wantErr)
				ts.ErrorIs(tt.handler.handledErr, tt.wantErr)
			} else {
				ts.NoError(err)
			}
			ts.Equal(tt.wantExecute, tt.handler.executeCalled)
			ts.Equal(tt.wantReject, tt.handler.rejectParams)
		})
	}
}

func (ts *RequestProcessorTestSuite) TestProcessRequest_ContextCanceledInBacklog() {
	limiter := &mockLimiter{results: []mockResult{{allow: false, retryAfter: time.Second}}}
	processor, err := NewRequestProcessor(limiter, BacklogParams{Limit: 1, Timeout: 5 * time.Second})
	ts.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	handler := &mockRequestHandler{ctx: ctx, key: "k"}

	err = processor.ProcessRequest(handler)
	ts.ErrorIs(err, context.DeadlineExceeded)
	ts.Require().NotNil(handler.errorParams)
	ts.True(handler.errorParams.RequestBacklogged)
	ts.False(handler.executeCalled)
}

func (ts *RequestProcessorTestSuite) TestProcessRequest_BacklogIsFull() {
	limiter := &mockLimiter{results: []mockResult{{allow: false, retryAfter: time.Second}}}
	processor, err := NewRequestProcessor(limiter, BacklogParams{Limit: 1, Timeout: 5 * time.Second})
	ts.Require().NoError(err)

	// Occupy the only slot.
	processor.getBacklogSlots("k") <- struct{}{}

	handler := &mockRequestHandler{key: "k"}
	ts.Require().NoError(processor.ProcessRequest(handler))
	ts.Equal(&Params{Key: "k", Weight: 1, EstimatedRetryAfter: time.Second}, handler.rejectParams)
}

func (ts *RequestProcessorTestSuite) TestProcessRequest_BacklogUsesLimiterClock() {
	tests := []struct {
		name        string
		timeout     time.Duration
		advance     time.Duration
		wantExecute bool
		wantReject  *Params
	}{
		{
			name:        "admitted when the window frees up",
			timeout:     10 * time.Second,
			advance:     6 * time.Second,
			wantExecute: true,
		},
		{
			name:    "rejected when backlog timeout comes first",
			timeout: 3 * time.Second,
			advance: 3 * time.Second,
			wantReject: &Params{
				Key: "k", Weight: 1, RequestBacklogged: true, EstimatedRetryAfter: 6 * time.Second},
		},
	}

	for _, tt := range tests {
		tt := tt
		ts.Run(tt.name, func() {
			clock := clockwork.NewFakeClock()
			limiter, err := NewQuotaLimiter(Rate{Count: 1, Duration: 5 * time.Second}, 10, quota.Options{Clock: clock})
			ts.Require().NoError(err)
			processor, err := NewRequestProcessor(limiter, BacklogParams{
				Limit: 1, MaxKeys: 10, Timeout: tt.timeout, Clock: clock})
			ts.Require().NoError(err)

			allow, _, err := limiter.Allow(context.Background(), "k")
			ts.Require().NoError(err)
			ts.Require().True(allow)

			handler := &mockRequestHandler{key: "k"}
			done := make(chan error)
			go func() {
				done <- processor.ProcessRequest(handler)
			}()

			// Backlog timeout and retry timers.
			clock.BlockUntil(2)
			clock.Advance(tt.advance)

			select {
			case err = <-done:
				ts.Require().NoError(err)
			case <-time.After(5 * time.Second):
				ts.FailNow("request is still in the backlog")
			}
			ts.Equal(tt.wantExecute, handler.executeCalled)
			ts.Equal(tt.wantReject, handler.rejectParams)
		})
	}
}

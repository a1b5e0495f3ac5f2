package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	sharedErrors "github.com/reshetovitsme/tg-forwarder/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSender fails a target a given number of times before succeeding.
type scriptedSender struct {
	mu        sync.Mutex
	failures  map[int64]int
	permanent map[int64]bool
	block     map[int64]chan struct{}
	calls     map[int64]int
	nextID    int
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{
		failures:  map[int64]int{},
		permanent: map[int64]bool{},
		block:     map[int64]chan struct{}{},
		calls:     map[int64]int{},
		nextID:    1000,
	}
}

func (s *scriptedSender) Send(ctx context.Context, req messageDomain.DispatchRequest) (int, error) {
	s.mu.Lock()
	wait := s.block[req.TargetChannelID]
	s.mu.Unlock()
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[req.TargetChannelID]++

	if s.permanent[req.TargetChannelID] {
		return 0, backoff.Permanent(errors.New("chat not found"))
	}
	if s.failures[req.TargetChannelID] > 0 {
		s.failures[req.TargetChannelID]--
		return 0, errors.New("temporary failure")
	}
	s.nextID++
	return s.nextID, nil
}

func (s *scriptedSender) callCount(target int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[target]
}

type delivery struct {
	target int64
	id     int
	err    error
}

type memoryJournal struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (j *memoryJournal) RecordDelivery(req messageDomain.DispatchRequest, id int, err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.deliveries = append(j.deliveries, delivery{target: req.TargetChannelID, id: id, err: err})
	return nil
}

func (j *memoryJournal) byTarget() map[int64]delivery {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := map[int64]delivery{}
	for _, d := range j.deliveries {
		out[d.target] = d
	}
	return out
}

func req(target int64) messageDomain.DispatchRequest {
	return messageDomain.DispatchRequest{
		TargetChannelID: target,
		Message: messageDomain.OutboundMessage{
			RuleName:        "R1",
			SourceChatID:    100,
			SourceMessageID: 1,
			Type:            messageDomain.MessageTypeText,
			Text:            "NEW: Hello",
		},
	}
}

func newDispatcher(t *testing.T, sender Sender, journal Journal, reg prometheus.Registerer) *Dispatcher {
	t.Helper()
	d := New(sender, journal, Options{
		Workers:         2,
		QueueSize:       16,
		MaxAttempts:     3,
		SendTimeout:     time.Second,
		InitialInterval: time.Millisecond,
		Registerer:      reg,
	}, nil)
	require.NoError(t, d.Start(context.Background()))
	return d
}

func TestDispatcher_DeliversAndJournals(t *testing.T) {
	sender := newScriptedSender()
	journal := &memoryJournal{}
	d := newDispatcher(t, sender, journal, nil)

	require.NoError(t, d.Enqueue(req(200)))
	require.NoError(t, d.Enqueue(req(300)))
	require.NoError(t, d.Stop(5*time.Second))

	got := journal.byTarget()
	require.Len(t, got, 2)
	assert.NoError(t, got[200].err)
	assert.NoError(t, got[300].err)
	assert.NotZero(t, got[200].id)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	sender := newScriptedSender()
	sender.failures[200] = 2
	journal := &memoryJournal{}
	reg := prometheus.NewRegistry()
	d := newDispatcher(t, sender, journal, reg)

	require.NoError(t, d.Enqueue(req(200)))
	require.NoError(t, d.Stop(5*time.Second))

	assert.Equal(t, 3, sender.callCount(200))
	assert.NoError(t, journal.byTarget()[200].err)
	assert.Equal(t, float64(1), testutil.ToFloat64(d.metrics.deliveries.WithLabelValues("success")))
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sender := newScriptedSender()
	sender.failures[200] = 10
	journal := &memoryJournal{}
	d := newDispatcher(t, sender, journal, nil)

	require.NoError(t, d.Enqueue(req(200)))
	require.NoError(t, d.Stop(5*time.Second))

	assert.Equal(t, 3, sender.callCount(200))
	assert.Error(t, journal.byTarget()[200].err)
	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_PermanentErrorNotRetried(t *testing.T) {
	sender := newScriptedSender()
	sender.permanent[200] = true
	journal := &memoryJournal{}
	d := newDispatcher(t, sender, journal, nil)

	require.NoError(t, d.Enqueue(req(200)))
	require.NoError(t, d.Stop(5*time.Second))

	assert.Equal(t, 1, sender.callCount(200))
	assert.EqualError(t, journal.byTarget()[200].err, "chat not found")
}

func TestDispatcher_SlowTargetDoesNotBlockOthers(t *testing.T) {
	sender := newScriptedSender()
	release := make(chan struct{})
	sender.block[200] = release
	journal := &memoryJournal{}
	d := newDispatcher(t, sender, journal, nil)

	require.NoError(t, d.Enqueue(req(200)))
	require.NoError(t, d.Enqueue(req(300)))

	assert.Eventually(t, func() bool {
		_, ok := journal.byTarget()[300]
		return ok
	}, time.Second, time.Millisecond)
	_, blockedDone := journal.byTarget()[200]
	assert.False(t, blockedDone)

	close(release)
	require.NoError(t, d.Stop(5*time.Second))
	assert.NoError(t, journal.byTarget()[200].err)
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	d := newDispatcher(t, newScriptedSender(), &memoryJournal{}, nil)
	require.NoError(t, d.Stop(time.Second))
	assert.Error(t, d.Enqueue(req(1)))
}

func TestDispatcher_QueueFull(t *testing.T) {
	sender := newScriptedSender()
	release := make(chan struct{})
	sender.block[1] = release
	d := New(sender, &memoryJournal{}, Options{Workers: 1, QueueSize: 1}, nil)
	require.NoError(t, d.Start(context.Background()))

	require.NoError(t, d.Enqueue(req(1)))
	require.Eventually(t, func() bool { return d.Stats().QueueDepth == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Enqueue(req(1)))

	err := d.Enqueue(req(1))
	assert.True(t, sharedErrors.Is(err, sharedErrors.ErrQueueFull))

	close(release)
	require.NoError(t, d.Stop(5*time.Second))
}

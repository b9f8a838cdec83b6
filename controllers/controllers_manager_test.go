package controllers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/am6737/zenset/transport/packet"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	err     error
	started atomic.Bool
	stopped atomic.Bool
	closed  atomic.Int32
}

func (q *fakeQueue) Start(ctx context.Context) error {
	q.started.Store(true)
	if q.err != nil {
		return q.err
	}
	<-ctx.Done()
	q.stopped.Store(true)
	return nil
}

func (q *fakeQueue) Close() error {
	q.closed.Add(1)
	return nil
}

type fakeRules struct {
	closed atomic.Int32
}

func (r *fakeRules) Filter(*packet.Packet) error { return nil }

func (r *fakeRules) Close() error {
	r.closed.Add(1)
	return nil
}

func TestControllersManager_ContextDone(t *testing.T) {
	q1, q2 := &fakeQueue{}, &fakeQueue{}
	r := &fakeRules{}
	c := NewControllersManager(logrus.New(), r, q1, q2)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()

	require.NoError(t, c.Shutdown(ctx))
	assert.True(t, q1.stopped.Load())
	assert.True(t, q2.stopped.Load())
	assert.EqualValues(t, 1, q1.closed.Load())
	assert.EqualValues(t, 1, r.closed.Load())

	c.Stop()
	assert.EqualValues(t, 1, r.closed.Load(), "rules are closed once")
}

func TestControllersManager_QueueFailure(t *testing.T) {
	failing := &fakeQueue{err: errors.New("no queue")}
	healthy := &fakeQueue{}
	r := &fakeRules{}
	c := NewControllersManager(logrus.New(), r, failing, healthy)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Start(ctx)

	err := c.Shutdown(ctx)
	assert.EqualError(t, err, "no queue")
	assert.True(t, healthy.stopped.Load())
	assert.EqualValues(t, 1, r.closed.Load())
}

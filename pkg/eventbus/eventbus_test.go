package eventbus

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type assignmentCreated struct {
	code string
}

type positionDeleted struct {
	code string
}

func bufferedLogger(level logrus.Level) (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(level)
	return log, buf
}

func TestPublisher_PublishWarnsWithoutSubscribers(t *testing.T) {
	log, buf := bufferedLogger(logrus.WarnLevel)
	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *assignmentCreated) {
		t.Error("should not be called")
	})

	publisher.Publish(&positionDeleted{code: "HEAD"})
	require.Contains(t, buf.String(), "eventbus.Publish: no matching subscribers")
}

func TestPublisher_PublishWithContext(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var got string
	publisher.Subscribe(func(ctx context.Context, e *assignmentCreated) {
		got = e.code
	})

	publisher.Publish(context.Background(), &assignmentCreated{code: "STAFF"})
	require.Equal(t, "STAFF", got)
}

func TestMatchSignature(t *testing.T) {
	require.True(t, MatchSignature(func(e *assignmentCreated) {}, []any{&assignmentCreated{}}))
	require.False(t, MatchSignature(func(e *assignmentCreated) {}, []any{&positionDeleted{}}))
	require.False(t, MatchSignature(func(e *assignmentCreated) {}, []any{}))
	require.False(t, MatchSignature(func(e *assignmentCreated) {}, []any{&assignmentCreated{}, &assignmentCreated{}}))
	require.True(t, MatchSignature(func(ctx context.Context) {}, []any{context.Background()}))
	require.True(t, MatchSignature(func(e *assignmentCreated) {}, []any{nil}))
	require.False(t, MatchSignature("not a func", []any{}))
}

func TestPublisher_PanicRecovery(t *testing.T) {
	t.Run("panic is logged and other handlers still run", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.ErrorLevel)
		publisher := NewEventPublisher(log)

		var first, third bool
		publisher.Subscribe(func(e *assignmentCreated) { first = true })
		publisher.Subscribe(func(e *assignmentCreated) { panic("handler 2 panic") })
		publisher.Subscribe(func(e *assignmentCreated) { third = true })

		publisher.Publish(&assignmentCreated{code: "X"})
		require.True(t, first)
		require.True(t, third)
		require.Contains(t, buf.String(), "panicked")
		require.Contains(t, buf.String(), "handler 2 panic")
	})

	t.Run("all handlers panicking counts as unhandled", func(t *testing.T) {
		log, buf := bufferedLogger(logrus.WarnLevel)
		publisher := NewEventPublisher(log)
		publisher.Subscribe(func(e *assignmentCreated) { panic("always panics") })

		publisher.Publish(&assignmentCreated{})
		require.Contains(t, buf.String(), "no matching subscribers")
	})
}

func TestPublisher_PublishE(t *testing.T) {
	t.Run("returns ErrNoSubscribers when none match", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New())
		require.ErrorIs(t, publisher.PublishE(&assignmentCreated{}), ErrNoSubscribers)
	})

	t.Run("joins errors from multiple handlers", func(t *testing.T) {
		publisher := NewEventPublisher(logrus.New())
		err1, err2 := errors.New("err1"), errors.New("err2")
		publisher.Subscribe(func(e *assignmentCreated) error { return err1 })
		publisher.Subscribe(func(e *assignmentCreated) error { return err2 })

		err := publisher.PublishE(&assignmentCreated{})
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})

	t.Run("panic is surfaced as error", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		called := false
		publisher.Subscribe(func(e *assignmentCreated) error { panic("boom") })
		publisher.Subscribe(func(e *assignmentCreated) error { called = true; return nil })

		require.Error(t, publisher.PublishE(&assignmentCreated{}))
		require.True(t, called)
	})

	t.Run("invalid handler return", func(t *testing.T) {
		publisher := NewEventPublisher(nil)
		publisher.Subscribe(func(e *assignmentCreated) int { return 1 })
		require.ErrorIs(t, publisher.PublishE(&assignmentCreated{}), ErrInvalidHandlerReturn)
	})
}

func TestPublisher_UnsubscribeAndClear(t *testing.T) {
	publisher := NewEventPublisher(nil)
	h := func(e *assignmentCreated) {}
	publisher.Subscribe(h)
	publisher.Subscribe(func(e *positionDeleted) {})
	require.Equal(t, 2, publisher.SubscribersCount())

	publisher.Unsubscribe(h)
	require.Equal(t, 1, publisher.SubscribersCount())

	publisher.Clear()
	require.Zero(t, publisher.SubscribersCount())
}

func TestPublisher_ConcurrentPublish(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var mu sync.Mutex
	count := 0
	publisher.Subscribe(func(e *assignmentCreated) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			publisher.Publish(&assignmentCreated{})
		}()
	}
	wg.Wait()
	require.Equal(t, 20, count)
}

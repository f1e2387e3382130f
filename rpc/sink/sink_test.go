package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskfire/taskfire-go/rpc/common"
	"runtime"
	"sync"
	"testing"
	"time"
)

func work(i int) common.Envelope {
	return common.NewWorkEnvelope(json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
}

// TestFuncSink tests the function adapter
func TestFuncSink(t *testing.T) {
	var got []common.Envelope
	s := Func(func(env common.Envelope) { got = append(got, env) })

	s.Ingest(work(1))
	s.Ingest(work(2))

	require.Len(t, got, 2)
	assert.JSONEq(t, `{"n":1}`, string(got[0].Payload))
	assert.JSONEq(t, `{"n":2}`, string(got[1].Payload))

	// Discard must accept anything
	Discard.Ingest(work(3))
}

// TestQueueBasicOperations tests ingest and consume in order
func TestQueueBasicOperations(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	for i := 0; i < 10; i++ {
		q.Ingest(work(i))
	}

	for i := 0; i < 10; i++ {
		select {
		case env := <-q.Recv():
			assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(env.Payload))
			assert.Equal(t, common.KindWork, env.Kind)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	select {
	case env := <-q.Recv():
		t.Errorf("Queue should be empty, but got %v", env)
	case <-time.After(10 * time.Millisecond):
		// Expected timeout, queue is empty
	}
}

// TestQueueConcurrentProducers verifies the queue with multiple producers
func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	const numProducers = 10
	const itemsPerProducer = 500
	totalItems := numProducers * itemsPerProducer

	done := make(chan map[string]bool)
	go func() {
		received := make(map[string]bool)
		for len(received) < totalItems {
			select {
			case env := <-q.Recv():
				key := string(env.Payload)
				if received[key] {
					t.Errorf("Duplicate item received: %s", key)
				}
				received[key] = true
			case <-time.After(2 * time.Second):
				t.Errorf("Timeout waiting for items, received %d of %d", len(received), totalItems)
				done <- received
				return
			}
		}
		done <- received
	}()

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()
			base := producerID * itemsPerProducer
			for i := 0; i < itemsPerProducer; i++ {
				q.Ingest(work(base + i))
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}
	wg.Wait()

	select {
	case received := <-done:
		assert.Len(t, received, totalItems)
	case <-time.After(5 * time.Second):
		t.Fatalf("Timeout waiting for consumer to finish")
	}
}

// TestQueueClose verifies queued envelopes survive Close and later ones are dropped
func TestQueueClose(t *testing.T) {
	q := NewQueue()

	for i := 0; i < 5; i++ {
		q.Ingest(work(i))
	}
	q.Close()
	assert.True(t, q.IsClosed())

	q.Ingest(work(100))

	for i := 0; i < 5; i++ {
		select {
		case env := <-q.Recv():
			assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(env.Payload))
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	select {
	case _, ok := <-q.Recv():
		assert.False(t, ok, "Channel should be closed after draining")
	case <-time.After(time.Second):
		t.Fatal("Channel was not closed after draining")
	}
}

// TestBoundedQueue tests capacity, drop counting and ordering
func TestBoundedQueue(t *testing.T) {
	q := NewBoundedQueue(3)

	for i := 0; i < 5; i++ {
		q.Ingest(work(i))
	}

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(2), q.Dropped())

	for i := 0; i < 3; i++ {
		env, ok := q.TryNext()
		require.True(t, ok)
		assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(env.Payload))
	}

	_, ok := q.TryNext()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

// TestBoundedQueueNext tests the waiting consumer
func TestBoundedQueueNext(t *testing.T) {
	q := NewBoundedQueue(4)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Ingest(work(7))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, err := q.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":7}`, string(env.Payload))

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	_, err = q.Next(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

package intake

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	km := newKeyedMutex()
	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("c1")
			defer unlock()
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()
	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := km.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	unlockA()
}

func TestConcurrentTurnsOnOneChannel(t *testing.T) {
	h := newHarness(t, Config{})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	_, err := h.orch.OnSessionStart(context.Background(), "c1")
	require.NoError(t, err)
	h.say(t, "c1", "chest pain")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.orch.OnMessage(context.Background(), "c1", fmt.Sprintf("answer %d", i))
		}(i)
	}
	wg.Wait()

	// Both answers land; neither turn sees a stale session.
	assert.Equal(t, StateSelectingSlot, h.state(t, "c1"))
	assert.Equal(t, 0, h.orch.locks.size())
}

package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConcurrentReadersProceed(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	started := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithRLock(func() error {
				started <- struct{}{}
				time.Sleep(20 * time.Millisecond)
				return nil
			})
		}()
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first reader never started")
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("second reader did not start concurrently with the first")
	}
	wg.Wait()
}

func TestWriteExcludesReaders(t *testing.T) {
	l := New()
	var order []string
	var mu sync.Mutex

	l.Lock()
	done := make(chan struct{})
	go func() {
		_ = l.WithRLock(func() error {
			mu.Lock()
			order = append(order, "read")
			mu.Unlock()
			return nil
		})
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	order = append(order, "write")
	mu.Unlock()
	l.Unlock()

	<-done
	require.Equal(t, []string{"write", "read"}, order)
}

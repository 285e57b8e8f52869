package pipeline

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestClaims(t *testing.T) {
	t.Run("second acquire fails until release", func(t *testing.T) {
		c := newClaims()
		id := uuid.New()

		if !c.Acquire(id) {
			t.Fatal("first Acquire = false")
		}
		if c.Acquire(id) {
			t.Error("second Acquire = true, want false")
		}

		c.Release(id)
		if !c.Acquire(id) {
			t.Error("Acquire after Release = false")
		}
	})

	t.Run("distinct invoices do not contend", func(t *testing.T) {
		c := newClaims()
		if !c.Acquire(uuid.New()) || !c.Acquire(uuid.New()) {
			t.Error("Acquire on distinct ids failed")
		}
	})

	t.Run("concurrent acquire grants exactly one claim", func(t *testing.T) {
		c := newClaims()
		id := uuid.New()

		const attempts = 32
		var wg sync.WaitGroup
		granted := make(chan struct{}, attempts)

		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if c.Acquire(id) {
					granted <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(granted)

		if got := len(granted); got != 1 {
			t.Errorf("granted = %d claims, want 1", got)
		}
	})
}

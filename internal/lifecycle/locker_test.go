package lifecycle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketLocker_SerializesSameTicket(t *testing.T) {
	locker := NewTicketLocker()

	var mu sync.Mutex
	counter := 0
	maxSeen := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locker.Lock("ticket-1")
			defer release()

			mu.Lock()
			counter++
			if counter > maxSeen {
				maxSeen = counter
			}
			mu.Unlock()

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "only one holder at a time per ticket")
}

func TestTicketLocker_DifferentTicketsIndependent(t *testing.T) {
	locker := NewTicketLocker()

	releaseA := locker.Lock("ticket-a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := locker.Lock("ticket-b")
		release()
		close(done)
	}()
	<-done
}

func TestTicketLocker_EntryFreedAfterRelease(t *testing.T) {
	locker := NewTicketLocker()

	release := locker.Lock("ticket-1")
	release()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.entries, "released tickets must not leak lock entries")
}

package helpers

// Random synchronisation util stash

import (
	"time"

	"github.com/temoto/alive/v2"
)

// AliveSleep returns false if alive was stopped before d passed.
func AliveSleep(a *alive.Alive, d time.Duration) bool {
	if d <= 0 {
		return a.IsRunning()
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-tmr.C:
		return a.IsRunning()
	case <-a.StopChan():
		return false
	}
}

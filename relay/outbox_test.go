package relay

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aykevl/domo-rpi/log2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvTimeout(t testing.TB, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("outbox receive timeout")
		return nil
	}
}

func TestOutboxOrder(t *testing.T) {
	t.Parallel()
	ob, err := openOutbox("", log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	defer ob.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, ob.Push([]byte(fmt.Sprint(i))))
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprint(i), string(recvTimeout(t, ob.C())))
	}
}

func TestOutboxProducersDoNotBlock(t *testing.T) {
	t.Parallel()
	ob, err := openOutbox("", log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	defer ob.Close()

	const producers, each = 4, 25
	wg := sync.WaitGroup{}
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				assert.NoError(t, ob.Push([]byte(fmt.Sprintf("%d-%d", p, i))))
			}
		}(p)
	}
	// nobody consumes yet
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < producers*each; i++ {
		seen[string(recvTimeout(t, ob.C()))] = true
	}
	assert.Len(t, seen, producers*each)
}

func TestOutboxPersist(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "outbox")
	log := log2.NewTest(t, log2.LDebug)
	ob, err := openOutbox(path, log)
	require.NoError(t, err)
	require.NoError(t, ob.Push([]byte("first")))
	require.NoError(t, ob.Push([]byte("second")))
	// not received, so not deleted
	require.NoError(t, ob.Close())

	ob, err = openOutbox(path, log)
	require.NoError(t, err)
	defer ob.Close()
	assert.Equal(t, "first", string(recvTimeout(t, ob.C())))
	assert.Equal(t, "second", string(recvTimeout(t, ob.C())))
}

func TestOutboxClose(t *testing.T) {
	t.Parallel()
	ob, err := openOutbox("", log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	require.NoError(t, ob.Close())
	require.NoError(t, ob.Close())
	assert.Error(t, ob.Push([]byte("late")))
}

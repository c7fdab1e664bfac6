package lock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalLockerMutualExclusion(t *testing.T) {
	locker := NewLocalLocker()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire("k", 5*time.Second)
			require.NoError(t, err)
			defer release()

			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()

	// 临界区内同一时刻至多一个持有者
	require.Equal(t, 1, max)
}

func TestLocalLockerTimeout(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Acquire("k", time.Second)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = locker.Acquire("k", 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	// 超时快速失败，不死等
	require.Less(t, time.Since(start), time.Second)
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	locker := NewLocalLocker()

	release1, err := locker.Acquire("k1", time.Second)
	require.NoError(t, err)
	defer release1()

	// 不同键互不阻塞
	release2, err := locker.Acquire("k2", 50*time.Millisecond)
	require.NoError(t, err)
	release2()
}

func TestLocalLockerReleaseIsIdempotent(t *testing.T) {
	locker := NewLocalLocker()

	release, err := locker.Acquire("k", time.Second)
	require.NoError(t, err)
	release()
	release() // 重复释放无害

	release2, err := locker.Acquire("k", 50*time.Millisecond)
	require.NoError(t, err)
	release2()
}

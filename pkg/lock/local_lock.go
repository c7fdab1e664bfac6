package lock

import (
	"sync"
	"time"
)

// LocalLocker 进程内互斥锁，单实例部署和测试使用
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker 创建进程内锁实例
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		slots: make(map[string]chan struct{}),
	}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		// 容量为1的channel作为互斥信号量
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire 在 wait 时间内尝试获取锁
func (l *LocalLocker) Acquire(key string, wait time.Duration) (func(), error) {
	ch := l.slot(key)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() { <-ch })
		}
		return release, nil
	case <-timer.C:
		return nil, ErrTimeout
	}
}

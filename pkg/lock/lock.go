package lock

import "time"

// Locker 互斥锁接口
// Acquire 在 wait 时间内尝试获取名为 key 的锁，成功返回释放函数；
// 超时返回 ErrTimeout，调用方应转换为可重试错误而不是阻塞等待
type Locker interface {
	Acquire(key string, wait time.Duration) (release func(), err error)
}

// ErrTimeout 获取锁超时
type timeoutError struct{}

func (timeoutError) Error() string { return "获取锁超时" }

var ErrTimeout error = timeoutError{}

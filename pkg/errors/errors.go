package errors

import "errors"

var (
	// ErrLockTimeout 在超时前未能获取重算锁
	ErrLockTimeout = errors.New("获取重算锁超时，请稍后重试")
	// ErrLockNotHeld 释放锁时发现锁已过期或被他人持有
	ErrLockNotHeld = errors.New("重算锁已失效")
)

package pkg

import "sync"

type HasLocker interface{ GetLocker() *sync.RWMutex }

func LockWrap(i HasLocker, f func()) {
	i.GetLocker().Lock()
	defer i.GetLocker().Unlock()
	f()
}

func RLockWrap(i HasLocker, f func()) {
	i.GetLocker().RLock()
	defer i.GetLocker().RUnlock()
	f()
}

// LockWrapErr is LockWrap for callbacks that can fail.
func LockWrapErr(i HasLocker, f func() error) error {
	i.GetLocker().Lock()
	defer i.GetLocker().Unlock()
	return f()
}

func RLockWrapErr(i HasLocker, f func() error) error {
	i.GetLocker().RLock()
	defer i.GetLocker().RUnlock()
	return f()
}

// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

const (
	maxIdleLocks = 200              // 超过该数量才清理
	lockIdleTTL  = 30 * time.Minute // 空闲多久的锁可以清理
)

// LockManager 按会话分配的互斥锁
type LockManager struct {
	sessionLocks map[string]*LockInfo
	globalLock   sync.Mutex
}

// LockInfo 包装锁和相关信息
type LockInfo struct {
	Mutex          *sync.Mutex
	LastUsed       time.Time
	ReferenceCount int32 // 当前持有或等待该锁的调用数，为 0 时才允许清理
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	return &LockManager{
		sessionLocks: make(map[string]*LockInfo),
	}
}

func (lm *LockManager) acquire(sessionID string) *LockInfo {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	info, exists := lm.sessionLocks[sessionID]
	if !exists {
		lm.cleanupLocked()
		info = &LockInfo{Mutex: &sync.Mutex{}}
		lm.sessionLocks[sessionID] = info
	}
	info.ReferenceCount++
	info.LastUsed = time.Now()
	return info
}

func (lm *LockManager) release(info *LockInfo) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	info.ReferenceCount--
	info.LastUsed = time.Now()
}

// ExecuteWithSessionLock 在会话锁保护下执行操作
func (lm *LockManager) ExecuteWithSessionLock(sessionID string, fn func() error) error {
	info := lm.acquire(sessionID)
	defer lm.release(info)

	info.Mutex.Lock()
	defer info.Mutex.Unlock()
	return fn()
}

// Forget 会话删除后丢弃它的锁；仍被引用的锁保留到下次清理
func (lm *LockManager) Forget(sessionID string) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	if info, ok := lm.sessionLocks[sessionID]; ok && info.ReferenceCount == 0 {
		delete(lm.sessionLocks, sessionID)
	}
}

// Size 当前登记的锁数量
func (lm *LockManager) Size() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.sessionLocks)
}

// cleanupLocked 调用方需持有 globalLock
func (lm *LockManager) cleanupLocked() {
	if len(lm.sessionLocks) <= maxIdleLocks {
		return
	}
	now := time.Now()
	for id, info := range lm.sessionLocks {
		if info.ReferenceCount == 0 && now.Sub(info.LastUsed) > lockIdleTTL {
			delete(lm.sessionLocks, id)
		}
	}
}

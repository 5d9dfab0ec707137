package membership

import "sync"

// keyLock はキーごとの排他ロック。
// 使用中のキーだけをマップに保持し、最後の利用者が解放した時点で削除する。
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu      sync.Mutex
	waiters int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*keyLockEntry)}
}

// Lock はkeyのロックを取得し、解放関数を返す。
func (k *keyLock) Lock(key string) (unlock func()) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyLockEntry{}
		k.locks[key] = entry
	}
	entry.waiters++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.waiters--
		if entry.waiters == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size は保持中のキー数を返す。
func (k *keyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// listKey はリスト種別と料理IDからロックのキーを作る。
func listKey(list string, itemID string) string {
	return list + "\x00" + itemID
}

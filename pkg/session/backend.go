package session

import "sync"

// Backend 認証情報を永続化するキーバリューストア
type Backend interface {
	// Get キーの値を取得。存在しない場合は ok=false
	Get(key string) (value string, ok bool, err error)
	// Set キーに値を保存（上書き）
	Set(key, value string) error
	// Delete キーを削除。存在しなくてもエラーにしない
	Delete(key string) error
	// Close 接続を閉じる
	Close() error
}

// MemoryBackend プロセス内だけで保持するBackend（テスト・一時利用向け）
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryBackend 新しいMemoryBackendを作成
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (m *MemoryBackend) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}

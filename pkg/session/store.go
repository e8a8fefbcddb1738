// Package session は認証情報（Bearerトークン）の保持・永続化・破棄を扱います。
package session

import (
	"fmt"
	"sync"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// credentialKey 永続化する唯一のキー
const credentialKey = "token"

// Store 現在の認証情報を保持するセッションストア
// APIクライアントとオーケストレーション層に注入して使います。
type Store struct {
	backend Backend
	codec   *securecookie.SecureCookie
	logger  *zap.Logger

	mu        sync.RWMutex
	token     string
	listeners []func()
}

// NewStore 新しいStoreを作成
func NewStore(backend Backend, codec *securecookie.SecureCookie, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		codec:   codec,
		logger:  logger,
	}
}

// Restore 永続化された認証情報を読み込む（再起動後に再ログインを不要にする）
// 復号できないトークン（鍵の変更など）は存在しないものとして削除します。
func (s *Store) Restore() error {
	sealed, ok, err := s.backend.Get(credentialKey)
	if err != nil {
		return fmt.Errorf("failed to restore credential: %w", err)
	}
	if !ok || sealed == "" {
		return nil
	}

	var token string
	if err := s.codec.Decode(credentialKey, sealed, &token); err != nil {
		s.logger.Warn("discarding unreadable stored credential", zap.Error(err))
		if delErr := s.backend.Delete(credentialKey); delErr != nil {
			return fmt.Errorf("failed to discard stored credential: %w", delErr)
		}
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.logger.Debug("credential restored")
	return nil
}

// Credential 現在のトークンを返す
func (s *Store) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// SetCredential トークンを保存する
func (s *Store) SetCredential(token string) error {
	if token == "" {
		return fmt.Errorf("credential must not be empty")
	}
	sealed, err := s.codec.Encode(credentialKey, token)
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}
	if err := s.backend.Set(credentialKey, sealed); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// OnClear セッション破棄時に呼ばれるコールバックを登録
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Clear トークンを破棄し、登録済みの購読者すべてに通知する
// 永続化の削除に失敗した場合もメモリ上のトークンと購読者への通知は行います。
func (s *Store) Clear() error {
	s.mu.Lock()
	s.token = ""
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	err := s.backend.Delete(credentialKey)
	if err != nil {
		s.logger.Warn("failed to delete stored credential", zap.Error(err))
		err = fmt.Errorf("failed to delete stored credential: %w", err)
	}

	for _, fn := range listeners {
		fn()
	}
	return err
}

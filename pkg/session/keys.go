package session

import (
	"encoding/hex"
	"fmt"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

const (
	hashKeyName  = "session.hash_key"
	blockKeyName = "session.block_key"
)

// NewCodec 認証情報の封印に使うsecurecookieを作成
// 有効期限はサーバー側のトークン期限に任せるため MaxAge は無効化します。
func NewCodec(hashKey, blockKey []byte) *securecookie.SecureCookie {
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(0)
	return codec
}

// LoadCodec 設定値の鍵からcodecを作成する
// 鍵が設定されていない場合は Backend に保存済みの鍵を使い、なければ生成して保存します。
func LoadCodec(backend Backend, hashKeyValue, blockKeyValue string, logger *zap.Logger) (*securecookie.SecureCookie, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if hashKeyValue != "" {
		hashKey := decodeKey(hashKeyValue)
		var blockKey []byte
		if blockKeyValue != "" {
			blockKey = decodeKey(blockKeyValue)
			switch len(blockKey) {
			case 16, 24, 32:
			default:
				return nil, fmt.Errorf("session block key must be 16, 24 or 32 bytes, got %d", len(blockKey))
			}
		}
		return NewCodec(hashKey, blockKey), nil
	}

	hashKey, err := loadOrCreateKey(backend, hashKeyName, 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := loadOrCreateKey(backend, blockKeyName, 32)
	if err != nil {
		return nil, err
	}
	logger.Warn("FARMADVISOR_SESSION_HASH_KEY is not set; using keys stored next to the session database")
	return NewCodec(hashKey, blockKey), nil
}

func loadOrCreateKey(backend Backend, name string, length int) ([]byte, error) {
	stored, ok, err := backend.Get(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if ok {
		if key, err := hex.DecodeString(stored); err == nil && len(key) == length {
			return key, nil
		}
	}

	key := securecookie.GenerateRandomKey(length)
	if key == nil {
		return nil, fmt.Errorf("failed to generate %s", name)
	}
	if err := backend.Set(name, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", name, err)
	}
	return key, nil
}

// decodeKey 16進文字列であればデコードし、それ以外は文字列をそのまま鍵として使う
func decodeKey(value string) []byte {
	if key, err := hex.DecodeString(value); err == nil && len(key) > 0 {
		return key
	}
	return []byte(value)
}

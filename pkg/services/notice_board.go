package services

import (
	"sync"
	"time"

	"farmadvisor-client/pkg/models"

	"github.com/google/uuid"
)

// DefaultNoticeTTL 通知が自動で消えるまでの時間
const DefaultNoticeTTL = 5 * time.Second

// NoticeBoard はユーザー向けの一時メッセージを保持し、一定時間後に自動で消します。
type NoticeBoard struct {
	ttl time.Duration

	mu      sync.Mutex
	notices []models.Notice
	timers  map[string]*time.Timer
}

// NewNoticeBoard 新しいNoticeBoardを作成
func NewNoticeBoard(ttl time.Duration) *NoticeBoard {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &NoticeBoard{
		ttl:     ttl,
		notices: make([]models.Notice, 0),
		timers:  make(map[string]*time.Timer),
	}
}

// Post 通知を追加する。同じ内容の通知が表示中であればそれを返す
func (b *NoticeBoard) Post(text string, noticeType models.NoticeType) models.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range b.notices {
		if n.Text == text && n.Type == noticeType {
			return n
		}
	}

	n := models.Notice{
		ID:        uuid.NewString(),
		Text:      text,
		Type:      noticeType,
		CreatedAt: time.Now(),
	}
	b.notices = append(b.notices, n)
	b.timers[n.ID] = time.AfterFunc(b.ttl, func() { b.Dismiss(n.ID) })
	return n
}

// Success 成功メッセージを追加
func (b *NoticeBoard) Success(text string) models.Notice {
	return b.Post(text, models.NoticeSuccess)
}

// Error エラーメッセージを追加
func (b *NoticeBoard) Error(text string) models.Notice {
	return b.Post(text, models.NoticeError)
}

// Active 表示中の通知（古い順）
func (b *NoticeBoard) Active() []models.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

// Dismiss 通知を消す。存在しなければ false
func (b *NoticeBoard) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, n := range b.notices {
		if n.ID != id {
			continue
		}
		b.notices = append(b.notices[:i], b.notices[i+1:]...)
		if t, ok := b.timers[id]; ok {
			t.Stop()
			delete(b.timers, id)
		}
		return true
	}
	return false
}

// Close 残っているタイマーをすべて止める
func (b *NoticeBoard) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}

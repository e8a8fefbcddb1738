// Package cache はセッション単位のメモリキャッシュを提供します。
//
// 各エントリは更新要求ごとにシーケンス番号を発行し、最後に適用された番号より
// 新しい応答だけを反映します。遅れて届いた古い応答は破棄されます。
// 購読者への通知はエントリごとに直列化され、通知時点で最新の変更だけが届きます。
package cache

import "sync"

// Entry 1種類のデータを保持するキャッシュエントリ
type Entry[T any] struct {
	mu          sync.RWMutex
	value       T
	present     bool
	issued      uint64
	applied     uint64
	version     uint64
	subscribers []func(value T, present bool)

	notifyMu sync.Mutex
}

// NewEntry 空のEntryを作成
func NewEntry[T any]() *Entry[T] {
	return &Entry[T]{}
}

// Begin 新しい更新要求のシーケンス番号を発行
func (e *Entry[T]) Begin() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.issued++
	return e.issued
}

// Apply seq が最後に適用された番号より新しい場合のみ値を置き換える
// 反映した場合は true を返し、購読者に通知します。
func (e *Entry[T]) Apply(seq uint64, value T) bool {
	e.mu.Lock()
	if seq <= e.applied || seq > e.issued {
		e.mu.Unlock()
		return false
	}
	e.value = value
	e.present = true
	e.applied = seq
	e.version++
	version := e.version
	e.mu.Unlock()

	e.notify(version)
	return true
}

// Set 通信を伴わない直接の置き換え（ログイン応答からの初期値など）
func (e *Entry[T]) Set(value T) {
	e.Apply(e.Begin(), value)
}

// Get 現在の値を返す
func (e *Entry[T]) Get() (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value, e.present
}

// Present 値が存在するか
func (e *Entry[T]) Present() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.present
}

// Reset 値を空にし、処理中の要求をすべて無効にする
func (e *Entry[T]) Reset() {
	e.mu.Lock()
	var zero T
	e.value = zero
	e.present = false
	e.applied = e.issued
	e.version++
	version := e.version
	e.mu.Unlock()

	e.notify(version)
}

// notify version の変更を購読者に通知する。
// 待っている間に新しい変更があれば、その変更側が通知するので何もしない。
func (e *Entry[T]) notify(version uint64) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.RLock()
	if version != e.version {
		e.mu.RUnlock()
		return
	}
	value, present := e.value, e.present
	subscribers := e.snapshotSubscribers()
	e.mu.RUnlock()

	for _, fn := range subscribers {
		fn(value, present)
	}
}

// Subscribe 値の置き換え・リセット時に呼ばれるコールバックを登録
// コールバックの中で同じエントリを更新してはいけません。
func (e *Entry[T]) Subscribe(fn func(value T, present bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

func (e *Entry[T]) snapshotSubscribers() []func(T, bool) {
	out := make([]func(T, bool), len(e.subscribers))
	copy(out, e.subscribers)
	return out
}

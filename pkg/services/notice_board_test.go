package services

import (
	"testing"
	"time"

	"farmadvisor-client/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoticeBoardAutoDismiss(t *testing.T) {
	board := NewNoticeBoard(30 * time.Millisecond)
	defer board.Close()

	board.Success("Saved")
	require.Len(t, board.Active(), 1)

	assert.Eventually(t, func() bool {
		return len(board.Active()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestNoticeBoardDeduplicatesVisibleNotices(t *testing.T) {
	board := NewNoticeBoard(time.Minute)
	defer board.Close()

	first := board.Error("Token has expired")
	second := board.Error("Token has expired")
	board.Success("Token has expired")

	assert.Equal(t, first.ID, second.ID)
	active := board.Active()
	require.Len(t, active, 2)
	assert.Equal(t, models.NoticeError, active[0].Type)
	assert.Equal(t, models.NoticeSuccess, active[1].Type)
}

func TestNoticeBoardDismiss(t *testing.T) {
	board := NewNoticeBoard(time.Minute)
	defer board.Close()

	n := board.Success("Record deleted")
	assert.True(t, board.Dismiss(n.ID))
	assert.False(t, board.Dismiss(n.ID))
	assert.Empty(t, board.Active())

	// 消えた後は同じ文言を再度表示できる
	again := board.Success("Record deleted")
	assert.NotEqual(t, n.ID, again.ID)
}

func TestNoticeBoardDefaultTTL(t *testing.T) {
	board := NewNoticeBoard(0)
	defer board.Close()
	assert.Equal(t, DefaultNoticeTTL, board.ttl)
}

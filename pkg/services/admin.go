package services

import (
	"context"
	"strings"

	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/models"
)

// requireAdmin 管理者フラグのあるユーザーでなければ Forbidden
func (s *AdvisorService) requireAdmin() error {
	user, ok := s.user.Get()
	if !ok || user == nil || !user.IsAdmin {
		return apierr.Forbidden("Administrator access required")
	}
	return nil
}

// IsAdmin 現在のユーザーが管理者か
func (s *AdvisorService) IsAdmin() bool {
	return s.requireAdmin() == nil
}

// AdminUsers 全ユーザー一覧
func (s *AdvisorService) AdminUsers(ctx context.Context) ([]models.User, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, s.fail("admin users", err)
	}
	users, err := s.api.AdminUsers(ctx)
	if err != nil {
		return nil, s.fail("admin users", err)
	}
	return users, nil
}

// AdminAnalytics 指定ユーザーの分析統計と変換結果
func (s *AdvisorService) AdminAnalytics(ctx context.Context, userID string) (*models.AnalyticsSummary, models.Projection, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, models.Projection{}, s.fail("admin analytics", err)
	}
	summary, err := s.api.AdminAnalytics(ctx, userID)
	if err != nil {
		return nil, models.Projection{}, s.fail("admin analytics", err)
	}
	return summary, ProjectAnalytics(summary), nil
}

// AdminHistory 指定ユーザーの履歴
func (s *AdvisorService) AdminHistory(ctx context.Context, userID string) (*models.HistoryPage, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, s.fail("admin history", err)
	}
	page, err := s.api.AdminHistory(ctx, userID)
	if err != nil {
		return nil, s.fail("admin history", err)
	}
	return page, nil
}

// AdminAddConfigItem 選択肢を追加し、キャッシュ済みの選択肢を破棄する
func (s *AdvisorService) AdminAddConfigItem(ctx context.Context, kind models.ConfigKind, item string) error {
	item = strings.TrimSpace(item)
	if err := s.requireAdmin(); err != nil {
		return s.fail("admin add config", err)
	}
	if item == "" {
		return s.fail("admin add config", apierr.ValidationFailed("Item must not be empty"))
	}
	if err := s.api.AdminAddConfigItem(ctx, kind, item); err != nil {
		return s.fail("admin add config", err)
	}
	s.options.Reset()
	s.notices.Success("Added " + item)
	return nil
}

// AdminRemoveConfigItem 選択肢を削除し、キャッシュ済みの選択肢を破棄する
func (s *AdvisorService) AdminRemoveConfigItem(ctx context.Context, kind models.ConfigKind, item string) error {
	if err := s.requireAdmin(); err != nil {
		return s.fail("admin remove config", err)
	}
	if err := s.api.AdminRemoveConfigItem(ctx, kind, item); err != nil {
		return s.fail("admin remove config", err)
	}
	s.options.Reset()
	s.notices.Success("Removed " + item)
	return nil
}

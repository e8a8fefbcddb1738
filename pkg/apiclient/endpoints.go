package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/models"
)

// analyticsPaths 分析統計のエンドポイント（改版により名前が異なる）
var analyticsPaths = []string{"/analytics", "/farmer-analytics"}

// AuthResponse ログイン・登録の応答
type AuthResponse struct {
	Token string
	User  models.User
}

type wireAuth struct {
	Token string   `json:"token"`
	User  wireUser `json:"user"`
}

// Login ログインしてトークンとユーザー情報を取得
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/login", req)
}

// Register 新規登録してトークンとユーザー情報を取得
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*AuthResponse, error) {
	return c.authenticate(ctx, "/register", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*AuthResponse, error) {
	var resp wireAuth
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp, callOptions{expectJSON: true, signIn: true}); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, malformed(path+" response without token", nil)
	}
	return &AuthResponse{Token: resp.Token, User: resp.User.normalize()}, nil
}

// ConfigList 選択肢リストを取得
func (c *Client) ConfigList(ctx context.Context, kind models.ConfigKind) ([]string, error) {
	var resp struct {
		Data []string `json:"data"`
	}
	if err := c.Do(ctx, http.MethodGet, "/config/"+string(kind), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return []string{}, nil
	}
	return resp.Data, nil
}

type wireFarm struct {
	FarmDetails *models.FarmProfile `json:"farm_details"`
	Farm        *models.FarmProfile `json:"farm"`
}

func (w wireFarm) profile(path string) (*models.FarmProfile, error) {
	if w.FarmDetails != nil {
		return w.FarmDetails, nil
	}
	if w.Farm != nil {
		return w.Farm, nil
	}
	return nil, malformed(path+" response without farm details", nil)
}

// FarmProfile 農場情報を取得
func (c *Client) FarmProfile(ctx context.Context) (*models.FarmProfile, error) {
	var resp wireFarm
	if err := c.Do(ctx, http.MethodGet, "/farm/profile", nil, &resp); err != nil {
		return nil, err
	}
	return resp.profile("/farm/profile")
}

// UpdateFarm 農場情報を更新し、保存後の内容を返す
func (c *Client) UpdateFarm(ctx context.Context, farm models.FarmProfile) (*models.FarmProfile, error) {
	var resp wireFarm
	if err := c.Do(ctx, http.MethodPost, "/farm/update", farm, &resp); err != nil {
		return nil, err
	}
	return resp.profile("/farm/update")
}

// Predict 入力パラメータを送信して適合性判定を取得
func (c *Client) Predict(ctx context.Context, input models.AnalysisInput) (*models.PredictionResult, error) {
	var resp struct {
		Result *wireResult `json:"result"`
	}
	if err := c.Do(ctx, http.MethodPost, "/predict", input, &resp); err != nil {
		return nil, err
	}
	return normalizePrediction(resp.Result)
}

// History 履歴の指定ページを取得
func (c *Client) History(ctx context.Context, page, limit int) (*models.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp wireHistoryPage
	if err := c.Do(ctx, http.MethodGet, "/history?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return normalizeHistoryPage(resp, page, limit), nil
}

// DeleteHistory 履歴1件を削除
func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/history/"+url.PathEscape(id), nil, nil)
}

// Analytics 分析統計を取得。/analytics が存在しない改版では /farmer-analytics を使う
func (c *Client) Analytics(ctx context.Context) (*models.AnalyticsSummary, error) {
	var lastErr error
	for _, path := range analyticsPaths {
		summary, err := c.analyticsAt(ctx, path)
		if err == nil {
			return summary, nil
		}
		lastErr = err
		var e *apierr.Error
		if !errors.As(err, &e) || e.Kind != apierr.KindRejected || e.Status != http.StatusNotFound {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) analyticsAt(ctx context.Context, path string) (*models.AnalyticsSummary, error) {
	var resp struct {
		Analytics *wireAnalytics `json:"analytics"`
		Data      *wireAnalytics `json:"data"`
		wireAnalytics
	}
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	switch {
	case resp.Analytics != nil:
		return normalizeAnalytics(resp.Analytics), nil
	case resp.Data != nil:
		return normalizeAnalytics(resp.Data), nil
	default:
		return normalizeAnalytics(&resp.wireAnalytics), nil
	}
}

// ReportRequest サーバー側レポート生成の入力
type ReportRequest struct {
	Result *models.PredictionResult `json:"result"`
	Input  models.AnalysisInput     `json:"input"`
	Farm   *models.FarmProfile      `json:"farm,omitempty"`
	Farmer string                   `json:"farmer,omitempty"`
}

// GenerateReport サーバーでレポートを描画し、表示可能な文書を返す
func (c *Client) GenerateReport(ctx context.Context, req ReportRequest) ([]byte, string, error) {
	return c.DoRaw(ctx, http.MethodPost, "/generate-report", req)
}

// --- 管理者向け（サーバー側のAPIをそのまま中継） ---

// AdminUsers 全ユーザー一覧
func (c *Client) AdminUsers(ctx context.Context) ([]models.User, error) {
	var resp struct {
		Users []wireUser `json:"users"`
	}
	if err := c.Do(ctx, http.MethodGet, "/admin/users", nil, &resp); err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(resp.Users))
	for _, u := range resp.Users {
		users = append(users, u.normalize())
	}
	return users, nil
}

// AdminAnalytics 指定ユーザーの分析統計
func (c *Client) AdminAnalytics(ctx context.Context, userID string) (*models.AnalyticsSummary, error) {
	return c.analyticsAt(ctx, "/admin/analytics/"+url.PathEscape(userID))
}

// AdminHistory 指定ユーザーの履歴
func (c *Client) AdminHistory(ctx context.Context, userID string) (*models.HistoryPage, error) {
	var resp wireHistoryPage
	if err := c.Do(ctx, http.MethodGet, "/admin/history/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return normalizeHistoryPage(resp, 1, 0), nil
}

// AdminAddConfigItem 選択肢を追加
func (c *Client) AdminAddConfigItem(ctx context.Context, kind models.ConfigKind, item string) error {
	body := map[string]string{"item": item}
	return c.Do(ctx, http.MethodPost, fmt.Sprintf("/admin/config/%s", kind), body, nil)
}

// AdminRemoveConfigItem 選択肢を削除
func (c *Client) AdminRemoveConfigItem(ctx context.Context, kind models.ConfigKind, item string) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/admin/config/%s/%s", kind, url.PathEscape(item)), nil, nil)
}

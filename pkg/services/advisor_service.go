package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"farmadvisor-client/pkg/apiclient"
	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/cache"
	"farmadvisor-client/pkg/models"
	"farmadvisor-client/pkg/report"

	"go.uber.org/zap"
)

// AdvisorAPI ファームアドバイザーAPIのうちオーケストレーションが使う操作
type AdvisorAPI interface {
	Login(ctx context.Context, req models.LoginRequest) (*apiclient.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*apiclient.AuthResponse, error)
	ConfigList(ctx context.Context, kind models.ConfigKind) ([]string, error)
	FarmProfile(ctx context.Context) (*models.FarmProfile, error)
	UpdateFarm(ctx context.Context, farm models.FarmProfile) (*models.FarmProfile, error)
	Predict(ctx context.Context, input models.AnalysisInput) (*models.PredictionResult, error)
	History(ctx context.Context, page, limit int) (*models.HistoryPage, error)
	DeleteHistory(ctx context.Context, id string) error
	Analytics(ctx context.Context) (*models.AnalyticsSummary, error)
	AdminUsers(ctx context.Context) ([]models.User, error)
	AdminAnalytics(ctx context.Context, userID string) (*models.AnalyticsSummary, error)
	AdminHistory(ctx context.Context, userID string) (*models.HistoryPage, error)
	AdminAddConfigItem(ctx context.Context, kind models.ConfigKind, item string) error
	AdminRemoveConfigItem(ctx context.Context, kind models.ConfigKind, item string) error
}

// Session 認証情報の保持とセッション破棄の通知
type Session interface {
	Credential() (string, bool)
	SetCredential(token string) error
	Clear() error
	OnClear(fn func())
}

// ChartBinder 分析統計の変換結果をグラフ描画面に反映する
type ChartBinder interface {
	BindProjection(p models.Projection) error
	ReleaseAll()
}

// AdvisorOptions AdvisorServiceの設定
type AdvisorOptions struct {
	MaxFertilizerQuantity float64
	HistoryPageSize       int
}

// AdvisorService はセッション・キャッシュ・更新処理をまとめるオーケストレーション層です。
//
// キャッシュの各エントリは更新要求ごとにシーケンス番号を発行し、古い応答は破棄します。
// セッションが破棄されると全エントリとグラフを空に戻します。
type AdvisorService struct {
	api       AdvisorAPI
	session   Session
	charts    ChartBinder
	assembler report.Assembler
	notices   *NoticeBoard
	validator *InputValidator
	logger    *zap.Logger
	pageSize  int

	user      *cache.Entry[*models.User]
	farm      *cache.Entry[*models.FarmProfile]
	result    *cache.Entry[analysisOutcome]
	history   *cache.Entry[*models.HistoryPage]
	analytics *cache.Entry[*models.AnalyticsSummary]
	options   *cache.Entry[models.ConfigOptions]

	historyPage atomic.Int64
	busy        atomic.Bool
}

// analysisOutcome 予測結果と、それを得た入力の組
type analysisOutcome struct {
	Input  models.AnalysisInput
	Result *models.PredictionResult
}

// NewAdvisorService 新しいAdvisorServiceを作成し、セッション破棄と分析統計の更新を購読する
func NewAdvisorService(api AdvisorAPI, session Session, charts ChartBinder, assembler report.Assembler, notices *NoticeBoard, opts AdvisorOptions, logger *zap.Logger) *AdvisorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notices == nil {
		notices = NewNoticeBoard(DefaultNoticeTTL)
	}
	if opts.HistoryPageSize <= 0 {
		opts.HistoryPageSize = 10
	}
	if opts.MaxFertilizerQuantity <= 0 {
		opts.MaxFertilizerQuantity = DefaultMaxFertilizerQuantity
	}

	s := &AdvisorService{
		api:       api,
		session:   session,
		charts:    charts,
		assembler: assembler,
		notices:   notices,
		validator: NewInputValidator(opts.MaxFertilizerQuantity),
		logger:    logger,
		pageSize:  opts.HistoryPageSize,
		user:      cache.NewEntry[*models.User](),
		farm:      cache.NewEntry[*models.FarmProfile](),
		result:    cache.NewEntry[analysisOutcome](),
		history:   cache.NewEntry[*models.HistoryPage](),
		analytics: cache.NewEntry[*models.AnalyticsSummary](),
		options:   cache.NewEntry[models.ConfigOptions](),
	}
	s.historyPage.Store(1)

	// グラフの再描画は分析統計の置き換え時だけ行う
	s.analytics.Subscribe(func(summary *models.AnalyticsSummary, present bool) {
		if s.charts == nil {
			return
		}
		if !present {
			summary = nil
		}
		if err := s.charts.BindProjection(ProjectAnalytics(summary)); err != nil {
			s.logger.Warn("failed to bind analytics charts", zap.Error(err))
		}
	})
	session.OnClear(s.resetSessionState)
	return s
}

// resetSessionState セッション破棄時に全キャッシュとグラフを空に戻す
func (s *AdvisorService) resetSessionState() {
	s.user.Reset()
	s.farm.Reset()
	s.result.Reset()
	s.history.Reset()
	s.analytics.Reset()
	s.historyPage.Store(1)
	if s.charts != nil {
		s.charts.ReleaseAll()
	}
	s.logger.Info("session cleared, caches reset")
}

// Notices 通知ボード
func (s *AdvisorService) Notices() *NoticeBoard {
	return s.notices
}

// Validator 入力チェック
func (s *AdvisorService) Validator() *InputValidator {
	return s.validator
}

// fail エラーを記録し、ユーザー向けの一時メッセージに変換して返す
func (s *AdvisorService) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	s.logger.Warn("operation failed", zap.String("operation", op), zap.String("kind", string(apierr.KindOf(err))), zap.Error(err))
	s.notices.Error(apierr.UserMessage(err))
	return err
}

// refresh シーケンス番号を発行して取得し、最新の要求であればキャッシュを置き換える
func refresh[T any](ctx context.Context, entry *cache.Entry[T], fetch func(context.Context) (T, error)) (T, bool, error) {
	seq := entry.Begin()
	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return value, entry.Apply(seq, value), nil
}

// --- 認証 ---

// Login ログインしてセッションを確立し、農場情報・履歴・分析統計を読み込む
func (s *AdvisorService) Login(ctx context.Context, email, password string) (*models.User, LoadReport, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, LoadReport{}, s.fail("login", apierr.ValidationFailed("Email and password are required"))
	}
	resp, err := s.api.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, LoadReport{}, s.fail("login", err)
	}
	return s.establish(ctx, resp, "Login successful!")
}

// Register 新規登録してセッションを確立する
func (s *AdvisorService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, LoadReport, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return nil, LoadReport{}, s.fail("register", apierr.ValidationFailed("Email and password are required"))
	}
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, LoadReport{}, s.fail("register", err)
	}
	return s.establish(ctx, resp, "Registration successful!")
}

func (s *AdvisorService) establish(ctx context.Context, resp *apiclient.AuthResponse, message string) (*models.User, LoadReport, error) {
	// 別ユーザーのキャッシュが残らないよう確立前に空にする
	s.resetSessionState()
	if err := s.session.SetCredential(resp.Token); err != nil {
		return nil, LoadReport{}, s.fail("store credential", err)
	}
	user := resp.User
	s.user.Set(&user)
	if user.FarmDetails != nil {
		s.farm.Set(user.FarmDetails)
	}
	s.notices.Success(message)
	s.logger.Info("session established", zap.String("user_id", user.ID))

	loadReport := s.LoadSession(ctx)
	return &user, loadReport, nil
}

// Logout セッションを破棄する（購読によりキャッシュとグラフも空になる）
func (s *AdvisorService) Logout() error {
	if err := s.session.Clear(); err != nil {
		return s.fail("logout", err)
	}
	s.notices.Success("Logged out successfully")
	return nil
}

// LoadReport セッション確立時の読み込み結果（エンティティごとに独立）
type LoadReport struct {
	Farm      error `json:"-"`
	History   error `json:"-"`
	Analytics error `json:"-"`
}

// Failed 失敗したエンティティ名
func (r LoadReport) Failed() []string {
	failed := make([]string, 0, 3)
	if r.Farm != nil {
		failed = append(failed, "farm")
	}
	if r.History != nil {
		failed = append(failed, "history")
	}
	if r.Analytics != nil {
		failed = append(failed, "analytics")
	}
	return failed
}

// LoadSession 農場情報・履歴1ページ目・分析統計を並行して取得する
// 1つが失敗しても他の取得は止めず、反映済みの値も取り消しません。
func (s *AdvisorService) LoadSession(ctx context.Context) LoadReport {
	var (
		wg  sync.WaitGroup
		out LoadReport
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		out.Farm = s.RefreshFarmProfile(ctx)
	}()
	go func() {
		defer wg.Done()
		_, out.History = s.RefreshHistory(ctx, 1)
	}()
	go func() {
		defer wg.Done()
		_, out.Analytics = s.RefreshAnalytics(ctx)
	}()
	wg.Wait()
	return out
}

// --- 個別の更新 ---

// RefreshFarmProfile 農場情報を取得し直す
// 取得エンドポイントのないサービスでは、ログイン応答の値を使い続けます。
func (s *AdvisorService) RefreshFarmProfile(ctx context.Context) error {
	_, _, err := refresh(ctx, s.farm, s.api.FarmProfile)
	if err != nil {
		var e *apierr.Error
		if s.farm.Present() && asRejected(err, &e) && e.Status == http.StatusNotFound {
			s.logger.Debug("farm profile endpoint unavailable, keeping login profile")
			return nil
		}
		return s.fail("refresh farm profile", err)
	}
	return nil
}

// RefreshHistory 履歴の指定ページを取得する（1未満は1ページ目）
func (s *AdvisorService) RefreshHistory(ctx context.Context, page int) (*models.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	result, applied, err := refresh(ctx, s.history, func(ctx context.Context) (*models.HistoryPage, error) {
		return s.api.History(ctx, page, s.pageSize)
	})
	if err != nil {
		return nil, s.fail("refresh history", err)
	}
	if applied {
		s.historyPage.Store(int64(result.Page))
	}
	current, _ := s.history.Get()
	return current, nil
}

// RefreshAnalytics 分析統計を取得し直す（反映されるとグラフも再描画される）
func (s *AdvisorService) RefreshAnalytics(ctx context.Context) (*models.AnalyticsSummary, error) {
	_, _, err := refresh(ctx, s.analytics, s.api.Analytics)
	if err != nil {
		return nil, s.fail("refresh analytics", err)
	}
	current, _ := s.analytics.Get()
	return current, nil
}

// ActivateAnalytics 分析タブの表示時に呼ぶ。未取得の場合だけ取得する
func (s *AdvisorService) ActivateAnalytics(ctx context.Context) (*models.AnalyticsSummary, error) {
	if summary, ok := s.analytics.Get(); ok {
		return summary, nil
	}
	return s.RefreshAnalytics(ctx)
}

// --- 分析 ---

// ValidateInput 送信前の範囲チェック（通信しない）
func (s *AdvisorService) ValidateInput(input models.AnalysisInput) error {
	return s.validator.Validate(input)
}

// SubmitAnalysis 入力をチェックして予測を依頼し、成功したら履歴1ページ目と分析統計を並行して更新する
// 範囲外の入力は通信せずに ValidationFailed を返し、処理中の再送信は Busy を返します。
func (s *AdvisorService) SubmitAnalysis(ctx context.Context, input models.AnalysisInput) (*models.PredictionResult, error) {
	if err := s.validator.Validate(input); err != nil {
		return nil, s.fail("validate analysis", err)
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, s.fail("submit analysis", apierr.Busy("An analysis is already in progress"))
	}

	outcome, _, err := refresh(ctx, s.result, func(ctx context.Context) (analysisOutcome, error) {
		result, err := s.api.Predict(ctx, input)
		if err != nil {
			return analysisOutcome{}, err
		}
		return analysisOutcome{Input: input, Result: result}, nil
	})
	s.busy.Store(false)
	if err != nil {
		return nil, s.fail("submit analysis", err)
	}
	result := outcome.Result
	s.notices.Success("Analysis completed successfully!")

	// 新しい記録が見えるよう履歴は1ページ目に戻す
	s.refreshAfterChange(ctx, 1)
	return result, nil
}

// refreshAfterChange 履歴と分析統計を並行して更新する。失敗は通知のみ
func (s *AdvisorService) refreshAfterChange(ctx context.Context, page int) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.RefreshHistory(ctx, page)
	}()
	go func() {
		defer wg.Done()
		_, _ = s.RefreshAnalytics(ctx)
	}()
	wg.Wait()
}

// Busy 予測の処理中か
func (s *AdvisorService) Busy() bool {
	return s.busy.Load()
}

// DeleteHistoryRecord 履歴1件を削除し、現在のページと分析統計を更新する
func (s *AdvisorService) DeleteHistoryRecord(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.fail("delete history", apierr.ValidationFailed("History record id is required"))
	}
	if err := s.api.DeleteHistory(ctx, id); err != nil {
		return s.fail("delete history", err)
	}
	s.notices.Success("Record deleted")
	s.refreshAfterChange(ctx, int(s.historyPage.Load()))
	return nil
}

// UpdateFarm 農場情報を更新し、保存後の内容でキャッシュを置き換える
func (s *AdvisorService) UpdateFarm(ctx context.Context, farm models.FarmProfile) (*models.FarmProfile, error) {
	updated, _, err := refresh(ctx, s.farm, func(ctx context.Context) (*models.FarmProfile, error) {
		return s.api.UpdateFarm(ctx, farm)
	})
	if err != nil {
		return nil, s.fail("update farm", err)
	}
	s.notices.Success("Farm details updated")
	return updated, nil
}

// ConfigOptions 入力フォームの選択肢を並行して取得する。1つでも失敗したら固定リストを返す
func (s *AdvisorService) ConfigOptions(ctx context.Context) models.ConfigOptions {
	if cached, ok := s.options.Get(); ok {
		return cached
	}

	kinds := []models.ConfigKind{models.ConfigSoilTypes, models.ConfigCropTypes, models.ConfigFertilizerNames}
	lists := make([][]string, len(kinds))
	errs := make([]error, len(kinds))

	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind models.ConfigKind) {
			defer wg.Done()
			lists[i], errs[i] = s.api.ConfigList(ctx, kind)
		}(i, kind)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil || len(lists[i]) == 0 {
			s.logger.Info("using static config options", zap.String("kind", string(kinds[i])), zap.Error(err))
			return models.StaticConfigOptions()
		}
	}
	opts := models.ConfigOptions{SoilTypes: lists[0], CropTypes: lists[1], FertilizerNames: lists[2]}
	s.options.Set(opts)
	return opts
}

// GenerateReport キャッシュ済みの予測結果と入力からレポートを作る（再取得・再検証はしない）
func (s *AdvisorService) GenerateReport(ctx context.Context) (*report.Document, error) {
	outcome, _ := s.result.Get()
	farm, _ := s.farm.Get()
	user, _ := s.user.Get()

	doc, err := s.assembler.Assemble(ctx, report.Input{Result: outcome.Result, Input: outcome.Input, Farm: farm, User: user})
	if err != nil {
		return nil, s.fail("generate report", err)
	}
	return doc, nil
}

// --- 状態の参照 ---

// State UIに返すスナップショット
type State struct {
	View        models.View              `json:"view"`
	User        *models.User             `json:"user"`
	Farm        *models.FarmProfile      `json:"farm"`
	Result      *models.PredictionResult `json:"result"`
	LastInput   *models.AnalysisInput    `json:"last_input"`
	History     *models.HistoryPage      `json:"history"`
	HistoryPage int                      `json:"history_page"`
	Analytics   *models.AnalyticsSummary `json:"analytics"`
	Busy        bool                     `json:"busy"`
}

// View 表示すべき画面（認証情報がなければログイン画面）
func (s *AdvisorService) View() models.View {
	if _, ok := s.session.Credential(); ok {
		return models.ViewDashboard
	}
	return models.ViewLogin
}

// State 現在のキャッシュ内容を返す
func (s *AdvisorService) State() State {
	st := State{
		View:        s.View(),
		HistoryPage: int(s.historyPage.Load()),
		Busy:        s.busy.Load(),
	}
	st.User, _ = s.user.Get()
	st.Farm, _ = s.farm.Get()
	if outcome, ok := s.result.Get(); ok {
		st.Result = outcome.Result
		st.LastInput = &outcome.Input
	}
	st.History, _ = s.history.Get()
	st.Analytics, _ = s.analytics.Get()
	return st
}

// Result 最後の予測結果
func (s *AdvisorService) Result() (*models.PredictionResult, bool) {
	outcome, ok := s.result.Get()
	return outcome.Result, ok && outcome.Result != nil
}

// DefaultInput 入力フォームの初期値（直前の入力、なければ農場情報から）
func (s *AdvisorService) DefaultInput() models.AnalysisInput {
	if outcome, ok := s.result.Get(); ok {
		return outcome.Input
	}
	farm, _ := s.farm.Get()
	return models.DefaultAnalysisInput(farm)
}

// Projection キャッシュ済みの分析統計の変換結果
func (s *AdvisorService) Projection() models.Projection {
	summary, _ := s.analytics.Get()
	return ProjectAnalytics(summary)
}

func asRejected(err error, target **apierr.Error) bool {
	return errors.As(err, target) && (*target).Kind == apierr.KindRejected
}

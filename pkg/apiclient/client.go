// Package apiclient はファームアドバイザーAPIへの唯一のHTTPアクセス口です。
//
// すべてのリクエストに認証情報を付与し、通信エラーを Timeout / Unauthenticated /
// Rejected に分類します。応答ペイロードの正規化もこのパッケージ内だけで行います。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"farmadvisor-client/pkg/apierr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout 休止中のサーバーが起動するまでの待ち時間を見込んだタイムアウト
const DefaultTimeout = 30 * time.Second

// Credentials APIクライアントが参照する認証情報の提供元
type Credentials interface {
	Credential() (string, bool)
	Clear() error
}

// CallObserver 外部呼び出しの結果を受け取る（モニタリング用）
type CallObserver interface {
	ObserveCall(method, path string, status int, elapsed time.Duration, err error)
}

// Options クライアント設定
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     *zap.Logger
	Observer   CallObserver
	HTTPClient *http.Client
}

// Client ファームアドバイザーAPIクライアント
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials Credentials
	logger      *zap.Logger
	observer    CallObserver
}

// New 新しいClientを作成
func New(opts Options, credentials Credentials) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = timeout

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient:  httpClient,
		credentials: credentials,
		logger:      logger,
		observer:    opts.Observer,
	}
}

// envelope サービス共通の応答エンベロープ
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// callOptions 1回の呼び出しの扱い
type callOptions struct {
	expectJSON bool
	// signIn ログイン・登録の呼び出し。401は入力した資格情報の誤りであり、
	// 保存済みのセッションは破棄しない
	signIn bool
}

// Do JSONリクエストを送信し、成功時は out に応答をデコードする
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.doJSON(ctx, method, path, body, out, callOptions{expectJSON: true})
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}, opts callOptions) error {
	respBody, _, err := c.send(ctx, method, path, body, opts)
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return malformed(fmt.Sprintf("%s %s", method, path), err)
	}
	return nil
}

// DoRaw JSON以外の応答（レポートHTMLなど）をそのまま返す
func (c *Client) DoRaw(ctx context.Context, method, path string, body interface{}) ([]byte, string, error) {
	return c.send(ctx, method, path, body, callOptions{})
}

// send HTTPリクエストの実行と応答の分類を行う共通メソッド
func (c *Client) send(ctx context.Context, method, path string, body interface{}, opts callOptions) ([]byte, string, error) {
	start := time.Now()
	status, respBody, contentType, err := c.roundTrip(ctx, method, path, body, opts)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer.ObserveCall(method, path, status, elapsed, err)
	}
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		c.logger.Warn("api call failed", append(fields, zap.Error(err))...)
	} else {
		c.logger.Debug("api call", fields...)
	}
	return respBody, contentType, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body interface{}, opts callOptions) (int, []byte, string, error) {
	var reader io.Reader
	if body != nil {
		requestBody, err := json.Marshal(body)
		if err != nil {
			return 0, nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(requestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.expectJSON {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token, ok := c.credentials.Credential(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, "", classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, "", classifyTransport(err)
	}
	contentType := resp.Header.Get("Content-Type")

	var env envelope
	isJSON := strings.Contains(contentType, "json") || (len(respBody) > 0 && (respBody[0] == '{' || respBody[0] == '['))
	if isJSON {
		// エンベロープでない応答もあるため解析エラーは無視する
		_ = json.Unmarshal(respBody, &env)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && opts.signIn:
		return resp.StatusCode, nil, contentType, apierr.Rejected(resp.StatusCode, env.text())
	case resp.StatusCode == http.StatusUnauthorized:
		if clearErr := c.credentials.Clear(); clearErr != nil {
			c.logger.Warn("failed to clear session after 401", zap.Error(clearErr))
		}
		return resp.StatusCode, nil, contentType, apierr.Unauthenticated(env.text())
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resp.StatusCode, nil, contentType, apierr.Rejected(resp.StatusCode, env.text())
	case env.Success != nil && !*env.Success:
		return resp.StatusCode, nil, contentType, apierr.Rejected(resp.StatusCode, env.text())
	}

	return resp.StatusCode, respBody, contentType, nil
}

// classifyTransport 応答を受け取れなかったエラーを分類する
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.Timeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apierr.Timeout(err)
	}
	if errors.Is(err, context.Canceled) {
		return &apierr.Error{Kind: apierr.KindRejected, Message: "Request was cancelled", Err: err}
	}
	return &apierr.Error{Kind: apierr.KindRejected, Message: "Unable to reach the server", Err: err}
}

// malformed 想定外の応答形式
func malformed(what string, err error) error {
	e := apierr.Rejected(http.StatusBadGateway, "Unexpected response from server")
	if err != nil {
		e.Err = fmt.Errorf("%s: %w", what, err)
	} else {
		e.Err = errors.New(what)
	}
	return e
}

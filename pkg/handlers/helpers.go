package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"farmadvisor-client/pkg/apierr"
	"farmadvisor-client/pkg/models"

	"github.com/gin-gonic/gin"
)

// statusFor エラー種別をBFFのHTTPステータスに対応させる
func statusFor(err error) int {
	var status int
	switch apierr.KindOf(err) {
	case apierr.KindValidationFailed:
		status = http.StatusBadRequest
	case apierr.KindUnauthenticated:
		status = http.StatusUnauthorized
	case apierr.KindForbidden:
		status = http.StatusForbidden
	case apierr.KindNoResult:
		status = http.StatusNotFound
	case apierr.KindBusy:
		status = http.StatusConflict
	case apierr.KindTimeout:
		status = http.StatusGatewayTimeout
	case apierr.KindRejected:
		status = http.StatusBadGateway
		// 上流の4xxはそのまま返す
		if s := upstreamStatus(err); s >= 400 && s < 500 {
			status = s
		}
	default:
		status = http.StatusInternalServerError
	}
	return status
}

func upstreamStatus(err error) int {
	var e *apierr.Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// respondError エラーを {success:false, error} で返す
// 未認証の場合はログイン画面へ戻すよう view を付けます。
func respondError(c *gin.Context, err error) {
	body := gin.H{
		"success": false,
		"error":   apierr.UserMessage(err),
		"kind":    apierr.KindOf(err),
	}
	if apierr.Is(err, apierr.KindUnauthenticated) {
		body["view"] = models.ViewLogin
	}
	_ = c.Error(err)
	c.JSON(statusFor(err), body)
}

// respondOK 成功レスポンス
func respondOK(c *gin.Context, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// bindJSON リクエストボディを解析する。失敗時は 400 を返して false
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apierr.ValidationFailed("Invalid request: "+err.Error()))
		return false
	}
	return true
}

// queryInt 整数のクエリパラメータ（解析できなければデフォルト値）
func queryInt(c *gin.Context, key string, defaultValue int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return defaultValue
}

// configKindParam :kind を ConfigKind に変換する。不正な値は 400
func configKindParam(c *gin.Context) (models.ConfigKind, bool) {
	kind, ok := models.ParseConfigKind(c.Param("kind"))
	if !ok {
		respondError(c, apierr.ValidationFailed("Unknown config list: "+c.Param("kind")))
		return "", false
	}
	return kind, true
}

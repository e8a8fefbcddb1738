package report

import (
	"context"
	"time"

	"farmadvisor-client/pkg/apiclient"
	"farmadvisor-client/pkg/apierr"

	"github.com/microcosm-cc/bluemonday"
)

// Generator サーバー側のレポート描画エンドポイント
type Generator interface {
	GenerateReport(ctx context.Context, req apiclient.ReportRequest) ([]byte, string, error)
}

// RemoteAssembler サーバーで描画したHTMLを無害化して返す
type RemoteAssembler struct {
	generator Generator
	policy    *bluemonday.Policy
	now       func() time.Time
}

// NewRemoteAssembler 新しいRemoteAssemblerを作成
func NewRemoteAssembler(generator Generator) *RemoteAssembler {
	policy := bluemonday.UGCPolicy()
	// レポートの表・見出しの装飾（class属性）は残す
	policy.AllowStyling()
	return &RemoteAssembler{
		generator: generator,
		policy:    policy,
		now:       time.Now,
	}
}

// Assemble サーバーにレポート描画を依頼する
func (a *RemoteAssembler) Assemble(ctx context.Context, in Input) (*Document, error) {
	if in.Result == nil {
		return nil, apierr.NoResult()
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = a.now()
	}
	sections, err := BuildSections(in)
	if err != nil {
		return nil, err
	}

	req := apiclient.ReportRequest{
		Result: in.Result,
		Input:  in.Input,
		Farm:   in.Farm,
	}
	if in.User != nil {
		req.Farmer = in.User.DisplayName()
	}
	body, _, err := a.generator.GenerateReport(ctx, req)
	if err != nil {
		return nil, err
	}

	return &Document{
		FileName:    FileName(in.Input.CropType, in.GeneratedAt, "html"),
		ContentType: "text/html; charset=utf-8",
		Body:        a.policy.SanitizeBytes(body),
		Sections:    sections,
	}, nil
}

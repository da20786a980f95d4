// Package admission はアップロードリクエストの受付判定を提供します。
// レート制限→ツール存在確認→件数・サイズ・型検査→マルウェアスキャンの順に検査し、
// 最初の違反で打ち切ります。部分的な受付は行いません。
package admission

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/yourusername/nano-convert/internal/scan"
	"github.com/yourusername/nano-convert/internal/sniff"
	"github.com/yourusername/nano-convert/internal/tools"
)

// File は検証を通過した1ファイルです。ContentTypeは内容検査で判定された値です。
type File struct {
	Filename    string
	Data        []byte
	ContentType string
}

// Controller は受付判定を実行します。
type Controller struct {
	limiter        RateLimiter
	scanner        scan.Scanner
	maxUploadBytes int64 // ツール側に上限指定がない場合のグローバル上限
}

// NewController はControllerを作成します。
func NewController(limiter RateLimiter, scanner scan.Scanner, maxUploadBytes int64) *Controller {
	return &Controller{
		limiter:        limiter,
		scanner:        scanner,
		maxUploadBytes: maxUploadBytes,
	}
}

// Admit はリクエストを検査し、検証済みファイルを入力順のまま返します。
// 却下時は*Errorを返します。
func (c *Controller) Admit(ctx context.Context, clientID, slug string, files []*multipart.FileHeader) ([]File, *tools.Spec, error) {
	if !c.limiter.Allow(ctx, clientID) {
		return nil, nil, newError(CodeRateLimited, "リクエストが多すぎます。しばらく待ってから再試行してください。")
	}

	spec, ok := tools.Lookup(slug)
	if !ok {
		return nil, nil, newError(CodeToolNotFound, fmt.Sprintf("ツール %q は存在しません。", slug))
	}

	if len(files) == 0 {
		return nil, nil, newError(CodeNoFiles, "ファイルがアップロードされていません。")
	}
	if len(files) > spec.MaxInputFiles {
		return nil, nil, newError(CodeTooManyFiles, fmt.Sprintf("ファイル数が上限（%d）を超えています。", spec.MaxInputFiles))
	}

	maxSize := spec.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = c.maxUploadBytes
	}

	validated := make([]File, 0, len(files))
	for _, fh := range files {
		file, err := c.admitFile(ctx, fh, spec, maxSize)
		if err != nil {
			return nil, nil, err
		}
		validated = append(validated, *file)
	}

	return validated, &spec, nil
}

func (c *Controller) admitFile(ctx context.Context, fh *multipart.FileHeader, spec tools.Spec, maxSize int64) (*File, error) {
	data, err := readAll(fh)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %q: %w", fh.Filename, err)
	}
	if len(data) == 0 {
		return nil, newError(CodeEmptyFile, fmt.Sprintf("空のファイルです: %s", fh.Filename))
	}
	if int64(len(data)) > maxSize {
		return nil, newError(CodeFileTooLarge, fmt.Sprintf("ファイルが大きすぎます: %s", fh.Filename))
	}

	// クライアント申告のContent-Typeは使わず、内容から判定する
	contentType := sniff.ContentType(data, fh.Filename)
	if !spec.AllowsContentType(contentType) {
		return nil, newError(CodeUnsupportedType, fmt.Sprintf("%s の形式 %s はこのツールでは使用できません。", fh.Filename, contentType))
	}

	verdict, err := c.scanner.Scan(ctx, data)
	if err != nil {
		// スキャンできないファイルは受け付けない（フェイルクローズ）
		return nil, newError(CodeScanUnavailable, fmt.Sprintf("%s のスキャンに失敗しました。", fh.Filename))
	}
	if verdict.Infected {
		return nil, newError(CodeMalwareDetected, fmt.Sprintf("%s からマルウェアを検出しました: %s", fh.Filename, verdict.Signature))
	}

	return &File{
		Filename:    fh.Filename,
		Data:        data,
		ContentType: contentType,
	}, nil
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

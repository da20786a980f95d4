// Package scan はマルウェアスキャン（ClamAV）への接続を提供します。
package scan

import (
	"bytes"
	"context"
	"fmt"

	clamd "github.com/dutchcoders/go-clamd"
)

// Verdict はスキャン結果を表します。
type Verdict struct {
	Infected  bool
	Signature string // 検出時のシグネチャ名
}

// Scanner はバイト列をスキャンできる実装が満たします。
// 戻り値のerrorはスキャンバックエンド自体の障害を表します（検出とは区別されます）。
type Scanner interface {
	Scan(ctx context.Context, data []byte) (Verdict, error)
}

// ClamAV はclamdにTCP接続してINSTREAMスキャンを行うScannerです。
type ClamAV struct {
	client *clamd.Clamd
}

// NewClamAV はclamdへのクライアントを作成します。addressは "tcp://host:port" 形式です。
func NewClamAV(address string) *ClamAV {
	return &ClamAV{client: clamd.NewClamd(address)}
}

// Scan はバッファをclamdへストリーミングしてスキャンします。
func (c *ClamAV) Scan(ctx context.Context, data []byte) (Verdict, error) {
	abort := make(chan bool)
	defer close(abort)

	results, err := c.client.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return Verdict{}, fmt.Errorf("clamd scan failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return Verdict{}, ctx.Err()
		case result, ok := <-results:
			if !ok {
				return Verdict{}, nil
			}
			switch result.Status {
			case clamd.RES_OK:
				return Verdict{}, nil
			case clamd.RES_FOUND:
				return Verdict{Infected: true, Signature: result.Description}, nil
			default:
				return Verdict{}, fmt.Errorf("clamd returned %s: %s", result.Status, result.Description)
			}
		}
	}
}

// Disabled はスキャンが設定で無効化されている場合に使うScannerです。常にクリーン扱いとします。
type Disabled struct{}

// Scan は常にクリーンを返します。
func (Disabled) Scan(ctx context.Context, data []byte) (Verdict, error) {
	return Verdict{}, nil
}

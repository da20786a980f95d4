// Package sniff はファイル内容からContent-Typeを判定するユーティリティを提供します。
//
// 判定の優先順位:
//  1. マジックバイト検査（gabriel-vasile/mimetype）
//  2. 1で汎用型しか得られない場合のみ、ファイル名拡張子による推定
//  3. どちらも失敗した場合は application/octet-stream
//
// クライアントが申告したContent-Typeは信用しません。
package sniff

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const fallbackType = "application/octet-stream"

// ContentType はバッファのContent-Typeを判定します。
func ContentType(data []byte, filename string) string {
	detected := mimetype.Detect(data)
	mt := normalize(detected.String())
	if mt != fallbackType && mt != "text/plain" {
		return mt
	}

	// マジックバイトで特定できなかった場合のみ拡張子にフォールバック
	if ext := filepath.Ext(filename); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return normalize(byExt)
		}
	}
	if mt != "" {
		return mt
	}
	return fallbackType
}

// normalize は "text/plain; charset=utf-8" のようなパラメータ付き表記を素の型に揃えます。
func normalize(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.TrimSpace(contentType)
}

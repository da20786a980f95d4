// Package convert は変換処理（Converter）の抽象とスラッグ別レジストリを提供します。
//
// ツール固有の変換アルゴリズムはConverterとして登録します。専用のConverterが
// 存在しないスラッグには参照フォールバックが適用されます:
//   - 入力が1つ: そのまま出力（恒等変換）
//   - 複数のPDF: 入力順にページを結合して1つのPDFに
//   - 複数の画像: 入力順に縦方向へ不透明合成した1枚の画像に
//   - 上記以外の組み合わせ: ErrUnsupportedOperation
package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedOperation は専用Converterがなく、フォールバックも適用できない
// 入力の組み合わせに対して返されます。
var ErrUnsupportedOperation = errors.New("unsupported operation for the given inputs")

// Input は変換対象の1入力を表します。ContentTypeは内容検査で判定された値です。
type Input struct {
	Data        []byte
	ContentType string
}

// Output は変換結果を表します。Converterは常にちょうど1つの出力を返します。
type Output struct {
	Data        []byte
	ContentType string
}

// Converter は1つの変換処理を実装します。
// N >= 1 個の検証済み入力から1つの出力を生成するか、エラーを返します。
type Converter interface {
	Convert(ctx context.Context, inputs []Input) (*Output, error)
}

// ConverterFunc は関数をConverterとして使うためのアダプタです。
type ConverterFunc func(ctx context.Context, inputs []Input) (*Output, error)

// Convert はfを呼び出します。
func (f ConverterFunc) Convert(ctx context.Context, inputs []Input) (*Output, error) {
	return f(ctx, inputs)
}

// Registry はスラッグ→Converterの対応を保持します。
// 新しいツールは分岐を増やすのではなく、ここへ登録して追加します。
type Registry struct {
	converters map[string]Converter
	fallback   Converter
}

// NewRegistry は既定のConverter群を登録済みのレジストリを返します。
func NewRegistry() *Registry {
	r := &Registry{
		converters: make(map[string]Converter),
		fallback:   ConverterFunc(fallbackConvert),
	}
	r.Register("merge-pdf", ConverterFunc(mergePDF))
	r.Register("merge-images", ConverterFunc(stackImages))
	r.Register("convert-image", ConverterFunc(toWebP))
	return r
}

// Register はスラッグに対するConverterを登録します。
func (r *Registry) Register(slug string, c Converter) {
	r.converters[slug] = c
}

// For はスラッグに対応するConverterを返します。未登録の場合はフォールバックを返します。
func (r *Registry) For(slug string) Converter {
	if c, ok := r.converters[slug]; ok {
		return c
	}
	return r.fallback
}

// fallbackConvert は参照フォールバック動作を実装します。
func fallbackConvert(ctx context.Context, inputs []Input) (*Output, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs to convert")
	}
	if len(inputs) == 1 {
		in := inputs[0]
		return &Output{Data: in.Data, ContentType: in.ContentType}, nil
	}

	allPDF := true
	allImage := true
	for _, in := range inputs {
		if in.ContentType != "application/pdf" {
			allPDF = false
		}
		if !strings.HasPrefix(in.ContentType, "image/") {
			allImage = false
		}
	}

	switch {
	case allPDF:
		return mergePDF(ctx, inputs)
	case allImage:
		return stackImages(ctx, inputs)
	default:
		return nil, ErrUnsupportedOperation
	}
}

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// mergePDF は複数のPDFを入力順にページ結合して1つのPDFを返します。
func mergePDF(ctx context.Context, inputs []Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no PDF inputs to merge")
	}

	readers := make([]io.ReadSeeker, len(inputs))
	for i, in := range inputs {
		readers[i] = bytes.NewReader(in.Data)
	}

	var buf bytes.Buffer
	if err := pdfapi.MergeRaw(readers, &buf, false, nil); err != nil {
		return nil, fmt.Errorf("pdf merge failed: %w", err)
	}

	return &Output{Data: buf.Bytes(), ContentType: "application/pdf"}, nil
}

// PageCount はPDFバッファのページ数を返します（テスト・検証補助用）。
func PageCount(data []byte) (int, error) {
	return pdfapi.PageCount(bytes.NewReader(data), nil)
}

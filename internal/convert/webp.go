package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/chai2010/webp"
)

const webpQuality = 85

// toWebP は単一画像をWebPへ変換します（convert-imageツール用）。
func toWebP(ctx context.Context, inputs []Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("convert-image expects exactly one input, got %d", len(inputs))
	}

	in := inputs[0]
	if in.ContentType == "image/webp" {
		// すでにWebPの場合は再圧縮しない
		return &Output{Data: in.Data, ContentType: "image/webp"}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}

	return &Output{Data: buf.Bytes(), ContentType: "image/webp"}, nil
}

package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	// image.Decode用のデコーダ登録
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const stackedJPEGQuality = 85

// stackImages は複数の画像を入力順に縦へ積み上げ、1枚のJPEGとして返します。
// 透過部分は白背景への不透明合成で潰します。
func stackImages(ctx context.Context, inputs []Input) (*Output, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no image inputs to merge")
	}

	images := make([]image.Image, len(inputs))
	maxWidth := 0
	totalHeight := 0
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(in.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %d: %w", i, err)
		}
		images[i] = img
		bounds := img.Bounds()
		if bounds.Dx() > maxWidth {
			maxWidth = bounds.Dx()
		}
		totalHeight += bounds.Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, maxWidth, totalHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	y := 0
	for _, img := range images {
		bounds := img.Bounds()
		target := image.Rect(0, y, bounds.Dx(), y+bounds.Dy())
		draw.Draw(canvas, target, img, bounds.Min, draw.Over)
		y += bounds.Dy()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: stackedJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode merged image: %w", err)
	}

	return &Output{Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
}

// Package tools は変換ツールの静的な制約情報（ToolSpec）を提供します。
package tools

// Category はツールの分類を表します。
type Category string

const (
	CategoryPDF   Category = "pdf"
	CategoryImage Category = "image"
)

// Spec は1つの変換ツールの制約・能力を表します。起動時に登録され、以後変更されません。
type Spec struct {
	Slug                string   `json:"slug"`
	Name                string   `json:"name"`
	Category            Category `json:"category"`
	Heavy               bool     `json:"heavy"`
	MaxInputFiles       int      `json:"maxInputFiles"`
	MaxSizeBytes        int64    `json:"maxSizeBytes,omitempty"` // 0の場合はグローバル上限を使用
	AllowedContentTypes []string `json:"allowedContentTypes"`
}

// AllowsContentType は検出されたContent-Typeが許可リストに含まれるか判定します。
func (s Spec) AllowsContentType(contentType string) bool {
	for _, allowed := range s.AllowedContentTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

var (
	pdfOnly    = []string{"application/pdf"}
	imageTypes = []string{"image/jpeg", "image/png", "image/webp"}
)

// registry はスラッグ→Specの不変マップです。
var registry = buildRegistry(
	// PDFツール
	Spec{Slug: "merge-pdf", Name: "Merge PDF", Category: CategoryPDF, Heavy: true, MaxInputFiles: 20, MaxSizeBytes: 200 * 1024 * 1024, AllowedContentTypes: pdfOnly},
	Spec{Slug: "split-pdf", Name: "Split PDF", Category: CategoryPDF, Heavy: true, MaxInputFiles: 1, AllowedContentTypes: pdfOnly},
	Spec{Slug: "compress-pdf", Name: "Compress PDF", Category: CategoryPDF, Heavy: true, MaxInputFiles: 1, AllowedContentTypes: pdfOnly},
	Spec{Slug: "pdf-resize-size", Name: "PDF Resize (KB/MB)", Category: CategoryPDF, Heavy: true, MaxInputFiles: 1, AllowedContentTypes: pdfOnly},
	Spec{Slug: "pdf-to-image", Name: "PDF to Image", Category: CategoryPDF, Heavy: true, MaxInputFiles: 1, AllowedContentTypes: pdfOnly},
	Spec{Slug: "image-to-pdf", Name: "Image to PDF", Category: CategoryPDF, MaxInputFiles: 20, AllowedContentTypes: imageTypes},
	Spec{Slug: "rotate-pdf", Name: "Rotate PDF", Category: CategoryPDF, MaxInputFiles: 1, AllowedContentTypes: pdfOnly},
	Spec{Slug: "delete-pages", Name: "Delete Pages", Category: CategoryPDF, MaxInputFiles: 1, AllowedContentTypes: pdfOnly},
	Spec{Slug: "extract-pages", Name: "Extract Pages", Category: CategoryPDF, MaxInputFiles: 1, AllowedContentTypes: pdfOnly},
	Spec{Slug: "add-watermark", Name: "Add Watermark", Category: CategoryPDF, MaxInputFiles: 1, AllowedContentTypes: []string{"application/pdf", "image/png", "image/jpeg"}},

	// 画像ツール
	Spec{Slug: "image-compressor", Name: "Image Compressor", Category: CategoryImage, Heavy: true, MaxInputFiles: 1, AllowedContentTypes: imageTypes},
	Spec{Slug: "image-resize-kb", Name: "Image Resizer (KB / MB)", Category: CategoryImage, Heavy: true, MaxInputFiles: 1, AllowedContentTypes: imageTypes},
	Spec{Slug: "image-resize-dim", Name: "Image Resizer (Dimensions)", Category: CategoryImage, MaxInputFiles: 1, AllowedContentTypes: imageTypes},
	Spec{Slug: "crop-image", Name: "Crop Image", Category: CategoryImage, MaxInputFiles: 1, AllowedContentTypes: imageTypes},
	Spec{Slug: "convert-image", Name: "Convert Image (JPG / PNG / WEBP)", Category: CategoryImage, MaxInputFiles: 1, AllowedContentTypes: imageTypes},
	Spec{Slug: "rotate-image", Name: "Rotate Image", Category: CategoryImage, MaxInputFiles: 1, AllowedContentTypes: imageTypes},
	Spec{Slug: "flip-image", Name: "Flip Image", Category: CategoryImage, MaxInputFiles: 1, AllowedContentTypes: imageTypes},
	Spec{Slug: "image-watermark", Name: "Image Watermark", Category: CategoryImage, MaxInputFiles: 1, AllowedContentTypes: imageTypes},
	Spec{Slug: "merge-images", Name: "Merge Images", Category: CategoryImage, Heavy: true, MaxInputFiles: 20, AllowedContentTypes: imageTypes},
	Spec{Slug: "split-image-grid", Name: "Split Image (Grid)", Category: CategoryImage, Heavy: true, MaxInputFiles: 1, AllowedContentTypes: imageTypes},
)

func buildRegistry(specs ...Spec) map[string]Spec {
	m := make(map[string]Spec, len(specs))
	for _, spec := range specs {
		m[spec.Slug] = spec
	}
	return m
}

// Lookup はスラッグに対応するSpecを返します。
func Lookup(slug string) (Spec, bool) {
	spec, ok := registry[slug]
	return spec, ok
}

// All は登録済みの全Specを返します。返されるスライスは呼び出しごとのコピーです。
func All() []Spec {
	specs := make([]Spec, 0, len(registry))
	for _, spec := range registry {
		specs = append(specs, spec)
	}
	return specs
}

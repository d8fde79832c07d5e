package generator

import (
	"context"
	"errors"
	"time"
)

const (
	// PanelAspectRatio はパネル画像のアスペクト比です。
	PanelAspectRatio = "16:9"
	// ReferenceAspectRatio は設定画のアスペクト比です。
	ReferenceAspectRatio = "3:4"
)

// ErrEmptyImage は画像生成の応答に画像データが含まれていなかった場合のエラーです。
var ErrEmptyImage = errors.New("画像データが空です")

// ImageRequest は1枚の画像生成リクエストです。
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	SystemPrompt   string
	AspectRatio    string
	// ReferenceURLs は image-to-image で参照する画像です。TextToImage では無視されます。
	ReferenceURLs []string
	// Seed は 0 の場合に未指定として扱われます。
	Seed int64
	// Folder と Name は保存先のサブディレクトリとファイル名の接頭辞です。
	Folder string
	Name   string
}

// ImageResult は生成・保存された画像です。
type ImageResult struct {
	ImageURL string
	Seed     int64
	MimeType string
}

// ImageSynthesizer は画像合成サービスの契約です。
type ImageSynthesizer interface {
	TextToImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
	ImageToImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

// WithTimeout は各呼び出しに個別のタイムアウトを付与します。timeout が 0 以下なら s をそのまま返します。
func WithTimeout(s ImageSynthesizer, timeout time.Duration) ImageSynthesizer {
	if timeout <= 0 {
		return s
	}
	return &timeoutSynthesizer{next: s, timeout: timeout}
}

type timeoutSynthesizer struct {
	next    ImageSynthesizer
	timeout time.Duration
}

func (t *timeoutSynthesizer) TextToImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.TextToImage(ctx, req)
}

func (t *timeoutSynthesizer) ImageToImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.ImageToImage(ctx, req)
}

package generator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shouni/go-chapter-kit/pkg/asset"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"golang.org/x/sync/singleflight"
)

// KitImageGenerator は gemini-image-kit の画像生成のうち、本パッケージが使う部分です。
type KitImageGenerator interface {
	GenerateMangaPanel(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error)
	GenerateMangaPage(ctx context.Context, req imagedom.ImagePageRequest) (*imagedom.ImageResponse, error)
}

// AssetUploader は参照画像を File API へアップロードします。
type AssetUploader interface {
	UploadFile(ctx context.Context, fileURI string) (string, error)
}

// KitSynthesizer は gemini-image-kit を ImageSynthesizer として使うためのアダプターです。
// 生成された画像は OutputWriter を通じて保存され、その保存先が ImageURL になります。
type KitSynthesizer struct {
	images    KitImageGenerator
	uploader  AssetUploader
	writer    asset.Writer
	outputDir string

	mu          sync.RWMutex
	uploaded    map[string]string // 参照URL -> FileAPIURI
	uploadGroup singleflight.Group
}

// NewKitSynthesizer は KitSynthesizer を初期化します。uploader は nil でも構いません。
func NewKitSynthesizer(images KitImageGenerator, uploader AssetUploader, writer asset.Writer, outputDir string) *KitSynthesizer {
	if outputDir == "" {
		outputDir = asset.DefaultOutputDir
	}
	return &KitSynthesizer{
		images:    images,
		uploader:  uploader,
		writer:    writer,
		outputDir: outputDir,
		uploaded:  make(map[string]string),
	}
}

// TextToImage は参照画像なしで1枚を生成します。
func (k *KitSynthesizer) TextToImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	resp, err := k.images.GenerateMangaPanel(ctx, imagedom.ImageGenerationRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		SystemPrompt:   req.SystemPrompt,
		Seed:           ptrInt64(req.Seed),
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("text-to-image の生成に失敗しました: %w", err)
	}
	return k.save(ctx, req, resp)
}

// ImageToImage は参照画像に条件付けて1枚を生成します。
// 参照が1枚なら単体パネル生成、複数枚ならページ生成 API に全参照を渡します。
func (k *KitSynthesizer) ImageToImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	switch len(req.ReferenceURLs) {
	case 0:
		return k.TextToImage(ctx, req)
	case 1:
		ref := req.ReferenceURLs[0]
		resp, err := k.images.GenerateMangaPanel(ctx, imagedom.ImageGenerationRequest{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			SystemPrompt:   req.SystemPrompt,
			Seed:           ptrInt64(req.Seed),
			FileAPIURI:     k.fileURI(ctx, ref),
			ReferenceURL:   ref,
			AspectRatio:    req.AspectRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("image-to-image の生成に失敗しました: %w", err)
		}
		return k.save(ctx, req, resp)
	default:
		resp, err := k.images.GenerateMangaPage(ctx, imagedom.ImagePageRequest{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			SystemPrompt:   req.SystemPrompt,
			AspectRatio:    req.AspectRatio,
			Seed:           ptrInt64(req.Seed),
			ReferenceURLs:  req.ReferenceURLs,
		})
		if err != nil {
			return nil, fmt.Errorf("image-to-image (複数参照) の生成に失敗しました: %w", err)
		}
		return k.save(ctx, req, resp)
	}
}

func (k *KitSynthesizer) save(ctx context.Context, req ImageRequest, resp *imagedom.ImageResponse) (*ImageResult, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, ErrEmptyImage
	}
	mimeType := resp.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	p, err := asset.UniqueImagePath(k.outputDir, req.Folder, req.Name, mimeType)
	if err != nil {
		return nil, err
	}
	if err := k.writer.Write(ctx, p, bytes.NewReader(resp.Data), mimeType); err != nil {
		return nil, fmt.Errorf("画像の保存に失敗しました (path: %s): %w", p, err)
	}

	seed := resp.UsedSeed
	if seed == 0 {
		seed = req.Seed
	}
	return &ImageResult{ImageURL: p, Seed: seed, MimeType: mimeType}, nil
}

// fileURI は参照画像を File API へアップロードし、その URI を返します。
// アップロードは参照URLごとに1回だけ行われ、失敗した場合は空文字（URL直接参照）になります。
func (k *KitSynthesizer) fileURI(ctx context.Context, ref string) string {
	if k.uploader == nil || ref == "" {
		return ""
	}

	k.mu.RLock()
	uri, ok := k.uploaded[ref]
	k.mu.RUnlock()
	if ok {
		return uri
	}

	val, err, _ := k.uploadGroup.Do(ref, func() (interface{}, error) {
		k.mu.RLock()
		existing, ok := k.uploaded[ref]
		k.mu.RUnlock()
		if ok {
			return existing, nil
		}

		uploaded, err := k.uploader.UploadFile(ctx, ref)
		if err != nil {
			return nil, err
		}

		k.mu.Lock()
		k.uploaded[ref] = uploaded
		k.mu.Unlock()
		return uploaded, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "参照画像のアップロードに失敗しました。URLを直接参照します", "reference", ref, "error", err)
		return ""
	}
	uri, _ = val.(string)
	return uri
}

func ptrInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

package asset

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheExpiration = 30 * time.Minute
	cacheCleanupInterval   = time.Hour
	// MaxImageBytes は1枚の参照画像として読み込む最大サイズです。
	MaxImageBytes = 20 << 20
)

// Image は読み込まれた画像のバイト列です。
type Image struct {
	Data     []byte
	MimeType string
}

// Loader は参照画像を読み込み、キャッシュします。
// 同じパスへの同時アクセスは singleflight で1回の読み込みにまとめられます。
type Loader struct {
	reader Reader
	cache  *cache.Cache
	group  singleflight.Group
}

// NewLoader は Loader を初期化します。
func NewLoader(reader Reader) *Loader {
	return &Loader{
		reader: reader,
		cache:  cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}
}

// Load は指定されたパス（ローカル / gs://）の画像を返します。
func (l *Loader) Load(ctx context.Context, p string) (*Image, error) {
	if v, ok := l.cache.Get(p); ok {
		if img, ok := v.(*Image); ok {
			return img, nil
		}
	}

	v, err, _ := l.group.Do(p, func() (interface{}, error) {
		if v, ok := l.cache.Get(p); ok {
			return v, nil
		}
		img, err := l.read(ctx, p)
		if err != nil {
			return nil, err
		}
		l.cache.Set(p, img, cache.DefaultExpiration)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	img, ok := v.(*Image)
	if !ok {
		return nil, fmt.Errorf("unexpected return type from singleflight: %T", v)
	}
	return img, nil
}

func (l *Loader) read(ctx context.Context, p string) (*Image, error) {
	rc, err := l.reader.Open(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("画像のオープンに失敗しました (path: %s): %w", p, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("画像の読み込みに失敗しました (path: %s): %w", p, err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("画像サイズが上限を超えています (path: %s)", p)
	}
	return &Image{Data: data, MimeType: detectMimeType(p, data)}, nil
}

func detectMimeType(p string, data []byte) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

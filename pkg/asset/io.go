package asset

import (
	"context"
	"io"
)

// Reader はローカル / GCS からの読み込み口です。remoteio.InputReader がこれを満たします。
type Reader interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Writer はローカル / GCS への書き込み口です。remoteio.OutputWriter がこれを満たします。
type Writer interface {
	Write(ctx context.Context, path string, r io.Reader, contentType string) error
}

package asset

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/shouni/go-utils/urlpath"
)

const (
	// DefaultOutputDir は生成物を格納するデフォルトのディレクトリです。
	DefaultOutputDir = "output"
	// ReferenceDir は設定画（リファレンス画像）を格納するサブディレクトリ名です。
	ReferenceDir = "references"
	// PanelDir はパネル画像を格納するサブディレクトリ名です。
	PanelDir = "panels"
	// DefaultChapterFileName は章の Markdown ファイル名です。
	DefaultChapterFileName = "chapter.md"
	// DefaultEntitiesFileName はエンティティ一覧 JSON のファイル名です。
	DefaultEntitiesFileName = "entities.json"
)

// fileNameSanitizer はファイル名として使用できない文字を置換します。
var fileNameSanitizer = strings.NewReplacer(
	"/", "_",
	`\`, "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から、
// GCS/ローカルを考慮した最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	return urlpath.ResolveOutputPath(baseDir, fileName)
}

// ResolveBaseURL は、入力パス（URLまたはローカルパス）から
// 親ディレクトリのパスを解決し、末尾がセパレータで終わるように正規化します。
func ResolveBaseURL(rawPath string) string {
	return urlpath.ResolveBaseURL(rawPath)
}

// UniqueImagePath は folder 配下に衝突しない画像パスを生成します。
// 例: ("output", "panels", "panel_3", "image/png") -> output/panels/panel_3_<uuid>.png
func UniqueImagePath(baseDir, folder, prefix, mimeType string) (string, error) {
	name := SanitizeFileName(prefix)
	if name == "" {
		name = "image"
	}
	fileName := fmt.Sprintf("%s_%s%s", name, uuid.NewString()[:8], PreferredExtension(mimeType))
	p, err := ResolveOutputPath(baseDir, path.Join(folder, fileName))
	if err != nil {
		return "", fmt.Errorf("画像保存パスの生成に失敗しました (file: %s): %w", fileName, err)
	}
	return p, nil
}

// SanitizeFileName はファイル名に使えない文字を置換し、小文字にします。
func SanitizeFileName(s string) string {
	return strings.ToLower(fileNameSanitizer.Replace(strings.TrimSpace(s)))
}

// PreferredExtension は MIME タイプに対応する拡張子を返します。不明な場合は .png です。
func PreferredExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

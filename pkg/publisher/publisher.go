// Package publisher は完成した章を読み物として書き出します。
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/shouni/go-chapter-kit/pkg/asset"
	"github.com/shouni/go-chapter-kit/pkg/director"
	"github.com/shouni/go-chapter-kit/pkg/domain"
)

const (
	markdownContentType = "text/markdown; charset=utf-8"
	jsonContentType     = "application/json"
	defaultStoryDir     = "story"
)

// PublishResult は書き出したファイルのパスです。
type PublishResult struct {
	MarkdownPath string
	EntitiesPath string
}

// ChapterPublisher は章の Markdown と登場要素の JSON を OutputWriter に書き出します。
type ChapterPublisher struct {
	writer    asset.Writer
	outputDir string
	layout    *director.LayoutManager
	style     *director.StyleManager
}

// NewChapterPublisher は ChapterPublisher を初期化します。
func NewChapterPublisher(writer asset.Writer, outputDir string) *ChapterPublisher {
	if outputDir == "" {
		outputDir = asset.DefaultOutputDir
	}
	return &ChapterPublisher{
		writer:    writer,
		outputDir: outputDir,
		layout:    director.NewLayoutManager(),
		style:     director.NewStyleManager(),
	}
}

// Publish は章を書き出し、Markdown のパスを返します。
func (p *ChapterPublisher) Publish(ctx context.Context, ch domain.Chapter, entities []domain.Entity) (string, error) {
	res, err := p.PublishChapter(ctx, ch, entities)
	if err != nil {
		return "", err
	}
	return res.MarkdownPath, nil
}

// PublishChapter は章の Markdown と登場要素の JSON を書き出します。
func (p *ChapterPublisher) PublishChapter(ctx context.Context, ch domain.Chapter, entities []domain.Entity) (PublishResult, error) {
	result := PublishResult{}

	storyDir := asset.SanitizeFileName(ch.StoryID)
	if storyDir == "" {
		storyDir = defaultStoryDir
	}

	// 1. 出力パスの解決
	mdPath, err := asset.ResolveOutputPath(p.outputDir, path.Join(storyDir, fmt.Sprintf("%02d_%s", ch.ChapterNumber, asset.DefaultChapterFileName)))
	if err != nil {
		return result, err
	}
	entitiesPath, err := asset.ResolveOutputPath(p.outputDir, path.Join(storyDir, asset.DefaultEntitiesFileName))
	if err != nil {
		return result, err
	}

	// 2. Markdown の書き出し
	content := p.BuildMarkdown(ch, entities, asset.ResolveBaseURL(mdPath))
	if err := p.writer.Write(ctx, mdPath, strings.NewReader(content), markdownContentType); err != nil {
		return result, fmt.Errorf("markdownファイルの書き込みに失敗しました: %w", err)
	}
	result.MarkdownPath = mdPath

	// 3. 登場要素（シード値と参照画像を含む）の書き出し
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return result, fmt.Errorf("登場要素のエンコードに失敗しました: %w", err)
	}
	if err := p.writer.Write(ctx, entitiesPath, bytes.NewReader(data), jsonContentType); err != nil {
		return result, fmt.Errorf("登場要素の書き込みに失敗しました: %w", err)
	}
	result.EntitiesPath = entitiesPath

	slog.InfoContext(ctx, "章を書き出しました", "markdown", mdPath, "entities", entitiesPath, "panels", len(ch.Panels))
	return result, nil
}

// BuildMarkdown は章の Markdown を構築します。画像リンクは baseDir からの相対パスになります。
func (p *ChapterPublisher) BuildMarkdown(ch domain.Chapter, entities []domain.Entity, baseDir string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", ch.Title)

	if narrative := strings.TrimSpace(ch.Narrative); narrative != "" {
		sb.WriteString(narrative)
		sb.WriteString("\n\n---\n\n")
	}

	names := characterNames(entities)
	for i, panel := range ch.Panels {
		fmt.Fprintf(&sb, "## Panel: %s\n", linkFor(baseDir, panel.ImageURL))
		sb.WriteString("- layout: standard\n")
		fmt.Fprintf(&sb, "- order: %d\n", panel.Order)

		speaker, text := p.style.SplitSpeaker(panel.Text, names)
		dialogueType := p.style.DetermineDialogueType(text)
		text = p.style.StripTags(text)
		if text == "" {
			sb.WriteString("- type: none\n\n")
			continue
		}

		fmt.Fprintf(&sb, "- speaker: %s\n", p.style.ResolveSpeakerID(speaker))
		if speaker != "" {
			fmt.Fprintf(&sb, "- name: %s\n", speaker)
		}
		fmt.Fprintf(&sb, "- type: %s\n", dialogueType)
		fmt.Fprintf(&sb, "- text: %s\n", text)
		for _, attr := range p.layout.GetPositionAttrs(i) {
			fmt.Fprintf(&sb, "- %s: %s\n", attr.Key, attr.Value)
		}
		sb.WriteString("\n")
	}

	if len(entities) > 0 {
		sb.WriteString("## Cast\n\n")
		for _, e := range entities {
			fmt.Fprintf(&sb, "- **%s** (%s", e.Name, e.Kind)
			if e.Role != "" {
				fmt.Fprintf(&sb, ", %s", e.Role)
			}
			sb.WriteString(")")
			if e.Description != "" {
				fmt.Fprintf(&sb, ": %s", e.Description)
			}
			sb.WriteString("\n")
			if e.Anchored() {
				fmt.Fprintf(&sb, "  ![%s](%s)\n", e.Name, linkFor(baseDir, e.ImageURL))
			}
		}
	}
	return sb.String()
}

func characterNames(es []domain.Entity) []string {
	return domain.Entities(es).ByKind(domain.KindCharacter).Names()
}

// linkFor はローカルのパスを baseDir からの相対パスに変換します。URL はそのまま返します。
func linkFor(baseDir, target string) string {
	if target == "" || baseDir == "" || strings.Contains(target, "://") || strings.Contains(baseDir, "://") {
		return target
	}
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}

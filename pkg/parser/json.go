package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shouni/go-chapter-kit/pkg/domain"
)

// ExtractJSON はAIの応答からJSON部分を取り出します。
// コードフェンス、最外殻のオブジェクト/配列、応答全体の順に試します。
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if matches := jsonBlockRegex.FindStringSubmatch(raw); len(matches) > 1 {
		return matches[1]
	}

	first := strings.IndexAny(raw, "{[")
	if first == -1 {
		return raw
	}
	closing := "}"
	if raw[first] == '[' {
		closing = "]"
	}
	last := strings.LastIndex(raw, closing)
	if last > first {
		return raw[first : last+1]
	}
	return raw
}

// DecodeJSON はAIの応答に含まれるJSONを任意の型へデコードします。
func DecodeJSON[T any](raw string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &v); err != nil {
		return v, fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}
	return v, nil
}

// ParsePlan は構成案JSONを解析し、章番号と件数を正規化します。
func ParsePlan(raw string, totalChapters, panelsPerChapter int) (domain.StoryPlan, error) {
	plan, err := DecodeJSON[domain.StoryPlan](raw)
	if err != nil {
		return domain.StoryPlan{}, err
	}
	if strings.TrimSpace(plan.Title) == "" {
		return domain.StoryPlan{}, fmt.Errorf("構成案にタイトルがありません")
	}
	if totalChapters > 0 {
		plan.TotalChapters = totalChapters
	}
	if plan.TotalChapters <= 0 {
		plan.TotalChapters = max(1, len(plan.ChapterOutlines))
	}
	if panelsPerChapter > 0 {
		plan.EstimatedPanelsPerChapter = panelsPerChapter
	}
	for i := range plan.ChapterOutlines {
		if plan.ChapterOutlines[i].ChapterNumber <= 0 {
			plan.ChapterOutlines[i].ChapterNumber = i + 1
		}
		if plan.ChapterOutlines[i].EstimatedPanels <= 0 {
			plan.ChapterOutlines[i].EstimatedPanels = plan.EstimatedPanelsPerChapter
		}
	}
	return plan, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package domain

import (
	"fmt"
	"strings"
)

// StoryPlan は複数章にわたる物語全体の構成案です。一度生成された後は読み取り専用です。
type StoryPlan struct {
	Title                     string           `json:"title"`
	Synopsis                  string           `json:"synopsis"`
	TotalChapters             int              `json:"totalChapters"`
	EstimatedPanelsPerChapter int              `json:"estimatedPanelsPerChapter"`
	ChapterOutlines           []ChapterOutline `json:"chapterOutlines"`
}

// ChapterOutline は1章分のあらすじです。
type ChapterOutline struct {
	ChapterNumber   int    `json:"chapterNumber"`
	Title           string `json:"title"`
	Summary         string `json:"summary"`
	EstimatedPanels int    `json:"estimatedPanels"`
}

// Outline は指定章のアウトラインを返します。存在しない場合は計画全体から補います。
func (p StoryPlan) Outline(chapterNumber int) ChapterOutline {
	for _, o := range p.ChapterOutlines {
		if o.ChapterNumber == chapterNumber {
			return o
		}
	}
	return ChapterOutline{
		ChapterNumber:   chapterNumber,
		Title:           fmt.Sprintf("%s - Chapter %d", p.Title, chapterNumber),
		Summary:         p.Synopsis,
		EstimatedPanels: p.EstimatedPanelsPerChapter,
	}
}

// PanelScript はレンダリング前のパネル（描写とセリフ）です。
type PanelScript struct {
	Description string `json:"description"`
	Dialogue    string `json:"dialogue"`
	// Placeholder は補完のために機械的に追加されたパネルであることを示します。
	Placeholder bool `json:"placeholder,omitempty"`
}

// RenderedPanel はレンダリング済みのパネルです。Order は 1..N の連番です。
type RenderedPanel struct {
	ImageURL string `json:"imageUrl"`
	Text     string `json:"text"`
	Order    int    `json:"order"`
}

// AgentContribution は協調ラウンドにおける1ペルソナの出力です。永続化されません。
type AgentContribution struct {
	AgentName       string  `json:"agentName"`
	Output          string  `json:"output"`
	FocusArea       string  `json:"focusArea"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// Failed は出力が空（失敗時のプレースホルダー）かどうかを返します。
func (c AgentContribution) Failed() bool {
	return strings.TrimSpace(c.Output) == ""
}

// Chapter は永続化される章の成果物です。
type Chapter struct {
	ID            string          `json:"id"`
	StoryID       string          `json:"storyId"`
	ChapterNumber int             `json:"chapterNumber"`
	Title         string          `json:"title"`
	Narrative     string          `json:"narrative"`
	Panels        []RenderedPanel `json:"panels"`
}

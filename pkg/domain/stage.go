package domain

import (
	"fmt"
	"time"
)

// Stage はパイプラインの工程です。宣言順がそのまま進行順になります。
type Stage int

const (
	StageInput Stage = iota
	StagePlanning
	StageGeneratingNarrative
	StageNarrativeReview
	StageExtractingEntities
	StageGeneratingReferences
	StageBreakingIntoPanels
	StageGeneratingPanelImages
	StageComplete
)

var stageNames = [...]string{
	StageInput:                 "input",
	StagePlanning:              "planning",
	StageGeneratingNarrative:   "generating-narrative",
	StageNarrativeReview:       "narrative-review",
	StageExtractingEntities:    "extracting-entities",
	StageGeneratingReferences:  "generating-references",
	StageBreakingIntoPanels:    "breaking-into-panels",
	StageGeneratingPanelImages: "generating-panel-images",
	StageComplete:              "complete",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText は JSON 等で工程名を文字列として出力するためのものです。
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText は工程名から Stage を復元します。
func (s *Stage) UnmarshalText(b []byte) error {
	for i, name := range stageNames {
		if name == string(b) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("不明な工程です: %q", string(b))
}

// Event は工程遷移や進捗を呼び出し元へ通知するためのイベントです。
type Event struct {
	Stage    Stage     `json:"stage"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// Result はパイプラインの最終結果です。
type Result struct {
	Success     bool            `json:"success"`
	ChapterID   string          `json:"chapterId,omitempty"`
	PanelImages []RenderedPanel `json:"panelImages,omitempty"`
	Error       string          `json:"error,omitempty"`
}

package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-chapter-kit/pkg/domain"
)

const (
	// PanelStyleClause は全パネル共通の画風指定です。パネル固有の描写より前に置きます。
	PanelStyleClause = "Black-and-white manga illustration, monochrome ink, crisp confident linework, " +
		"screentone shading, solid black spot blacks, high contrast, clean panel composition"

	// NegativePanelPrompt はパネル画像から排除したい要素です。
	NegativePanelPrompt = "speech bubble, dialogue balloon, text, letters, words, signatures, watermark, " +
		"color, low quality, distorted, bad anatomy"

	// PanelSystemPrompt はパネル生成時のシステム指示です。
	PanelSystemPrompt = "You are a professional manga artist. Keep every recurring subject identical to the " +
		"provided reference images: same face, hairstyle, outfit and proportions."

	// ReferenceSystemPrompt は設定画生成時のシステム指示です。
	ReferenceSystemPrompt = "You are a character and background designer producing clean reference sheets for a manga production."
)

// BuildPanelPrompt は画風指定とパネル描写を結合したプロンプトを生成します。
func BuildPanelPrompt(styleClause, description string) string {
	if styleClause == "" {
		styleClause = PanelStyleClause
	}
	return fmt.Sprintf("%s. %s", strings.TrimSuffix(styleClause, "."), strings.TrimSpace(description))
}

// AppendRefinement は検証で得られた改善指示をプロンプトの末尾に追加します。
func AppendRefinement(prompt string, suggestions []string) string {
	var cleaned []string
	for _, s := range suggestions {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return prompt
	}
	return prompt + "\n\nCORRECTIONS: " + strings.Join(cleaned, "; ")
}

// BuildReferencePrompt はエンティティ種別に応じた設定画（リファレンスシート）のプロンプトを生成します。
func BuildReferencePrompt(styleClause string, e domain.Entity) string {
	if styleClause == "" {
		styleClause = PanelStyleClause
	}
	desc := strings.TrimSpace(e.Description)
	switch e.Kind {
	case domain.KindCharacter:
		return fmt.Sprintf("Character reference sheet of %s: %s. Full body, front view, neutral pose, plain white background. %s",
			e.Name, desc, styleClause)
	case domain.KindLocation:
		return fmt.Sprintf("Environment reference of %s: %s. Wide establishing view, no people. %s",
			e.Name, desc, styleClause)
	default:
		return fmt.Sprintf("Prop reference sheet of %s: %s. Isolated object, plain white background. %s",
			e.Name, desc, styleClause)
	}
}

// BuildAnglePrompt はメイン設定画から別アングルを描き起こすためのプロンプトです。
func BuildAnglePrompt(styleClause string, e domain.Entity, view string) string {
	return fmt.Sprintf("%s, %s of the same character as the reference image. Keep identical design.",
		BuildReferencePrompt(styleClause, e), view)
}

// Package director は章のセリフに話者や吹き出しの演出情報を付与します。
package director

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	NarrationID = "speaker-narration"

	DialogueNormal  = "normal"
	DialogueShout   = "shout"
	DialogueThought = "thought"
	DialogueWhisper = "whisper"
)

// maxSpeakerRunes を超える「名前: 」は話者ではなく文中のコロンとみなします。
const maxSpeakerRunes = 40

var tagRegex = regexp.MustCompile(`\[[^\]]+\]`)

// StyleManager は話者の識別や吹き出しの種類（叫び等）を管理します。
type StyleManager struct{}

func NewStyleManager() *StyleManager {
	return &StyleManager{}
}

// ResolveSpeakerID は話者名から CSS 安全なハッシュ ID を生成します。
func (s *StyleManager) ResolveSpeakerID(name string) string {
	if strings.TrimSpace(name) == "" {
		return NarrationID
	}
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return "speaker-" + hex.EncodeToString(h.Sum(nil))[:10]
}

// DetermineDialogueType はセリフに含まれるメタタグから吹き出しの種類を判定します。
func (s *StyleManager) DetermineDialogueType(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "[shout]"):
		return DialogueShout
	case strings.Contains(lower, "[thought]"):
		return DialogueThought
	case strings.Contains(lower, "[whisper]"):
		return DialogueWhisper
	default:
		return DialogueNormal
	}
}

// StripTags はメタタグと前後の引用符を取り除きます。
func (s *StyleManager) StripTags(text string) string {
	text = strings.TrimSpace(tagRegex.ReplaceAllString(text, ""))
	return strings.Trim(text, `"“”「」 `)
}

// SplitSpeaker は "Kael: 台詞" 形式のセリフを話者と本文に分けます。
// known が空でなければ、その中の名前（大文字小文字を区別しない）だけを話者として認めます。
// 話者が特定できない場合は空の話者（ナレーション）を返します。
func (s *StyleManager) SplitSpeaker(dialogue string, known []string) (speaker, text string) {
	dialogue = strings.TrimSpace(dialogue)
	idx := strings.Index(dialogue, ":")
	if idx <= 0 {
		return "", dialogue
	}
	candidate := strings.Trim(strings.TrimSpace(dialogue[:idx]), "*_ ")
	rest := strings.TrimSpace(dialogue[idx+1:])
	if candidate == "" || rest == "" || utf8.RuneCountInString(candidate) > maxSpeakerRunes {
		return "", dialogue
	}

	if len(known) == 0 {
		if len(strings.Fields(candidate)) > 4 {
			return "", dialogue
		}
		return candidate, rest
	}
	for _, name := range known {
		if strings.EqualFold(strings.TrimSpace(name), candidate) {
			return name, rest
		}
	}
	return "", dialogue
}

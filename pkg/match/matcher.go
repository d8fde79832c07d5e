// Package match はパネル描写とエンティティの関連判定を提供します。
package match

import (
	"strings"

	"github.com/shouni/go-chapter-kit/pkg/domain"
)

// Matcher はエンティティがパネル描写に関連するかを判定します。
// 埋め込みベクトルの類似度などに差し替えられるよう、判定はこの契約の裏に閉じ込めます。
type Matcher interface {
	Matches(e domain.Entity, description string) bool
}

// DefaultGenericReferents は主人公を指す一般的な呼び方です。
var DefaultGenericReferents = []string{"hero", "main character", "the character", "protagonist"}

const (
	defaultLeadingWords   = 3
	minLeadingPhraseRunes = 8
)

// Heuristic は部分文字列とキーワードによる判定です。
//   - 名前が描写に含まれる（大文字小文字を区別しない）
//   - 主人公フラグのキャラクターで、描写に一般的な呼び方が含まれる
//   - エンティティ説明の冒頭の語列が描写に含まれる
type Heuristic struct {
	GenericReferents []string
	LeadingWords     int
}

// NewHeuristic はデフォルト設定の Heuristic を返します。
func NewHeuristic() *Heuristic {
	return &Heuristic{
		GenericReferents: DefaultGenericReferents,
		LeadingWords:     defaultLeadingWords,
	}
}

func (h *Heuristic) Matches(e domain.Entity, description string) bool {
	text := strings.ToLower(description)
	name := strings.ToLower(strings.TrimSpace(e.Name))
	if name != "" && strings.Contains(text, name) {
		return true
	}

	if e.IsCharacter() && e.IsPrimary {
		for _, ref := range h.GenericReferents {
			if strings.Contains(text, strings.ToLower(ref)) {
				return true
			}
		}
	}

	if phrase := leadingPhrase(e.Description, h.LeadingWords); phrase != "" && strings.Contains(text, phrase) {
		return true
	}
	return false
}

// leadingPhrase は説明文の先頭 n 語を小文字で返します。短すぎる語列は誤検出を招くため空を返します。
func leadingPhrase(desc string, n int) string {
	if n <= 0 {
		n = defaultLeadingWords
	}
	words := strings.FieldsFunc(strings.ToLower(desc), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == ';' || r == '\n' || r == '\t'
	})
	if len(words) > n {
		words = words[:n]
	}
	phrase := strings.Join(words, " ")
	if len([]rune(phrase)) < minLeadingPhraseRunes {
		return ""
	}
	return phrase
}

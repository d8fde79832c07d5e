// Package extract は生成テキストから名前付きエンティティを抽出し、検証します。
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinNameLength = 2
	MaxNameLength = 50
)

var (
	ErrNameLength   = errors.New("名前の長さが範囲外です")
	ErrNameNumeric  = errors.New("名前が数字のみです")
	ErrNameAbstract = errors.New("名前が抽象的なテーマ語です")
)

var numericRegex = regexp.MustCompile(`^[0-9\s.,#:-]+$`)

// DefaultDenylist はエンティティではなくテーマを抽出してしまった場合に現れる抽象語です。
var DefaultDenylist = []string{
	"oppression", "system", "industrial", "freedom", "society", "corruption",
	"hope", "fear", "love", "justice", "revolution", "technology", "nature",
	"destiny", "fate", "war", "peace", "chaos", "order", "power", "control",
	"identity", "betrayal", "redemption", "survival", "greed", "tyranny",
	"rebellion", "conflict", "theme", "themes", "unknown", "none", "n/a",
	"sacrifice", "isolation", "ambition", "memory", "loss", "courage",
}

// Validator はエンティティ名の受け入れ規則です。
type Validator struct {
	denylist map[string]struct{}
}

// NewValidator は指定された禁止語で Validator を生成します。nil の場合は DefaultDenylist を使います。
func NewValidator(denylist []string) *Validator {
	if denylist == nil {
		denylist = DefaultDenylist
	}
	m := make(map[string]struct{}, len(denylist))
	for _, w := range denylist {
		m[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Validator{denylist: m}
}

// Validate は名前が規則を満たすか判定し、違反した規則をエラーとして返します。
//   - 長さが [2,50] 文字の範囲内
//   - 数字のみではない
//   - 禁止語そのもの、または禁止語だけで構成されていない
func (v *Validator) Validate(name string) error {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < MinNameLength || n > MaxNameLength {
		return fmt.Errorf("%w: %q (%d文字)", ErrNameLength, name, n)
	}
	if numericRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrNameNumeric, name)
	}
	if v.isAbstract(name) {
		return fmt.Errorf("%w: %q", ErrNameAbstract, name)
	}
	return nil
}

// Valid は Validate の真偽値版です。
func (v *Validator) Valid(name string) bool {
	return v.Validate(name) == nil
}

func (v *Validator) isAbstract(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := v.denylist[lower]; ok {
		return true
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/'
	})
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		w = strings.Trim(w, ".,'\"")
		if _, ok := v.denylist[w]; !ok && w != "the" && w != "of" && w != "and" {
			return false
		}
	}
	return true
}

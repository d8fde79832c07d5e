package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shouni/go-chapter-kit/pkg/domain"
)

// Caps は種別ごとに保持するエンティティの上限です。先に見つかったものが優先されます。
type Caps struct {
	Characters int
	Locations  int
	Objects    int
}

// DefaultCaps は再現率より適合率を優先した上限です。
var DefaultCaps = Caps{Characters: 5, Locations: 3, Objects: 3}

func (c Caps) limit(kind domain.EntityKind) int {
	switch kind {
	case domain.KindCharacter:
		return c.Characters
	case domain.KindLocation:
		return c.Locations
	case domain.KindObject:
		return c.Objects
	default:
		return 0
	}
}

// Candidate はセクション走査で見つかった検証前の候補です。
type Candidate struct {
	Kind   domain.EntityKind
	Name   string
	Detail string
}

var (
	bulletRegex      = regexp.MustCompile(`^\s*(?:[-*•+]+|\d+[.)])\s+`)
	emphasisReplacer = strings.NewReplacer("**", "", "__", "", "`", "")
	parenRegex       = regexp.MustCompile(`\s*\(([^)]*)\)\s*$`)
	separators       = []string{":", " - ", " – ", " — "}
)

// sectionKeywords はセクション見出しの判定に使う部分文字列です。
var sectionKeywords = []struct {
	keyword string
	kind    domain.EntityKind
}{
	{"character", domain.KindCharacter},
	{"location", domain.KindLocation},
	{"setting", domain.KindLocation},
	{"object", domain.KindObject},
	{"item", domain.KindObject},
}

// ParseSections は「ラベル付きセクション」形式のテキストを行単位で走査し、候補を返します。
// 見出し行でカーソルを切り替え、セクション内の区切り文字を含む行を名前と詳細に分割します。
func ParseSections(raw string) []Candidate {
	var (
		candidates []Candidate
		current    domain.EntityKind
	)

	for _, line := range strings.Split(raw, "\n") {
		cleaned := strings.TrimSpace(emphasisReplacer.Replace(line))
		if cleaned == "" {
			continue
		}

		name, detail, hasSep := splitEntry(cleaned)
		if kind, ok := sniffSection(cleaned); ok && (!hasSep || detail == "") {
			current = kind
			continue
		}
		// 未知の見出し（"NOTES:" や "## Themes"）はセクションを閉じる
		if isHeading(cleaned, hasSep, detail) {
			current = ""
			continue
		}
		if current == "" || !hasSep {
			continue
		}

		name = cleanName(name)
		if m := parenRegex.FindStringSubmatch(name); m != nil {
			// "Kael (protagonist): ..." の括弧書きは詳細へ回す
			detail = strings.TrimSpace(m[1] + ". " + detail)
			name = strings.TrimSpace(parenRegex.ReplaceAllString(name, ""))
		}
		candidates = append(candidates, Candidate{Kind: current, Name: name, Detail: detail})
	}
	return candidates
}

func isHeading(line string, hasSep bool, detail string) bool {
	if strings.HasPrefix(line, "#") {
		return true
	}
	return hasSep && detail == "" && !bulletRegex.MatchString(line)
}

func sniffSection(line string) (domain.EntityKind, bool) {
	lower := strings.ToLower(strings.Trim(line, "#*-=: \t"))
	if len(lower) > 40 {
		return "", false
	}
	for _, k := range sectionKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.kind, true
		}
	}
	return "", false
}

func splitEntry(line string) (name, detail string, ok bool) {
	best := -1
	bestSep := ""
	for _, sep := range separators {
		if idx := strings.Index(line, sep); idx != -1 && (best == -1 || idx < best) {
			best, bestSep = idx, sep
		}
	}
	if best == -1 {
		return line, "", false
	}
	return strings.TrimSpace(line[:best]), strings.TrimSpace(line[best+len(bestSep):]), true
}

func cleanName(s string) string {
	s = bulletRegex.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t\"'[]#")
	return strings.Join(strings.Fields(s), " ")
}

// Extractor は候補の検証・上限適用・重複排除を行います。
type Extractor struct {
	validator *Validator
	caps      Caps
}

// NewExtractor は Extractor を初期化します。
func NewExtractor(v *Validator, caps Caps) *Extractor {
	if v == nil {
		v = NewValidator(nil)
	}
	return &Extractor{validator: v, caps: caps}
}

// Extract は生成テキストからエンティティを抽出し、ユーザー作成エンティティを先頭に付けて返します。
// ユーザー作成エンティティは検証の対象外で、同名の抽出結果は捨てられます。
func (x *Extractor) Extract(raw string, userAuthored []domain.Entity) []domain.Entity {
	result := make([]domain.Entity, 0, len(userAuthored))
	seen := make(map[string]struct{})
	hasPrimary := false
	for _, e := range userAuthored {
		c := e.Clone()
		c.UserAuthored = true
		result = append(result, c)
		seen[strings.ToLower(c.Name)] = struct{}{}
		if c.IsCharacter() && c.IsPrimary {
			hasPrimary = true
		}
	}

	counts := make(map[domain.EntityKind]int)
	var extracted []domain.Entity
	for _, cand := range ParseSections(raw) {
		if err := x.validator.Validate(cand.Name); err != nil {
			slog.Debug("エンティティ候補を棄却しました", "name", cand.Name, "kind", cand.Kind, "reason", err)
			continue
		}
		key := strings.ToLower(cand.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		if counts[cand.Kind] >= x.caps.limit(cand.Kind) {
			slog.Debug("上限を超えたためエンティティ候補を捨てました", "name", cand.Name, "kind", cand.Kind)
			continue
		}
		seen[key] = struct{}{}
		counts[cand.Kind]++
		extracted = append(extracted, domain.NewEntity(cand.Kind, cand.Name, cand.Detail, InferRole(cand.Kind, cand.Detail)))
	}

	if !hasPrimary {
		markPrimary(extracted)
	}
	return append(result, extracted...)
}

// markPrimary は最初の主人公（いなければ最初のキャラクター）を IsPrimary にします。
func markPrimary(es []domain.Entity) {
	first := -1
	for i := range es {
		if !es[i].IsCharacter() {
			continue
		}
		if es[i].Role == domain.RoleProtagonist {
			es[i].IsPrimary = true
			return
		}
		if first == -1 {
			first = i
		}
	}
	if first != -1 {
		es[first].IsPrimary = true
	}
}

var roleHints = map[domain.EntityKind][]struct {
	role     string
	keywords []string
}{
	domain.KindCharacter: {
		{domain.RoleProtagonist, []string{"protagonist", "hero", "heroine", "main character", "lead"}},
		{domain.RoleAntagonist, []string{"antagonist", "villain", "enemy", "nemesis"}},
		{domain.RoleMinor, []string{"minor", "background", "extra", "cameo"}},
	},
	domain.KindLocation: {
		{domain.CategoryInterior, []string{"interior", "inside", "room", "hall", "chamber"}},
		{domain.CategoryLandmark, []string{"landmark", "monument", "tower", "shrine"}},
		{domain.CategoryRealm, []string{"realm", "world", "kingdom", "dimension"}},
	},
	domain.KindObject: {
		{domain.ObjectWeapon, []string{"weapon", "sword", "blade", "gun", "bow", "spear", "axe", "dagger"}},
		{domain.ObjectArtifact, []string{"artifact", "relic", "amulet", "talisman", "crown"}},
		{domain.ObjectTool, []string{"tool", "key", "map", "lantern"}},
		{domain.ObjectVehicle, []string{"vehicle", "ship", "car", "cart", "airship", "boat"}},
	},
}

// InferRole は詳細テキストのキーワードから役割を推定します。該当がなければ種別のデフォルト値です。
func InferRole(kind domain.EntityKind, detail string) string {
	lower := strings.ToLower(detail)
	for _, h := range roleHints[kind] {
		for _, kw := range h.keywords {
			if strings.Contains(lower, kw) {
				return h.role
			}
		}
	}
	return domain.NormalizeRole(kind, "")
}

// Package reference は設定画の生成と、パネルごとの参照画像・シード値の選択を扱います。
package reference

import (
	"github.com/shouni/go-chapter-kit/pkg/domain"
	"github.com/shouni/go-chapter-kit/pkg/match"
)

// DefaultMaxReferences は1パネルに渡す参照画像の上限です。
const DefaultMaxReferences = 8

// Store はパイプライン1回分のエンティティとスタイルシードを保持します。
// 書き込みは工程を進める側だけが行い、Select は読み取り専用です。
type Store struct {
	entities      domain.Entities
	styleSeed     int64
	matcher       match.Matcher
	maxReferences int
}

// NewStore は Store を初期化します。matcher が nil の場合は Heuristic を使います。
func NewStore(entities []domain.Entity, styleSeed int64, matcher match.Matcher) *Store {
	if matcher == nil {
		matcher = match.NewHeuristic()
	}
	return &Store{
		entities:      domain.Entities(entities).Clone(),
		styleSeed:     styleSeed,
		matcher:       matcher,
		maxReferences: DefaultMaxReferences,
	}
}

// WithMaxReferences は参照画像の上限を変更します。0 以下なら上限なしです。
func (s *Store) WithMaxReferences(n int) *Store {
	s.maxReferences = n
	return s
}

// Entities は保持しているエンティティのコピーを返します。
func (s *Store) Entities() []domain.Entity {
	return s.entities.Clone()
}

// Select は描写に関連するエンティティの参照画像とシード値を選びます。
// 入力が同じなら常に同じ結果を返します。
//
// 参照画像の順序: ユーザー作成 → キャラクター → 場所 → その他（各グループ内は保持順）
// シード値の優先順位: ユーザー作成キャラクター → 一致したキャラクター → 一致した場所 → スタイルシード
func (s *Store) Select(description string) domain.Selection {
	var matched []domain.Entity
	for _, e := range s.entities {
		if s.matcher.Matches(e, description) {
			matched = append(matched, e.Clone())
		}
	}

	sel := domain.Selection{
		Seed:       s.styleSeed,
		SeedSource: domain.SeedFromStyle,
		Matched:    matched,
	}
	sel.ReferenceURLs = s.collectReferences(matched)

	if e := firstWithSeed(matched, func(e domain.Entity) bool { return e.IsCharacter() && e.UserAuthored }); e != nil {
		sel.Seed, sel.SeedSource = e.Seed, domain.SeedFromUserCharacter
	} else if e := firstWithSeed(matched, domain.Entity.IsCharacter); e != nil {
		sel.Seed, sel.SeedSource = e.Seed, domain.SeedFromCharacter
	} else if e := firstWithSeed(matched, func(e domain.Entity) bool { return e.Kind == domain.KindLocation }); e != nil {
		sel.Seed, sel.SeedSource = e.Seed, domain.SeedFromLocation
	}
	return sel
}

func (s *Store) collectReferences(matched []domain.Entity) []string {
	groups := [][]domain.Entity{nil, nil, nil, nil}
	for _, e := range matched {
		switch {
		case e.UserAuthored:
			groups[0] = append(groups[0], e)
		case e.IsCharacter():
			groups[1] = append(groups[1], e)
		case e.Kind == domain.KindLocation:
			groups[2] = append(groups[2], e)
		default:
			groups[3] = append(groups[3], e)
		}
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, g := range groups {
		for _, e := range g {
			for _, u := range e.AllImageURLs() {
				if _, dup := seen[u]; dup {
					continue
				}
				if s.maxReferences > 0 && len(urls) >= s.maxReferences {
					return urls
				}
				seen[u] = struct{}{}
				urls = append(urls, u)
			}
		}
	}
	return urls
}

func firstWithSeed(es []domain.Entity, pred func(domain.Entity) bool) *domain.Entity {
	for i := range es {
		if es[i].HasSeed() && pred(es[i]) {
			return &es[i]
		}
	}
	return nil
}

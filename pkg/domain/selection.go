package domain

// SeedSource は選択されたシード値の出どころです。
type SeedSource string

const (
	SeedFromUserCharacter SeedSource = "user-character"
	SeedFromCharacter     SeedSource = "character"
	SeedFromLocation      SeedSource = "location"
	SeedFromStyle         SeedSource = "style"
)

// Selection は1パネルに使う参照画像とシード値の組です。
// 同じエンティティ集合・スタイルシード・描写からは常に同じ値が得られます。
type Selection struct {
	ReferenceURLs []string   `json:"referenceUrls,omitempty"`
	Seed          int64      `json:"seed"`
	SeedSource    SeedSource `json:"seedSource"`
	// Matched は描写に関連すると判定されたエンティティです（参照画像の有無を問わない）。
	Matched []Entity `json:"matched,omitempty"`
}

// HasReferences は参照画像が1枚以上あるかどうかを返します。
func (s Selection) HasReferences() bool {
	return len(s.ReferenceURLs) > 0
}

// Subject は検証で主題として扱うエンティティを返します。
// シード値の出どころとなったエンティティ、なければ最初に一致したエンティティです。
func (s Selection) Subject() *Entity {
	if len(s.Matched) == 0 {
		return nil
	}
	for i := range s.Matched {
		e := s.Matched[i]
		if s.SeedSource != SeedFromStyle && e.HasSeed() && e.Seed == s.Seed {
			return &e
		}
	}
	e := s.Matched[0]
	return &e
}

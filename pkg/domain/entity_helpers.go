package domain

import "strings"

// Entities はエンティティの順序付きリストです。順序は参照選択の決定性に関わります。
type Entities []Entity

// ByKind は指定された種別のエンティティだけを元の順序で返します。
func (es Entities) ByKind(kind EntityKind) Entities {
	var out Entities
	for _, e := range es {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Find は名前（大文字小文字を区別しない）からエンティティを特定します。
func (es Entities) Find(name string) *Entity {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil
	}
	for i := range es {
		if strings.ToLower(es[i].Name) == key {
			res := es[i]
			return &res
		}
	}
	return nil
}

// Names はエンティティ名の一覧を返します。
func (es Entities) Names() []string {
	names := make([]string, 0, len(es))
	for _, e := range es {
		names = append(names, e.Name)
	}
	return names
}

// Primary は IsPrimary が true の最初のキャラクターを返します。
// ユーザー作成のキャラクターを優先します。
func (es Entities) Primary() *Entity {
	var fallback *Entity
	for i := range es {
		e := es[i]
		if !e.IsCharacter() || !e.IsPrimary {
			continue
		}
		if e.UserAuthored {
			return &e
		}
		if fallback == nil {
			fallback = &e
		}
	}
	return fallback
}

// Clone はリスト全体のディープコピーを返します。
func (es Entities) Clone() Entities {
	if es == nil {
		return nil
	}
	out := make(Entities, len(es))
	for i, e := range es {
		out[i] = e.Clone()
	}
	return out
}

package match

import (
	"testing"

	"github.com/shouni/go-chapter-kit/pkg/domain"
)

func TestHeuristic_Matches(t *testing.T) {
	m := NewHeuristic()

	kael := domain.Entity{Name: "Kael", Kind: domain.KindCharacter, IsPrimary: true, Description: "scarred young warrior"}
	mira := domain.Entity{Name: "Mira", Kind: domain.KindCharacter, Description: "smith"}
	keep := domain.Entity{Name: "Ashen Keep", Kind: domain.KindLocation, Description: "ruined black fortress on a cliff"}

	cases := []struct {
		name   string
		entity domain.Entity
		text   string
		want   bool
	}{
		{"名前の部分一致（大文字小文字無視）", kael, "KAEL lifts the blade", true},
		{"主人公への一般的な呼び方", kael, "The hero stares at the altar", true},
		{"主人公でなければ一般的な呼び方では一致しない", mira, "The hero stares at the altar", false},
		{"説明文冒頭の語列が一致", keep, "Wide shot of a ruined black fortress on a cliff at dusk", true},
		{"短すぎる語列は使わない", mira, "the smith's hammer rests on the anvil", false},
		{"無関係な描写", keep, "Kael walks through a forest", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.Matches(tc.entity, tc.text); got != tc.want {
				t.Errorf("期待値 %v, 実際の値 %v", tc.want, got)
			}
		})
	}
}

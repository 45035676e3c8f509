package dictionary

import (
	"testing"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func country(id int, name string) NamedEntity {
	return NamedEntity{ID: id, Name: name, Kind: KindCountry}
}

func ids(matches []MatchCandidate) []int {
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.Entity.ID
	}
	return out
}

func TestMatch_ExactNameIsAlwaysFirst(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{})
	candidates := []NamedEntity{
		country(1, "Египет"),
		country(2, "Египет Экспресс"),
		country(3, "Турция"),
		country(4, "Тунис"),
		country(5, "Таиланд"),
		country(6, "Шри-Ланка"),
	}

	for _, e := range candidates {
		t.Run(e.Name, func(t *testing.T) {
			got := m.Match(e.Name, candidates, 1)
			require.Len(t, got, 1)
			assert.Equal(t, e.ID, got[0].Entity.ID)
			assert.Equal(t, 1.0, got[0].Score)
		})
	}
}

func TestMatch_Tiers(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{})

	tests := []struct {
		name      string
		query     string
		candidate string
		want      float64
	}{
		{"exact ignores case", "EGYPT", "Egypt", 1.0},
		{"exact ignores ё", "черногория", "Чёрногория", 1.0},
		{"prefix", "тур", "Турция", 0.85},
		{"reverse prefix", "египет летом", "Египет", 0.85},
		{"substring", "ланка", "Шри-Ланка", 0.7},
		{"token overlap", "шейх шарм", "Шарм Эль Шейх", 2.0 / 3.0},
		{"token order", "эль шейх шарм", "Шарм Эль Шейх", 1.0},
		{"edit distance", "Tailand", "Thailand", 1 - 1.0/8.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.query, []NamedEntity{country(1, tt.candidate)}, 1)
			require.Len(t, got, 1)
			assert.InDelta(t, tt.want, got[0].Score, 1e-9)
		})
	}
}

func TestMatch_ShortNameIsNotReversePrefix(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{})
	got := m.Match("оаэшный отдых", []NamedEntity{country(9, "ОА")}, 1)
	assert.Empty(t, got)
}

func TestMatch_EmptyInputs(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{})
	candidates := []NamedEntity{country(1, "Egypt")}

	assert.Empty(t, m.Match("", candidates, 3))
	assert.Empty(t, m.Match("   ", candidates, 3))
	assert.Empty(t, m.Match("egypt", nil, 3))
	assert.Empty(t, m.Match("egypt", []NamedEntity{}, 3))
}

func TestMatch_DeterministicTieOrder(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{})
	// Все три — префиксные совпадения с одинаковой оценкой
	candidates := []NamedEntity{
		country(30, "Кипр Северный"),
		country(10, "Кипр Южный"),
		country(20, "Кипр Западный"),
	}

	first := m.Match("кипр", candidates, 3)
	assert.Equal(t, []int{10, 20, 30}, ids(first))

	for i := 0; i < 20; i++ {
		assert.Equal(t, first, m.Match("кипр", candidates, 3))
	}
}

func TestMatch_ExactBeatsEqualTokenScore(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{})
	candidates := []NamedEntity{
		country(1, "эль шарм"), // Jaccard = 1.0
		country(2, "шарм эль"), // точное
	}

	got := m.Match("Шарм Эль", candidates, 2)
	require.Len(t, got, 2)
	assert.Equal(t, []int{2, 1}, ids(got))
}

func TestMatch_TopKAndOrdering(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{})
	candidates := []NamedEntity{
		country(1, "Турция"),
		country(2, "Тур"),
		country(3, "Аватур"),
		country(4, "Греция"),
	}

	got := m.Match("тур", candidates, 2)
	assert.Equal(t, []int{2, 1}, ids(got))

	all := m.Match("тур", candidates, 10)
	assert.Equal(t, []int{2, 1, 3}, ids(all))
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Score, all[i].Score)
	}
}

func TestMatch_EditBranchOnlyWhenNothingElse(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{})
	candidates := []NamedEntity{
		country(3, "Thailand"),
		country(7, "Tailandia Resort"), // префикс "tailand"
	}

	got := m.Match("tailand", candidates, 5)
	// Есть префиксное совпадение, поэтому ветка Левенштейна не используется
	assert.Equal(t, []int{7}, ids(got))
}

func TestMatch_NoMatch(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{})
	candidates := []NamedEntity{country(1, "Egypt"), country(2, "Ecuador")}

	assert.Empty(t, m.Match("xyz123", candidates, 1))
}

func TestMatch_ConfigurableThresholds(t *testing.T) {
	m := NewMatcher(config.MatcherConfig{PrefixScore: 0.6, MinEditScore: 0.9})
	candidates := []NamedEntity{country(3, "Thailand")}

	got := m.Match("thai", candidates, 1)
	require.Len(t, got, 1)
	assert.Equal(t, 0.6, got[0].Score)

	// 0.875 < 0.9
	assert.Empty(t, m.Match("Tailand", candidates, 1))
}

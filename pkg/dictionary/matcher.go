package dictionary

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/ilkoid/eto-travel-mcp/pkg/config"
)

// MatchCandidate — сущность с оценкой похожести на запрос (0.0 - 1.0).
type MatchCandidate struct {
	Entity NamedEntity `json:"entity"`
	Score  float64     `json:"score"`
}

// tier — ступень, на которой сработало совпадение. При равном Score
// выигрывает более "строгая" ступень, затем меньший id.
type tier int

const (
	tierExact tier = iota
	tierPrefix
	tierSubstring
	tierTokens
	tierEdit
)

type scored struct {
	MatchCandidate
	tier tier
}

// Matcher ранжирует сущности по свободному тексту.
//
// Ступени по убыванию приоритета:
//  1. точное совпадение без учета регистра
//  2. название начинается с запроса (или запрос с названия)
//  3. запрос входит в название
//  4. Jaccard по множествам слов
//  5. если 1-4 ничего не дали: нормированное расстояние Левенштейна
//
// Matcher не хранит состояния и безопасен для параллельного использования.
type Matcher struct {
	cfg config.MatcherConfig
}

// NewMatcher создает Matcher с порогами из конфигурации.
func NewMatcher(cfg config.MatcherConfig) *Matcher {
	return &Matcher{cfg: cfg.GetDefaults()}
}

// Config возвращает эффективные пороги.
func (m *Matcher) Config() config.MatcherConfig {
	return m.cfg
}

// Match возвращает не больше topK кандидатов по убыванию Score.
//
// Пустой запрос или пустой набор кандидатов дают пустой результат.
// Результат детерминирован: при равных оценках порядок по id.
func (m *Matcher) Match(query string, candidates []NamedEntity, topK int) []MatchCandidate {
	q := normalize(query)
	if q == "" || len(candidates) == 0 || topK < 1 {
		return nil
	}
	qTokens := tokens(q)

	names := make([]string, len(candidates))
	var matches []scored
	for i, c := range candidates {
		names[i] = normalize(c.Name)
		if names[i] == "" {
			continue
		}
		if score, t := m.score(q, names[i], qTokens); score > 0 {
			matches = append(matches, scored{MatchCandidate{Entity: c, Score: score}, t})
		}
	}

	// Опечатки: только если ни одна строгая ступень не сработала
	if len(matches) == 0 {
		for i, c := range candidates {
			if names[i] == "" {
				continue
			}
			if score := editSimilarity(q, names[i]); score >= m.cfg.MinEditScore {
				matches = append(matches, scored{MatchCandidate{Entity: c, Score: score}, tierEdit})
			}
		}
	}

	slices.SortFunc(matches, func(a, b scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.tier, b.tier); c != 0 {
			return c
		}
		return cmp.Compare(a.Entity.ID, b.Entity.ID)
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	out := make([]MatchCandidate, len(matches))
	for i, s := range matches {
		out[i] = s.MatchCandidate
	}
	return out
}

// score оценивает пару по ступеням 1-4. Ноль — совпадения нет.
func (m *Matcher) score(q, name string, qTokens map[string]struct{}) (float64, tier) {
	switch {
	case name == q:
		return m.cfg.ExactScore, tierExact
	case strings.HasPrefix(name, q):
		return m.cfg.PrefixScore, tierPrefix
	case strings.HasPrefix(q, name) && utf8.RuneCountInString(name) >= m.cfg.MinReversePrefix:
		// "египет летом" → "Египет"
		return m.cfg.PrefixScore, tierPrefix
	case strings.Contains(name, q):
		return m.cfg.SubstringScore, tierSubstring
	}

	if j := jaccard(qTokens, tokens(name)); j > 0 {
		return j, tierTokens
	}
	return 0, tierTokens
}

// normalize приводит строку к нижнему регистру, схлопывает пробелы и заменяет ё на е.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.Join(strings.Fields(s), " ")
}

// tokens разбивает строку на слова из букв.
func tokens(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard — |A∩B| / |A∪B|.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// editSimilarity — 1 - levenshtein(a, b) / max(len(a), len(b)) в рунах.
func editSimilarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(maxLen)
}

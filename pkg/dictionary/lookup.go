package dictionary

import (
	"context"
	"slices"
)

// Result — результат поиска сущности по тексту.
//
// Found=false — нормальный исход (NotFound), а не ошибка. Alternatives
// содержит следующих по рангу кандидатов, в том числе ниже порога,
// чтобы ассистент мог предложить варианты.
type Result struct {
	Query        string           `json:"query"`
	Found        bool             `json:"found"`
	Entity       *NamedEntity     `json:"entity,omitempty"`
	Score        float64          `json:"score,omitempty"`
	Alternatives []MatchCandidate `json:"alternatives,omitempty"`
}

// Lookup связывает Loader и Matcher в операции поиска.
type Lookup struct {
	loader  *Loader
	matcher *Matcher
}

// NewLookup создает сервис поиска.
func NewLookup(loader *Loader, matcher *Matcher) *Lookup {
	return &Lookup{loader: loader, matcher: matcher}
}

// Loader возвращает загрузчик справочника.
func (l *Lookup) Loader() *Loader {
	return l.loader
}

// FindCountry ищет страну по названию.
func (l *Lookup) FindCountry(ctx context.Context, text string) (Result, error) {
	snap, err := l.loader.EnsureLoaded(ctx)
	if err != nil {
		return Result{}, err
	}
	return l.best(text, snap.Countries()), nil
}

// FindRegion ищет регион по названию, опционально только в стране countryID.
func (l *Lookup) FindRegion(ctx context.Context, text string, countryID *int) (Result, error) {
	snap, err := l.loader.EnsureLoaded(ctx)
	if err != nil {
		return Result{}, err
	}

	regions := snap.Regions()
	if countryID != nil {
		regions = snap.RegionsOf(*countryID)
	}
	return l.best(text, regions), nil
}

// FindDeparture ищет город вылета по названию.
func (l *Lookup) FindDeparture(ctx context.Context, text string) (Result, error) {
	snap, err := l.loader.EnsureLoaded(ctx)
	if err != nil {
		return Result{}, err
	}
	return l.best(text, snap.Departures()), nil
}

// PopularCountries возвращает популярные страны по возрастанию id.
func (l *Lookup) PopularCountries(ctx context.Context) ([]NamedEntity, error) {
	snap, err := l.loader.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	popular := slices.DeleteFunc(snap.Countries(), func(e NamedEntity) bool { return !e.Popular })
	// Countries уже отсортированы, но порядок здесь — часть контракта
	slices.SortFunc(popular, func(a, b NamedEntity) int { return a.ID - b.ID })
	return popular, nil
}

// best берет лучший кандидат и проверяет порог min_lookup_score.
func (l *Lookup) best(text string, candidates []NamedEntity) Result {
	cfg := l.matcher.Config()
	res := Result{Query: text}

	matches := l.matcher.Match(text, candidates, max(cfg.Suggestions, 1))
	if len(matches) == 0 {
		return res
	}

	top := matches[0]
	if top.Score >= cfg.MinLookupScore {
		res.Found = true
		res.Entity = &top.Entity
		res.Score = top.Score
		matches = matches[1:]
	}
	if len(matches) > 0 {
		res.Alternatives = matches
	}
	return res
}

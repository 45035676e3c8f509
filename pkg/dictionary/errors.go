package dictionary

import (
	"errors"
	"fmt"
)

// ErrDictionaryUnavailable — справочник не удалось получить или разобрать.
//
// Текущий снимок в Store при этом не меняется.
var ErrDictionaryUnavailable = errors.New("dictionary unavailable")

// ErrSchema — payload справочника не соответствует ожидаемой структуре.
var ErrSchema = errors.New("unexpected dictionary schema")

// ErrCacheMiss — в кэше нет сохранённого справочника.
var ErrCacheMiss = errors.New("dictionary cache miss")

// UpstreamError — ошибка внешнего источника справочника, как есть.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// unavailable оборачивает причину в ErrDictionaryUnavailable,
// сохраняя её доступной для errors.Is / errors.As.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrDictionaryUnavailable, err)
}

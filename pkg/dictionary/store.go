package dictionary

import "sync/atomic"

// Store хранит текущий снимок справочника.
//
// Чтение никогда не блокируется и не ходит в сеть. Замена атомарна:
// читатель видит либо старый снимок целиком, либо новый.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore создает пустой Store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot возвращает текущий снимок или nil, если справочник ещё не загружен.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Set атомарно заменяет снимок. Уже захваченные читателями снимки не меняются.
func (s *Store) Set(snap *Snapshot) {
	s.current.Store(snap)
}

// SetIfEmpty устанавливает снимок, только если Store ещё пуст.
//
// Возвращает снимок, который в итоге лежит в Store, и true, если это snap.
func (s *Store) SetIfEmpty(snap *Snapshot) (*Snapshot, bool) {
	if s.current.CompareAndSwap(nil, snap) {
		return snap, true
	}
	return s.current.Load(), false
}

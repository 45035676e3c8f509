// Package hotelstore — кэш названий отелей в sqlite.
//
// Результаты поиска Tourvisor приходят с id отелей, иногда без названий.
// Названия берутся из справочника allhotel, который загружается
// один раз на страну и складывается сюда.
package hotelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Hotel — запись кэша.
type Hotel struct {
	CountryID  int
	ID         int
	Name       string
	Stars      int
	RegionName string
}

// Store — кэш отелей поверх *sql.DB.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS hotels (
	country_id  INTEGER NOT NULL,
	hotel_id    INTEGER NOT NULL,
	name        TEXT    NOT NULL,
	stars       INTEGER NOT NULL DEFAULT 0,
	region_name TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (country_id, hotel_id)
);
CREATE TABLE IF NOT EXISTS loaded_countries (
	country_id INTEGER PRIMARY KEY,
	loaded_at  TIMESTAMP NOT NULL
);`

// Open открывает (или создает) базу по пути path.
//
// ":memory:" живет только пока открыт Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open hotel store: %w", err)
	}
	// sqlite не любит параллельных писателей, а :memory: у каждого соединения свой
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate hotel store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

// HasCountry сообщает, загружался ли справочник отелей страны.
func (s *Store) HasCountry(ctx context.Context, countryID int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM loaded_countries WHERE country_id = ?", countryID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("hotel store query failed: %w", err)
	}
	return n > 0, nil
}

// SaveCountry заменяет отели страны одним транзакционным пакетом.
func (s *Store) SaveCountry(ctx context.Context, countryID int, hotels []Hotel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM hotels WHERE country_id = ?", countryID); err != nil {
		return fmt.Errorf("clear country %d: %w", countryID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO hotels (country_id, hotel_id, name, stars, region_name) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, h := range hotels {
		if h.ID <= 0 || h.Name == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, countryID, h.ID, h.Name, h.Stars, h.RegionName); err != nil {
			return fmt.Errorf("insert hotel %d: %w", h.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO loaded_countries (country_id, loaded_at) VALUES (?, ?)",
		countryID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark country %d: %w", countryID, err)
	}

	return tx.Commit()
}

// Get возвращает отель страны по id.
func (s *Store) Get(ctx context.Context, countryID, hotelID int) (Hotel, bool, error) {
	h := Hotel{CountryID: countryID, ID: hotelID}
	err := s.db.QueryRowContext(ctx,
		"SELECT name, stars, region_name FROM hotels WHERE country_id = ? AND hotel_id = ?",
		countryID, hotelID).Scan(&h.Name, &h.Stars, &h.RegionName)
	if errors.Is(err, sql.ErrNoRows) {
		return Hotel{}, false, nil
	}
	if err != nil {
		return Hotel{}, false, fmt.Errorf("hotel store query failed: %w", err)
	}
	return h, true, nil
}

package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/example/visa-checker/internal/db"
	"github.com/example/visa-checker/internal/dateutil"
)

const appointmentDateKey = "current_appointment_date"

// Store persists availability observations and the account's current
// appointment date. Every successful fetch appends a row to
// available_dates; the latest row per city is the "last known" read path.
type Store struct{ db *db.DB }

func New(d *db.DB) *Store { return &Store{db: d} }

type AvailabilityRecord struct {
	CityID    string
	CityName  string
	Dates     []string
	CreatedAt time.Time
}

// RecordDates appends the snapshot for a city, even when empty or
// unchanged. The rows double as an audit trail.
func (s *Store) RecordDates(ctx context.Context, cityID, cityName string, dates []string) error {
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)
	return s.db.Exec(ctx,
		`INSERT INTO available_dates (city_id, city_name, dates) VALUES ($1, $2, $3)`,
		cityID, cityName, strings.Join(sorted, ","))
}

// LastKnownDates returns the most recently recorded date set for a city.
// A city that has never been recorded yields an empty set.
func (s *Store) LastKnownDates(ctx context.Context, cityID string) (map[string]bool, error) {
	var joined string
	err := s.db.QueryRow(ctx,
		`SELECT dates FROM available_dates WHERE city_id=$1 ORDER BY created_at DESC LIMIT 1`,
		cityID).Scan(&joined)
	if err != nil {
		if db.IsNotFound(db.WrapNotFound(err)) {
			return map[string]bool{}, nil
		}
		return nil, db.WrapNotFound(err)
	}
	out := map[string]bool{}
	for _, d := range strings.Split(joined, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out[d] = true
		}
	}
	return out, nil
}

func (s *Store) History(ctx context.Context, cityID string, limit int) ([]AvailabilityRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT city_id, city_name, dates, created_at
FROM available_dates
WHERE city_id=$1
ORDER BY created_at DESC
LIMIT $2`, cityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AvailabilityRecord
	for rows.Next() {
		var r AvailabilityRecord
		var joined string
		if err := rows.Scan(&r.CityID, &r.CityName, &joined, &r.CreatedAt); err != nil {
			return nil, err
		}
		for _, d := range strings.Split(joined, ",") {
			if d = strings.TrimSpace(d); d != "" {
				r.Dates = append(r.Dates, d)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CurrentAppointmentDate reads the booked appointment date. Returns
// db.ErrNotFound until one has been set.
func (s *Store) CurrentAppointmentDate(ctx context.Context) (time.Time, error) {
	var v string
	err := s.db.QueryRow(ctx, `SELECT value FROM app_state WHERE key=$1`, appointmentDateKey).Scan(&v)
	if err != nil {
		return time.Time{}, db.WrapNotFound(err)
	}
	return dateutil.ParseDate(v)
}

func (s *Store) SetCurrentAppointmentDate(ctx context.Context, d time.Time) error {
	return s.db.Exec(ctx, `
INSERT INTO app_state (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		appointmentDateKey, d.Format(dateutil.Layout))
}

package drills

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/drillcoach/backend/internal/models"
)

// Store is read-only catalog access. Drill authoring happens outside this
// service; the backend only serves what the catalog holds.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListDrills(category string) ([]models.Drill, error) {
	query := `SELECT id, category, title, summary, difficulty_score, tags, duration_minutes, created_at
	          FROM drills`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY category, difficulty_score`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drills: %w", err)
	}
	defer rows.Close()

	var drills []models.Drill
	for rows.Next() {
		var d models.Drill
		if err := rows.Scan(&d.ID, &d.Category, &d.Title, &d.Summary,
			&d.DifficultyScore, pq.Array(&d.Tags), &d.DurationMinutes, &d.CreatedAt); err != nil {
			return nil, err
		}
		drills = append(drills, d)
	}
	if drills == nil {
		drills = []models.Drill{}
	}
	return drills, rows.Err()
}

func (s *Store) GetDrill(id int64) (*models.Drill, error) {
	var d models.Drill
	err := s.db.QueryRow(
		`SELECT id, category, title, summary, difficulty_score, tags, duration_minutes, created_at
		 FROM drills WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Category, &d.Title, &d.Summary,
		&d.DifficultyScore, pq.Array(&d.Tags), &d.DurationMinutes, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrDrillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get drill: %w", err)
	}
	return &d, nil
}

func (s *Store) ListCategories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM drills ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, rows.Err()
}

package repository

import (
	"database/sql"
	"time"

	"technobug/pkg/models"
)

type ProgressRepository interface {
	RecordVisit(userID int, page string) error
	VisitedPages(userID int) (map[string]time.Time, error)
	ActivityCounts(userID int) (models.ActivityCounts, error)
}

type progressRepository struct {
	db *sql.DB
}

func NewProgressRepository(db *sql.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) RecordVisit(userID int, page string) error {
	_, err := r.db.Exec(`
		INSERT INTO page_visits (user_id, page, visited_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, page) DO UPDATE SET visited_at = EXCLUDED.visited_at
	`, userID, page)
	return err
}

func (r *progressRepository) VisitedPages(userID int) (map[string]time.Time, error) {
	rows, err := r.db.Query(`SELECT page, visited_at FROM page_visits WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visited := make(map[string]time.Time)
	for rows.Next() {
		var page string
		var at time.Time
		if err := rows.Scan(&page, &at); err != nil {
			return nil, err
		}
		visited[page] = at
	}
	return visited, rows.Err()
}

// ActivityCounts counts authored posts, comments (replies included) and likes
// given on both posts and comments.
func (r *progressRepository) ActivityCounts(userID int) (models.ActivityCounts, error) {
	var c models.ActivityCounts
	err := r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM posts WHERE user_id = $1),
			(SELECT COUNT(*) FROM comments WHERE user_id = $1),
			(SELECT COUNT(*) FROM post_likes WHERE user_id = $1) +
			(SELECT COUNT(*) FROM comment_likes WHERE user_id = $1)
	`, userID).Scan(&c.Posts, &c.Comments, &c.Likes)
	return c, err
}

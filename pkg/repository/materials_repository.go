package repository

import (
	"database/sql"

	"technobug/pkg/models"

	"github.com/lib/pq"
)

type MaterialsRepository interface {
	ListByKinds(kinds ...models.MaterialKind) ([]models.Material, error)
	GetByID(id int) (models.Material, error)
	Create(m models.Material) (models.Material, error)
	Search(term string, limit int) ([]models.Material, error)
	IncrementViews(id int) error
	IncrementDownloads(id int) error
}

type materialsRepository struct {
	db *sql.DB
}

func NewMaterialsRepository(db *sql.DB) MaterialsRepository {
	return &materialsRepository{db: db}
}

const materialColumns = `id, kind, title, description, author, category, file_path, thumbnail,
	COALESCE(tags, '{}'), views, downloads, created_at`

func (r *materialsRepository) ListByKinds(kinds ...models.MaterialKind) ([]models.Material, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	rows, err := r.db.Query(`
		SELECT `+materialColumns+`
		FROM materials WHERE kind = ANY($1)
		ORDER BY created_at DESC
	`, pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMaterials(rows)
}

func (r *materialsRepository) GetByID(id int) (models.Material, error) {
	return scanMaterial(r.db.QueryRow(`SELECT `+materialColumns+` FROM materials WHERE id = $1`, id))
}

func (r *materialsRepository) Create(m models.Material) (models.Material, error) {
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return scanMaterial(r.db.QueryRow(`
		INSERT INTO materials (kind, title, description, author, category, file_path, thumbnail, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+materialColumns,
		string(m.Kind), m.Title, m.Description, m.Author, m.Category, m.FilePath, m.Thumbnail, pq.Array(m.Tags)))
}

// Search matches the term against title, description, author, category and
// any tag.
func (r *materialsRepository) Search(term string, limit int) ([]models.Material, error) {
	rows, err := r.db.Query(`
		SELECT `+materialColumns+`
		FROM materials
		WHERE title ILIKE '%' || $1 || '%'
		   OR description ILIKE '%' || $1 || '%'
		   OR author ILIKE '%' || $1 || '%'
		   OR category ILIKE '%' || $1 || '%'
		   OR EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE '%' || $1 || '%')
		ORDER BY views DESC, created_at DESC
		LIMIT $2
	`, term, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMaterials(rows)
}

func (r *materialsRepository) IncrementViews(id int) error {
	return r.bump(`UPDATE materials SET views = views + 1 WHERE id = $1`, id)
}

func (r *materialsRepository) IncrementDownloads(id int) error {
	return r.bump(`UPDATE materials SET downloads = downloads + 1 WHERE id = $1`, id)
}

func (r *materialsRepository) bump(query string, id int) error {
	res, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanMaterial(row scanner) (models.Material, error) {
	var m models.Material
	var kind string
	var tags pq.StringArray
	err := row.Scan(&m.ID, &kind, &m.Title, &m.Description, &m.Author, &m.Category, &m.FilePath, &m.Thumbnail,
		&tags, &m.Views, &m.Downloads, &m.CreatedAt)
	m.Kind = models.MaterialKind(kind)
	m.Tags = tags
	if m.Tags == nil {
		m.Tags = []string{}
	}
	return m, err
}

func scanMaterials(rows *sql.Rows) ([]models.Material, error) {
	materials := []models.Material{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"technobug/pkg/apperr"
	"technobug/pkg/cache"
	"technobug/pkg/models"
	"technobug/pkg/repository"
)

const searchLimit = 20

type MaterialsService interface {
	List(ctx context.Context, kinds ...models.MaterialKind) ([]models.Material, error)
	Create(ctx context.Context, m models.Material) (models.Material, error)
	RecordView(ctx context.Context, id int) error
	RecordDownload(ctx context.Context, id int) error
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

type materialsService struct {
	repo   repository.MaterialsRepository
	social repository.SocialRepository
	redis  *cache.Redis
}

func NewMaterialsService(repo repository.MaterialsRepository, social repository.SocialRepository, redis *cache.Redis) MaterialsService {
	return &materialsService{repo: repo, social: social, redis: redis}
}

func kindsKey(kinds []models.MaterialKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return "materials:list:" + strings.Join(names, ",")
}

func (s *materialsService) List(ctx context.Context, kinds ...models.MaterialKind) ([]models.Material, error) {
	cacheKey := kindsKey(kinds)
	var cached []models.Material
	if s.redis.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	list, err := s.repo.ListByKinds(kinds...)
	if err != nil {
		return nil, dbError("MATERIALS", err, "")
	}

	s.redis.Set(ctx, cacheKey, list, time.Minute)
	return list, nil
}

func (s *materialsService) Create(ctx context.Context, m models.Material) (models.Material, error) {
	m.Title = strings.TrimSpace(m.Title)
	m.FilePath = strings.TrimSpace(m.FilePath)
	if !m.Kind.Valid() {
		return models.Material{}, apperr.NewInvalid("Tipo de material inválido")
	}
	if m.Title == "" || m.FilePath == "" {
		return models.Material{}, apperr.NewInvalid("Título e arquivo são obrigatórios")
	}

	created, err := s.repo.Create(m)
	if err != nil {
		return models.Material{}, dbError("MATERIALS", err, "")
	}

	s.redis.DelPattern(ctx, "materials:*")
	log.Printf("[MATERIALS] %s %d criado", created.Kind, created.ID)
	return created, nil
}

func (s *materialsService) RecordView(ctx context.Context, id int) error {
	if err := s.repo.IncrementViews(id); err != nil {
		return dbError("MATERIALS", err, "Material não encontrado")
	}
	return nil
}

func (s *materialsService) RecordDownload(ctx context.Context, id int) error {
	if err := s.repo.IncrementDownloads(id); err != nil {
		return dbError("MATERIALS", err, "Material não encontrado")
	}
	s.redis.DelPattern(ctx, "materials:list:*")
	return nil
}

// Search looks across materials and community posts. Materials come first.
func (s *materialsService) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	results := []models.SearchResult{}
	if query == "" {
		return results, nil
	}

	cacheKey := "materials:search:" + strings.ToLower(query)
	if s.redis.Get(ctx, cacheKey, &results) {
		return results, nil
	}

	materials, err := s.repo.Search(query, searchLimit)
	if err != nil {
		return nil, dbError("SEARCH", err, "")
	}
	for _, m := range materials {
		results = append(results, models.SearchResult{
			Title:    m.Title,
			Type:     string(m.Kind),
			Category: m.Category,
			URL:      m.FilePath,
		})
	}

	posts, err := s.social.SearchPosts(query, searchLimit)
	if err != nil {
		return nil, dbError("SEARCH", err, "")
	}
	for _, p := range posts {
		results = append(results, models.SearchResult{
			Title:    excerpt(p.Content, 60),
			Type:     "post",
			Category: p.Category,
			URL:      fmt.Sprintf("/telainicial#post-%d", p.ID),
		})
	}

	s.redis.Set(ctx, cacheKey, results, 30*time.Second)
	return results, nil
}

func excerpt(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"technobug/pkg/apperr"
	"technobug/pkg/models"
	"technobug/pkg/repository"
)

const (
	pageVisitWeight = 5
	postWeight      = 15
	commentWeight   = 10
	likeWeight      = 3

	maxPoints       = 200
	completionBonus = 1.2
	maxSuggestions  = 3
)

type page struct {
	key, name string
}

// Ordered so suggestions come out in a stable order.
var (
	sitePages = []page{
		{"telainicial", "Tela Inicial"},
		{"videos", "Vídeos e Tutoriais"},
		{"materiais", "Materiais de Estudo"},
		{"pdfs", "PDFs e Apostilas"},
		{"codigo", "Exemplos de Código"},
		{"comunidade", "Comunidade"},
		{"configuracoes", "Configurações"},
	}
	resourcePages = []page{
		{"videos", "Vídeos e Tutoriais"},
		{"materiais", "Materiais de Estudo"},
		{"pdfs", "PDFs e Apostilas"},
		{"codigo", "Exemplos de Código"},
	}
)

func pageMap(pages []page) map[string]string {
	m := make(map[string]string, len(pages))
	for _, p := range pages {
		m[p.key] = p.name
	}
	return m
}

type ProgressService interface {
	RecordVisit(ctx context.Context, userID int, page string) error
	Progress(ctx context.Context, userID int) (models.Progress, error)
}

type progressService struct {
	repo repository.ProgressRepository
}

func NewProgressService(repo repository.ProgressRepository) ProgressService {
	return &progressService{repo: repo}
}

func (s *progressService) RecordVisit(ctx context.Context, userID int, page string) error {
	if _, ok := pageMap(sitePages)[page]; !ok {
		return apperr.NewInvalid("Página desconhecida")
	}
	if err := s.repo.RecordVisit(userID, page); err != nil {
		return dbError("PROGRESS", err, "")
	}
	return nil
}

func (s *progressService) Progress(ctx context.Context, userID int) (models.Progress, error) {
	visited, err := s.repo.VisitedPages(userID)
	if err != nil {
		return models.Progress{}, dbError("PROGRESS", err, "")
	}
	counts, err := s.repo.ActivityCounts(userID)
	if err != nil {
		return models.Progress{}, dbError("PROGRESS", err, "")
	}
	return Compute(counts, visited), nil
}

// Compute scores activity against a 200 point scale. Visiting every page
// multiplies the percentage by 1.2, still capped at 100.
func Compute(counts models.ActivityCounts, visited map[string]time.Time) models.Progress {
	pages := pageMap(sitePages)
	resources := pageMap(resourcePages)

	pagesVisited, resourcesAccessed := 0, 0
	known := make(map[string]time.Time, len(visited))
	for key, at := range visited {
		if _, ok := pages[key]; !ok {
			continue
		}
		known[key] = at
		pagesVisited++
		if _, ok := resources[key]; ok {
			resourcesAccessed++
		}
	}

	points := counts.Posts*postWeight + counts.Comments*commentWeight +
		counts.Likes*likeWeight + pagesVisited*pageVisitWeight

	pct := math.Min(float64(points)/maxPoints*100, 100)
	if pagesVisited == len(sitePages) {
		pct = math.Min(pct*completionBonus, 100)
	}

	engagement := math.Min(float64(counts.Posts*3+counts.Comments*2+counts.Likes)/10*100, 100)

	return models.Progress{
		Percentage:      math.Round(pct*100) / 100,
		ActivityPoints:  points,
		ResourcesCount:  resourcesAccessed,
		EngagementScore: math.Round(engagement*100) / 100,
		Details: models.ProgressDetails{
			ActivityCounts:    counts,
			PagesVisited:      pagesVisited,
			TotalPages:        len(sitePages),
			ResourcesAccessed: resourcesAccessed,
			TotalResources:    len(resourcePages),
			VisitedPages:      known,
			PagesInfo:         pages,
			ResourcePagesInfo: resources,
		},
		Suggestions: suggestions(counts, known, resources),
	}
}

func suggestions(counts models.ActivityCounts, visited map[string]time.Time, resources map[string]string) []string {
	var out []string
	for _, p := range resourcePages {
		if _, ok := visited[p.key]; !ok {
			out = append(out, fmt.Sprintf("Explore os recursos: %s", p.name))
		}
	}
	for _, p := range sitePages {
		_, seen := visited[p.key]
		_, isResource := resources[p.key]
		if !seen && !isResource {
			out = append(out, fmt.Sprintf("Visite a página: %s", p.name))
		}
	}

	switch {
	case counts.Posts == 0:
		out = append(out, "Crie seu primeiro post na comunidade")
	case counts.Posts < 3:
		out = append(out, "Crie mais posts para aumentar sua participação")
	}
	switch {
	case counts.Comments == 0:
		out = append(out, "Comente em algum post da comunidade")
	case counts.Comments < 5:
		out = append(out, "Participe mais das discussões comentando em posts")
	}
	if counts.Likes < 10 {
		out = append(out, "Curta posts e comentários que você gostar")
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	if out == nil {
		out = []string{}
	}
	return out
}

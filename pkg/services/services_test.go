package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"technobug/pkg/apperr"
	"technobug/pkg/middleware"
	"technobug/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestRegisterLoginRefresh(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, testSecret)

	resp, err := svc.Register(models.RegisterRequest{Username: "ana_dev", Email: "Ana@Mail.com", Password: "segredo123"}, "test", "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, 3600, resp.ExpiresIn)

	claims := &middleware.Claims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "ana_dev", claims.Username)

	_, err = svc.Register(models.RegisterRequest{Username: "ana_dev", Email: "x@mail.com", Password: "segredo123"}, "", "")
	assert.True(t, apperr.Is(err, apperr.Duplicate))

	login, err := svc.Login(models.LoginRequest{Login: "ana@mail.com", Password: "segredo123"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = svc.Login(models.LoginRequest{Login: "ana_dev", Password: "errada123"}, "", "")
	assert.True(t, apperr.Is(err, apperr.Unauthorized))

	refreshed, err := svc.Refresh(login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(login.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
}

func TestLogoutAllAndPurge(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, testSecret)

	resp, err := svc.Register(models.RegisterRequest{Username: "bia", Email: "bia@mail.com", Password: "segredo123"}, "", "")
	require.NoError(t, err)
	second, err := svc.Login(models.LoginRequest{Login: "bia", Password: "segredo123"}, "", "")
	require.NoError(t, err)

	require.NoError(t, repo.CreateSession(resp.User.ID, "old", "", "", time.Now().Add(-time.Hour)))
	n, err := svc.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, svc.LogoutAll(resp.User.ID))
	_, err = svc.Refresh(second.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo(), testSecret)

	cases := []models.RegisterRequest{
		{Username: "ab", Email: "a@b.com", Password: "segredo123"},
		{Username: "ana dev", Email: "a@b.com", Password: "segredo123"},
		{Username: "ana", Email: "not-an-email", Password: "segredo123"},
		{Username: "ana", Email: "a@b.com", Password: "curta"},
	}
	for _, req := range cases {
		_, err := svc.Register(req, "", "")
		assert.True(t, apperr.Is(err, apperr.InvalidInput), req)
	}
}

func TestUpdateUsername(t *testing.T) {
	repo := newFakeAuthRepo()
	auth := NewAuthService(repo, testSecret)
	a, _ := repo.CreateUser("u1", "ana", "ana@mail.com", "h")
	repo.CreateUser("u2", "bia", "bia@mail.com", "h")
	svc := NewProfileService(repo, auth, t.TempDir(), "/uploads")

	assert.True(t, apperr.Is(svc.UpdateUsername(a.ID, " "), apperr.InvalidInput))
	assert.True(t, apperr.Is(svc.UpdateUsername(a.ID, "bia"), apperr.Duplicate))
	assert.True(t, apperr.Is(svc.UpdateUsername(99, "zeca"), apperr.NotFound))

	require.NoError(t, svc.UpdateUsername(a.ID, "ana_maria"))
	me, err := auth.Me(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana_maria", me.Username)
}

func TestUpdateProfilePic(t *testing.T) {
	repo := newFakeAuthRepo()
	auth := NewAuthService(repo, testSecret)
	u, _ := repo.CreateUser("u1", "ana", "ana@mail.com", "h")
	dir := t.TempDir()
	svc := NewProfileService(repo, auth, dir, "/uploads")

	_, err := svc.UpdateProfilePic(u.ID, "notes.txt", "text/plain", 10, strings.NewReader("x"))
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	_, err = svc.UpdateProfilePic(u.ID, "big.png", "image/png", maxProfilePicSize+1, strings.NewReader("x"))
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	img := []byte("\x89PNG fake")
	url, err := svc.UpdateProfilePic(u.ID, "Foto.PNG", "image/png", int64(len(img)), bytes.NewReader(img))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/profile_pics/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	saved, err := os.ReadFile(filepath.Join(dir, "profile_pics", filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, img, saved)
	assert.Equal(t, url, repo.users[u.ID].ProfilePic)
}

func TestComputeProgress(t *testing.T) {
	p := Compute(models.ActivityCounts{Posts: 10}, nil)
	assert.Equal(t, 150, p.ActivityPoints)
	assert.Equal(t, 75.0, p.Percentage)
	assert.Equal(t, []string{
		"Explore os recursos: Vídeos e Tutoriais",
		"Explore os recursos: Materiais de Estudo",
		"Explore os recursos: PDFs e Apostilas",
	}, p.Suggestions)

	now := time.Now()
	all := map[string]time.Time{}
	for _, pg := range sitePages {
		all[pg.key] = now
	}
	all["desconhecida"] = now

	p = Compute(models.ActivityCounts{Posts: 1, Comments: 2, Likes: 3}, all)
	// 15 + 20 + 9 + 35 = 79 -> 39.5% -> bonus 47.4%
	assert.Equal(t, 79, p.ActivityPoints)
	assert.Equal(t, 47.4, p.Percentage)
	assert.Equal(t, 7, p.Details.PagesVisited)
	assert.Equal(t, 4, p.ResourcesCount)
	assert.NotContains(t, p.Details.VisitedPages, "desconhecida")
	assert.Equal(t, []string{
		"Crie mais posts para aumentar sua participação",
		"Participe mais das discussões comentando em posts",
		"Curta posts e comentários que você gostar",
	}, p.Suggestions)

	p = Compute(models.ActivityCounts{Posts: 20}, all)
	assert.Equal(t, 100.0, p.Percentage)
	assert.Equal(t, []string{
		"Comente em algum post da comunidade",
		"Curta posts e comentários que você gostar",
	}, p.Suggestions)
}

type fakeProgressRepo struct {
	visits map[string]time.Time
	counts models.ActivityCounts
}

func (f *fakeProgressRepo) RecordVisit(userID int, page string) error {
	f.visits[page] = time.Now()
	return nil
}

func (f *fakeProgressRepo) VisitedPages(userID int) (map[string]time.Time, error) {
	return f.visits, nil
}

func (f *fakeProgressRepo) ActivityCounts(userID int) (models.ActivityCounts, error) {
	return f.counts, nil
}

func TestRecordVisit(t *testing.T) {
	repo := &fakeProgressRepo{visits: map[string]time.Time{}}
	svc := NewProgressService(repo)
	ctx := context.Background()

	assert.True(t, apperr.Is(svc.RecordVisit(ctx, 1, "admin"), apperr.InvalidInput))
	require.NoError(t, svc.RecordVisit(ctx, 1, "videos"))

	p, err := svc.Progress(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, p.ActivityPoints)
	assert.Equal(t, 1, p.ResourcesCount)
}

type fakeMaterialsRepo struct {
	items []models.Material
	calls int
}

func (f *fakeMaterialsRepo) ListByKinds(kinds ...models.MaterialKind) ([]models.Material, error) {
	f.calls++
	out := []models.Material{}
	for _, m := range f.items {
		for _, k := range kinds {
			if m.Kind == k {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeMaterialsRepo) GetByID(id int) (models.Material, error) {
	return f.items[id-1], nil
}

func (f *fakeMaterialsRepo) Create(m models.Material) (models.Material, error) {
	m.ID = len(f.items) + 1
	f.items = append(f.items, m)
	return m, nil
}

func (f *fakeMaterialsRepo) Search(term string, limit int) ([]models.Material, error) {
	var out []models.Material
	for _, m := range f.items {
		if strings.Contains(strings.ToLower(m.Title), strings.ToLower(term)) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMaterialsRepo) IncrementViews(id int) error     { return nil }
func (f *fakeMaterialsRepo) IncrementDownloads(id int) error { return nil }

func TestMaterialsListCachesAndCreateInvalidates(t *testing.T) {
	repo := &fakeMaterialsRepo{}
	redis, _ := newTestRedis(t)
	svc := NewMaterialsService(repo, newFakeSocialRepo(), redis)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.Material{Kind: "zip", Title: "x", FilePath: "/x"})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	_, err = svc.Create(ctx, models.Material{Kind: models.KindPDF, Title: "Cálculo I", FilePath: "/static/pdfs/calc.pdf"})
	require.NoError(t, err)

	list, err := svc.List(ctx, models.KindPDF, models.KindSlide)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = svc.List(ctx, models.KindPDF, models.KindSlide)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)

	_, err = svc.Create(ctx, models.Material{Kind: models.KindSlide, Title: "Redes", FilePath: "/static/slides/redes.pdf"})
	require.NoError(t, err)
	list, err = svc.List(ctx, models.KindPDF, models.KindSlide)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSearchMergesMaterialsAndPosts(t *testing.T) {
	repo := &fakeMaterialsRepo{items: []models.Material{
		{ID: 1, Kind: models.KindVideo, Title: "Python para iniciantes", Category: "Programação", FilePath: "/videos/py"},
	}}
	social := newFakeSocialRepo()
	social.posts[7] = &models.Post{ID: 7, Content: "Alguém indica material de python?", Category: "Dúvidas Gerais"}
	redis, _ := newTestRedis(t)
	svc := NewMaterialsService(repo, social, redis)

	res, err := svc.Search(context.Background(), "  python ")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, models.SearchResult{Title: "Python para iniciantes", Type: "video", Category: "Programação", URL: "/videos/py"}, res[0])
	assert.Equal(t, "post", res[1].Type)
	assert.Equal(t, "/telainicial#post-7", res[1].URL)

	res, err = svc.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, res)
}

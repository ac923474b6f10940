package services

import (
	"database/sql"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"technobug/pkg/apperr"
	"technobug/pkg/repository"

	"github.com/google/uuid"
)

const maxProfilePicSize = 5 * 1024 * 1024

var allowedPicExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

type ProfileService interface {
	UpdateUsername(userID int, username string) error
	UpdateProfilePic(userID int, filename, contentType string, size int64, src io.Reader) (string, error)
}

type profileService struct {
	repo      repository.AuthRepository
	auth      AuthService
	uploadDir string
	uploadURL string
}

func NewProfileService(repo repository.AuthRepository, auth AuthService, uploadDir, uploadURL string) ProfileService {
	return &profileService{repo: repo, auth: auth, uploadDir: uploadDir, uploadURL: uploadURL}
}

func (s *profileService) UpdateUsername(userID int, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperr.NewInvalid("O nome de usuário não pode estar vazio")
	}
	if err := ValidateUsername(username); err != nil {
		return err
	}

	if err := s.repo.UpdateUsername(userID, username); err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.Duplicate, "Este nome de usuário já está em uso", err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NewNotFound("Usuário não encontrado")
		}
		return apperr.NewDatabase(err)
	}

	s.auth.Forget(userID)
	log.Printf("[PROFILE] user=%d alterou o nome de usuário", userID)
	return nil
}

// UpdateProfilePic stores the image under a random name and returns its
// public URL.
func (s *profileService) UpdateProfilePic(userID int, filename, contentType string, size int64, src io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedPicExt[ext] || !strings.HasPrefix(contentType, "image/") {
		return "", apperr.NewInvalid("Formato de imagem não suportado")
	}
	if size > maxProfilePicSize {
		return "", apperr.NewInvalid("A imagem deve ter no máximo 5MB")
	}

	dir := filepath.Join(s.uploadDir, "profile_pics")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.New(apperr.Database, "Erro ao salvar a imagem", err)
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", apperr.New(apperr.Database, "Erro ao salvar a imagem", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, maxProfilePicSize+1)); err != nil {
		os.Remove(dst.Name())
		return "", apperr.New(apperr.Database, "Erro ao salvar a imagem", err)
	}

	url := s.uploadURL + "/profile_pics/" + name
	if err := s.repo.UpdateProfilePic(userID, url); err != nil {
		os.Remove(dst.Name())
		return "", apperr.NewDatabase(err)
	}

	s.auth.Forget(userID)
	return url, nil
}

package services

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode"

	"technobug/pkg/apperr"
	"technobug/pkg/middleware"
	"technobug/pkg/models"
	"technobug/pkg/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTTL  = time.Hour
	refreshTTL = 30 * 24 * time.Hour
)

type AuthService interface {
	Register(req models.RegisterRequest, userAgent, ip string) (models.AuthResponse, error)
	Login(req models.LoginRequest, userAgent, ip string) (models.AuthResponse, error)
	Refresh(refreshToken string) (models.AuthResponse, error)
	Me(userID int) (models.User, error)
	Logout(refreshToken string, userID int) error
	LogoutAll(userID int) error
	PurgeExpired() (int64, error)
	Forget(userID int)
}

type cachedUser struct {
	User      models.User
	ExpiresAt time.Time
}

type authService struct {
	repo      repository.AuthRepository
	jwtSecret string

	mu   sync.RWMutex
	byID map[int]*cachedUser
}

func NewAuthService(repo repository.AuthRepository, jwtSecret string) AuthService {
	return &authService{
		repo:      repo,
		jwtSecret: jwtSecret,
		byID:      make(map[int]*cachedUser),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *authService) Register(req models.RegisterRequest, userAgent, ip string) (models.AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := ValidateUsername(req.Username); err != nil {
		return models.AuthResponse{}, err
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return models.AuthResponse{}, apperr.NewInvalid("Email inválido")
	}
	if err := validatePassword(req.Password); err != nil {
		return models.AuthResponse{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.AuthResponse{}, apperr.New(apperr.Database, "Erro interno", err)
	}

	user, err := s.repo.CreateUser(uuid.NewString(), req.Username, req.Email, string(hashed))
	if err != nil {
		if isUniqueViolation(err) {
			return models.AuthResponse{}, apperr.New(apperr.Duplicate, "Usuário ou email já cadastrado", err)
		}
		log.Printf("[AUTH] erro ao criar conta: %v", err)
		return models.AuthResponse{}, apperr.NewDatabase(err)
	}

	log.Printf("[AUTH] nova conta user=%d", user.ID)
	s.setUser(user)
	return s.createSessionAndRespond(user, userAgent, ip)
}

func (s *authService) Login(req models.LoginRequest, userAgent, ip string) (models.AuthResponse, error) {
	if req.Login == "" || req.Password == "" {
		return models.AuthResponse{}, apperr.NewInvalid("Usuário e senha obrigatórios")
	}

	user, hashedPw, err := s.repo.GetUserByLogin(strings.TrimSpace(req.Login))
	if err != nil {
		return models.AuthResponse{}, apperr.New(apperr.Unauthorized, "Usuário ou senha incorretos", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPw), []byte(req.Password)); err != nil {
		return models.AuthResponse{}, apperr.New(apperr.Unauthorized, "Usuário ou senha incorretos", nil)
	}

	s.setUser(user)
	return s.createSessionAndRespond(user, userAgent, ip)
}

// Refresh rotates the refresh token and issues a new access token.
func (s *authService) Refresh(refreshToken string) (models.AuthResponse, error) {
	if refreshToken == "" {
		return models.AuthResponse{}, apperr.New(apperr.Unauthorized, "Refresh token não informado", nil)
	}

	session, user, err := s.repo.GetSessionByToken(refreshToken)
	if err != nil {
		return models.AuthResponse{}, apperr.New(apperr.Unauthorized, "Sessão inválida ou expirada", nil)
	}

	if time.Now().After(session.ExpiresAt) {
		s.repo.DeleteSessionByID(session.ID)
		return models.AuthResponse{}, apperr.New(apperr.Unauthorized, "Sessão expirada, faça login novamente", nil)
	}

	newRefresh := generateRefreshToken()
	if err := s.repo.UpdateSession(session.ID, newRefresh, time.Now().Add(refreshTTL)); err != nil {
		return models.AuthResponse{}, apperr.NewDatabase(err)
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return models.AuthResponse{}, apperr.New(apperr.Database, "Erro interno", err)
	}
	s.setUser(user)

	return models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		User:         user,
		ExpiresIn:    int(accessTTL.Seconds()),
	}, nil
}

func (s *authService) Me(userID int) (models.User, error) {
	if user, ok := s.getUser(userID); ok {
		return user, nil
	}

	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, apperr.NewNotFound("Usuário não encontrado")
		}
		return models.User{}, apperr.NewDatabase(err)
	}

	s.setUser(user)
	return user, nil
}

func (s *authService) Logout(refreshToken string, userID int) error {
	if refreshToken != "" {
		if err := s.repo.DeleteSessionByToken(refreshToken); err != nil {
			return apperr.NewDatabase(err)
		}
	}
	if userID > 0 {
		s.Forget(userID)
	}
	return nil
}

func (s *authService) LogoutAll(userID int) error {
	if err := s.repo.DeleteAllSessionsByUserID(userID); err != nil {
		return apperr.NewDatabase(err)
	}
	s.Forget(userID)
	return nil
}

// PurgeExpired removes sessions whose refresh token has expired.
func (s *authService) PurgeExpired() (int64, error) {
	n, err := s.repo.DeleteExpiredSessions()
	if err != nil {
		return 0, apperr.NewDatabase(err)
	}
	return n, nil
}

// Forget drops the cached copy of a user after a profile change.
func (s *authService) Forget(userID int) {
	s.mu.Lock()
	delete(s.byID, userID)
	s.mu.Unlock()
}

func (s *authService) getUser(id int) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if item, ok := s.byID[id]; ok && time.Now().Before(item.ExpiresAt) {
		return item.User, true
	}
	return models.User{}, false
}

func (s *authService) setUser(user models.User) {
	s.mu.Lock()
	s.byID[user.ID] = &cachedUser{User: user, ExpiresAt: time.Now().Add(15 * time.Minute)}
	s.mu.Unlock()
}

func (s *authService) createSessionAndRespond(user models.User, userAgent, ip string) (models.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return models.AuthResponse{}, apperr.New(apperr.Database, "Erro interno", err)
	}
	refreshToken := generateRefreshToken()

	if err := s.repo.CreateSession(user.ID, refreshToken, userAgent, ip, time.Now().Add(refreshTTL)); err != nil {
		return models.AuthResponse{}, apperr.New(apperr.Database, "Erro ao criar sessão", err)
	}

	return models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		ExpiresIn:    int(accessTTL.Seconds()),
	}, nil
}

func (s *authService) generateAccessToken(user models.User) (string, error) {
	now := time.Now()
	claims := middleware.Claims{
		UserID:      user.ID,
		UUID:        user.UUID,
		Username:    user.Username,
		IsAdmin:     user.IsAdmin,
		IsModerator: user.IsModerator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.UUID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
}

func generateRefreshToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func ValidateUsername(u string) error {
	n := len([]rune(u))
	if n < 3 {
		return apperr.NewInvalid("O nome de usuário deve ter ao menos 3 caracteres")
	}
	if n > 30 {
		return apperr.NewInvalid("O nome de usuário deve ter no máximo 30 caracteres")
	}
	for _, r := range u {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return apperr.NewInvalid("O nome de usuário só pode ter letras, números, ., _ e -")
		}
	}
	return nil
}

func validatePassword(p string) error {
	if len(p) < 8 {
		return apperr.NewInvalid("A senha deve ter ao menos 8 caracteres")
	}
	if len(p) > 72 {
		return apperr.NewInvalid("A senha é muito longa")
	}
	return nil
}

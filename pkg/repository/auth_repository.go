package repository

import (
	"database/sql"
	"strings"
	"time"

	"technobug/pkg/models"
)

type AuthRepository interface {
	CreateUser(uuid, username, email, hashedPassword string) (models.User, error)
	GetUserByLogin(login string) (models.User, string, error)
	GetUserByID(id int) (models.User, error)
	UpdateUsername(userID int, username string) error
	UpdateProfilePic(userID int, url string) error
	CreateSession(userID int, refreshToken, userAgent, ip string, expiresAt time.Time) error
	GetSessionByToken(token string) (models.Session, models.User, error)
	UpdateSession(sessionID int, newRefresh string, expiresAt time.Time) error
	DeleteSessionByID(sessionID int) error
	DeleteSessionByToken(token string) error
	DeleteAllSessionsByUserID(userID int) error
	DeleteExpiredSessions() (int64, error)
}

type authRepository struct {
	db *sql.DB
}

func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

const userColumns = `id, uuid, username, email, is_admin, is_moderator, profile_pic, created_at`

func scanUser(row interface{ Scan(...interface{}) error }, extra ...interface{}) (models.User, error) {
	var u models.User
	dest := append([]interface{}{&u.ID, &u.UUID, &u.Username, &u.Email, &u.IsAdmin, &u.IsModerator, &u.ProfilePic, &u.CreatedAt}, extra...)
	err := row.Scan(dest...)
	return u, err
}

func (r *authRepository) CreateUser(uuid, username, email, hashedPassword string) (models.User, error) {
	return scanUser(r.db.QueryRow(
		`INSERT INTO users (uuid, username, email, password_hash) VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		uuid, username, strings.ToLower(email), hashedPassword,
	))
}

// GetUserByLogin matches the username exactly or the e-mail case-insensitively.
func (r *authRepository) GetUserByLogin(login string) (models.User, string, error) {
	var hashedPw string
	u, err := scanUser(r.db.QueryRow(
		`SELECT `+userColumns+`, password_hash FROM users WHERE username = $1 OR email = LOWER($1)`,
		login,
	), &hashedPw)
	return u, hashedPw, err
}

func (r *authRepository) GetUserByID(id int) (models.User, error) {
	return scanUser(r.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *authRepository) UpdateUsername(userID int, username string) error {
	res, err := r.db.Exec(`UPDATE users SET username = $1 WHERE id = $2`, username, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *authRepository) UpdateProfilePic(userID int, url string) error {
	_, err := r.db.Exec(`UPDATE users SET profile_pic = $1 WHERE id = $2`, url, userID)
	return err
}

func (r *authRepository) CreateSession(userID int, refreshToken, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO sessions (user_id, refresh_token, user_agent, ip_address, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, refreshToken, userAgent, ip, expiresAt,
	)
	return err
}

func (r *authRepository) GetSessionByToken(token string) (models.Session, models.User, error) {
	var session models.Session
	var u models.User
	err := r.db.QueryRow(
		`SELECT s.id, s.user_id, s.expires_at,
		        u.uuid, u.username, u.email, u.is_admin, u.is_moderator, u.profile_pic, u.created_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.refresh_token = $1`, token,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt,
		&u.UUID, &u.Username, &u.Email, &u.IsAdmin, &u.IsModerator, &u.ProfilePic, &u.CreatedAt)
	u.ID = session.UserID
	return session, u, err
}

func (r *authRepository) UpdateSession(sessionID int, newRefresh string, expiresAt time.Time) error {
	_, err := r.db.Exec(
		`UPDATE sessions SET refresh_token = $1, expires_at = $2 WHERE id = $3`,
		newRefresh, expiresAt, sessionID,
	)
	return err
}

func (r *authRepository) DeleteSessionByID(sessionID int) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE id = $1`, sessionID)
	return err
}

func (r *authRepository) DeleteSessionByToken(token string) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE refresh_token = $1`, token)
	return err
}

func (r *authRepository) DeleteAllSessionsByUserID(userID int) error {
	_, err := r.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (r *authRepository) DeleteExpiredSessions() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

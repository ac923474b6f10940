package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"technobug/pkg/cache"
	"technobug/pkg/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

type published struct {
	action string
	postID int
	data   interface{}
	userID int
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Broadcast(_ context.Context, action string, postID int, data interface{}) error {
	f.mu.Lock()
	f.events = append(f.events, published{action, postID, data, 0})
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) Notify(_ context.Context, userID int, action string, postID int, data interface{}) error {
	f.mu.Lock()
	f.events = append(f.events, published{action, postID, data, userID})
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.action)
	}
	return out
}

// fakeSocialRepo keeps posts, comments and like relations in memory.
type fakeSocialRepo struct {
	mu           sync.Mutex
	nextID       int
	posts        map[int]*models.Post
	comments     map[int]*models.Comment
	postLikes    map[[2]int]bool
	commentLikes map[[2]int]bool
	users        map[int]models.User

	postVersions    map[int]int64
	commentVersions map[int]int64
}

func newFakeSocialRepo() *fakeSocialRepo {
	return &fakeSocialRepo{
		nextID:       100,
		posts:        map[int]*models.Post{},
		comments:     map[int]*models.Comment{},
		postLikes:    map[[2]int]bool{},
		commentLikes: map[[2]int]bool{},
		users:        map[int]models.User{},

		postVersions:    map[int]int64{},
		commentVersions: map[int]int64{},
	}
}

func (r *fakeSocialRepo) addPost(id, userID int) {
	r.posts[id] = &models.Post{ID: id, UserID: userID, Content: "post", Category: models.DefaultCategory, CreatedAt: time.Now()}
}

func (r *fakeSocialRepo) addComment(id, postID int, parentID *int, userID int) {
	r.comments[id] = &models.Comment{ID: id, PostID: postID, ParentID: parentID, UserID: userID, Content: "c", CreatedAt: time.Now()}
}

func (r *fakeSocialRepo) Feed(category string, userID, limit, offset int) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Post{}
	for _, p := range r.posts {
		if category == "" || p.Category == category {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeSocialRepo) GetPost(postID, userID int) (models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return models.Post{}, sql.ErrNoRows
	}
	out := *p
	out.Liked = r.postLikes[[2]int{userID, postID}]
	return out, nil
}

func (r *fakeSocialRepo) CreatePost(userID int, content, category string) (models.Post, error) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.posts[id] = &models.Post{ID: id, UserID: userID, Content: content, Category: category, CreatedAt: time.Now()}
	r.mu.Unlock()
	return r.GetPost(id, userID)
}

func (r *fakeSocialRepo) DeletePost(postID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[postID]; !ok {
		return sql.ErrNoRows
	}
	delete(r.posts, postID)
	return nil
}

func (r *fakeSocialRepo) SearchPosts(term string, limit int) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Post
	for _, p := range r.posts {
		if strings.Contains(strings.ToLower(p.Content), strings.ToLower(term)) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeSocialRepo) Comments(postID, userID int) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Comment
	for _, c := range r.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSocialRepo) GetComment(commentID, userID int) (models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[commentID]
	if !ok {
		return models.Comment{}, sql.ErrNoRows
	}
	out := *c
	out.Liked = r.commentLikes[[2]int{userID, commentID}]
	return out, nil
}

func (r *fakeSocialRepo) CreateComment(postID int, parentID *int, userID int, content string) (models.Comment, error) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.comments[id] = &models.Comment{ID: id, PostID: postID, ParentID: parentID, UserID: userID,
		Username: r.users[userID].Username, Content: content, CreatedAt: time.Now()}
	if p, ok := r.posts[postID]; ok {
		p.CommentCount++
	}
	r.mu.Unlock()
	return r.GetComment(id, userID)
}

func (r *fakeSocialRepo) UpdateComment(commentID int, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[commentID]
	if !ok {
		return sql.ErrNoRows
	}
	c.Content = content
	return nil
}

func (r *fakeSocialRepo) DeleteComment(commentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[commentID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	delete(r.comments, commentID)
	for id, other := range r.comments {
		if other.ParentID != nil && *other.ParentID == commentID {
			delete(r.comments, id)
		}
	}
	return c.PostID, nil
}

func (r *fakeSocialRepo) TogglePostLike(userID, postID int) (models.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return models.LikeResult{}, sql.ErrNoRows
	}
	key := [2]int{userID, postID}
	if r.postLikes[key] {
		delete(r.postLikes, key)
		if p.LikeCount > 0 {
			p.LikeCount--
		}
		r.postVersions[postID]++
		return models.LikeResult{LikeCount: p.LikeCount, Version: r.postVersions[postID]}, nil
	}
	r.postLikes[key] = true
	p.LikeCount++
	r.postVersions[postID]++
	return models.LikeResult{LikeCount: p.LikeCount, Liked: true, Version: r.postVersions[postID]}, nil
}

func (r *fakeSocialRepo) ToggleCommentLike(userID, commentID int) (models.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[commentID]
	if !ok {
		return models.LikeResult{}, sql.ErrNoRows
	}
	key := [2]int{userID, commentID}
	if r.commentLikes[key] {
		delete(r.commentLikes, key)
		if c.LikeCount > 0 {
			c.LikeCount--
		}
		r.commentVersions[commentID]++
		return models.LikeResult{LikeCount: c.LikeCount, Version: r.commentVersions[commentID]}, nil
	}
	r.commentLikes[key] = true
	c.LikeCount++
	r.commentVersions[commentID]++
	return models.LikeResult{LikeCount: c.LikeCount, Liked: true, Version: r.commentVersions[commentID]}, nil
}

func (r *fakeSocialRepo) PostLikes(postID, userID int) (models.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return models.LikeResult{}, sql.ErrNoRows
	}
	return models.LikeResult{LikeCount: p.LikeCount, Liked: r.postLikes[[2]int{userID, postID}]}, nil
}

func (r *fakeSocialRepo) CommentLikes(commentID, userID int) (models.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[commentID]
	if !ok {
		return models.LikeResult{}, sql.ErrNoRows
	}
	return models.LikeResult{LikeCount: c.LikeCount, Liked: r.commentLikes[[2]int{userID, commentID}]}, nil
}

type fakeAuthRepo struct {
	mu       sync.Mutex
	users    map[int]models.User
	hashes   map[int]string
	sessions map[string]models.Session
	nextID   int
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{users: map[int]models.User{}, hashes: map[int]string{}, sessions: map[string]models.Session{}}
}

func (r *fakeAuthRepo) CreateUser(uuid, username, email, hashedPassword string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return models.User{}, errDuplicate
		}
	}
	r.nextID++
	u := models.User{ID: r.nextID, UUID: uuid, Username: username, Email: strings.ToLower(email), CreatedAt: time.Now()}
	r.users[u.ID] = u
	r.hashes[u.ID] = hashedPassword
	return u, nil
}

func (r *fakeAuthRepo) GetUserByLogin(login string) (models.User, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if u.Username == login || u.Email == strings.ToLower(login) {
			return u, r.hashes[id], nil
		}
	}
	return models.User{}, "", sql.ErrNoRows
}

func (r *fakeAuthRepo) GetUserByID(id int) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (r *fakeAuthRepo) UpdateUsername(userID int, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if id != userID && u.Username == username {
			return errDuplicate
		}
	}
	u, ok := r.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.Username = username
	r.users[userID] = u
	return nil
}

func (r *fakeAuthRepo) UpdateProfilePic(userID int, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[userID]
	u.ProfilePic = url
	r.users[userID] = u
	return nil
}

func (r *fakeAuthRepo) CreateSession(userID int, refreshToken, userAgent, ip string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[refreshToken] = models.Session{ID: len(r.sessions) + 1, UserID: userID, RefreshToken: refreshToken, ExpiresAt: expiresAt}
	return nil
}

func (r *fakeAuthRepo) GetSessionByToken(token string) (models.Session, models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return models.Session{}, models.User{}, sql.ErrNoRows
	}
	return s, r.users[s.UserID], nil
}

func (r *fakeAuthRepo) UpdateSession(sessionID int, newRefresh string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tok, s := range r.sessions {
		if s.ID == sessionID {
			delete(r.sessions, tok)
			s.RefreshToken = newRefresh
			s.ExpiresAt = expiresAt
			r.sessions[newRefresh] = s
			return nil
		}
	}
	return sql.ErrNoRows
}

func (r *fakeAuthRepo) DeleteSessionByID(sessionID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tok, s := range r.sessions {
		if s.ID == sessionID {
			delete(r.sessions, tok)
		}
	}
	return nil
}

func (r *fakeAuthRepo) DeleteSessionByToken(token string) error {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
	return nil
}

func (r *fakeAuthRepo) DeleteAllSessionsByUserID(userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tok, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, tok)
		}
	}
	return nil
}

func (r *fakeAuthRepo) DeleteExpiredSessions() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for tok, s := range r.sessions {
		if time.Now().After(s.ExpiresAt) {
			delete(r.sessions, tok)
			n++
		}
	}
	return n, nil
}

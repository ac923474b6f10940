package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"technobug/pkg/apperr"
	"technobug/pkg/cache"
	"technobug/pkg/envelope"
	"technobug/pkg/models"
	"technobug/pkg/repository"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

const maxContentLength = 5000

// Publisher fans thread events out to live pages.
type Publisher interface {
	Broadcast(ctx context.Context, action string, postID int, data interface{}) error
	Notify(ctx context.Context, userID int, action string, postID int, data interface{}) error
}

type SocialService interface {
	Feed(ctx context.Context, category string, userID, limit, offset int) ([]models.Post, error)
	Thread(ctx context.Context, postID, userID int) (models.Post, error)
	CreatePost(ctx context.Context, actor models.User, req models.CreatePostRequest) (models.Post, error)
	DeletePost(ctx context.Context, actor models.User, postID int) error

	AddComment(ctx context.Context, actor models.User, postID int, content string) (models.Comment, error)
	AddReply(ctx context.Context, actor models.User, commentID int, content string) (models.Comment, error)
	EditComment(ctx context.Context, actor models.User, commentID int, content string, reply bool) (models.Comment, error)
	DeleteComment(ctx context.Context, actor models.User, commentID int, reply bool) error

	TogglePostLike(ctx context.Context, userID, postID int) (models.LikeResult, error)
	ToggleCommentLike(ctx context.Context, userID, commentID int) (models.LikeResult, error)
	PostLikes(ctx context.Context, postID, userID int) (models.LikeResult, error)
	CommentLikes(ctx context.Context, commentID, userID int) (models.LikeResult, error)
}

type socialService struct {
	repo   repository.SocialRepository
	redis  *cache.Redis
	events Publisher
}

func NewSocialService(repo repository.SocialRepository, redis *cache.Redis, events Publisher) SocialService {
	return &socialService{repo: repo, redis: redis, events: events}
}

func dbError(tag string, err error, notFound string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NewNotFound(notFound)
	}
	log.Printf("[%s] erro de banco: %v", tag, err)
	return apperr.NewDatabase(err)
}

func validateContent(content, emptyMsg string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.NewInvalid(emptyMsg)
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return "", apperr.NewInvalid(fmt.Sprintf("O texto excede o limite de %d caracteres", maxContentLength))
	}
	return content, nil
}

func (s *socialService) publish(ctx context.Context, action string, postID int, data interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Broadcast(ctx, action, postID, data); err != nil {
		log.Printf("[SOCIAL] falha ao publicar %s: %v", action, err)
	}
}

func (s *socialService) invalidate(ctx context.Context, postID int) {
	s.redis.DelPattern(ctx, fmt.Sprintf("social:thread:%d:*", postID))
	s.redis.DelPattern(ctx, "social:feed:*")
}

func (s *socialService) Feed(ctx context.Context, category string, userID, limit, offset int) ([]models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}

	cacheKey := fmt.Sprintf("social:feed:%s:%d:%d:u%d", category, limit, offset, userID)
	var cached []models.Post
	if s.redis.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	posts, err := s.repo.Feed(category, userID, limit, offset)
	if err != nil {
		return nil, dbError("SOCIAL", err, "")
	}

	s.redis.Set(ctx, cacheKey, posts, 15*time.Second)
	return posts, nil
}

func (s *socialService) Thread(ctx context.Context, postID, userID int) (models.Post, error) {
	cacheKey := fmt.Sprintf("social:thread:%d:u%d", postID, userID)
	var cached models.Post
	if s.redis.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	p, err := s.repo.GetPost(postID, userID)
	if err != nil {
		return models.Post{}, dbError("SOCIAL", err, "Postagem não encontrada")
	}

	flat, err := s.repo.Comments(postID, userID)
	if err != nil {
		return models.Post{}, dbError("SOCIAL", err, "")
	}
	p.Comments = BuildTree(flat, models.MaxReplyDepth)

	s.redis.Set(ctx, cacheKey, p, 30*time.Second)
	return p, nil
}

// BuildTree nests a flat, oldest-first comment list. Top-level comments come
// out newest first and replies oldest first. Replies that would sit deeper
// than maxDepth are placed by models.ReplyAnchor.
func BuildTree(flat []models.Comment, maxDepth int) []models.Comment {
	byID := make(map[int]*models.Comment, len(flat))
	nodes := make([]*models.Comment, len(flat))
	for i := range flat {
		c := flat[i]
		c.Replies = nil
		nodes[i] = &c
		byID[c.ID] = &c
	}

	parentOf := func(id int) (int, bool) {
		c, ok := byID[id]
		if !ok || c.ParentID == nil {
			return 0, false
		}
		if _, ok := byID[*c.ParentID]; !ok {
			return 0, false
		}
		return *c.ParentID, true
	}

	children := make(map[int][]*models.Comment)
	var roots []*models.Comment
	for _, c := range nodes {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		if _, ok := byID[*c.ParentID]; !ok {
			continue
		}
		anchor := models.ReplyAnchor(*c.ParentID, maxDepth, parentOf)
		children[anchor] = append(children[anchor], c)
	}

	var assemble func(c *models.Comment) models.Comment
	assemble = func(c *models.Comment) models.Comment {
		out := *c
		for _, child := range children[c.ID] {
			out.Replies = append(out.Replies, assemble(child))
		}
		return out
	}

	tree := make([]models.Comment, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		tree = append(tree, assemble(roots[i]))
	}
	return tree
}

func (s *socialService) CreatePost(ctx context.Context, actor models.User, req models.CreatePostRequest) (models.Post, error) {
	content, err := validateContent(req.Content, "A postagem não pode estar vazia")
	if err != nil {
		return models.Post{}, err
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = models.DefaultCategory
	}

	p, err := s.repo.CreatePost(actor.ID, content, category)
	if err != nil {
		return models.Post{}, dbError("SOCIAL", err, "")
	}

	s.redis.DelPattern(ctx, "social:feed:*")
	log.Printf("[SOCIAL] post %d criado por user=%d", p.ID, actor.ID)
	return p, nil
}

func (s *socialService) DeletePost(ctx context.Context, actor models.User, postID int) error {
	p, err := s.repo.GetPost(postID, actor.ID)
	if err != nil {
		return dbError("SOCIAL", err, "Postagem não encontrada")
	}
	if p.UserID != actor.ID && !actor.CanModerate() {
		return apperr.NewForbidden("Você não tem permissão para deletar esta postagem")
	}

	if err := s.repo.DeletePost(postID); err != nil {
		return dbError("SOCIAL", err, "Postagem não encontrada")
	}

	s.invalidate(ctx, postID)
	s.redis.Del(ctx, likeKey("post", postID))
	s.publish(ctx, envelope.PostDeleted, postID, envelope.DeletePayload{ID: postID})
	log.Printf("[SOCIAL] post %d removido por user=%d", postID, actor.ID)
	return nil
}

func (s *socialService) AddComment(ctx context.Context, actor models.User, postID int, content string) (models.Comment, error) {
	content, err := validateContent(content, "O comentário não pode estar vazio")
	if err != nil {
		return models.Comment{}, err
	}
	if _, err := s.repo.GetPost(postID, actor.ID); err != nil {
		return models.Comment{}, dbError("SOCIAL", err, "Postagem não encontrada")
	}

	c, err := s.repo.CreateComment(postID, nil, actor.ID, content)
	if err != nil {
		return models.Comment{}, dbError("SOCIAL", err, "")
	}

	s.invalidate(ctx, postID)
	s.publish(ctx, envelope.NewComment, postID, c)
	return c, nil
}

func (s *socialService) AddReply(ctx context.Context, actor models.User, commentID int, content string) (models.Comment, error) {
	content, err := validateContent(content, "A resposta não pode estar vazia")
	if err != nil {
		return models.Comment{}, err
	}
	parent, err := s.repo.GetComment(commentID, actor.ID)
	if err != nil {
		return models.Comment{}, dbError("SOCIAL", err, "Comentário não encontrado")
	}

	c, err := s.repo.CreateComment(parent.PostID, &parent.ID, actor.ID, content)
	if err != nil {
		return models.Comment{}, dbError("SOCIAL", err, "")
	}

	s.invalidate(ctx, parent.PostID)
	s.publish(ctx, envelope.NewComment, parent.PostID, c)
	if parent.UserID != actor.ID && s.events != nil {
		if err := s.events.Notify(ctx, parent.UserID, envelope.ReplyReceived, parent.PostID, c); err != nil {
			log.Printf("[SOCIAL] falha ao notificar user_id=%d: %v", parent.UserID, err)
		}
	}
	return c, nil
}

// loadKind fetches a comment and checks it is of the kind the endpoint names.
func (s *socialService) loadKind(actorID, commentID int, reply bool) (models.Comment, error) {
	notFound := "Comentário não encontrado"
	if reply {
		notFound = "Resposta não encontrada"
	}
	c, err := s.repo.GetComment(commentID, actorID)
	if err != nil {
		return models.Comment{}, dbError("SOCIAL", err, notFound)
	}
	if (c.ParentID != nil) != reply {
		return models.Comment{}, apperr.NewNotFound(notFound)
	}
	return c, nil
}

func (s *socialService) EditComment(ctx context.Context, actor models.User, commentID int, content string, reply bool) (models.Comment, error) {
	content, err := validateContent(content, "O comentário não pode estar vazio")
	if err != nil {
		return models.Comment{}, err
	}
	c, err := s.loadKind(actor.ID, commentID, reply)
	if err != nil {
		return models.Comment{}, err
	}
	if c.UserID != actor.ID {
		return models.Comment{}, apperr.NewForbidden("Você só pode editar seus próprios comentários")
	}

	if err := s.repo.UpdateComment(commentID, content); err != nil {
		return models.Comment{}, dbError("SOCIAL", err, "Comentário não encontrado")
	}
	c.Content = content

	s.invalidate(ctx, c.PostID)
	s.publish(ctx, envelope.CommentEdited, c.PostID, envelope.EditPayload{ID: c.ID, Content: content})
	return c, nil
}

func (s *socialService) DeleteComment(ctx context.Context, actor models.User, commentID int, reply bool) error {
	c, err := s.loadKind(actor.ID, commentID, reply)
	if err != nil {
		return err
	}
	if c.UserID != actor.ID && !actor.CanModerate() {
		return apperr.NewForbidden("Você não tem permissão para deletar este comentário")
	}

	postID, err := s.repo.DeleteComment(commentID)
	if err != nil {
		return dbError("SOCIAL", err, "Comentário não encontrado")
	}

	s.invalidate(ctx, postID)
	s.redis.Del(ctx, likeKey("comment", commentID))
	s.publish(ctx, envelope.CommentDeleted, postID, envelope.DeletePayload{ID: commentID})
	return nil
}

func likeKey(target string, id int) string {
	return fmt.Sprintf("social:likes:%s:%d", target, id)
}

func (s *socialService) TogglePostLike(ctx context.Context, userID, postID int) (models.LikeResult, error) {
	res, err := s.repo.TogglePostLike(userID, postID)
	if err != nil {
		return models.LikeResult{}, dbError("SOCIAL", err, "Postagem não encontrada")
	}

	s.redis.SetProto(ctx, likeKey("post", postID), wrapperspb.Int64(int64(res.LikeCount)), 10*time.Minute)
	s.invalidate(ctx, postID)
	s.publish(ctx, envelope.LikeUpdated, postID, envelope.LikePayload{Target: "post", ID: postID, LikeCount: res.LikeCount, Version: res.Version})
	return res, nil
}

func (s *socialService) ToggleCommentLike(ctx context.Context, userID, commentID int) (models.LikeResult, error) {
	res, err := s.repo.ToggleCommentLike(userID, commentID)
	if err != nil {
		return models.LikeResult{}, dbError("SOCIAL", err, "Comentário não encontrado")
	}

	s.redis.SetProto(ctx, likeKey("comment", commentID), wrapperspb.Int64(int64(res.LikeCount)), 10*time.Minute)

	postID := 0
	if c, err := s.repo.GetComment(commentID, 0); err == nil {
		postID = c.PostID
		s.invalidate(ctx, postID)
	}
	s.publish(ctx, envelope.LikeUpdated, postID, envelope.LikePayload{Target: "comment", ID: commentID, LikeCount: res.LikeCount, Version: res.Version})
	return res, nil
}

func (s *socialService) PostLikes(ctx context.Context, postID, userID int) (models.LikeResult, error) {
	return s.likeState(ctx, "post", postID, userID, s.repo.PostLikes)
}

func (s *socialService) CommentLikes(ctx context.Context, commentID, userID int) (models.LikeResult, error) {
	return s.likeState(ctx, "comment", commentID, userID, s.repo.CommentLikes)
}

// likeState answers anonymous readers from the cached counter; signed-in
// users always hit the database to learn whether they liked it.
func (s *socialService) likeState(ctx context.Context, target string, id, userID int, load func(int, int) (models.LikeResult, error)) (models.LikeResult, error) {
	key := likeKey(target, id)
	if userID <= 0 {
		var count wrapperspb.Int64Value
		if s.redis.GetProto(ctx, key, &count) {
			return models.LikeResult{LikeCount: int(count.GetValue())}, nil
		}
	}

	notFound := "Postagem não encontrada"
	if target == "comment" {
		notFound = "Comentário não encontrado"
	}
	res, err := load(id, userID)
	if err != nil {
		return models.LikeResult{}, dbError("SOCIAL", err, notFound)
	}

	s.redis.SetProto(ctx, key, wrapperspb.Int64(int64(res.LikeCount)), 10*time.Minute)
	return res, nil
}

package repository

import (
	"database/sql"
	"fmt"

	"technobug/pkg/models"
)

type SocialRepository interface {
	Feed(category string, userID, limit, offset int) ([]models.Post, error)
	GetPost(postID, userID int) (models.Post, error)
	CreatePost(userID int, content, category string) (models.Post, error)
	DeletePost(postID int) error
	SearchPosts(term string, limit int) ([]models.Post, error)

	Comments(postID, userID int) ([]models.Comment, error)
	GetComment(commentID, userID int) (models.Comment, error)
	CreateComment(postID int, parentID *int, userID int, content string) (models.Comment, error)
	UpdateComment(commentID int, content string) error
	DeleteComment(commentID int) (postID int, err error)

	TogglePostLike(userID, postID int) (models.LikeResult, error)
	ToggleCommentLike(userID, commentID int) (models.LikeResult, error)
	PostLikes(postID, userID int) (models.LikeResult, error)
	CommentLikes(commentID, userID int) (models.LikeResult, error)
}

type socialRepository struct {
	db *sql.DB
}

func NewSocialRepository(db *sql.DB) SocialRepository {
	return &socialRepository{db: db}
}

const postSelect = `
	SELECT p.id, p.user_id, u.username, u.profile_pic, p.content, p.category, p.likes, p.comment_count, p.created_at,
	       EXISTS(SELECT 1 FROM post_likes pl WHERE pl.post_id = p.id AND pl.user_id = $1) AS liked
	FROM posts p
	JOIN users u ON p.user_id = u.id`

const commentSelect = `
	SELECT c.id, c.post_id, c.parent_id, c.user_id, u.username, u.profile_pic, u.is_admin, u.is_moderator,
	       c.content, c.likes, c.created_at,
	       EXISTS(SELECT 1 FROM comment_likes cl WHERE cl.comment_id = c.id AND cl.user_id = $1) AS liked
	FROM comments c
	JOIN users u ON c.user_id = u.id`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row scanner) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.UserID, &p.Author, &p.ProfilePic, &p.Content, &p.Category,
		&p.LikeCount, &p.CommentCount, &p.CreatedAt, &p.Liked)
	return p, err
}

func scanComment(row scanner) (models.Comment, error) {
	var c models.Comment
	var parentID sql.NullInt64
	err := row.Scan(&c.ID, &c.PostID, &parentID, &c.UserID, &c.Username, &c.ProfilePic, &c.IsAdmin, &c.IsModerator,
		&c.Content, &c.LikeCount, &c.CreatedAt, &c.Liked)
	if parentID.Valid {
		pid := int(parentID.Int64)
		c.ParentID = &pid
	}
	return c, err
}

func (r *socialRepository) Feed(category string, userID, limit, offset int) ([]models.Post, error) {
	rows, err := r.db.Query(postSelect+`
		WHERE ($2 = '' OR p.category = $2)
		ORDER BY p.created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, category, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *socialRepository) GetPost(postID, userID int) (models.Post, error) {
	return scanPost(r.db.QueryRow(postSelect+` WHERE p.id = $2`, userID, postID))
}

func (r *socialRepository) CreatePost(userID int, content, category string) (models.Post, error) {
	var id int
	err := r.db.QueryRow(`
		INSERT INTO posts (user_id, content, category) VALUES ($1, $2, $3)
		RETURNING id
	`, userID, content, category).Scan(&id)
	if err != nil {
		return models.Post{}, err
	}
	return r.GetPost(id, userID)
}

func (r *socialRepository) DeletePost(postID int) error {
	var deletedID int
	return r.db.QueryRow(`DELETE FROM posts WHERE id = $1 RETURNING id`, postID).Scan(&deletedID)
}

func (r *socialRepository) SearchPosts(term string, limit int) ([]models.Post, error) {
	rows, err := r.db.Query(postSelect+`
		WHERE p.content ILIKE '%' || $2 || '%' OR p.category ILIKE '%' || $2 || '%'
		ORDER BY p.created_at DESC
		LIMIT $3
	`, 0, term, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Comments returns every comment and reply of a post, oldest first. The
// caller assembles the tree.
func (r *socialRepository) Comments(postID, userID int) ([]models.Comment, error) {
	rows, err := r.db.Query(commentSelect+`
		WHERE c.post_id = $2
		ORDER BY c.created_at ASC, c.id ASC
	`, userID, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *socialRepository) GetComment(commentID, userID int) (models.Comment, error) {
	return scanComment(r.db.QueryRow(commentSelect+` WHERE c.id = $2`, userID, commentID))
}

func (r *socialRepository) CreateComment(postID int, parentID *int, userID int, content string) (models.Comment, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return models.Comment{}, err
	}
	defer tx.Rollback()

	var id int
	err = tx.QueryRow(`
		INSERT INTO comments (post_id, parent_id, user_id, content) VALUES ($1, $2, $3, $4)
		RETURNING id
	`, postID, parentID, userID, content).Scan(&id)
	if err != nil {
		return models.Comment{}, err
	}

	if _, err := tx.Exec(`UPDATE posts SET comment_count = comment_count + 1 WHERE id = $1`, postID); err != nil {
		return models.Comment{}, err
	}

	c, err := scanComment(tx.QueryRow(commentSelect+` WHERE c.id = $2`, userID, id))
	if err != nil {
		return models.Comment{}, err
	}
	return c, tx.Commit()
}

func (r *socialRepository) UpdateComment(commentID int, content string) error {
	res, err := r.db.Exec(`UPDATE comments SET content = $1 WHERE id = $2`, content, commentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteComment removes a comment with all its replies and resyncs the
// post's comment counter.
func (r *socialRepository) DeleteComment(commentID int) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var postID int
	if err := tx.QueryRow(`DELETE FROM comments WHERE id = $1 RETURNING post_id`, commentID).Scan(&postID); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`
		UPDATE posts SET comment_count = (SELECT COUNT(*) FROM comments WHERE post_id = $1)
		WHERE id = $1
	`, postID); err != nil {
		return 0, err
	}
	return postID, tx.Commit()
}

type likeTarget struct {
	table     string // entity table holding the likes counter
	likeTable string
	column    string
}

var (
	postLikes    = likeTarget{table: "posts", likeTable: "post_likes", column: "post_id"}
	commentLikes = likeTarget{table: "comments", likeTable: "comment_likes", column: "comment_id"}
)

func (r *socialRepository) TogglePostLike(userID, postID int) (models.LikeResult, error) {
	return r.toggleLike(postLikes, userID, postID)
}

func (r *socialRepository) ToggleCommentLike(userID, commentID int) (models.LikeResult, error) {
	return r.toggleLike(commentLikes, userID, commentID)
}

// toggleLike locks the target row so concurrent toggles on the same entity
// serialize, then flips the relation and adjusts the counter with it. Every
// toggle bumps likes_version so readers can order results and events.
func (r *socialRepository) toggleLike(t likeTarget, userID, id int) (models.LikeResult, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return models.LikeResult{}, err
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRow(fmt.Sprintf(`SELECT likes FROM %s WHERE id = $1 FOR UPDATE`, t.table), id).Scan(&current); err != nil {
		return models.LikeResult{}, err
	}

	var res models.LikeResult
	var dummy int
	err = tx.QueryRow(fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND %s = $2 RETURNING 1`, t.likeTable, t.column),
		userID, id).Scan(&dummy)
	switch {
	case err == nil:
		err = tx.QueryRow(fmt.Sprintf(`UPDATE %s SET likes = GREATEST(likes - 1, 0), likes_version = likes_version + 1
			WHERE id = $1 RETURNING likes, likes_version`, t.table), id).Scan(&res.LikeCount, &res.Version)
	case err == sql.ErrNoRows:
		res.Liked = true
		_, err = tx.Exec(fmt.Sprintf(`INSERT INTO %s (user_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`, t.likeTable, t.column),
			userID, id)
		if err == nil {
			err = tx.QueryRow(fmt.Sprintf(`UPDATE %s SET likes = likes + 1, likes_version = likes_version + 1
				WHERE id = $1 RETURNING likes, likes_version`, t.table), id).Scan(&res.LikeCount, &res.Version)
		}
	}
	if err != nil {
		return models.LikeResult{}, err
	}
	return res, tx.Commit()
}

func (r *socialRepository) PostLikes(postID, userID int) (models.LikeResult, error) {
	return r.likeState(postLikes, postID, userID)
}

func (r *socialRepository) CommentLikes(commentID, userID int) (models.LikeResult, error) {
	return r.likeState(commentLikes, commentID, userID)
}

func (r *socialRepository) likeState(t likeTarget, id, userID int) (models.LikeResult, error) {
	var res models.LikeResult
	err := r.db.QueryRow(fmt.Sprintf(`
		SELECT e.likes, e.likes_version, EXISTS(SELECT 1 FROM %s l WHERE l.%s = e.id AND l.user_id = $2)
		FROM %s e WHERE e.id = $1
	`, t.likeTable, t.column, t.table), id, userID).Scan(&res.LikeCount, &res.Version, &res.Liked)
	return res, err
}

package models

import "time"

const DefaultCategory = "Dúvidas Gerais"

type Post struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	Author       string    `json:"author"`
	ProfilePic   string    `json:"profile_pic"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	LikeCount    int       `json:"like_count"`
	Liked        bool      `json:"liked"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	Comments     []Comment `json:"comments,omitempty"`
}

// Comment is a top-level comment when ParentID is nil and a reply otherwise.
type Comment struct {
	ID          int       `json:"id"`
	PostID      int       `json:"post_id"`
	ParentID    *int      `json:"parent_id,omitempty"`
	UserID      int       `json:"user_id"`
	Username    string    `json:"username"`
	ProfilePic  string    `json:"profile_pic"`
	IsAdmin     bool      `json:"is_admin"`
	IsModerator bool      `json:"is_moderator"`
	Content     string    `json:"content"`
	LikeCount   int       `json:"like_count"`
	Liked       bool      `json:"liked"`
	CreatedAt   time.Time `json:"created_at"`
	Replies     []Comment `json:"replies,omitempty"`
}

// MaxReplyDepth is the deepest level a reply is rendered at. Top-level
// comments sit at depth 0.
const MaxReplyDepth = 5

// ReplyAnchor returns the comment a reply to parentID is rendered under. That
// is parentID itself unless it already sits at maxDepth or deeper, in which
// case it is the ancestor at maxDepth-1. parentOf reports the parent of a
// reply and false for top-level or unknown comments.
func ReplyAnchor(parentID, maxDepth int, parentOf func(id int) (int, bool)) int {
	chain := []int{parentID}
	seen := map[int]bool{parentID: true}
	for id := parentID; ; {
		p, ok := parentOf(id)
		if !ok || seen[p] {
			break
		}
		seen[p] = true
		chain = append(chain, p)
		id = p
	}

	// chain[i] sits at depth len(chain)-1-i
	if len(chain)-1 < maxDepth {
		return parentID
	}
	i := len(chain) - maxDepth
	if i > len(chain)-1 {
		i = len(chain) - 1
	}
	return chain[i]
}

type CreatePostRequest struct {
	Content  string `json:"content" form:"content"`
	Category string `json:"category" form:"category"`
}

type LikeResult struct {
	LikeCount int   `json:"like_count"`
	Liked     bool  `json:"liked"`
	Version   int64 `json:"version"`
}

package thread

import (
	"sync"
	"time"

	"technobug/pkg/models"
	"technobug/pkg/timeago"
)

// CommentView is the client copy of a comment or reply.
type CommentView struct {
	ID          int
	ParentID    int
	UserID      int
	Username    string
	ProfilePic  string
	IsAdmin     bool
	IsModerator bool
	Content     string
	CreatedAt   time.Time
	TimeLabel   string
	LikeCount   int
	Liked       bool

	Editing bool
	Draft   string

	Replies []*CommentView
}

func (v *CommentView) IsReply() bool { return v.ParentID != 0 }

func (v *CommentView) clone() CommentView {
	c := *v
	c.Replies = make([]*CommentView, 0, len(v.Replies))
	for _, r := range v.Replies {
		rc := r.clone()
		c.Replies = append(c.Replies, &rc)
	}
	return c
}

func newView(c models.Comment, now time.Time) *CommentView {
	v := &CommentView{
		ID:          c.ID,
		UserID:      c.UserID,
		Username:    c.Username,
		ProfilePic:  c.ProfilePic,
		IsAdmin:     c.IsAdmin,
		IsModerator: c.IsModerator,
		Content:     c.Content,
		CreatedAt:   c.CreatedAt,
		TimeLabel:   timeago.Format(c.CreatedAt, now),
		LikeCount:   c.LikeCount,
		Liked:       c.Liked,
	}
	if c.ParentID != nil {
		v.ParentID = *c.ParentID
	}
	for _, r := range c.Replies {
		v.Replies = append(v.Replies, newView(r, now))
	}
	return v
}

// Form guards a submit control so only one request runs at a time.
type Form struct {
	mu   sync.Mutex
	busy bool
}

func (f *Form) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *Form) acquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return false
	}
	f.busy = true
	return true
}

func (f *Form) release() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

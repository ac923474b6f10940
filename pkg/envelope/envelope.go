package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Live event actions pushed to connected pages.
const (
	LikeUpdated    = "like_updated"
	NewComment     = "new_comment"
	CommentEdited  = "comment_edited"
	CommentDeleted = "comment_deleted"
	PostDeleted    = "post_deleted"

	// ReplyReceived is addressed to the author of the comment that got a
	// reply. Envelope.UserID names the recipient.
	ReplyReceived = "reply_received"
)

type Envelope struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	Service   string          `json:"service"`
	UserID    int             `json:"user_id,omitempty"`
	Username  string          `json:"username,omitempty"`
	PostID    int             `json:"post_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
	Timestamp int64           `json:"ts"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LikePayload carries the server-authored count after a toggle. Target is
// "post" or "comment". Version grows with every toggle on the target.
type LikePayload struct {
	Target    string `json:"target"`
	ID        int    `json:"id"`
	LikeCount int    `json:"like_count"`
	Version   int64  `json:"version"`
}

type DeletePayload struct {
	ID int `json:"id"`
}

type EditPayload struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
}

func New(action, service string) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Action:    action,
		Service:   service,
		Timestamp: time.Now().UnixMilli(),
	}
}

func NewEvent(action, service string, postID int, data interface{}) (Envelope, error) {
	e := New(action, service)
	e.PostID = postID
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func NewError(action, service string, code int, message string) Envelope {
	e := New(action+".error", service)
	e.Error = &ErrorPayload{Code: code, Message: message}
	return e
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

func ParseData[T any](e Envelope) (T, error) {
	var v T
	err := json.Unmarshal(e.Data, &v)
	return v, err
}

// Package client is a typed HTTP client for the portal endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"technobug/pkg/models"
)

// ServerError is a failure reported by the server in the response body.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("servidor respondeu %d: %s", e.Status, e.Message)
}

// ConnectionError wraps transport and decoding failures.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnection reports whether err came from the network or from an
// unreadable response rather than from the server's own verdict.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// MessageOf returns the server message carried by err, or fallback.
func MessageOf(err error, fallback string) string {
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Erro    string `json:"erro"`
}

func (s status) message() string {
	if s.Message != "" {
		return s.Message
	}
	return s.Erro
}

// ok reports whether the body's status marks success. Bodies without a
// status field are judged by the HTTP code alone.
func (s status) ok() bool {
	switch s.Status {
	case "", "success", "ok":
		return true
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &ConnectionError{Op: method + " " + path, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectionError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectionError{Op: method + " " + path, Err: err}
	}

	// Array bodies carry no status field.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var st status
		if err := json.Unmarshal(raw, &st); err != nil {
			return &ConnectionError{Op: "decode " + path, Err: err}
		}
		if resp.StatusCode >= 400 || !st.ok() {
			return &ServerError{Status: resp.StatusCode, Message: st.message()}
		}
	} else if resp.StatusCode >= 400 {
		return &ServerError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ConnectionError{Op: "decode " + path, Err: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	return c.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b), out)
}

func itoa(id int) string { return strconv.Itoa(id) }

// ── Auth ──

func (c *Client) Login(ctx context.Context, login, password string) (models.AuthResponse, error) {
	var res models.AuthResponse
	err := c.postJSON(ctx, "/auth/login", models.LoginRequest{Login: login, Password: password}, &res)
	if err == nil {
		c.SetToken(res.AccessToken)
	}
	return res, err
}

// ── Threads ──

func (c *Client) Feed(ctx context.Context, category string) ([]models.Post, error) {
	var res struct {
		Posts []models.Post `json:"posts"`
	}
	path := "/posts"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	err := c.get(ctx, path, &res)
	return res.Posts, err
}

func (c *Client) Thread(ctx context.Context, postID int) (models.Post, error) {
	var res struct {
		Post models.Post `json:"post"`
	}
	err := c.get(ctx, "/posts/"+itoa(postID), &res)
	return res.Post, err
}

func (c *Client) Comment(ctx context.Context, postID int, content string) (models.Comment, error) {
	var res struct {
		Comment models.Comment `json:"comment"`
	}
	err := c.postForm(ctx, "/comment/"+itoa(postID), url.Values{"comment_content": {content}}, &res)
	return res.Comment, err
}

func (c *Client) Reply(ctx context.Context, commentID int, content string) (models.Comment, error) {
	var res struct {
		Reply models.Comment `json:"reply"`
	}
	err := c.postForm(ctx, "/reply/"+itoa(commentID), url.Values{"reply_content": {content}}, &res)
	return res.Reply, err
}

func (c *Client) EditComment(ctx context.Context, id int, content string) error {
	return c.postForm(ctx, "/edit_comment/"+itoa(id), url.Values{"content": {content}}, nil)
}

func (c *Client) EditReply(ctx context.Context, id int, content string) error {
	return c.postForm(ctx, "/edit_reply/"+itoa(id), url.Values{"content": {content}}, nil)
}

func (c *Client) DeleteComment(ctx context.Context, id int) error {
	return c.postForm(ctx, "/delete_comment/"+itoa(id), nil, nil)
}

func (c *Client) DeleteReply(ctx context.Context, id int) error {
	return c.postForm(ctx, "/delete_reply/"+itoa(id), nil, nil)
}

func (c *Client) DeletePost(ctx context.Context, id int) error {
	return c.postForm(ctx, "/delete_post/"+itoa(id), nil, nil)
}

// ── Likes ──

type likeResponse struct {
	LikeCount int   `json:"like_count"`
	Liked     bool  `json:"liked"`
	UserLiked bool  `json:"user_liked"`
	Version   int64 `json:"version"`
}

func (c *Client) like(ctx context.Context, path string) (models.LikeResult, error) {
	var res likeResponse
	if err := c.postForm(ctx, path, nil, &res); err != nil {
		return models.LikeResult{}, err
	}
	return models.LikeResult{LikeCount: res.LikeCount, Liked: res.Liked, Version: res.Version}, nil
}

func (c *Client) likes(ctx context.Context, path string) (models.LikeResult, error) {
	var res likeResponse
	if err := c.get(ctx, path, &res); err != nil {
		return models.LikeResult{}, err
	}
	return models.LikeResult{LikeCount: res.LikeCount, Liked: res.UserLiked, Version: res.Version}, nil
}

func (c *Client) LikePost(ctx context.Context, id int) (models.LikeResult, error) {
	return c.like(ctx, "/like_post/"+itoa(id))
}

func (c *Client) LikeComment(ctx context.Context, id int) (models.LikeResult, error) {
	return c.like(ctx, "/like_comment/"+itoa(id))
}

func (c *Client) PostLikes(ctx context.Context, id int) (models.LikeResult, error) {
	return c.likes(ctx, "/get_post_likes/"+itoa(id))
}

func (c *Client) CommentLikes(ctx context.Context, id int) (models.LikeResult, error) {
	return c.likes(ctx, "/get_comment_likes/"+itoa(id))
}

// ── Progress, search, profile ──

func (c *Client) Progress(ctx context.Context) (models.Progress, error) {
	var res models.Progress
	err := c.get(ctx, "/user_progress", &res)
	return res, err
}

func (c *Client) Visit(ctx context.Context, page string) error {
	return c.postForm(ctx, "/visit/"+url.PathEscape(page), nil, nil)
}

func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	res := []models.SearchResult{}
	err := c.get(ctx, "/search?q="+url.QueryEscape(query), &res)
	return res, err
}

func (c *Client) UpdateUsername(ctx context.Context, username string) error {
	return c.postJSON(ctx, "/update_username", map[string]string{"username": username}, nil)
}

// UpdateProfilePic uploads an image and returns its new public URL.
func (c *Client) UpdateProfilePic(ctx context.Context, filename string, src io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("profile_pic", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, src); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	var res struct {
		NewURL     string `json:"new_url"`
		ProfilePic string `json:"profile_pic"`
	}
	if err := c.do(ctx, http.MethodPost, "/update_profile_pic", w.FormDataContentType(), &buf, &res); err != nil {
		return "", err
	}
	if res.NewURL != "" {
		return res.NewURL, nil
	}
	return res.ProfilePic, nil
}

// ── Materials ──

func (c *Client) PDFs(ctx context.Context) ([]models.Material, error) {
	res := []models.Material{}
	err := c.get(ctx, "/data/pdfs.json", &res)
	return res, err
}

func (c *Client) PDFsAndSlides(ctx context.Context) ([]models.Material, error) {
	res := []models.Material{}
	err := c.get(ctx, "/data/pdfs_slides.json", &res)
	return res, err
}

// Package thread is the view model behind a post page: the comment tree, its
// like counters and the submit, edit and delete flows. Every mutation is
// applied from a server response and followed by a render callback.
package thread

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"technobug/pkg/client"
	"technobug/pkg/counter"
	"technobug/pkg/envelope"
	"technobug/pkg/models"
	"technobug/pkg/notify"
	"technobug/pkg/timeago"
)

var (
	ErrEmptyContent = errors.New("conteúdo vazio")
	ErrBusy         = errors.New("envio em andamento")
	ErrNotFound     = errors.New("comentário não encontrado")
	ErrCancelled    = errors.New("ação cancelada")
	ErrSuperseded   = errors.New("substituída por uma ação mais recente")
)

const connectionError = "Erro ao conectar com o servidor."

// API is the subset of the portal client the thread drives.
type API interface {
	Comment(ctx context.Context, postID int, content string) (models.Comment, error)
	Reply(ctx context.Context, commentID int, content string) (models.Comment, error)
	EditComment(ctx context.Context, id int, content string) error
	EditReply(ctx context.Context, id int, content string) error
	DeleteComment(ctx context.Context, id int) error
	DeleteReply(ctx context.Context, id int) error
	DeletePost(ctx context.Context, id int) error
	LikePost(ctx context.Context, id int) (models.LikeResult, error)
	LikeComment(ctx context.Context, id int) (models.LikeResult, error)
	PostLikes(ctx context.Context, id int) (models.LikeResult, error)
	CommentLikes(ctx context.Context, id int) (models.LikeResult, error)
}

type Confirmer interface {
	Confirm(message string) bool
}

// ConfirmFunc adapts a plain function to Confirmer.
type ConfirmFunc func(message string) bool

func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

type likeHandle struct {
	seq    uint64
	cancel context.CancelFunc
}

type Thread struct {
	PostID int

	api     API
	notes   notify.Notifier
	confirm Confirmer
	now     func() time.Time

	mu        sync.Mutex
	postLikes int
	postLiked bool
	deleted   bool
	comments  []*CommentView
	index     map[int]*CommentView
	likes     map[string]*likeHandle
	versions  map[string]int64
	seq       uint64
	limit     int
	onRender  func()

	CommentForm Form
	replyMu     sync.Mutex
	replyForms  map[int]*Form
}

func New(post models.Post, api API, notes notify.Notifier, confirm Confirmer) *Thread {
	t := &Thread{
		PostID:     post.ID,
		api:        api,
		notes:      notes,
		confirm:    confirm,
		now:        time.Now,
		postLikes:  post.LikeCount,
		postLiked:  post.Liked,
		index:      make(map[int]*CommentView),
		likes:      make(map[string]*likeHandle),
		versions:   make(map[string]int64),
		limit:      counter.Limit,
		replyForms: make(map[int]*Form),
	}
	now := t.now()
	for _, c := range post.Comments {
		v := newView(c, now)
		t.comments = append(t.comments, v)
		t.indexTree(v)
	}
	return t
}

// OnRender registers the callback run after every state change.
func (t *Thread) OnRender(fn func()) {
	t.mu.Lock()
	t.onRender = fn
	t.mu.Unlock()
}

func (t *Thread) render() {
	t.mu.Lock()
	fn := t.onRender
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *Thread) indexTree(v *CommentView) {
	t.index[v.ID] = v
	for _, r := range v.Replies {
		t.indexTree(r)
	}
}

func (t *Thread) parentOf(id int) (int, bool) {
	v, ok := t.index[id]
	if !ok || !v.IsReply() {
		return 0, false
	}
	return v.ParentID, true
}

// attach hangs a reply where a fresh page load would render it. Replies whose
// anchor is not on screen are dropped. Caller holds t.mu.
func (t *Thread) attach(v *CommentView) {
	anchor, ok := t.index[models.ReplyAnchor(v.ParentID, models.MaxReplyDepth, t.parentOf)]
	if !ok {
		return
	}
	anchor.Replies = append(anchor.Replies, v)
	t.index[v.ID] = v
}

// failure notifies the user about err and returns it unchanged.
func (t *Thread) failure(err error, fallback string) error {
	if client.IsConnection(err) {
		t.notes.Notify(notify.Error, connectionError)
	} else {
		t.notes.Notify(notify.Error, client.MessageOf(err, fallback))
	}
	return err
}

// ── Read side ──

// Comments returns a snapshot of the top-level comments, newest first.
func (t *Thread) Comments() []CommentView {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]CommentView, 0, len(t.comments))
	for _, c := range t.comments {
		out = append(out, c.clone())
	}
	return out
}

func (t *Thread) Comment(id int) (CommentView, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.index[id]
	if !ok {
		return CommentView{}, false
	}
	return v.clone(), true
}

// Empty reports whether the empty-state placeholder should be shown.
func (t *Thread) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.comments) == 0
}

func (t *Thread) PostLikes() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.postLikes, t.postLiked
}

func (t *Thread) Deleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleted
}

// ReplyForm returns the submit guard of the reply box under a comment.
func (t *Thread) ReplyForm(commentID int) *Form {
	t.replyMu.Lock()
	defer t.replyMu.Unlock()
	f, ok := t.replyForms[commentID]
	if !ok {
		f = &Form{}
		t.replyForms[commentID] = f
	}
	return f
}

// ── Submission ──

// SetLimit changes the comment length limit. Non-positive values restore
// counter.Limit.
func (t *Thread) SetLimit(n int) {
	if n <= 0 {
		n = counter.Limit
	}
	t.mu.Lock()
	t.limit = n
	t.mu.Unlock()
}

// Input runs typed text through the character counter and warns once the
// limit cuts it.
func (t *Thread) Input(text string) counter.State {
	t.mu.Lock()
	limit := t.limit
	t.mu.Unlock()

	st := counter.UpdateWithLimit(text, limit)
	if st.Truncated {
		t.notes.Notify(notify.Error, "Limite de caracteres atingido")
	}
	return st
}

func (t *Thread) SubmitComment(ctx context.Context, content string) (CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		t.notes.Notify(notify.Error, "O comentário não pode estar vazio")
		return CommentView{}, ErrEmptyContent
	}
	if !t.CommentForm.acquire() {
		return CommentView{}, ErrBusy
	}
	defer t.CommentForm.release()

	c, err := t.api.Comment(ctx, t.PostID, content)
	if err != nil {
		return CommentView{}, t.failure(err, "Erro ao adicionar comentário")
	}

	v := newView(c, t.now())
	v.ParentID = 0
	t.mu.Lock()
	// the live event may have inserted it already
	if existing, ok := t.index[v.ID]; ok {
		v = existing
	} else {
		t.comments = append([]*CommentView{v}, t.comments...)
		t.indexTree(v)
	}
	snapshot := v.clone()
	t.mu.Unlock()

	t.notes.Notify(notify.Success, "Comentário adicionado com sucesso!")
	t.render()
	return snapshot, nil
}

func (t *Thread) SubmitReply(ctx context.Context, commentID int, content string) (CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		t.notes.Notify(notify.Error, "A resposta não pode estar vazia")
		return CommentView{}, ErrEmptyContent
	}
	form := t.ReplyForm(commentID)
	if !form.acquire() {
		return CommentView{}, ErrBusy
	}
	defer form.release()

	c, err := t.api.Reply(ctx, commentID, content)
	if err != nil {
		return CommentView{}, t.failure(err, "Erro ao adicionar resposta")
	}

	v := newView(c, t.now())
	v.ParentID = commentID
	t.mu.Lock()
	if existing, ok := t.index[v.ID]; ok {
		v = existing
	} else {
		t.attach(v)
	}
	snapshot := v.clone()
	t.mu.Unlock()

	t.notes.Notify(notify.Success, "Resposta adicionada com sucesso!")
	t.render()
	return snapshot, nil
}

// ── Likes ──

// begin cancels any in-flight toggle for key and returns the context and
// sequence number of the new one.
func (t *Thread) begin(ctx context.Context, key string) (context.Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.likes[key]; ok {
		h.cancel()
	}
	t.seq++
	ctx, cancel := context.WithCancel(ctx)
	t.likes[key] = &likeHandle{seq: t.seq, cancel: cancel}
	return ctx, t.seq
}

// finish reports whether seq is still the latest toggle for key and clears
// the handle when it is. Caller holds t.mu.
func (t *Thread) finish(key string, seq uint64) bool {
	h, ok := t.likes[key]
	if !ok || h.seq != seq {
		return false
	}
	h.cancel()
	delete(t.likes, key)
	return true
}

func likeKey(target string, id int) string {
	return target + ":" + strconv.Itoa(id)
}

// fresh reports whether a count stamped with version may replace the one on
// screen and records it. Version 0 carries no order and always applies.
// Caller holds t.mu.
func (t *Thread) fresh(key string, version int64) bool {
	if version == 0 {
		return true
	}
	if version < t.versions[key] {
		return false
	}
	t.versions[key] = version
	return true
}

func (t *Thread) ToggleLikePost(ctx context.Context) (models.LikeResult, error) {
	key := likeKey("post", t.PostID)
	reqCtx, seq := t.begin(ctx, key)

	res, err := t.api.LikePost(reqCtx, t.PostID)

	t.mu.Lock()
	latest := t.finish(key, seq)
	if latest && err == nil {
		t.postLiked = res.Liked
		if t.fresh(key, res.Version) {
			t.postLikes = res.LikeCount
		}
	}
	t.mu.Unlock()

	if !latest {
		return res, ErrSuperseded
	}
	if err != nil {
		return res, t.failure(err, "Erro ao curtir postagem.")
	}
	t.likeNotice(res.Liked, "Postagem curtida!")
	t.render()
	return res, nil
}

func (t *Thread) ToggleLikeComment(ctx context.Context, id int) (models.LikeResult, error) {
	key := likeKey("comment", id)
	reqCtx, seq := t.begin(ctx, key)

	res, err := t.api.LikeComment(reqCtx, id)

	t.mu.Lock()
	latest := t.finish(key, seq)
	if latest && err == nil {
		if v, ok := t.index[id]; ok {
			v.Liked = res.Liked
			if t.fresh(key, res.Version) {
				v.LikeCount = res.LikeCount
			}
		}
	}
	t.mu.Unlock()

	if !latest {
		return res, ErrSuperseded
	}
	if err != nil {
		return res, t.failure(err, "Erro ao curtir comentário.")
	}
	t.likeNotice(res.Liked, "Comentário curtido!")
	t.render()
	return res, nil
}

func (t *Thread) likeNotice(liked bool, likedMsg string) {
	if liked {
		t.notes.Notify(notify.Success, likedMsg)
	} else {
		t.notes.Notify(notify.Info, "Like removido")
	}
}

// LoadLikes seeds the post and comment counters from the server. A failed
// read leaves the current value in place.
func (t *Thread) LoadLikes(ctx context.Context) error {
	var firstErr error

	if res, err := t.api.PostLikes(ctx, t.PostID); err == nil {
		t.mu.Lock()
		t.postLiked = res.Liked
		if t.fresh(likeKey("post", t.PostID), res.Version) {
			t.postLikes = res.LikeCount
		}
		t.mu.Unlock()
	} else {
		firstErr = err
	}

	t.mu.Lock()
	ids := make([]int, 0, len(t.index))
	for id := range t.index {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		res, err := t.api.CommentLikes(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		t.mu.Lock()
		if v, ok := t.index[id]; ok {
			v.Liked = res.Liked
			if t.fresh(likeKey("comment", id), res.Version) {
				v.LikeCount = res.LikeCount
			}
		}
		t.mu.Unlock()
	}

	t.render()
	return firstErr
}

// ── Edit ──

func (t *Thread) BeginEdit(id int) error {
	t.mu.Lock()
	v, ok := t.index[id]
	if ok {
		v.Editing = true
		v.Draft = v.Content
	}
	t.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	t.render()
	return nil
}

func (t *Thread) CancelEdit(id int) {
	t.mu.Lock()
	if v, ok := t.index[id]; ok {
		v.Editing = false
		v.Draft = ""
	}
	t.mu.Unlock()
	t.render()
}

func (t *Thread) SubmitEdit(ctx context.Context, id int, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		t.notes.Notify(notify.Error, "O comentário não pode estar vazio")
		return ErrEmptyContent
	}

	t.mu.Lock()
	v, ok := t.index[id]
	reply := ok && v.IsReply()
	t.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	var err error
	if reply {
		err = t.api.EditReply(ctx, id, content)
	} else {
		err = t.api.EditComment(ctx, id, content)
	}
	if err != nil {
		return t.failure(err, "Erro ao editar comentário")
	}

	t.mu.Lock()
	v.Content = content
	v.Editing = false
	v.Draft = ""
	t.mu.Unlock()

	t.notes.Notify(notify.Success, "Comentário atualizado com sucesso!")
	t.render()
	return nil
}

// ── Delete ──

func (t *Thread) Delete(ctx context.Context, id int) error {
	t.mu.Lock()
	v, ok := t.index[id]
	reply := ok && v.IsReply()
	t.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	if !t.confirm.Confirm("Tem certeza que deseja deletar este comentário?") {
		return ErrCancelled
	}

	var err error
	if reply {
		err = t.api.DeleteReply(ctx, id)
	} else {
		err = t.api.DeleteComment(ctx, id)
	}
	if err != nil {
		return t.failure(err, "Erro ao deletar comentário.")
	}

	t.mu.Lock()
	t.remove(id)
	t.mu.Unlock()

	t.notes.Notify(notify.Success, "Comentário deletado com sucesso!")
	t.render()
	return nil
}

// remove drops a comment together with every comment whose parent chain
// passes through it, wherever each one is rendered. Caller holds t.mu.
func (t *Thread) remove(id int) {
	if _, ok := t.index[id]; !ok {
		return
	}
	gone := map[int]bool{id: true}
	for grew := true; grew; {
		grew = false
		for cid, v := range t.index {
			if !gone[cid] && v.IsReply() && gone[v.ParentID] {
				gone[cid] = true
				grew = true
			}
		}
	}
	for cid := range gone {
		delete(t.index, cid)
	}
	t.comments = prune(t.comments, gone)
}

func prune(list []*CommentView, gone map[int]bool) []*CommentView {
	out := list[:0]
	for _, v := range list {
		if gone[v.ID] {
			continue
		}
		v.Replies = prune(v.Replies, gone)
		out = append(out, v)
	}
	return out
}

func (t *Thread) DeletePost(ctx context.Context) error {
	if !t.confirm.Confirm("Tem certeza que deseja deletar esta postagem?") {
		return ErrCancelled
	}
	if err := t.api.DeletePost(ctx, t.PostID); err != nil {
		return t.failure(err, "Erro ao deletar postagem.")
	}

	t.mu.Lock()
	t.deleted = true
	t.mu.Unlock()

	t.notes.Notify(notify.Success, "Postagem deletada com sucesso!")
	t.render()
	return nil
}

// ── Time labels ──

// RefreshTimes recomputes every relative time label against now.
func (t *Thread) RefreshTimes(now time.Time) {
	t.mu.Lock()
	for _, v := range t.index {
		v.TimeLabel = timeago.Format(v.CreatedAt, now)
	}
	t.mu.Unlock()
	t.render()
}

// ── Live events ──

// ApplyEvent folds a hub envelope for this post into the view. Counts and
// content always come from the event payload. A like count older than the
// one on screen is dropped, and an unversioned one is dropped while a toggle
// on the same target is in flight.
func (t *Thread) ApplyEvent(env envelope.Envelope) {
	if env.Error != nil || (env.PostID != 0 && env.PostID != t.PostID) {
		return
	}

	switch env.Action {
	case envelope.LikeUpdated:
		p, err := envelope.ParseData[envelope.LikePayload](env)
		if err != nil {
			return
		}
		key := likeKey(p.Target, p.ID)
		t.mu.Lock()
		_, pending := t.likes[key]
		if (pending && p.Version == 0) || !t.fresh(key, p.Version) {
			t.mu.Unlock()
			return
		}
		switch p.Target {
		case "post":
			if p.ID == t.PostID {
				t.postLikes = p.LikeCount
			}
		case "comment":
			if v, ok := t.index[p.ID]; ok {
				v.LikeCount = p.LikeCount
			}
		}
		t.mu.Unlock()

	case envelope.NewComment:
		c, err := envelope.ParseData[models.Comment](env)
		if err != nil {
			return
		}
		t.mu.Lock()
		if _, exists := t.index[c.ID]; !exists {
			v := newView(c, t.now())
			if v.IsReply() {
				t.attach(v)
			} else {
				t.comments = append([]*CommentView{v}, t.comments...)
				t.indexTree(v)
			}
		}
		t.mu.Unlock()

	case envelope.CommentEdited:
		p, err := envelope.ParseData[envelope.EditPayload](env)
		if err != nil {
			return
		}
		t.mu.Lock()
		if v, ok := t.index[p.ID]; ok {
			v.Content = p.Content
		}
		t.mu.Unlock()

	case envelope.CommentDeleted:
		p, err := envelope.ParseData[envelope.DeletePayload](env)
		if err != nil {
			return
		}
		t.mu.Lock()
		t.remove(p.ID)
		t.mu.Unlock()

	case envelope.PostDeleted:
		t.mu.Lock()
		t.deleted = true
		t.mu.Unlock()

	default:
		return
	}
	t.render()
}

package handlers

import (
	"strings"

	"technobug/pkg/models"
	"technobug/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type SocialHandler struct {
	service services.SocialService
}

func NewSocial(service services.SocialService) *SocialHandler {
	return &SocialHandler{service: service}
}

// GET /posts?category=&limit=&offset=
func (h *SocialHandler) Feed(c *fiber.Ctx) error {
	posts, err := h.service.Feed(c.UserContext(), c.Query("category"), actor(c).ID, c.QueryInt("limit", 30), c.QueryInt("offset", 0))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "posts": posts})
}

// GET /posts/:id
func (h *SocialHandler) Thread(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	post, err := h.service.Thread(c.UserContext(), id, actor(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "post": post})
}

// POST /posts
func (h *SocialHandler) CreatePost(c *fiber.Ctx) error {
	var req models.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Requisição inválida")
	}
	post, err := h.service.CreatePost(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"status": "success", "message": "Postagem criada com sucesso!", "post": post})
}

// POST|DELETE /delete_post/:id
func (h *SocialHandler) DeletePost(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	if err := h.service.DeletePost(c.UserContext(), actor(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Postagem deletada com sucesso!"})
}

// POST /comment/:postId  (form: comment_content)
func (h *SocialHandler) Comment(c *fiber.Ctx) error {
	postID, ok := paramID(c, "postId")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	comment, err := h.service.AddComment(c.UserContext(), actor(c), postID, c.FormValue("comment_content"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Comentário adicionado com sucesso!", "comment": comment})
}

// POST /reply/:commentId  (form: reply_content)
func (h *SocialHandler) Reply(c *fiber.Ctx) error {
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	reply, err := h.service.AddReply(c.UserContext(), actor(c), commentID, c.FormValue("reply_content"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Resposta adicionada com sucesso!", "reply": reply})
}

// editContent reads the new text from "content", falling back to the field
// name used by the creation form.
func editContent(c *fiber.Ctx, fallback string) string {
	if v := c.FormValue("content"); strings.TrimSpace(v) != "" {
		return v
	}
	return c.FormValue(fallback)
}

// POST /edit_comment/:id
func (h *SocialHandler) EditComment(c *fiber.Ctx) error {
	return h.edit(c, false, "comment_content", "Comentário atualizado com sucesso!")
}

// POST /edit_reply/:id
func (h *SocialHandler) EditReply(c *fiber.Ctx) error {
	return h.edit(c, true, "reply_content", "Resposta atualizada com sucesso!")
}

func (h *SocialHandler) edit(c *fiber.Ctx, reply bool, fallback, message string) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	comment, err := h.service.EditComment(c.UserContext(), actor(c), id, editContent(c, fallback), reply)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "message": message, "comment": comment})
}

// POST|DELETE /delete_comment/:id
func (h *SocialHandler) DeleteComment(c *fiber.Ctx) error {
	return h.remove(c, false, "Comentário deletado com sucesso!")
}

// POST|DELETE /delete_reply/:id
func (h *SocialHandler) DeleteReply(c *fiber.Ctx) error {
	return h.remove(c, true, "Resposta deletada com sucesso!")
}

func (h *SocialHandler) remove(c *fiber.Ctx, reply bool, message string) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	if err := h.service.DeleteComment(c.UserContext(), actor(c), id, reply); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "message": message})
}

// POST /like_post/:id
func (h *SocialHandler) LikePost(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	res, err := h.service.TogglePostLike(c.UserContext(), actor(c).ID, id)
	if err != nil {
		return fail(c, err)
	}
	return likeResponse(c, res, "Postagem curtida!")
}

// POST /like_comment/:id
func (h *SocialHandler) LikeComment(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	res, err := h.service.ToggleCommentLike(c.UserContext(), actor(c).ID, id)
	if err != nil {
		return fail(c, err)
	}
	return likeResponse(c, res, "Comentário curtido!")
}

func likeResponse(c *fiber.Ctx, res models.LikeResult, likedMsg string) error {
	message := "Like removido"
	if res.Liked {
		message = likedMsg
	}
	return c.JSON(fiber.Map{"status": "success", "like_count": res.LikeCount, "liked": res.Liked, "version": res.Version, "message": message})
}

// GET /get_post_likes/:id
func (h *SocialHandler) GetPostLikes(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	res, err := h.service.PostLikes(c.UserContext(), id, actor(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "like_count": res.LikeCount, "user_liked": res.Liked, "version": res.Version})
}

// GET /get_comment_likes/:id
func (h *SocialHandler) GetCommentLikes(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "ID inválido")
	}
	res, err := h.service.CommentLikes(c.UserContext(), id, actor(c).ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "like_count": res.LikeCount, "user_liked": res.Liked, "version": res.Version})
}

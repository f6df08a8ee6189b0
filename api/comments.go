package api

import (
	"net/http"
	"time"

	authcontext "github.com/nasermirzaei89/myboard/authentication/context"
	"github.com/nasermirzaei89/myboard/discuss"
)

type commentResponse struct {
	ID        string             `json:"id"`
	PostID    string             `json:"postId"`
	AuthorID  string             `json:"authorId"`
	ParentID  *string            `json:"parentId"`
	Content   string             `json:"content"`
	Removed   bool               `json:"removed"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt *time.Time         `json:"updatedAt,omitempty"`
	Replies   []*commentResponse `json:"replies,omitempty"`
}

// newCommentResponse hides the content of a removed comment.
func newCommentResponse(comment *discuss.Comment) *commentResponse {
	res := &commentResponse{
		ID:        comment.ID,
		PostID:    comment.PostID,
		AuthorID:  comment.AuthorID,
		ParentID:  comment.ParentID,
		Content:   comment.Content,
		Removed:   comment.Removed,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
		Replies:   nil,
	}

	if comment.Removed {
		res.Content = ""
	}

	return res
}

// commentThreads nests replies under their top-level comment. Order within each level is kept.
func commentThreads(comments []*discuss.Comment) []*commentResponse {
	threads := make([]*commentResponse, 0)
	byID := make(map[string]*commentResponse, len(comments))

	for _, comment := range comments {
		if comment.ParentID == nil {
			res := newCommentResponse(comment)
			byID[comment.ID] = res
			threads = append(threads, res)
		}
	}

	for _, comment := range comments {
		if comment.ParentID == nil {
			continue
		}

		res := newCommentResponse(comment)

		parent, ok := byID[*comment.ParentID]
		if !ok {
			threads = append(threads, res)

			continue
		}

		parent.Replies = append(parent.Replies, res)
	}

	return threads
}

type createCommentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId"`
}

func (h *Handler) HandleCreateComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body createCommentRequest

		err := readJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		post, err := h.contentsSvc.GetPost(r.Context(), r.PathValue("postId"))
		if err != nil {
			writeError(w, r, err)

			return
		}

		comment, err := h.discussSvc.CreateComment(r.Context(), discuss.CreateCommentRequest{
			PostID:   post.ID,
			AuthorID: authcontext.GetSubject(r.Context()),
			Content:  body.Content,
			ParentID: body.ParentID,
		})
		if err != nil {
			writeError(w, r, err)

			return
		}

		writeJSON(w, r, http.StatusCreated, newCommentResponse(comment))
	})
}

func (h *Handler) HandleListComments() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		post, err := h.contentsSvc.GetPost(r.Context(), r.PathValue("postId"))
		if err != nil {
			writeError(w, r, err)

			return
		}

		comments, err := h.discussSvc.ListComments(r.Context(), post.ID)
		if err != nil {
			writeError(w, r, err)

			return
		}

		writeJSON(w, r, http.StatusOK, commentThreads(comments))
	})
}

func (h *Handler) HandleListAllComments() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		comments, err := h.discussSvc.ListAllComments(r.Context())
		if err != nil {
			writeError(w, r, err)

			return
		}

		res := make([]*commentResponse, 0, len(comments))

		for _, comment := range comments {
			res = append(res, newCommentResponse(comment))
		}

		writeJSON(w, r, http.StatusOK, res)
	})
}

func (h *Handler) HandleGetComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		comment, err := h.discussSvc.GetComment(r.Context(), r.PathValue("commentId"))
		if err != nil {
			writeError(w, r, err)

			return
		}

		writeJSON(w, r, http.StatusOK, newCommentResponse(comment))
	})
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

func (h *Handler) HandleUpdateComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body updateCommentRequest

		err := readJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		comment, err := h.discussSvc.UpdateComment(r.Context(), discuss.UpdateCommentRequest{
			CommentID: r.PathValue("commentId"),
			Content:   body.Content,
		})
		if err != nil {
			writeError(w, r, err)

			return
		}

		writeJSON(w, r, http.StatusOK, newCommentResponse(comment))
	})
}

func (h *Handler) HandleRemoveComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := h.discussSvc.RemoveComment(r.Context(), r.PathValue("commentId"))
		if err != nil {
			writeError(w, r, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

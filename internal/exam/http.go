package exam

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-forge/internal/auth"
)

// Handler はエディタ操作の HTTP ハンドラーをまとめます。すべてセッションゲートの内側で使います。
type Handler struct {
	store *Store
}

// NewHandler は Handler を作成します。
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Register は /exam 配下のルートを登録します。
func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/exam")
	g.GET("", h.GetExam)
	g.DELETE("", h.DiscardExam)
	g.PUT("/title", h.SetTitle)
	g.POST("/questions", h.AddQuestion)
	g.PUT("/questions/:id", h.UpdateQuestion)
	g.DELETE("/questions/:id", h.DeleteQuestion)
	g.POST("/questions/:id/edit", h.BeginEdit)
	g.PATCH("/questions/:id/draft", h.EditDraft)
	g.POST("/questions/:id/save", h.Save)
	g.POST("/questions/:id/cancel", h.Cancel)
}

type titleRequest struct {
	Title *string `json:"title"`
}

type addQuestionRequest struct {
	Type string `json:"type" binding:"required"`
}

type optionPatch struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// draftPatch は作業コピーへの変更です。指定されたフィールドだけを
// 問題文・選択肢・正答・配点の順に適用します。
type draftPatch struct {
	Question      *string         `json:"question"`
	Option        *optionPatch    `json:"option"`
	CorrectAnswer *string         `json:"correctAnswer"`
	Points        json.RawMessage `json:"points"`
}

// GetExam は GET /api/exam のハンドラーです。
func (h *Handler) GetExam(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ws.View())
}

// DiscardExam は DELETE /api/exam のハンドラーです。エディタを離れたときの破棄に使います。
func (h *Handler) DiscardExam(c *gin.Context) {
	sess, ok := auth.CurrentSession(c)
	if !ok {
		respondUnauthorized(c)
		return
	}
	h.store.Discard(sess.ID)
	c.Status(http.StatusNoContent)
}

// SetTitle は PUT /api/exam/title のハンドラーです。
func (h *Handler) SetTitle(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    CodeInvalidInput,
			"message": "title を JSON で送ってください",
		})
		return
	}
	c.JSON(http.StatusOK, ws.SetTitle(*req.Title))
}

// AddQuestion は POST /api/exam/questions のハンドラーです。
func (h *Handler) AddQuestion(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	var req addQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    CodeInvalidInput,
			"message": "type を JSON で送ってください",
		})
		return
	}
	kind, err := ParseKind(req.Type)
	if err != nil {
		respondWithError(c, err)
		return
	}
	q, err := ws.AddQuestion(kind)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"question": q,
		"state":    StateViewing,
	})
}

// UpdateQuestion は PUT /api/exam/questions/:id のハンドラーです。該当がなければ変更せずに 200 を返します。
func (h *Handler) UpdateQuestion(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	id, ok := questionID(c)
	if !ok {
		return
	}
	var q Question
	if err := c.ShouldBindJSON(&q); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.UpdateQuestion(id, q))
}

// DeleteQuestion は DELETE /api/exam/questions/:id のハンドラーです。該当がなければ変更せずに 200 を返します。
func (h *Handler) DeleteQuestion(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	id, ok := questionID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ws.DeleteQuestion(id))
}

// BeginEdit は POST /api/exam/questions/:id/edit のハンドラーです。
func (h *Handler) BeginEdit(c *gin.Context) {
	h.cardAction(c, func(ws *Workspace, id int64) (CardView, error) {
		return ws.BeginEdit(id)
	})
}

// EditDraft は PATCH /api/exam/questions/:id/draft のハンドラーです。
func (h *Handler) EditDraft(c *gin.Context) {
	var patch draftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    CodeInvalidInput,
			"message": "変更内容を JSON で送ってください",
		})
		return
	}
	h.cardAction(c, func(ws *Workspace, id int64) (CardView, error) {
		return ws.Edit(id, patch.apply)
	})
}

// Save は POST /api/exam/questions/:id/save のハンドラーです。
func (h *Handler) Save(c *gin.Context) {
	h.cardAction(c, func(ws *Workspace, id int64) (CardView, error) {
		return ws.Save(id)
	})
}

// Cancel は POST /api/exam/questions/:id/cancel のハンドラーです。
func (h *Handler) Cancel(c *gin.Context) {
	h.cardAction(c, func(ws *Workspace, id int64) (CardView, error) {
		return ws.Cancel(id)
	})
}

func (p draftPatch) apply(card *Card) error {
	if p.Question != nil {
		if err := card.SetPrompt(*p.Question); err != nil {
			return err
		}
	}
	if p.Option != nil {
		if err := card.SetOption(p.Option.Index, p.Option.Text); err != nil {
			return err
		}
	}
	if p.CorrectAnswer != nil {
		if err := card.SelectCorrect(*p.CorrectAnswer); err != nil {
			return err
		}
	}
	if len(p.Points) > 0 {
		if err := card.SetPoints(rawPoints(p.Points)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) cardAction(c *gin.Context, fn func(*Workspace, int64) (CardView, error)) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	id, ok := questionID(c)
	if !ok {
		return
	}
	view, err := fn(ws, id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) workspace(c *gin.Context) (*Workspace, bool) {
	sess, ok := auth.CurrentSession(c)
	if !ok {
		respondUnauthorized(c)
		return nil, false
	}
	return h.store.Get(sess.ID), true
}

func questionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    CodeInvalidInput,
			"message": "設問IDは整数で指定してください",
		})
		return 0, false
	}
	return id, true
}

func respondUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":       "UNAUTHORIZED",
		"message":    "ログインが必要です",
		"redirectTo": auth.UnauthenticatedEntry,
	})
}

func respondWithError(c *gin.Context, err error) {
	var examErr *Error
	if !errors.As(err, &examErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    CodeInvalidInput,
			"message": "リクエストの形式が正しくありません",
		})
		return
	}
	status := http.StatusBadRequest
	switch examErr.Code {
	case CodeQuestionNotFound:
		status = http.StatusNotFound
	case CodeNotEditing:
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{
		"code":    examErr.Code,
		"message": examErr.Message,
	})
}

package handlers

import (
	"errors"

	"canvasServer/backend/internal/board"

	"github.com/gin-gonic/gin"
)

// REST 面板接口：ws 之外的管理入口（创建画布、读取状态、存取快照）。
type BoardHandler struct {
	svc board.Service
}

func NewBoardHandler(svc board.Service) *BoardHandler {
	return &BoardHandler{svc: svc}
}

type createBoardRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *BoardHandler) CreateBoard(c *gin.Context) {
	// 从 gin.Context 获取鉴权中间件写入的用户信息
	userID, exists := c.Get("userId")
	if !exists {
		c.JSON(500, gin.H{"error": "User context missing"})
		return
	}
	ownerID, ok := userID.(uint64)
	if !ok {
		c.JSON(500, gin.H{"error": "Invalid user ID format"})
		return
	}

	var req createBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "title is required"})
		return
	}

	docID, err := h.svc.CreateBoard(c.Request.Context(), ownerID, req.Title)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"docId": docID, "ownerId": ownerID, "title": req.Title})
}

func (h *BoardHandler) GetBoardState(c *gin.Context) {
	docID := c.Param("docID")
	if docID == "" {
		c.JSON(400, gin.H{"error": "Document ID missing"})
		return
	}

	doc, err := h.svc.BoardState(c.Request.Context(), docID)
	if err != nil {
		if errors.Is(err, board.ErrBoardNotFound) {
			c.JSON(404, gin.H{"error": "board not found"})
			return
		}
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, doc)
}

func (h *BoardHandler) SaveBoard(c *gin.Context) {
	docID := c.Param("docID")
	if err := h.svc.SaveSnapshot(c.Request.Context(), docID); err != nil {
		if errors.Is(err, board.ErrBoardNotFound) {
			c.JSON(404, gin.H{"error": "board not found"})
			return
		}
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"docId": docID, "saved": true})
}

func (h *BoardHandler) RestoreBoard(c *gin.Context) {
	docID := c.Param("docID")
	if err := h.svc.LoadBoard(c.Request.Context(), docID); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.svc.BoardState(c.Request.Context(), docID)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, doc)
}

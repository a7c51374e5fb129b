package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/service"
)

// LobbyHandler exposes the lobby service over HTTP.
type LobbyHandler struct {
	lobbyService *service.LobbyService
}

func NewLobbyHandler(lobbyService *service.LobbyService) *LobbyHandler {
	return &LobbyHandler{lobbyService: lobbyService}
}

// Create handles POST /lobby/create
func (h *LobbyHandler) Create(c *gin.Context) {
	var req dto.CreateLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}
	created, err := h.lobbyService.CreateLobby(c.Request.Context(), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

// Join handles POST /lobby/:id/join
func (h *LobbyHandler) Join(c *gin.Context) {
	var req dto.JoinLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}
	p, err := h.lobbyService.Join(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lobby_id": c.Param("id"), "user_id": p.ID, "user_name": p.Name})
}

// Claim handles POST /lobby/:id/claim and POST /claim-item. The latter names
// the lobby in the body.
func (h *LobbyHandler) Claim(c *gin.Context) {
	var req dto.ClaimItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}
	lobbyID := c.Param("id")
	if lobbyID == "" {
		lobbyID = strings.TrimSpace(req.LobbyID)
	}
	if lobbyID == "" {
		sendError(c, dto.Invalid("lobby_id", "is required"))
		return
	}
	res, err := h.lobbyService.Claim(c.Request.Context(), lobbyID, &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateItemCategory handles POST /lobby/:id/item-category
func (h *LobbyHandler) UpdateItemCategory(c *gin.Context) {
	var req dto.ItemCategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}
	res, err := h.lobbyService.UpdateItemCategory(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UpdateItem handles POST /lobby/:id/item-update
func (h *LobbyHandler) UpdateItem(c *gin.Context) {
	var req dto.ItemUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}
	res, err := h.lobbyService.UpdateItem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ResetClaims handles POST /lobby/:id/claim-reset
func (h *LobbyHandler) ResetClaims(c *gin.Context) {
	var req dto.ClaimResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}
	res, err := h.lobbyService.ResetClaims(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AddItem handles POST /lobby/:id/item-add
func (h *LobbyHandler) AddItem(c *gin.Context) {
	var req dto.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendBindError(c, err)
		return
	}
	res, err := h.lobbyService.AddItem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Summary handles GET /lobby/:id/summary?format=full|compact
func (h *LobbyHandler) Summary(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "full"))
	if format != "full" && format != "compact" {
		sendError(c, dto.Invalid("format", "must be full or compact"))
		return
	}
	summary, err := h.lobbyService.Summary(c.Request.Context(), c.Param("id"), c.Query("lobby_passcode"), format == "compact")
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// State handles GET /lobby/:id
func (h *LobbyHandler) State(c *gin.Context) {
	state, err := h.lobbyService.State(c.Request.Context(), c.Param("id"), c.Query("lobby_passcode"))
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Items handles GET /lobby/:id/items
func (h *LobbyHandler) Items(c *gin.Context) {
	items, err := h.lobbyService.Items(c.Request.Context(), c.Param("id"), c.Query("lobby_passcode"))
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lobby_id": c.Param("id"), "items": items})
}

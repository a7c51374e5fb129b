package dto

import (
	"mime/multipart"
	"strings"
)

// ScanRequest represents an uploaded receipt
type ScanRequest struct {
	File          *multipart.FileHeader `form:"file" binding:"required"`
	IncludeDebug  bool                  `form:"include_debug"`
	UseHybrid     *bool                 `form:"use_hybrid"`
	ForceFallback bool                  `form:"force_fallback"`
}

// Validate performs basic validation on the request
func (r *ScanRequest) Validate(maxSize int64) error {
	if r.File == nil {
		return ErrEmptyUpload
	}
	if maxSize > 0 && r.File.Size > maxSize {
		return Invalid("file", "upload exceeds %d bytes", maxSize)
	}
	return nil
}

// ItemPayload is an item as sent by a client when creating a lobby.
type ItemPayload struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name" binding:"required"`
	Quantity             float64  `json:"quantity"`
	UnitPrice            float64  `json:"unit_price"`
	Cost                 float64  `json:"cost"`
	Category             Category `json:"category"`
	CategoryConfidence   float64  `json:"category_confidence"`
	OtherCategoryOptions []string `json:"other_category_options"`
}

type CreateLobbyRequest struct {
	LobbyName     string         `json:"lobby_name"`
	LobbyPasscode string         `json:"lobby_passcode" binding:"required"`
	Items         []ItemPayload  `json:"items"`
	ReceiptImage  string         `json:"receipt_image"`
	ReceiptTotals *ReceiptTotals `json:"receipt_totals"`
}

func (r *CreateLobbyRequest) Validate() error {
	n := len(strings.TrimSpace(r.LobbyPasscode))
	if n < 4 || n > 32 {
		return Invalid("lobby_passcode", "must be 4 to 32 characters")
	}
	return nil
}

type JoinLobbyRequest struct {
	UserName      string `json:"user_name" binding:"required"`
	LobbyPasscode string `json:"lobby_passcode" binding:"required"`
}

func (r *JoinLobbyRequest) Validate() error {
	if strings.TrimSpace(r.UserName) == "" {
		return Invalid("user_name", "is required")
	}
	return nil
}

type ClaimItemRequest struct {
	LobbyID       string   `json:"lobby_id"`
	UserID        string   `json:"user_id" binding:"required"`
	ItemID        string   `json:"item_id" binding:"required"`
	Quantity      *float64 `json:"quantity"`
	LobbyPasscode string   `json:"lobby_passcode" binding:"required"`
}

// ClaimQuantity defaults an omitted quantity to one unit.
func (r *ClaimItemRequest) ClaimQuantity() float64 {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

func (r *ClaimItemRequest) Validate() error {
	if r.ClaimQuantity() < 0 {
		return Invalid("quantity", "must be >= 0")
	}
	return nil
}

type ItemCategoryUpdateRequest struct {
	ItemID           string `json:"item_id" binding:"required"`
	Category         string `json:"category" binding:"required"`
	OtherSubcategory string `json:"other_subcategory"`
	LobbyPasscode    string `json:"lobby_passcode" binding:"required"`
	ActorUserID      string `json:"actor_user_id"`
}

// ItemUpdateRequest carries a host edit. Nil fields keep their stored value.
type ItemUpdateRequest struct {
	ItemID           string   `json:"item_id" binding:"required"`
	LobbyPasscode    string   `json:"lobby_passcode" binding:"required"`
	ActorUserID      string   `json:"actor_user_id"`
	Name             *string  `json:"name"`
	Quantity         *float64 `json:"quantity"`
	UnitPrice        *float64 `json:"unit_price"`
	Cost             *float64 `json:"cost"`
	Category         *string  `json:"category"`
	OtherSubcategory *string  `json:"other_subcategory"`
}

type ClaimResetRequest struct {
	ItemID        string `json:"item_id" binding:"required"`
	LobbyPasscode string `json:"lobby_passcode" binding:"required"`
	UserID        string `json:"user_id"`
	ActorUserID   string `json:"actor_user_id"`
}

type AddItemRequest struct {
	LobbyPasscode    string   `json:"lobby_passcode" binding:"required"`
	ActorUserID      string   `json:"actor_user_id" binding:"required"`
	Name             string   `json:"name" binding:"required"`
	Quantity         *float64 `json:"quantity"`
	UnitPrice        float64  `json:"unit_price"`
	Cost             *float64 `json:"cost"`
	Category         string   `json:"category"`
	OtherSubcategory string   `json:"other_subcategory"`
}

func (r *AddItemRequest) ItemQuantity() float64 {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

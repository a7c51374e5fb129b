package dto

import "time"

// Lobby is a shared bill that participants join and claim items from.
type Lobby struct {
	ID            string        `json:"lobby_id"`
	Name          string        `json:"lobby_name"`
	PasscodeHash  []byte        `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
	ReceiptImage  string        `json:"receipt_image,omitempty"`
	HostUserID    string        `json:"host_user_id,omitempty"`
	ReceiptTotals ReceiptTotals `json:"receipt_totals"`
}

type LobbyCreated struct {
	LobbyID       string        `json:"lobby_id"`
	LobbyName     string        `json:"lobby_name"`
	Items         []ParsedItem  `json:"items"`
	ReceiptImage  string        `json:"receipt_image,omitempty"`
	ReceiptTotals ReceiptTotals `json:"receipt_totals"`
}

type LobbyState struct {
	LobbyID       string            `json:"lobby_id"`
	LobbyName     string            `json:"lobby_name"`
	HostUserID    string            `json:"host_user_id,omitempty"`
	ReceiptImage  string            `json:"receipt_image,omitempty"`
	ReceiptTotals ReceiptTotals     `json:"receipt_totals"`
	Items         []ParsedItem      `json:"items"`
	Participants  []Participant     `json:"participants"`
	Claims        Claims            `json:"claims"`
	Summary       SettlementSummary `json:"summary"`
}

type ClaimResult struct {
	OK       bool    `json:"ok"`
	LobbyID  string  `json:"lobby_id"`
	ItemID   string  `json:"item_id"`
	UserID   string  `json:"user_id,omitempty"`
	Quantity float64 `json:"quantity"`
}

type ItemResult struct {
	OK      bool       `json:"ok"`
	LobbyID string     `json:"lobby_id"`
	Item    ParsedItem `json:"item"`
}

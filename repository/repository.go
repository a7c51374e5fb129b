// Package repository stores lobbies, their items, participants and claims.
package repository

import (
	"context"

	"github.com/Aashish23092/slice-receipts/dto"
)

// LobbyRepository is the persistence boundary of the lobby service. Lookups
// of unknown lobbies return dto.ErrLobbyNotFound. Items and participants come
// back in the order they were added.
type LobbyRepository interface {
	CreateLobby(ctx context.Context, lobby dto.Lobby, items []dto.ParsedItem) error
	GetLobby(ctx context.Context, lobbyID string) (*dto.Lobby, error)

	// AddParticipant appends a participant and makes them host when the lobby
	// has none. It returns the host id after the insert.
	AddParticipant(ctx context.Context, lobbyID string, p dto.Participant) (string, error)
	Participants(ctx context.Context, lobbyID string) ([]dto.Participant, error)

	Items(ctx context.Context, lobbyID string) ([]dto.ParsedItem, error)
	// SaveItem inserts the item or replaces the one with the same id.
	SaveItem(ctx context.Context, lobbyID string, item dto.ParsedItem) error

	Claims(ctx context.Context, lobbyID string) (dto.Claims, error)
	// SetClaim stores a claimed quantity; zero removes the claim.
	SetClaim(ctx context.Context, lobbyID, itemID, userID string, quantity float64) error
	// ResetClaims removes one user's claim on an item, or every claim on it
	// when userID is empty.
	ResetClaims(ctx context.Context, lobbyID, itemID, userID string) error

	Close() error
}

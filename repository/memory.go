package repository

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/Aashish23092/slice-receipts/dto"
)

type memoryLobby struct {
	lobby        dto.Lobby
	items        []dto.ParsedItem
	participants []dto.Participant
	claims       dto.Claims
}

// MemoryRepository keeps lobbies in process memory. Used for tests and for
// DB_PATH=":memory:".
type MemoryRepository struct {
	mu      sync.RWMutex
	lobbies map[string]*memoryLobby
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{lobbies: make(map[string]*memoryLobby)}
}

func (r *MemoryRepository) CreateLobby(_ context.Context, lobby dto.Lobby, items []dto.ParsedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lobbies[lobby.ID] = &memoryLobby{
		lobby:  lobby,
		items:  cloneItems(items),
		claims: dto.Claims{},
	}
	return nil
}

func (r *MemoryRepository) GetLobby(_ context.Context, lobbyID string) (*dto.Lobby, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		return nil, dto.ErrLobbyNotFound
	}
	out := l.lobby
	return &out, nil
}

func (r *MemoryRepository) AddParticipant(_ context.Context, lobbyID string, p dto.Participant) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		return "", dto.ErrLobbyNotFound
	}
	l.participants = append(l.participants, p)
	if l.lobby.HostUserID == "" {
		l.lobby.HostUserID = p.ID
	}
	return l.lobby.HostUserID, nil
}

func (r *MemoryRepository) Participants(_ context.Context, lobbyID string) ([]dto.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		return nil, dto.ErrLobbyNotFound
	}
	return slices.Clone(l.participants), nil
}

func (r *MemoryRepository) Items(_ context.Context, lobbyID string) ([]dto.ParsedItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		return nil, dto.ErrLobbyNotFound
	}
	return cloneItems(l.items), nil
}

func (r *MemoryRepository) SaveItem(_ context.Context, lobbyID string, item dto.ParsedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		return dto.ErrLobbyNotFound
	}
	item.OtherCategoryOptions = slices.Clone(item.OtherCategoryOptions)
	for i := range l.items {
		if l.items[i].ID == item.ID {
			l.items[i] = item
			return nil
		}
	}
	l.items = append(l.items, item)
	return nil
}

func (r *MemoryRepository) Claims(_ context.Context, lobbyID string) (dto.Claims, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		return nil, dto.ErrLobbyNotFound
	}
	out := make(dto.Claims, len(l.claims))
	for itemID, byUser := range l.claims {
		out[itemID] = maps.Clone(byUser)
	}
	return out, nil
}

func (r *MemoryRepository) SetClaim(_ context.Context, lobbyID, itemID, userID string, quantity float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		return dto.ErrLobbyNotFound
	}
	if quantity == 0 {
		delete(l.claims[itemID], userID)
		if len(l.claims[itemID]) == 0 {
			delete(l.claims, itemID)
		}
		return nil
	}
	if l.claims[itemID] == nil {
		l.claims[itemID] = make(map[string]float64)
	}
	l.claims[itemID][userID] = quantity
	return nil
}

func (r *MemoryRepository) ResetClaims(ctx context.Context, lobbyID, itemID, userID string) error {
	if userID != "" {
		return r.SetClaim(ctx, lobbyID, itemID, userID, 0)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[lobbyID]
	if !ok {
		return dto.ErrLobbyNotFound
	}
	delete(l.claims, itemID)
	return nil
}

func (r *MemoryRepository) Close() error { return nil }

func cloneItems(items []dto.ParsedItem) []dto.ParsedItem {
	out := make([]dto.ParsedItem, len(items))
	for i, it := range items {
		it.OtherCategoryOptions = slices.Clone(it.OtherCategoryOptions)
		out[i] = it
	}
	return out
}

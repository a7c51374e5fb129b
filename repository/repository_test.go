package repository

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) LobbyRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "slice.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func repositories(t *testing.T) map[string]LobbyRepository {
	return map[string]LobbyRepository{
		"memory": NewMemoryRepository(),
		"sqlite": newSQLite(t),
	}
}

func seedLobby() (dto.Lobby, []dto.ParsedItem) {
	lobby := dto.Lobby{
		ID:           "lb123456",
		Name:         "Friday dinner",
		PasscodeHash: []byte("hash"),
		CreatedAt:    time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC),
		ReceiptTotals: dto.ReceiptTotals{
			DetectedSubtotal:     dto.F64(420),
			DetectedGrandTotal:   dto.F64(441),
			DetectedTaxBreakdown: []dto.TaxLine{{Label: "CGST 2.5%", Amount: 10.5}},
		},
	}
	items := []dto.ParsedItem{
		{ID: "itm_1", Name: "Paneer Tikka", Quantity: 2, UnitPrice: 150, Cost: 300, Category: dto.CategoryVeg, CategoryConfidence: 0.82, CategorySource: dto.CategorySourceAuto},
		{ID: "itm_2", Name: "Gulab Jamun", Quantity: 2, UnitPrice: 60, Cost: 120, Category: dto.CategoryOther, CategoryConfidence: 0.55, CategorySource: dto.CategorySourceAuto, OtherCategoryOptions: []string{"dessert", "starter"}},
	}
	return lobby, items
}

func TestRepositoryLobbyLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			lobby, seed := seedLobby()
			require.NoError(t, repo.CreateLobby(ctx, lobby, seed))

			got, err := repo.GetLobby(ctx, lobby.ID)
			require.NoError(t, err)
			assert.Equal(t, "Friday dinner", got.Name)
			assert.Equal(t, []byte("hash"), got.PasscodeHash)
			assert.True(t, lobby.CreatedAt.Equal(got.CreatedAt))
			assert.Equal(t, 441.0, *got.ReceiptTotals.DetectedGrandTotal)
			assert.Empty(t, got.HostUserID)

			host, err := repo.AddParticipant(ctx, lobby.ID, dto.Participant{ID: "u1", Name: "Asha"})
			require.NoError(t, err)
			assert.Equal(t, "u1", host)
			host, err = repo.AddParticipant(ctx, lobby.ID, dto.Participant{ID: "u2", Name: "Ben"})
			require.NoError(t, err)
			assert.Equal(t, "u1", host)

			people, err := repo.Participants(ctx, lobby.ID)
			require.NoError(t, err)
			assert.Equal(t, []dto.Participant{{ID: "u1", Name: "Asha"}, {ID: "u2", Name: "Ben"}}, people)

			items, err := repo.Items(ctx, lobby.ID)
			require.NoError(t, err)
			assert.Equal(t, seed, items)
		})
	}
}

func TestRepositoryItemsKeepNumericOrder(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			lobby, seed := seedLobby()
			require.NoError(t, repo.CreateLobby(ctx, lobby, seed))

			for n := 3; n <= 10; n++ {
				require.NoError(t, repo.SaveItem(ctx, lobby.ID, dto.ParsedItem{ID: "itm_" + strconv.Itoa(n), Name: "Roti", Quantity: 1, Cost: 20}))
			}
			edited := seed[0]
			edited.Name = "Paneer Tikka Half"
			edited.CategorySource = dto.CategorySourceHostEdited
			require.NoError(t, repo.SaveItem(ctx, lobby.ID, edited))

			items, err := repo.Items(ctx, lobby.ID)
			require.NoError(t, err)
			require.Len(t, items, 10)
			assert.Equal(t, "Paneer Tikka Half", items[0].Name)
			assert.Equal(t, "itm_10", items[9].ID)
		})
	}
}

func TestRepositoryClaims(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			lobby, seed := seedLobby()
			require.NoError(t, repo.CreateLobby(ctx, lobby, seed))

			require.NoError(t, repo.SetClaim(ctx, lobby.ID, "itm_1", "u1", 1))
			require.NoError(t, repo.SetClaim(ctx, lobby.ID, "itm_1", "u2", 0.5))
			require.NoError(t, repo.SetClaim(ctx, lobby.ID, "itm_2", "u1", 2))
			require.NoError(t, repo.SetClaim(ctx, lobby.ID, "itm_1", "u1", 1.5))

			claims, err := repo.Claims(ctx, lobby.ID)
			require.NoError(t, err)
			assert.Equal(t, dto.Claims{"itm_1": {"u1": 1.5, "u2": 0.5}, "itm_2": {"u1": 2}}, claims)

			require.NoError(t, repo.SetClaim(ctx, lobby.ID, "itm_1", "u2", 0))
			require.NoError(t, repo.ResetClaims(ctx, lobby.ID, "itm_2", ""))
			claims, err = repo.Claims(ctx, lobby.ID)
			require.NoError(t, err)
			assert.Equal(t, dto.Claims{"itm_1": {"u1": 1.5}}, claims)

			require.NoError(t, repo.ResetClaims(ctx, lobby.ID, "itm_1", "u1"))
			claims, err = repo.Claims(ctx, lobby.ID)
			require.NoError(t, err)
			assert.Empty(t, claims)
		})
	}
}

func TestRepositoryUnknownLobby(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.GetLobby(ctx, "missing")
			assert.ErrorIs(t, err, dto.ErrLobbyNotFound)
			_, err = repo.AddParticipant(ctx, "missing", dto.Participant{ID: "u1", Name: "x"})
			assert.ErrorIs(t, err, dto.ErrLobbyNotFound)
			_, err = repo.Items(ctx, "missing")
			assert.ErrorIs(t, err, dto.ErrLobbyNotFound)
			assert.ErrorIs(t, repo.SetClaim(ctx, "missing", "itm_1", "u1", 1), dto.ErrLobbyNotFound)
		})
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "slice.db")

	repo, err := NewSQLiteRepository(ctx, path)
	require.NoError(t, err)
	lobby, seed := seedLobby()
	require.NoError(t, repo.CreateLobby(ctx, lobby, seed))
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(ctx, path)
	require.NoError(t, err)
	defer repo.Close()
	items, err := repo.Items(ctx, lobby.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

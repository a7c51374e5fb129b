package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aashish23092/slice-receipts/dto"
	"github.com/Aashish23092/slice-receipts/repository"
	"github.com/Aashish23092/slice-receipts/utils"
)

const (
	claimTolerance    = 1e-6
	editCostTolerance = 0.05
	minItemNameLength = 2
)

var itemIDRe = regexp.MustCompile(`^itm_(\d+)$`)

// LobbyService owns every mutation of lobby items and claims. Mutations of
// one lobby are serialised so claim limits hold under concurrent requests.
type LobbyService struct {
	repo repository.LobbyRepository

	mu    sync.Mutex
	locks map[string]*lobbyLock
}

// lobbyLock is dropped from the map once no request holds or waits on it.
type lobbyLock struct {
	sync.Mutex
	refs int
}

func NewLobbyService(repo repository.LobbyRepository) *LobbyService {
	return &LobbyService{repo: repo, locks: make(map[string]*lobbyLock)}
}

func (s *LobbyService) lock(lobbyID string) func() {
	s.mu.Lock()
	l, ok := s.locks[lobbyID]
	if !ok {
		l = &lobbyLock{}
		s.locks[lobbyID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, lobbyID)
		}
		s.mu.Unlock()
	}
}

func shortID() string {
	return uuid.NewString()[:8]
}

// CreateLobby stores a new lobby with its normalised, categorised items.
func (s *LobbyService) CreateLobby(ctx context.Context, req *dto.CreateLobbyRequest) (*dto.LobbyCreated, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(req.LobbyPasscode)), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passcode: %w", err)
	}

	id := shortID()
	name := strings.TrimSpace(req.LobbyName)
	if name == "" {
		name = "Lobby-" + id
	}
	var totals dto.ReceiptTotals
	if req.ReceiptTotals != nil {
		totals = sanitizeTotals(*req.ReceiptTotals)
	} else {
		totals = sanitizeTotals(dto.ReceiptTotals{})
	}
	items := normalizeLobbyItems(req.Items)

	lobby := dto.Lobby{
		ID:            id,
		Name:          name,
		PasscodeHash:  hash,
		CreatedAt:     time.Now().UTC(),
		ReceiptImage:  req.ReceiptImage,
		ReceiptTotals: totals,
	}
	if err := s.repo.CreateLobby(ctx, lobby, items); err != nil {
		return nil, fmt.Errorf("failed to create lobby: %w", err)
	}
	slog.Info("lobby created", "lobby_id", id, "items", len(items))

	return &dto.LobbyCreated{
		LobbyID:       id,
		LobbyName:     name,
		Items:         items,
		ReceiptImage:  req.ReceiptImage,
		ReceiptTotals: totals,
	}, nil
}

// Join adds a participant. The first participant becomes the host.
func (s *LobbyService) Join(ctx context.Context, lobbyID string, req *dto.JoinLobbyRequest) (*dto.Participant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, lobbyID, req.LobbyPasscode); err != nil {
		return nil, err
	}
	defer s.lock(lobbyID)()

	p := dto.Participant{ID: shortID(), Name: strings.TrimSpace(req.UserName)}
	host, err := s.repo.AddParticipant(ctx, lobbyID, p)
	if err != nil {
		return nil, fmt.Errorf("failed to join lobby: %w", err)
	}
	slog.Info("participant joined", "lobby_id", lobbyID, "user_id", p.ID, "host", host == p.ID)
	return &p, nil
}

// Claim sets how much of an item a participant takes. The quantity may not
// exceed what other participants left unclaimed; zero withdraws the claim.
func (s *LobbyService) Claim(ctx context.Context, lobbyID string, req *dto.ClaimItemRequest) (*dto.ClaimResult, error) {
	if _, err := s.authorize(ctx, lobbyID, req.LobbyPasscode); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	defer s.lock(lobbyID)()

	if err := s.requireParticipant(ctx, lobbyID, req.UserID); err != nil {
		return nil, err
	}
	item, err := s.findItem(ctx, lobbyID, req.ItemID)
	if err != nil {
		return nil, err
	}
	claims, err := s.repo.Claims(ctx, lobbyID)
	if err != nil {
		return nil, err
	}

	qty := req.ClaimQuantity()
	available := item.Quantity - claims.ClaimedBy(item.ID, req.UserID)
	if qty > available+claimTolerance {
		return nil, dto.Invalid("quantity", "max claimable quantity is %s", formatQty(available))
	}
	if err := s.repo.SetClaim(ctx, lobbyID, item.ID, req.UserID, qty); err != nil {
		return nil, fmt.Errorf("failed to save claim: %w", err)
	}
	return &dto.ClaimResult{OK: true, LobbyID: lobbyID, ItemID: item.ID, UserID: req.UserID, Quantity: qty}, nil
}

// UpdateItemCategory lets the host recategorise an item.
func (s *LobbyService) UpdateItemCategory(ctx context.Context, lobbyID string, req *dto.ItemCategoryUpdateRequest) (*dto.ItemResult, error) {
	lobby, err := s.authorize(ctx, lobbyID, req.LobbyPasscode)
	if err != nil {
		return nil, err
	}
	if err := requireHost(lobby, req.ActorUserID); err != nil {
		return nil, err
	}
	defer s.lock(lobbyID)()

	item, err := s.findItem(ctx, lobbyID, req.ItemID)
	if err != nil {
		return nil, err
	}
	category, err := parseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	item.Category = category
	item.CategoryConfidence = 1
	item.CategorySource = dto.CategorySourceHostSelected
	if err := applyOtherSubcategory(item, req.OtherSubcategory); err != nil {
		return nil, err
	}

	if err := s.repo.SaveItem(ctx, lobbyID, *item); err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}
	return &dto.ItemResult{OK: true, LobbyID: lobbyID, Item: *item}, nil
}

// UpdateItem applies a host edit. Cost and unit price must agree with the
// quantity when both are given; a missing one is derived from the other.
func (s *LobbyService) UpdateItem(ctx context.Context, lobbyID string, req *dto.ItemUpdateRequest) (*dto.ItemResult, error) {
	lobby, err := s.authorize(ctx, lobbyID, req.LobbyPasscode)
	if err != nil {
		return nil, err
	}
	if err := requireHost(lobby, req.ActorUserID); err != nil {
		return nil, err
	}
	defer s.lock(lobbyID)()

	item, err := s.findItem(ctx, lobbyID, req.ItemID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(valueOr(req.Name, item.Name))
	if len(name) < minItemNameLength {
		return nil, dto.Invalid("name", "item name is too short")
	}
	qty := valueOr(req.Quantity, item.Quantity)
	if qty <= 0 {
		return nil, dto.Invalid("quantity", "must be > 0")
	}
	unit := valueOr(req.UnitPrice, item.UnitPrice)
	if unit < 0 {
		return nil, dto.Invalid("unit_price", "must be >= 0")
	}
	cost := valueOr(req.Cost, item.Cost)
	if cost < 0 {
		return nil, dto.Invalid("cost", "must be >= 0")
	}

	expected := utils.Round2(qty * unit)
	switch {
	case req.Cost != nil && req.UnitPrice != nil:
		if math.Abs(cost-expected) > math.Max(1, editCostTolerance*math.Max(1, expected)) {
			return nil, dto.Invalid("cost", "expected about %.2f from quantity x unit_price", expected)
		}
	case req.UnitPrice != nil:
		cost = expected
	case req.Cost != nil:
		unit = utils.Round2(cost / qty)
	case req.Quantity != nil:
		// Quantity alone keeps the unit price unless there is none to scale.
		if unit > 0 {
			cost = expected
		} else {
			unit = utils.Round2(cost / qty)
		}
	}

	claims, err := s.repo.Claims(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if claimed := claims.ClaimedBy(item.ID, ""); claimed > qty+claimTolerance {
		return nil, dto.Invalid("quantity", "cannot reduce quantity below already claimed amount (%s)", formatQty(claimed))
	}

	categoryText := string(item.Category)
	if req.Category != nil {
		categoryText = *req.Category
	}
	if strings.TrimSpace(categoryText) == "" {
		categoryText = string(dto.CategoryOther)
	}
	category, err := parseCategory(categoryText)
	if err != nil {
		return nil, err
	}

	item.Name = name
	item.Quantity = qty
	item.UnitPrice = unit
	item.Cost = cost
	item.Category = category
	item.CategoryConfidence = 1
	item.CategorySource = dto.CategorySourceHostEdited
	chosen := item.OtherSubcategory
	if req.OtherSubcategory != nil && strings.TrimSpace(*req.OtherSubcategory) != "" {
		chosen = *req.OtherSubcategory
	}
	if err := applyOtherSubcategory(item, chosen); err != nil {
		return nil, err
	}

	if err := s.repo.SaveItem(ctx, lobbyID, *item); err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}
	slog.Info("item edited", "lobby_id", lobbyID, "item_id", item.ID)
	return &dto.ItemResult{OK: true, LobbyID: lobbyID, Item: *item}, nil
}

// ResetClaims clears one participant's claim on an item, or all of them.
func (s *LobbyService) ResetClaims(ctx context.Context, lobbyID string, req *dto.ClaimResetRequest) (*dto.ClaimResult, error) {
	lobby, err := s.authorize(ctx, lobbyID, req.LobbyPasscode)
	if err != nil {
		return nil, err
	}
	if err := requireHost(lobby, req.ActorUserID); err != nil {
		return nil, err
	}
	defer s.lock(lobbyID)()

	if _, err := s.findItem(ctx, lobbyID, req.ItemID); err != nil {
		return nil, err
	}
	if err := s.repo.ResetClaims(ctx, lobbyID, req.ItemID, strings.TrimSpace(req.UserID)); err != nil {
		return nil, fmt.Errorf("failed to reset claims: %w", err)
	}
	return &dto.ClaimResult{OK: true, LobbyID: lobbyID, ItemID: req.ItemID, UserID: req.UserID}, nil
}

// AddItem lets a participant add an item missing from the receipt. An
// explicit category marks it as a manual addition.
func (s *LobbyService) AddItem(ctx context.Context, lobbyID string, req *dto.AddItemRequest) (*dto.ItemResult, error) {
	if _, err := s.authorize(ctx, lobbyID, req.LobbyPasscode); err != nil {
		return nil, err
	}
	defer s.lock(lobbyID)()

	if err := s.requireParticipant(ctx, lobbyID, req.ActorUserID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if len(name) < minItemNameLength {
		return nil, dto.Invalid("name", "item name is too short")
	}
	qty := req.ItemQuantity()
	if qty <= 0 {
		return nil, dto.Invalid("quantity", "must be > 0")
	}
	unit := req.UnitPrice
	if unit < 0 {
		return nil, dto.Invalid("unit_price", "must be >= 0")
	}

	var cost float64
	if req.Cost == nil {
		if unit <= 0 {
			return nil, dto.Invalid("unit_price", "provide unit_price or cost")
		}
		cost = utils.Round2(qty * unit)
	} else {
		cost = *req.Cost
		if cost <= 0 {
			return nil, dto.Invalid("cost", "must be > 0")
		}
		expected := utils.Round2(qty * unit)
		if unit <= 0 || math.Abs(cost-expected) > math.Max(1, editCostTolerance*math.Max(1, expected)) {
			unit = utils.Round2(cost / qty)
		}
	}

	items, err := s.repo.Items(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	item := utils.EnrichItems([]dto.ParsedItem{{
		ID:        nextItemID(items),
		Name:      name,
		Quantity:  qty,
		UnitPrice: utils.Round2(unit),
		Cost:      utils.Round2(cost),
	}})[0]

	if strings.TrimSpace(req.Category) != "" {
		category, err := parseCategory(req.Category)
		if err != nil {
			return nil, err
		}
		item.Category = category
		item.CategoryConfidence = 1
		item.CategorySource = dto.CategorySourceUserSelected
	}
	if err := applyOtherSubcategory(&item, req.OtherSubcategory); err != nil {
		return nil, err
	}

	if err := s.repo.SaveItem(ctx, lobbyID, item); err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}
	slog.Info("item added", "lobby_id", lobbyID, "item_id", item.ID, "user_id", req.ActorUserID)
	return &dto.ItemResult{OK: true, LobbyID: lobbyID, Item: item}, nil
}

// Summary computes the settlement of a lobby from a consistent snapshot.
func (s *LobbyService) Summary(ctx context.Context, lobbyID, passcode string, compact bool) (*dto.SettlementSummary, error) {
	lobby, err := s.authorize(ctx, lobbyID, passcode)
	if err != nil {
		return nil, err
	}
	defer s.lock(lobbyID)()

	snap, err := s.snapshot(ctx, lobby)
	if err != nil {
		return nil, err
	}
	if compact {
		c := snap.Summary.Compact()
		return &c, nil
	}
	return &snap.Summary, nil
}

// State returns the full lobby view.
func (s *LobbyService) State(ctx context.Context, lobbyID, passcode string) (*dto.LobbyState, error) {
	lobby, err := s.authorize(ctx, lobbyID, passcode)
	if err != nil {
		return nil, err
	}
	defer s.lock(lobbyID)()
	return s.snapshot(ctx, lobby)
}

// Items lists the lobby items in id order.
func (s *LobbyService) Items(ctx context.Context, lobbyID, passcode string) ([]dto.ParsedItem, error) {
	if _, err := s.authorize(ctx, lobbyID, passcode); err != nil {
		return nil, err
	}
	return s.repo.Items(ctx, lobbyID)
}

func (s *LobbyService) snapshot(ctx context.Context, lobby *dto.Lobby) (*dto.LobbyState, error) {
	items, err := s.repo.Items(ctx, lobby.ID)
	if err != nil {
		return nil, err
	}
	participants, err := s.repo.Participants(ctx, lobby.ID)
	if err != nil {
		return nil, err
	}
	claims, err := s.repo.Claims(ctx, lobby.ID)
	if err != nil {
		return nil, err
	}

	summary := CalculateSettlement(items, claims, lobby.ReceiptTotals, participants)
	summary.LobbyID = lobby.ID
	summary.LobbyName = lobby.Name

	return &dto.LobbyState{
		LobbyID:       lobby.ID,
		LobbyName:     lobby.Name,
		HostUserID:    lobby.HostUserID,
		ReceiptImage:  lobby.ReceiptImage,
		ReceiptTotals: lobby.ReceiptTotals,
		Items:         items,
		Participants:  participants,
		Claims:        claims,
		Summary:       summary,
	}, nil
}

// authorize loads the lobby and checks its passcode.
func (s *LobbyService) authorize(ctx context.Context, lobbyID, passcode string) (*dto.Lobby, error) {
	lobby, err := s.repo.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword(lobby.PasscodeHash, []byte(strings.TrimSpace(passcode))) != nil {
		return nil, dto.ErrInvalidPasscode
	}
	return lobby, nil
}

func (s *LobbyService) requireParticipant(ctx context.Context, lobbyID, userID string) error {
	participants, err := s.repo.Participants(ctx, lobbyID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if p.ID == userID {
			return nil
		}
	}
	return dto.ErrNotParticipant
}

func (s *LobbyService) findItem(ctx context.Context, lobbyID, itemID string) (*dto.ParsedItem, error) {
	items, err := s.repo.Items(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == itemID {
			return &items[i], nil
		}
	}
	return nil, dto.ErrItemNotFound
}

// requireHost passes the host, or anyone named while no host exists yet.
func requireHost(lobby *dto.Lobby, actor string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return dto.ErrHostRequired
	}
	if lobby.HostUserID != "" && actor != lobby.HostUserID {
		return dto.ErrHostRequired
	}
	return nil
}

func parseCategory(raw string) (dto.Category, error) {
	c := dto.Category(strings.ToLower(strings.TrimSpace(raw)))
	if !dto.ValidCategory(c) {
		return "", dto.Invalid("category", "must be one of drinks, non_veg, other, veg")
	}
	return c, nil
}

// applyOtherSubcategory sets or clears the subcategory fields that only
// apply to items in the "other" category.
func applyOtherSubcategory(item *dto.ParsedItem, chosen string) error {
	if item.Category != dto.CategoryOther {
		item.OtherSubcategory = ""
		item.OtherCategoryOptions = nil
		return nil
	}
	chosen = strings.ToLower(strings.TrimSpace(chosen))
	if chosen != "" && !utils.ValidOtherSubcategory(chosen) {
		return dto.Invalid("other_subcategory", "must be one of %s", strings.Join(utils.OtherOptions, ", "))
	}
	item.OtherSubcategory = chosen
	item.OtherCategoryOptions = utils.SuggestOtherOptions(item.Name)
	return nil
}

func normalizeLobbyItems(payload []dto.ItemPayload) []dto.ParsedItem {
	items := make([]dto.ParsedItem, len(payload))
	for i, p := range payload {
		it := dto.ParsedItem{ID: p.ID, Name: strings.TrimSpace(p.Name), Quantity: p.Quantity, UnitPrice: p.UnitPrice, Cost: p.Cost}
		if it.ID == "" {
			it.ID = utils.ItemID(i + 1)
		}
		if it.Quantity <= 0 {
			it.Quantity = 1
		}
		if it.UnitPrice <= 0 && it.Cost > 0 {
			it.UnitPrice = utils.Round2(it.Cost / it.Quantity)
		}
		items[i] = it
	}
	return utils.EnrichItems(items)
}

// sanitizeTotals rounds stored totals and drops unnamed breakdown rows.
func sanitizeTotals(t dto.ReceiptTotals) dto.ReceiptTotals {
	round := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		return dto.F64(utils.Round2(*p))
	}
	out := dto.ReceiptTotals{
		DetectedSubtotal:      round(t.DetectedSubtotal),
		DetectedGrandTotal:    round(t.DetectedGrandTotal),
		DetectedTaxTotal:      round(t.DetectedTaxTotal),
		DetectedServiceCharge: round(t.DetectedServiceCharge),
		DetectedRoundOff:      round(t.DetectedRoundOff),
		DetectedTaxBreakdown:  []dto.TaxLine{},
	}
	for _, row := range t.DetectedTaxBreakdown {
		label := strings.TrimSpace(row.Label)
		if label == "" {
			continue
		}
		out.DetectedTaxBreakdown = append(out.DetectedTaxBreakdown, dto.TaxLine{Label: label, Amount: utils.Round2(row.Amount)})
	}
	return out
}

// nextItemID returns itm_N one past the highest numbered item.
func nextItemID(items []dto.ParsedItem) string {
	highest := 0
	for _, it := range items {
		if m := itemIDRe.FindStringSubmatch(it.ID); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				highest = max(highest, n)
			}
		}
	}
	return utils.ItemID(highest + 1)
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

func formatQty(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

// IsClientError reports errors caused by the request rather than the server.
func IsClientError(err error) bool {
	var ve *dto.ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, dto.ErrLobbyNotFound) ||
		errors.Is(err, dto.ErrItemNotFound) ||
		errors.Is(err, dto.ErrInvalidPasscode) ||
		errors.Is(err, dto.ErrHostRequired) ||
		errors.Is(err, dto.ErrNotParticipant)
}

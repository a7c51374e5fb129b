package dto

// Participant is a member of a lobby, in join order.
type Participant struct {
	ID   string `json:"user_id"`
	Name string `json:"user_name"`
}

// Claims maps item id to participant id to claimed quantity.
type Claims map[string]map[string]float64

// ClaimedBy returns the summed quantity claimed on itemID, skipping exceptUser.
func (c Claims) ClaimedBy(itemID, exceptUser string) float64 {
	var sum float64
	for uid, q := range c[itemID] {
		if uid == exceptUser {
			continue
		}
		sum += q
	}
	return sum
}

type ClaimedLine struct {
	ItemID   string  `json:"item_id"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Amount   float64 `json:"amount"`
}

type ParticipantShare struct {
	UserID     string        `json:"user_id"`
	UserName   string        `json:"user_name"`
	BaseTotal  float64       `json:"base_total"`
	ExtraShare float64       `json:"extra_share"`
	Total      float64       `json:"total"`
	Items      []ClaimedLine `json:"items,omitempty"`
}

// SettlementSummary is the per-lobby settlement view.
type SettlementSummary struct {
	LobbyID            string             `json:"lobby_id,omitempty"`
	LobbyName          string             `json:"lobby_name,omitempty"`
	ParticipantCount   int                `json:"participant_count"`
	ItemSubtotal       float64            `json:"item_subtotal"`
	ExtraCharges       float64            `json:"extra_charges"`
	GrandTotal         float64            `json:"grand_total"`
	ClaimedTotal       float64            `json:"claimed_total"`
	ClaimedBaseTotal   float64            `json:"claimed_base_total"`
	UnclaimedTotal     float64            `json:"unclaimed_total"`
	ClaimProgressPct   float64            `json:"claim_progress_pct"`
	UnclaimedItemTotal float64            `json:"unclaimed_item_total"`
	TaxBreakdown       []TaxLine          `json:"tax_breakdown"`
	ReceiptTotals      *ReceiptTotals     `json:"receipt_totals,omitempty"`
	Users              []ParticipantShare `json:"users"`
}

// Compact drops per-user item lines and the raw receipt totals.
func (s SettlementSummary) Compact() SettlementSummary {
	out := s
	out.ReceiptTotals = nil
	out.Users = make([]ParticipantShare, len(s.Users))
	for i, u := range s.Users {
		u.Items = nil
		out.Users[i] = u
	}
	return out
}

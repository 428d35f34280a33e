package tickets

import (
	"fmt"
	"time"

	"festival/internal/editions"
)

type TicketTypeResponse struct {
	ID                string     `json:"id"`
	EditionID         string     `json:"edition_id"`
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Day               string     `json:"day,omitempty"`
	Price             float64    `json:"price"`
	PriceNet          float64    `json:"price_net"`
	PriceVAT          float64    `json:"price_vat"`
	Currency          string     `json:"currency"`
	VATRate           float64    `json:"vat_rate"`
	Phase             Phase      `json:"phase"`
	QuotaTotal        int        `json:"quota_total"`
	QuotaReserved     int        `json:"quota_reserved"`
	QuotaRemaining    int        `json:"quota_remaining"`
	QuotaByChannel    ChannelMap `json:"quota_by_channel"`
	ReservedByChannel ChannelMap `json:"reserved_by_channel"`
	SaleStart         *time.Time `json:"sale_start,omitempty"`
	SaleEnd           *time.Time `json:"sale_end,omitempty"`
	IsActive          bool       `json:"is_active"`
	IsOnSale          bool       `json:"is_on_sale"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ReservationOutcome describes a committed or simulated reservation. For a
// dry run QuotaRemaining is unchanged and RemainingIfOK holds the projection.
type ReservationOutcome struct {
	OK                bool       `json:"ok"`
	ID                string     `json:"id"`
	DryRun            bool       `json:"dry_run"`
	Quantity          int        `json:"quantity"`
	Channel           string     `json:"channel,omitempty"`
	Reserved          int        `json:"reserved"`
	QuotaRemaining    int        `json:"quota_remaining"`
	RemainingIfOK     *int       `json:"remaining_if_ok,omitempty"`
	ReservedByChannel ChannelMap `json:"reserved_by_channel"`
}

type PhaseStats struct {
	Count  int `json:"count"`
	OnSale int `json:"on_sale"`
}

type StatsSummary struct {
	Edition        string               `json:"edition,omitempty"`
	TotalTypes     int                  `json:"total_types"`
	OnSale         int                  `json:"on_sale"`
	QuotaTotal     int                  `json:"quota_total"`
	QuotaReserved  int                  `json:"quota_reserved"`
	QuotaRemaining int                  `json:"quota_remaining"`
	ByPhase        map[Phase]PhaseStats `json:"by_phase"`
	// RevenuePotential is price times remaining quota, VAT included
	RevenuePotential string `json:"total_revenue_potential_ttc"`
}

type AdvancePhasesResult struct {
	ReferenceDate string            `json:"reference_date"`
	Rules         PhaseRules        `json:"rules"`
	Checked       int               `json:"checked"`
	Changed       int               `json:"changed"`
	Transitions   []PhaseTransition `json:"transitions"`
}

// SaleEventPayload is attached to sale_opened and sale_closed events
type SaleEventPayload struct {
	ID        string     `json:"id"`
	Edition   string     `json:"edition"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Phase     Phase      `json:"phase"`
	SaleStart *time.Time `json:"sale_start"`
	SaleEnd   *time.Time `json:"sale_end"`
}

func (t *TicketType) ToResponse(now time.Time) TicketTypeResponse {
	resp := TicketTypeResponse{
		ID:                t.ID.String(),
		EditionID:         t.EditionID.String(),
		Code:              t.Code,
		Name:              t.Name,
		Description:       t.Description,
		Price:             t.Price,
		PriceNet:          t.PriceNet(),
		PriceVAT:          t.PriceVATAmount(),
		Currency:          t.Currency,
		VATRate:           t.VATRate,
		Phase:             t.Phase,
		QuotaTotal:        t.QuotaTotal,
		QuotaReserved:     t.QuotaReserved,
		QuotaRemaining:    t.QuotaRemaining(),
		QuotaByChannel:    t.ChannelQuotas(),
		ReservedByChannel: t.ChannelReserved(),
		SaleStart:         t.SaleStart,
		SaleEnd:           t.SaleEnd,
		IsActive:          t.IsActive,
		IsOnSale:          t.IsOnSale(now),
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if t.Day != nil {
		resp.Day = t.Day.Format(editions.DateLayout)
	}
	return resp
}

func (t *TicketType) salePayload() SaleEventPayload {
	return SaleEventPayload{
		ID:        t.ID.String(),
		Edition:   t.EditionID.String(),
		Code:      t.Code,
		Name:      t.Name,
		Phase:     t.Phase,
		SaleStart: t.SaleStart,
		SaleEnd:   t.SaleEnd,
	}
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

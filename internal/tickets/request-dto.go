package tickets

import (
	"fmt"
	"time"

	"festival/internal/editions"
	"festival/internal/shared/apperror"

	"github.com/google/uuid"
)

type ReserveRequest struct {
	// Quantity defaults to 1 when omitted
	Quantity *int   `json:"quantity"`
	Channel  string `json:"channel" binding:"omitempty,max=32"`
	DryRun   bool   `json:"dry_run"`
}

type CreateTicketTypeRequest struct {
	EditionID      string     `json:"edition_id" binding:"required,uuid"`
	Code           string     `json:"code" binding:"required,max=32"`
	Name           string     `json:"name" binding:"required,max=120"`
	Description    string     `json:"description"`
	Day            *string    `json:"day" binding:"omitempty,datetime=2006-01-02"`
	Price          float64    `json:"price" binding:"gte=0"`
	Currency       string     `json:"currency" binding:"omitempty,len=3"`
	VATRate        *float64   `json:"vat_rate" binding:"omitempty,gte=0,lt=100"`
	Phase          string     `json:"phase" binding:"omitempty,oneof=early regular late"`
	QuotaTotal     int        `json:"quota_total" binding:"gte=0"`
	QuotaByChannel ChannelMap `json:"quota_by_channel"`
	SaleStart      *time.Time `json:"sale_start"`
	SaleEnd        *time.Time `json:"sale_end"`
	IsActive       *bool      `json:"is_active"`
}

// UpdateTicketTypeRequest never touches reservation counters; those only
// move through Reserve.
type UpdateTicketTypeRequest struct {
	Code           *string     `json:"code" binding:"omitempty,max=32"`
	Name           *string     `json:"name" binding:"omitempty,max=120"`
	Description    *string     `json:"description"`
	Day            *string     `json:"day" binding:"omitempty,datetime=2006-01-02"`
	ClearDay       bool        `json:"clear_day"`
	Price          *float64    `json:"price" binding:"omitempty,gte=0"`
	Currency       *string     `json:"currency" binding:"omitempty,len=3"`
	VATRate        *float64    `json:"vat_rate" binding:"omitempty,gte=0,lt=100"`
	// Phase may only repeat the current phase; moves go through ExplicitAdvance
	Phase          *string     `json:"phase" binding:"omitempty,oneof=early regular late"`
	QuotaTotal     *int        `json:"quota_total" binding:"omitempty,gte=0"`
	QuotaByChannel *ChannelMap `json:"quota_by_channel"`
	SaleStart      *time.Time  `json:"sale_start"`
	SaleEnd        *time.Time  `json:"sale_end"`
	IsActive       *bool       `json:"is_active"`
}

// AdvancePhasesRequest runs the due-rule over every ticket type, optionally
// scoped to one edition. Empty fields fall back to configured defaults.
type AdvancePhasesRequest struct {
	EditionID      string   `json:"edition" binding:"omitempty,uuid"`
	ReferenceDate  string   `json:"reference_date" binding:"omitempty,datetime=2006-01-02"`
	DaysSinceStart *int     `json:"days_since_start" binding:"omitempty,gte=0"`
	RemainingPct   *float64 `json:"remaining_pct" binding:"omitempty,gte=0,lte=1"`
}

type ListQuery struct {
	EditionID string `form:"edition" binding:"omitempty,uuid"`
}

func (q ListQuery) editionID() (*uuid.UUID, error) {
	return optionalID("edition", q.EditionID)
}

func optionalID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation(field, "must be a valid UUID")
	}
	return &id, nil
}

func parseOptionalDay(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	day, err := editions.ParseDate(*raw)
	if err != nil {
		return nil, apperror.Validation("day", "must be a date formatted YYYY-MM-DD")
	}
	return &day, nil
}

func (r CreateTicketTypeRequest) toTicketType() (*TicketType, error) {
	editionID, err := uuid.Parse(r.EditionID)
	if err != nil {
		return nil, apperror.Validation("edition_id", "must be a valid UUID")
	}
	day, err := parseOptionalDay(r.Day)
	if err != nil {
		return nil, err
	}

	tt := &TicketType{
		EditionID:     editionID,
		Code:          r.Code,
		Name:          r.Name,
		Description:   r.Description,
		Day:           day,
		Price:         r.Price,
		Currency:      DefaultCurrency,
		VATRate:       20,
		Phase:         PhaseRegular,
		QuotaTotal:    r.QuotaTotal,
		QuotaReserved: 0,
		SaleStart:     r.SaleStart,
		SaleEnd:       r.SaleEnd,
		IsActive:      true,
	}
	if r.Currency != "" {
		tt.Currency = r.Currency
	}
	if r.VATRate != nil {
		tt.VATRate = *r.VATRate
	}
	if r.Phase != "" {
		tt.Phase = Phase(r.Phase)
	}
	if r.IsActive != nil {
		tt.IsActive = *r.IsActive
	}
	tt.SetChannelQuotas(r.QuotaByChannel)
	tt.SetChannelReserved(ChannelMap{})
	return tt, nil
}

func (r UpdateTicketTypeRequest) applyTo(tt *TicketType) error {
	if r.Code != nil {
		tt.Code = *r.Code
	}
	if r.Name != nil {
		tt.Name = *r.Name
	}
	if r.Description != nil {
		tt.Description = *r.Description
	}
	if r.ClearDay {
		tt.Day = nil
	} else if r.Day != nil {
		day, err := parseOptionalDay(r.Day)
		if err != nil {
			return err
		}
		tt.Day = day
	}
	if r.Price != nil {
		tt.Price = *r.Price
	}
	if r.Currency != nil {
		tt.Currency = *r.Currency
	}
	if r.VATRate != nil {
		tt.VATRate = *r.VATRate
	}
	if r.Phase != nil {
		requested := Phase(*r.Phase)
		switch {
		case requested.Before(tt.Phase):
			return apperror.Validation("phase", fmt.Sprintf("cannot move back from %s to %s", tt.Phase, requested))
		case requested != tt.Phase:
			return apperror.Validation("phase", "use the phase advance endpoint to move forward")
		}
	}
	if r.QuotaTotal != nil {
		tt.QuotaTotal = *r.QuotaTotal
	}
	if r.QuotaByChannel != nil {
		tt.SetChannelQuotas(*r.QuotaByChannel)
	}
	if r.SaleStart != nil {
		tt.SaleStart = r.SaleStart
	}
	if r.SaleEnd != nil {
		tt.SaleEnd = r.SaleEnd
	}
	if r.IsActive != nil {
		tt.IsActive = *r.IsActive
	}
	return nil
}

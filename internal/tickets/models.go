package tickets

import (
	"fmt"
	"math"
	"sort"
	"time"

	"festival/internal/editions"
	"festival/internal/shared/apperror"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultCurrency = "EUR"

// ChannelMap maps a sales channel to a ticket count
type ChannelMap map[string]int

func (m ChannelMap) Sum() int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

// Channels returns the channel names in a stable order
func (m ChannelMap) Channels() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m ChannelMap) Clone() ChannelMap {
	out := make(ChannelMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type TicketType struct {
	ID                uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	EditionID         uuid.UUID                      `gorm:"type:uuid;not null;uniqueIndex:idx_ticket_types_edition_code,priority:1" json:"edition_id"`
	Code              string                         `gorm:"type:varchar(32);not null;uniqueIndex:idx_ticket_types_edition_code,priority:2" json:"code"`
	Name              string                         `gorm:"type:varchar(120);not null" json:"name"`
	Description       string                         `gorm:"type:text" json:"description"`
	Day               *time.Time                     `gorm:"type:date" json:"day,omitempty"`
	Price             float64                        `gorm:"type:decimal(8,2);not null" json:"price"`
	Currency          string                         `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	VATRate           float64                        `gorm:"type:decimal(4,2);not null" json:"vat_rate"`
	Phase             Phase                          `gorm:"type:varchar(10);not null;default:'regular';index" json:"phase"`
	QuotaTotal        int                            `gorm:"not null;default:0" json:"quota_total"`
	QuotaReserved     int                            `gorm:"not null;default:0" json:"quota_reserved"`
	QuotaByChannel    datatypes.JSONType[ChannelMap] `gorm:"type:jsonb" json:"quota_by_channel"`
	ReservedByChannel datatypes.JSONType[ChannelMap] `gorm:"type:jsonb" json:"reserved_by_channel"`
	SaleStart         *time.Time                     `json:"sale_start,omitempty"`
	SaleEnd           *time.Time                     `json:"sale_end,omitempty"`
	IsActive          bool                           `gorm:"not null" json:"is_active"`
	CreatedAt         time.Time                      `json:"created_at"`
	UpdatedAt         time.Time                      `json:"updated_at"`
}

func (t *TicketType) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (TicketType) TableName() string {
	return "ticket_types"
}

// ChannelQuotas never returns nil
func (t *TicketType) ChannelQuotas() ChannelMap {
	if m := t.QuotaByChannel.Data(); m != nil {
		return m
	}
	return ChannelMap{}
}

func (t *TicketType) ChannelReserved() ChannelMap {
	if m := t.ReservedByChannel.Data(); m != nil {
		return m
	}
	return ChannelMap{}
}

func (t *TicketType) SetChannelQuotas(m ChannelMap) {
	t.QuotaByChannel = datatypes.NewJSONType(m.Clone())
}

func (t *TicketType) SetChannelReserved(m ChannelMap) {
	t.ReservedByChannel = datatypes.NewJSONType(m.Clone())
}

// ChannelQuota is the cap for one channel. A channel without an explicit
// entry may use the whole quota_total.
func (t *TicketType) ChannelQuota(channel string) int {
	if q, ok := t.ChannelQuotas()[channel]; ok {
		return q
	}
	return t.QuotaTotal
}

func (t *TicketType) QuotaRemaining() int {
	return max(0, t.QuotaTotal-t.QuotaReserved)
}

// IsOnSale reports whether the ticket type can be reserved at now. Both
// window bounds are inclusive.
func (t *TicketType) IsOnSale(now time.Time) bool {
	return t.saleWindowReason(now) == "" && t.QuotaRemaining() > 0
}

// saleWindowReason explains why the window or active flag blocks a sale.
// A sold-out ticket type is reported separately as insufficient quota.
func (t *TicketType) saleWindowReason(now time.Time) string {
	switch {
	case !t.IsActive:
		return "inactive"
	case t.SaleStart != nil && now.Before(*t.SaleStart):
		return "sale not started"
	case t.SaleEnd != nil && now.After(*t.SaleEnd):
		return "sale ended"
	default:
		return ""
	}
}

// PriceVATAmount extracts the VAT included in the gross price, rounded to cents.
func (t *TicketType) PriceVATAmount() float64 {
	rate := t.VATRate / 100
	return roundCents(t.Price * rate / (1 + rate))
}

func (t *TicketType) PriceNet() float64 {
	return roundCents(t.Price - t.PriceVATAmount())
}

func roundCents(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// Validate checks every structural invariant. edition may be nil when the
// day has already been checked.
func (t *TicketType) Validate(edition *editions.Edition) error {
	if t.Code == "" {
		return apperror.Validation("code", "is required")
	}
	if t.Price < 0 {
		return apperror.Validation("price", "must not be negative")
	}
	if t.VATRate < 0 || t.VATRate >= 100 {
		return apperror.Validation("vat_rate", "must be a percentage between 0 and 100")
	}
	if !t.Phase.IsValid() {
		return apperror.Validation("phase", fmt.Sprintf("unknown phase %q", t.Phase))
	}
	if t.QuotaTotal < 0 || t.QuotaReserved < 0 {
		return apperror.Validation("quota_total", "quotas must not be negative")
	}
	if t.QuotaReserved > t.QuotaTotal {
		return apperror.Validation("quota_reserved", "cannot exceed quota_total")
	}
	if t.SaleStart != nil && t.SaleEnd != nil && !t.SaleEnd.After(*t.SaleStart) {
		return apperror.Validation("sale_end", "must be after sale_start")
	}
	if t.Day != nil && edition != nil && !edition.Contains(*t.Day) {
		return apperror.Validation("day", "must be within the edition dates")
	}

	quotas := t.ChannelQuotas()
	for _, ch := range quotas.Channels() {
		if quotas[ch] < 0 {
			return apperror.Validation("quota_by_channel", fmt.Sprintf("quota for channel %q must not be negative", ch))
		}
	}
	if quotas.Sum() > t.QuotaTotal {
		return apperror.Validation("quota_by_channel", "sum of channel quotas exceeds quota_total")
	}

	reserved := t.ChannelReserved()
	if reserved.Sum() > t.QuotaReserved {
		return apperror.Validation("reserved_by_channel", "sum of channel reservations exceeds quota_reserved")
	}
	for _, ch := range reserved.Channels() {
		if reserved[ch] > t.ChannelQuota(ch) {
			return apperror.Validation("reserved_by_channel",
				fmt.Sprintf("reservations for channel %q exceed its quota", ch))
		}
	}
	return nil
}

package tickets

import (
	"fmt"

	"festival/internal/shared/apperror"
)

// InsufficientQuotaError rejects a reservation larger than what is left
type InsufficientQuotaError struct {
	Requested int `json:"requested"`
	Remaining int `json:"remaining"`
}

func (e *InsufficientQuotaError) Error() string {
	return fmt.Sprintf("insufficient quota: requested %d, %d remaining", e.Requested, e.Remaining)
}

func (e *InsufficientQuotaError) Kind() apperror.Kind { return apperror.KindInsufficientQuota }

func (e *InsufficientQuotaError) Details() interface{} { return e }

// ChannelQuotaExceededError rejects a reservation that would push one
// channel past its sub-quota
type ChannelQuotaExceededError struct {
	Channel   string `json:"channel"`
	Requested int    `json:"requested"`
	Reserved  int    `json:"reserved"`
	Quota     int    `json:"quota"`
	Available int    `json:"available"`
}

func (e *ChannelQuotaExceededError) Error() string {
	return fmt.Sprintf("channel %q quota exceeded: requested %d, %d of %d already reserved",
		e.Channel, e.Requested, e.Reserved, e.Quota)
}

func (e *ChannelQuotaExceededError) Kind() apperror.Kind { return apperror.KindChannelQuotaExceeded }

func (e *ChannelQuotaExceededError) Details() interface{} { return e }

type NotOnSaleError struct {
	Reason string `json:"reason"`
}

func (e *NotOnSaleError) Error() string {
	return "ticket type not on sale: " + e.Reason
}

func (e *NotOnSaleError) Kind() apperror.Kind { return apperror.KindNotOnSale }

func (e *NotOnSaleError) Details() interface{} { return e }

// RateLimitedError is returned before any inventory is read
type RateLimitedError struct {
	Limit   int   `json:"limit"`
	ResetAt int64 `json:"reset_at"`
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many reservation attempts, limit is %d per window", e.Limit)
}

func (e *RateLimitedError) Kind() apperror.Kind { return apperror.KindRateLimited }

func (e *RateLimitedError) Details() interface{} { return e }

package pass

import (
	"context"
	"fmt"
	"math"
	"time"

	"passgate/internal/settings"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

// requestQuery is the slice of the store the validator needs.
type requestQuery interface {
	CountPending(ctx context.Context, residentID id.UserID) (int, error)
	HasOverlapping(ctx context.Context, residentID id.UserID, from, to time.Time) (bool, error)
}

// Validator applies the request-time business rules before a pass is
// created. Each violated rule fails with its own user-facing message.
type Validator struct {
	query   requestQuery
	timeNow func() time.Time
}

func NewValidator(query requestQuery) *Validator {
	return &Validator{query: query, timeNow: time.Now}
}

// Validate checks the requested window against policy and the resident's
// existing passes. Rules run in order; the first violation wins.
func (v *Validator) Validate(ctx context.Context, residentID id.UserID, from, to time.Time, policy settings.Settings) error {
	if !from.Before(to) {
		return dErrors.New(dErrors.CodeValidation, "the start date must be before the end date")
	}

	loc, err := time.LoadLocation(policy.Timezone)
	if err != nil {
		return dErrors.New(dErrors.CodeInternal, "system timezone is invalid")
	}
	now := v.timeNow().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	localFrom := from.In(loc)
	fromDay := time.Date(localFrom.Year(), localFrom.Month(), localFrom.Day(), 0, 0, 0, 0, loc)
	if fromDay.Before(today) {
		return dErrors.New(dErrors.CodeValidation, "the start date cannot be in the past")
	}

	days := int(math.Ceil(to.Sub(from).Hours() / 24))
	if days > policy.MaxGatePassDays {
		return dErrors.Newf(dErrors.CodeValidation,
			"the pass duration of %d days exceeds the maximum of %d days", days, policy.MaxGatePassDays)
	}

	pending, err := v.query.CountPending(ctx, residentID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pending passes")
	}
	if pending >= policy.MaxPendingPasses {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("you already have %d pending pass request(s), the maximum is %d", pending, policy.MaxPendingPasses))
	}

	overlapping, err := v.query.HasOverlapping(ctx, residentID, from, to)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for overlapping passes")
	}
	if overlapping {
		return dErrors.New(dErrors.CodeValidation,
			"you already have a pending or approved pass overlapping these dates")
	}
	return nil
}

// Package calendar loads the promotional campaign calendar, a YAML file that
// assigns a reward to each campaign day, and seeds it into the store.
package calendar

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Reward is a reward definition as written in the calendar file.
type Reward struct {
	ID             int64  `yaml:"id"`
	Name           string `yaml:"name"`
	PointsRequired int64  `yaml:"points_required"`
	DiscountType   string `yaml:"discount_type"`
	DiscountValue  int64  `yaml:"discount_value"`
	MinOrderCents  int64  `yaml:"min_order_cents"`
	ValidityDays   int32  `yaml:"validity_days"`
	Code           string `yaml:"code,omitempty"`
	Inactive       bool   `yaml:"inactive,omitempty"`
}

// Calendar maps campaign days to reward ids for one year.
//
//	year: 2026
//	rewards:
//	  - {id: 30, name: Free cookie, discount_type: fixed, discount_value: 250, code: XMAS3}
//	days:
//	  3: 30
type Calendar struct {
	Year    int32           `yaml:"year"`
	Rewards []Reward        `yaml:"rewards"`
	Days    map[int32]int64 `yaml:"days"`
}

// Load reads and validates the calendar at path against a campaign of
// campaignDays days.
func Load(path string, campaignDays int) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading calendar %s: %w", path, err)
	}
	return Parse(data, campaignDays)
}

// Parse decodes and validates a calendar document.
func Parse(data []byte, campaignDays int) (*Calendar, error) {
	var cal Calendar
	if err := yaml.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}
	if err := cal.Validate(campaignDays); err != nil {
		return nil, err
	}
	return &cal, nil
}

// Validate checks that every day is inside the campaign and points at a
// reward defined in the file.
func (c *Calendar) Validate(campaignDays int) error {
	if c.Year <= 0 {
		return fmt.Errorf("calendar: year is required")
	}
	known := make(map[int64]struct{}, len(c.Rewards))
	for _, r := range c.Rewards {
		if r.ID <= 0 {
			return fmt.Errorf("calendar: reward %q needs a positive id", r.Name)
		}
		if _, dup := known[r.ID]; dup {
			return fmt.Errorf("calendar: reward %d defined twice", r.ID)
		}
		if !domain.IsValidDiscountType(r.DiscountType) {
			return fmt.Errorf("calendar: reward %d has unknown discount_type %q", r.ID, r.DiscountType)
		}
		if r.PointsRequired < 0 || r.DiscountValue < 0 || r.MinOrderCents < 0 {
			return fmt.Errorf("calendar: reward %d has a negative amount", r.ID)
		}
		known[r.ID] = struct{}{}
	}
	for day, rewardID := range c.Days {
		if day < 1 || int(day) > campaignDays {
			return fmt.Errorf("calendar: day %d is outside the %d-day campaign", day, campaignDays)
		}
		if _, ok := known[rewardID]; !ok {
			return fmt.Errorf("calendar: day %d references undefined reward %d", day, rewardID)
		}
	}
	return nil
}

// TxRunner is satisfied by repository.Store.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(q repository.Querier) error) error
}

// Seed upserts the calendar's rewards and day slots in one transaction and
// returns the number of slots written.
func Seed(ctx context.Context, store TxRunner, cal *Calendar) (int, error) {
	days := make([]int32, 0, len(cal.Days))
	for day := range cal.Days {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	err := store.RunInTx(ctx, func(q repository.Querier) error {
		for _, r := range cal.Rewards {
			var code *string
			if r.Code != "" {
				c := r.Code
				code = &c
			}
			if _, err := q.UpsertReward(ctx, repository.UpsertRewardParams{
				ID:             r.ID,
				Name:           r.Name,
				PointsRequired: r.PointsRequired,
				DiscountType:   r.DiscountType,
				DiscountValue:  r.DiscountValue,
				MinOrderCents:  r.MinOrderCents,
				ValidityDays:   r.ValidityDays,
				Code:           code,
				Active:         !r.Inactive,
			}); err != nil {
				return fmt.Errorf("upsert reward %d: %w", r.ID, err)
			}
		}
		for _, day := range days {
			if _, err := q.UpsertPromoSlot(ctx, repository.UpsertPromoSlotParams{
				Year:     cal.Year,
				Day:      day,
				RewardID: cal.Days[day],
			}); err != nil {
				return fmt.Errorf("upsert promo slot %d/%d: %w", cal.Year, day, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	zap.L().Info("campaign calendar seeded",
		zap.Int32("year", cal.Year),
		zap.Int("rewards", len(cal.Rewards)),
		zap.Int("days", len(days)))
	return len(days), nil
}

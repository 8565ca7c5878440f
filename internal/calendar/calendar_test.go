package calendar

import (
	"context"
	"errors"
	"testing"

	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/ayo6706/restaurant-loyalty/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
year: 2026
rewards:
  - id: 30
    name: Free cookie
    discount_type: fixed
    discount_value: 250
    code: XMAS3
  - id: 31
    name: Free delivery
    discount_type: delivery_fee_waiver
    min_order_cents: 1500
days:
  3: 30
  4: 31
  5: 30
`

func TestParseCalendar(t *testing.T) {
	cal, err := Parse([]byte(sample), 25)
	require.NoError(t, err)

	assert.Equal(t, int32(2026), cal.Year)
	require.Len(t, cal.Rewards, 2)
	assert.Equal(t, "XMAS3", cal.Rewards[0].Code)
	assert.Equal(t, int64(31), cal.Days[4])
}

func TestParseCalendarRejects(t *testing.T) {
	cases := map[string]string{
		"missing year":     "rewards: []\n",
		"day out of range": "year: 2026\nrewards:\n  - {id: 1, name: a, discount_type: fixed}\ndays:\n  26: 1\n",
		"unknown reward":   "year: 2026\nrewards:\n  - {id: 1, name: a, discount_type: fixed}\ndays:\n  2: 9\n",
		"bad discount":     "year: 2026\nrewards:\n  - {id: 1, name: a, discount_type: bogo}\n",
		"duplicate reward": "year: 2026\nrewards:\n  - {id: 1, name: a, discount_type: fixed}\n  - {id: 1, name: b, discount_type: fixed}\n",
		"not yaml":         "year: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), 25)
			require.Error(t, err)
		})
	}
}

func TestSeedWritesRewardsAndSlots(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	cal, err := Parse([]byte(sample), 25)
	require.NoError(t, err)

	n, err := Seed(ctx, store, cal)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	slot, err := store.Queries().GetPromoSlot(ctx, repository.GetPromoSlotParams{Year: 2026, Day: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(31), slot.RewardID)

	reward, err := store.Queries().GetReward(ctx, 30)
	require.NoError(t, err)
	assert.True(t, reward.Active)
	require.NotNil(t, reward.Code)
	assert.Equal(t, "XMAS3", *reward.Code)

	// Re-seeding is an upsert.
	n, err = Seed(ctx, store, cal)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSeedRollsBackOnFailure(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	cal, err := Parse([]byte(sample), 25)
	require.NoError(t, err)

	store.FailNext("UpsertPromoSlot", errors.New("disk full"))
	_, err = Seed(ctx, store, cal)
	require.Error(t, err)

	_, err = store.Queries().GetReward(ctx, 30)
	require.Error(t, err)
}

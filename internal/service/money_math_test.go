package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"ludo-arena-backend/internal/model"
)

func TestSettlementAmountsExample(t *testing.T) {
	// Two players stake 500 each at a 5% commission: the winner takes
	// 950 and the platform keeps 50.
	payout, commission := SettlementAmounts(500, 500)
	assert.Equal(t, int64(950), payout)
	assert.Equal(t, int64(50), commission)
}

// For any stake and rate, the payout plus commission must equal the
// full pool and neither side can be negative.
func TestSettlementAmountsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		stake := rapid.Int64Range(1, 10_000_000).Draw(t, "stake")
		bps := int32(rapid.IntRange(0, 10000).Draw(t, "bps"))

		payout, commission := SettlementAmounts(stake, bps)

		if payout+commission != stake*2 {
			t.Fatalf("pool leak: payout=%d commission=%d stake=%d", payout, commission, stake)
		}
		if payout < 0 || commission < 0 {
			t.Fatalf("negative split: payout=%d commission=%d", payout, commission)
		}
		if bps < 10000 && payout == 0 {
			t.Fatalf("winner got nothing at %d bps", bps)
		}
	})
}

func TestPrizeAmountsExample(t *testing.T) {
	// Pool 10000, 10% commission, 60/40 split of the remainder.
	prizes, commission := PrizeAmounts(10000, 1000, []int32{6000, 4000})
	assert.Equal(t, []int64{5400, 3600}, prizes)
	assert.Equal(t, int64(1000), commission)
}

// For any pool, rate and split, the prizes plus commission must
// reconcile to the full pool exactly.
func TestPrizeAmountsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := rapid.Int64Range(0, 100_000_000).Draw(t, "pool")
		bps := int32(rapid.IntRange(0, 10000).Draw(t, "bps"))

		numRanks := rapid.IntRange(1, 8).Draw(t, "numRanks")
		split := make([]int32, numRanks)
		remaining := 10000
		for i := range split {
			share := rapid.IntRange(1, remaining-(numRanks-1-i)).Draw(t, "share")
			split[i] = int32(share)
			remaining -= share
			if remaining <= 0 {
				split = split[:i+1]
				break
			}
		}

		prizes, commission := PrizeAmounts(pool, bps, split)

		var paid int64
		for _, p := range prizes {
			if p < 0 {
				t.Fatalf("negative prize %d", p)
			}
			paid += p
		}
		if paid+commission != pool {
			t.Fatalf("pool leak: paid=%d commission=%d pool=%d", paid, commission, pool)
		}
		if commission < 0 {
			t.Fatalf("negative commission %d", commission)
		}
	})
}

func TestValidatePrizeSplit(t *testing.T) {
	assert.NoError(t, validatePrizeSplit([]int32{5000, 3000, 2000}))
	assert.NoError(t, validatePrizeSplit([]int32{10000}))
	assert.ErrorIs(t, validatePrizeSplit(nil), ErrBadPrizeSplit)
	assert.ErrorIs(t, validatePrizeSplit([]int32{0}), ErrBadPrizeSplit)
	assert.ErrorIs(t, validatePrizeSplit([]int32{-100, 5000}), ErrBadPrizeSplit)
	assert.ErrorIs(t, validatePrizeSplit([]int32{9000, 2000}), ErrBadPrizeSplit)
}

func TestCoversEntrants(t *testing.T) {
	players := makePlayers(10, 20, 30)

	assert.True(t, coversEntrants(players, []int64{20, 10, 30}))
	assert.False(t, coversEntrants(players, []int64{10, 20}))
	assert.False(t, coversEntrants(players, []int64{10, 20, 20}))
	assert.False(t, coversEntrants(players, []int64{10, 20, 99}))
}

func makePlayers(ids ...int64) []*model.TournamentPlayer {
	players := make([]*model.TournamentPlayer, len(ids))
	for i, id := range ids {
		players[i] = &model.TournamentPlayer{UserID: id}
	}
	return players
}

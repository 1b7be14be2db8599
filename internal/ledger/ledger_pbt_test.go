package ledger

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/vault-holdings/internal/types"
)

// genUserEvents builds arbitrary event sets with small positive amounts
// and timestamps, enough to shake out ordering and clamping edge cases.
func genUserEvents() gopter.Gen {
	genDeposit := gopter.CombineGens(
		gen.Int64Range(0, 1000),
		gen.UInt64Range(0, 100),
		gen.Int64Range(0, 1_000_000),
	).Map(func(vals []interface{}) types.DepositEvent {
		return types.DepositEvent{
			VaultAddress:   vaultA,
			ChainID:        types.ChainEthereum,
			BlockTimestamp: vals[0].(int64),
			BlockNumber:    vals[1].(uint64),
			Shares:         strconv.FormatInt(vals[2].(int64), 10),
		}
	})
	genWithdraw := gopter.CombineGens(
		gen.Int64Range(0, 1000),
		gen.UInt64Range(0, 100),
		gen.Int64Range(0, 1_000_000),
	).Map(func(vals []interface{}) types.WithdrawEvent {
		return types.WithdrawEvent{
			VaultAddress:   vaultA,
			ChainID:        types.ChainEthereum,
			BlockTimestamp: vals[0].(int64),
			BlockNumber:    vals[1].(uint64),
			Shares:         strconv.FormatInt(vals[2].(int64), 10),
		}
	})

	return gopter.CombineGens(
		gen.SliceOf(genDeposit),
		gen.SliceOf(genWithdraw),
	).Map(func(vals []interface{}) *types.UserEvents {
		return &types.UserEvents{
			Deposits:    vals[0].([]types.DepositEvent),
			Withdrawals: vals[1].([]types.WithdrawEvent),
		}
	})
}

func TestTimelineProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("timeline is always sorted by (timestamp, block)", prop.ForAll(
		func(events *types.UserEvents) bool {
			timeline := BuildTimeline(events)
			for i := 1; i < len(timeline); i++ {
				if timeline[i].BlockTimestamp < timeline[i-1].BlockTimestamp {
					return false
				}
				if timeline[i].BlockTimestamp == timeline[i-1].BlockTimestamp &&
					timeline[i].BlockNumber < timeline[i-1].BlockNumber {
					return false
				}
			}
			return true
		},
		genUserEvents(),
	))

	properties.Property("timeline length equals total parseable events", prop.ForAll(
		func(events *types.UserEvents) bool {
			timeline := BuildTimeline(events)
			return len(timeline) == len(events.Deposits)+len(events.Withdrawals)
		},
		genUserEvents(),
	))

	properties.Property("balance is never negative at any timestamp", prop.ForAll(
		func(events *types.UserEvents, timestamp int64) bool {
			timeline := BuildTimeline(events)
			return BalanceAt(timeline, vaultA, types.ChainEthereum, timestamp).Sign() >= 0
		},
		genUserEvents(),
		gen.Int64Range(-100, 1100),
	))

	properties.Property("balance is monotone in deposits only", prop.ForAll(
		func(events *types.UserEvents, timestamp int64) bool {
			depositsOnly := &types.UserEvents{Deposits: events.Deposits}
			timeline := BuildTimeline(depositsOnly)
			balance := BalanceAt(timeline, vaultA, types.ChainEthereum, timestamp)
			later := BalanceAt(timeline, vaultA, types.ChainEthereum, timestamp+100)
			return later.Cmp(balance) >= 0
		},
		genUserEvents(),
		gen.Int64Range(0, 1000),
	))

	properties.TestingRun(t)
}

func TestZeroAddressExclusionProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Mint and burn transfers never reach the timeline regardless of how
	// they are mixed with peer transfers.
	properties.Property("zero-address transfers are always excluded", prop.ForAll(
		func(values []int64, zeroFlags []bool) bool {
			events := &types.UserEvents{}
			peers := 0
			for i, v := range values {
				if v < 0 {
					v = -v
				}
				sender := userB
				if i < len(zeroFlags) && zeroFlags[i] {
					sender = ZeroAddress
				} else {
					peers++
				}
				events.TransfersIn = append(events.TransfersIn, types.TransferEvent{
					VaultAddress:   vaultA,
					ChainID:        types.ChainEthereum,
					BlockTimestamp: int64(i),
					Sender:         sender,
					Value:          strconv.FormatInt(v, 10),
				})
			}
			return len(BuildTimeline(events)) == peers
		},
		gen.SliceOf(gen.Int64Range(0, 1000)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

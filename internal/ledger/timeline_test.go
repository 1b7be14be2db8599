package ledger

import (
	"math/big"
	"testing"

	"github.com/vault-holdings/internal/types"
)

const (
	vaultA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	vaultB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	userA  = "0x1111111111111111111111111111111111111111"
	userB  = "0x2222222222222222222222222222222222222222"
)

// TestBuildTimeline_Ordering tests that merged events come out ordered by
// (blockTimestamp, blockNumber) ascending
func TestBuildTimeline_Ordering(t *testing.T) {
	events := &types.UserEvents{
		Deposits: []types.DepositEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 30, BlockTimestamp: 300, Shares: "10"},
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 10, BlockTimestamp: 100, Shares: "20"},
		},
		Withdrawals: []types.WithdrawEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 20, BlockTimestamp: 200, Shares: "5"},
		},
		TransfersIn: []types.TransferEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 15, BlockTimestamp: 100, Sender: userB, Value: "3"},
		},
	}

	timeline := BuildTimeline(events)

	if len(timeline) != 4 {
		t.Fatalf("expected 4 events, got %d", len(timeline))
	}
	for i := 1; i < len(timeline); i++ {
		prev, cur := timeline[i-1], timeline[i]
		if cur.BlockTimestamp < prev.BlockTimestamp {
			t.Errorf("at index %d: timestamp %d before %d", i, cur.BlockTimestamp, prev.BlockTimestamp)
		}
		if cur.BlockTimestamp == prev.BlockTimestamp && cur.BlockNumber < prev.BlockNumber {
			t.Errorf("at index %d: block %d before %d within timestamp %d", i, cur.BlockNumber, prev.BlockNumber, cur.BlockTimestamp)
		}
	}
}

// TestBuildTimeline_ZeroAddressTransfers tests that mint and burn
// transfers are dropped while peer transfers are kept
func TestBuildTimeline_ZeroAddressTransfers(t *testing.T) {
	events := &types.UserEvents{
		TransfersIn: []types.TransferEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 1, BlockTimestamp: 10, Sender: ZeroAddress, Value: "100"},
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 2, BlockTimestamp: 20, Sender: userB, Value: "50"},
		},
		TransfersOut: []types.TransferEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 3, BlockTimestamp: 30, Receiver: ZeroAddress, Value: "100"},
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 4, BlockTimestamp: 40, Receiver: userB, Value: "25"},
		},
	}

	timeline := BuildTimeline(events)

	if len(timeline) != 2 {
		t.Fatalf("expected 2 events after dropping mint/burn, got %d", len(timeline))
	}
	if timeline[0].SharesDelta.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("expected transfer-in delta 50, got %s", timeline[0].SharesDelta)
	}
	if timeline[1].SharesDelta.Cmp(big.NewInt(-25)) != 0 {
		t.Errorf("expected transfer-out delta -25, got %s", timeline[1].SharesDelta)
	}
}

// TestBuildTimeline_SkipsUnparseableAmounts tests that events with
// malformed numeric fields are dropped instead of failing the build
func TestBuildTimeline_SkipsUnparseableAmounts(t *testing.T) {
	events := &types.UserEvents{
		Deposits: []types.DepositEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 1, BlockTimestamp: 10, Shares: "not-a-number"},
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 2, BlockTimestamp: 20, Shares: ""},
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 3, BlockTimestamp: 30, Shares: "-5"},
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 4, BlockTimestamp: 40, Shares: "7"},
		},
	}

	timeline := BuildTimeline(events)

	if len(timeline) != 1 {
		t.Fatalf("expected 1 valid event, got %d", len(timeline))
	}
	if timeline[0].SharesDelta.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("expected delta 7, got %s", timeline[0].SharesDelta)
	}
}

// TestBuildTimeline_Empty tests that nil and empty inputs produce an
// empty timeline
func TestBuildTimeline_Empty(t *testing.T) {
	if got := BuildTimeline(nil); len(got) != 0 {
		t.Errorf("expected empty timeline for nil input, got %d events", len(got))
	}
	if got := BuildTimeline(&types.UserEvents{}); len(got) != 0 {
		t.Errorf("expected empty timeline for empty input, got %d events", len(got))
	}
}

// TestUniqueVaults_FirstSeenOrder tests vault deduplication order
func TestUniqueVaults_FirstSeenOrder(t *testing.T) {
	timeline := []Event{
		{VaultAddress: vaultB, ChainID: types.ChainBase},
		{VaultAddress: vaultA, ChainID: types.ChainEthereum},
		{VaultAddress: vaultB, ChainID: types.ChainBase},
		{VaultAddress: vaultA, ChainID: types.ChainBase},
	}

	vaults := UniqueVaults(timeline)

	expected := []VaultKey{
		{VaultAddress: vaultB, ChainID: types.ChainBase},
		{VaultAddress: vaultA, ChainID: types.ChainEthereum},
		{VaultAddress: vaultA, ChainID: types.ChainBase},
	}
	if len(vaults) != len(expected) {
		t.Fatalf("expected %d vaults, got %d", len(expected), len(vaults))
	}
	for i, want := range expected {
		if vaults[i] != want {
			t.Errorf("at index %d: expected %+v, got %+v", i, want, vaults[i])
		}
	}
}

// TestBalanceAt_WorkedExample replays a deposit of 100 shares at t=10 and
// a withdrawal of 40 at t=20
func TestBalanceAt_WorkedExample(t *testing.T) {
	timeline := BuildTimeline(&types.UserEvents{
		Deposits: []types.DepositEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 1, BlockTimestamp: 10, Shares: "100"},
		},
		Withdrawals: []types.WithdrawEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 2, BlockTimestamp: 20, Shares: "40"},
		},
	})

	tests := []struct {
		name      string
		timestamp int64
		expected  int64
	}{
		{"before any event", 5, 0},
		{"after deposit", 15, 100},
		{"at withdrawal", 20, 60},
		{"after withdrawal", 25, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BalanceAt(timeline, vaultA, types.ChainEthereum, tt.timestamp)
			if got.Cmp(big.NewInt(tt.expected)) != 0 {
				t.Errorf("expected %d, got %s", tt.expected, got)
			}
		})
	}
}

// TestBalanceAt_ClampsNegative tests that inconsistent event data never
// produces a negative balance
func TestBalanceAt_ClampsNegative(t *testing.T) {
	timeline := BuildTimeline(&types.UserEvents{
		Deposits: []types.DepositEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 3, BlockTimestamp: 30, Shares: "10"},
		},
		Withdrawals: []types.WithdrawEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 1, BlockTimestamp: 10, Shares: "40"},
		},
	})

	if got := BalanceAt(timeline, vaultA, types.ChainEthereum, 20); got.Sign() != 0 {
		t.Errorf("expected clamped zero balance, got %s", got)
	}
	// A later deposit still counts after the clamp.
	if got := BalanceAt(timeline, vaultA, types.ChainEthereum, 40); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("expected 10 after clamp and deposit, got %s", got)
	}
}

// TestBalanceAt_IsolatesVaultAndChain tests that events for other vaults
// and chains do not leak into the balance
func TestBalanceAt_IsolatesVaultAndChain(t *testing.T) {
	timeline := BuildTimeline(&types.UserEvents{
		Deposits: []types.DepositEvent{
			{VaultAddress: vaultA, ChainID: types.ChainEthereum, BlockNumber: 1, BlockTimestamp: 10, Shares: "100"},
			{VaultAddress: vaultB, ChainID: types.ChainEthereum, BlockNumber: 2, BlockTimestamp: 10, Shares: "500"},
			{VaultAddress: vaultA, ChainID: types.ChainBase, BlockNumber: 3, BlockTimestamp: 10, Shares: "900"},
		},
	})

	if got := BalanceAt(timeline, vaultA, types.ChainEthereum, 100); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("expected 100, got %s", got)
	}
}

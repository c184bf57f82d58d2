package rewards

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"donorpay/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(storage.NewMemDB())
}

func seedRecords(t *testing.T, ledger *Ledger, n int, contribution ContributionKind) {
	t.Helper()
	for i := 0; i < n; i++ {
		record := &AirdropRecord{
			Recipient:    fmt.Sprintf("donor-%d.donor", i),
			Amount:       big.NewInt(1),
			Timestamp:    int64(1_700_000_000 + i),
			Reward:       TokenReward(),
			Contribution: contribution,
		}
		pos, err := ledger.AppendRecord(record)
		if err != nil {
			t.Fatalf("append record %d: %v", i, err)
		}
		if pos != uint64(i) {
			t.Fatalf("append position = %d, want %d", pos, i)
		}
	}
}

func TestLedgerRecordRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)

	record := &AirdropRecord{
		Recipient:    "alice.donor",
		Amount:       big.NewInt(1),
		Timestamp:    1_700_000_000,
		Reward:       NFTReward("ch1"),
		Contribution: ContributionKind{Class: ContributionCampaign, Ref: "c1"},
	}
	pos, err := ledger.AppendRecord(record)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := ledger.RecordAt(pos)
	if err != nil {
		t.Fatalf("record at %d: %v", pos, err)
	}
	if got.Recipient != record.Recipient || got.Reward.ChannelID != "ch1" || got.Contribution.Ref != "c1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	got.Paid = true
	got.Reward.ItemID = "token-1"
	if err := ledger.ReplaceRecord(pos, got); err != nil {
		t.Fatalf("replace: %v", err)
	}
	again, err := ledger.RecordAt(pos)
	if err != nil {
		t.Fatalf("record at %d: %v", pos, err)
	}
	if !again.Paid || again.Reward.ItemID != "token-1" {
		t.Fatalf("replace not persisted: %+v", again)
	}
}

func TestLedgerRecordOutOfRange(t *testing.T) {
	ledger := newTestLedger(t)

	if _, err := ledger.RecordAt(0); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	record := &AirdropRecord{Recipient: "alice.donor", Amount: big.NewInt(1), Reward: TokenReward()}
	if err := ledger.ReplaceRecord(3, record); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound on replace, got %v", err)
	}
}

func TestLedgerListRecordsPagination(t *testing.T) {
	ledger := newTestLedger(t)
	seedRecords(t, ledger, 5, ContributionKind{Class: ContributionDirect})

	cases := []struct {
		start, limit uint64
		wantLen      int
		wantMore     bool
	}{
		{0, 2, 2, true},
		{2, 2, 2, true},
		{4, 2, 1, false},
		{0, 5, 5, false},
		{0, 100, 5, false},
		{5, 1, 0, false},
		{7, 1, 0, false},
	}
	for _, tc := range cases {
		page, err := ledger.ListRecords(tc.start, tc.limit)
		if err != nil {
			t.Fatalf("list(%d,%d): %v", tc.start, tc.limit, err)
		}
		if len(page.Records) != tc.wantLen {
			t.Fatalf("list(%d,%d): got %d records, want %d", tc.start, tc.limit, len(page.Records), tc.wantLen)
		}
		if page.HasMore != tc.wantMore {
			t.Fatalf("list(%d,%d): hasMore = %v, want %v", tc.start, tc.limit, page.HasMore, tc.wantMore)
		}
	}

	// Pages must cover the sequence exactly once in order.
	seen := 0
	for start := uint64(0); ; start += 2 {
		page, err := ledger.ListRecords(start, 2)
		if err != nil {
			t.Fatalf("list(%d,2): %v", start, err)
		}
		for i, record := range page.Records {
			want := fmt.Sprintf("donor-%d.donor", int(start)+i)
			if record.Recipient != want {
				t.Fatalf("record %d recipient = %q, want %q", int(start)+i, record.Recipient, want)
			}
			seen++
		}
		if !page.HasMore {
			break
		}
	}
	if seen != 5 {
		t.Fatalf("paged through %d records, want 5", seen)
	}
}

func TestLedgerListLimitBounds(t *testing.T) {
	ledger := newTestLedger(t)

	if _, err := ledger.ListRecords(0, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("limit 0: expected ErrInvalidLimit, got %v", err)
	}
	if _, err := ledger.ListRecords(0, 101); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("limit 101: expected ErrInvalidLimit, got %v", err)
	}
	if _, err := ledger.ListDonors(0, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("donors limit 0: expected ErrInvalidLimit, got %v", err)
	}
	if _, err := ledger.ListRecordsByContribution(ContributionCampaign, "c1", 0, 200); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("filtered limit 200: expected ErrInvalidLimit, got %v", err)
	}
}

func TestLedgerListRecordsByContribution(t *testing.T) {
	ledger := newTestLedger(t)
	seedRecords(t, ledger, 3, ContributionKind{Class: ContributionCampaign, Ref: "c1"})
	seedRecords(t, ledger, 2, ContributionKind{Class: ContributionCampaign, Ref: "c2"})
	seedRecords(t, ledger, 1, ContributionKind{Class: ContributionDirect})

	page, err := ledger.ListRecordsByContribution(ContributionCampaign, "c1", 0, 100)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(page.Records) != 3 || page.HasMore {
		t.Fatalf("c1 filter: got %d records, hasMore=%v", len(page.Records), page.HasMore)
	}
	for _, record := range page.Records {
		if record.Contribution.Ref != "c1" {
			t.Fatalf("filter leak: %+v", record.Contribution)
		}
	}

	// Pagination indexes into the filtered sequence, not the raw one.
	page, err = ledger.ListRecordsByContribution(ContributionCampaign, "c1", 2, 2)
	if err != nil {
		t.Fatalf("filtered page: %v", err)
	}
	if len(page.Records) != 1 || page.HasMore {
		t.Fatalf("c1 page at 2: got %d records, hasMore=%v", len(page.Records), page.HasMore)
	}

	page, err = ledger.ListRecordsByContribution(ContributionCampaign, "", 0, 100)
	if err != nil {
		t.Fatalf("class-only filter: %v", err)
	}
	if len(page.Records) != 5 {
		t.Fatalf("class-only filter: got %d records, want 5", len(page.Records))
	}
}

func TestLedgerDonorIndexOrder(t *testing.T) {
	ledger := newTestLedger(t)

	wallets := []string{"carol.donor", "alice.donor", "bob.donor"}
	for _, wallet := range wallets {
		donor := NewDonor(wallet)
		donor.addRewardKind(TokenReward())
		donor.addContribution(ContributionKind{Class: ContributionPool, Ref: "matching"})
		if err := ledger.PutDonor(donor); err != nil {
			t.Fatalf("put %s: %v", wallet, err)
		}
	}
	// Re-writing an existing donor must not duplicate the index entry.
	updated, _, err := ledger.GetDonor("carol.donor")
	if err != nil {
		t.Fatalf("get carol: %v", err)
	}
	updated.Paid = true
	if err := ledger.PutDonor(updated); err != nil {
		t.Fatalf("re-put carol: %v", err)
	}

	count, err := ledger.DonorCount()
	if err != nil || count != 3 {
		t.Fatalf("donor count = %d, err %v", count, err)
	}

	page, err := ledger.ListDonors(0, 100)
	if err != nil {
		t.Fatalf("list donors: %v", err)
	}
	if len(page.Donors) != 3 || page.HasMore {
		t.Fatalf("got %d donors, hasMore=%v", len(page.Donors), page.HasMore)
	}
	for i, wallet := range wallets {
		if page.Donors[i].WalletID != wallet {
			t.Fatalf("donor %d = %q, want %q", i, page.Donors[i].WalletID, wallet)
		}
	}

	filtered, err := ledger.ListDonorsByContribution(ContributionPool, "matching", 1, 1)
	if err != nil {
		t.Fatalf("filtered donors: %v", err)
	}
	if len(filtered.Donors) != 1 || !filtered.HasMore {
		t.Fatalf("filtered page: got %d donors, hasMore=%v", len(filtered.Donors), filtered.HasMore)
	}
	if filtered.Donors[0].WalletID != "alice.donor" {
		t.Fatalf("filtered donor = %q", filtered.Donors[0].WalletID)
	}
}

func TestLedgerProjectTotals(t *testing.T) {
	ledger := newTestLedger(t)
	seedRecords(t, ledger, 4, ContributionKind{Class: ContributionProject, Ref: "lib.core"})
	seedRecords(t, ledger, 2, ContributionKind{Class: ContributionProject, Ref: "lib.other"})
	seedRecords(t, ledger, 1, ContributionKind{Class: ContributionDirect})

	totals, err := ledger.ProjectTotalsFor("lib.core")
	if err != nil {
		t.Fatalf("project totals: %v", err)
	}
	if totals.Records != 4 {
		t.Fatalf("records = %d, want 4", totals.Records)
	}
	if totals.Amount.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("amount = %s, want 4", totals.Amount)
	}

	empty, err := ledger.ProjectTotalsFor("lib.unknown")
	if err != nil {
		t.Fatalf("unknown project: %v", err)
	}
	if empty.Records != 0 || empty.Amount.Sign() != 0 {
		t.Fatalf("unknown project totals: %+v", empty)
	}
}

func TestLedgerTotalDistributed(t *testing.T) {
	ledger := newTestLedger(t)

	total, err := ledger.TotalDistributed()
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("fresh ledger total = %s", total)
	}

	if err := ledger.AddDistributed(big.NewInt(3)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ledger.AddDistributed(big.NewInt(4)); err != nil {
		t.Fatalf("add: %v", err)
	}
	total, err = ledger.TotalDistributed()
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("total = %s, want 7", total)
	}
}

func TestLedgerFindUnpaidRecordScansAppendOrder(t *testing.T) {
	ledger := newTestLedger(t)
	seedRecords(t, ledger, 3, ContributionKind{Class: ContributionDirect})

	// Settle the first record; the scan must then land on the second.
	first, err := ledger.RecordAt(0)
	if err != nil {
		t.Fatalf("record 0: %v", err)
	}
	first.Paid = true
	if err := ledger.ReplaceRecord(0, first); err != nil {
		t.Fatalf("replace 0: %v", err)
	}

	pos, record, found, err := ledger.findUnpaidRecord(func(r *AirdropRecord) bool {
		return r.Reward.Class == RewardToken
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found || pos != 1 {
		t.Fatalf("found=%v pos=%d, want oldest unpaid at 1", found, pos)
	}
	if record.Recipient != "donor-1.donor" {
		t.Fatalf("record recipient = %q", record.Recipient)
	}

	_, _, found, err = ledger.findUnpaidRecord(func(r *AirdropRecord) bool { return false })
	if err != nil || found {
		t.Fatalf("non-matching predicate: found=%v err=%v", found, err)
	}
}

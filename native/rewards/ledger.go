package rewards

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"donorpay/storage"
)

// Key layout. Donors are stored under their wallet id plus an insertion-order
// index so listings are deterministic; records are stored by position.
const (
	donorKeyPrefix  = "rewards/donor/"
	donorIndexKey   = "rewards/donor-index/"
	recordKeyPrefix = "rewards/record/"
	donorCountKey   = "rewards/meta/donor-count"
	recordCountKey  = "rewards/meta/record-count"
	distributedKey  = "rewards/meta/distributed"
)

// Listing limits mirror the bounds enforced by the original contract views.
const (
	minListLimit = 1
	maxListLimit = 100
)

// Ledger owns all donor aggregates and airdrop records. Every mutation is a
// single-key write; callers relying on multi-step consistency do so through
// the engine's guard-and-scan design, not through transactions here.
type Ledger struct {
	db storage.Database
}

// NewLedger wraps the supplied database.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func donorKey(walletID string) []byte {
	return []byte(donorKeyPrefix + walletID)
}

func donorIndexEntryKey(pos uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", donorIndexKey, pos))
}

func recordKey(pos uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", recordKeyPrefix, pos))
}

func (l *Ledger) counter(key string) (uint64, error) {
	raw, err := l.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("rewards: corrupt counter %s", key)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (l *Ledger) setCounter(key string, value uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	return l.db.Put([]byte(key), buf)
}

// GetDonor loads the aggregate for the wallet. The second return mirrors map
// lookup semantics: false means the donor has never contributed.
func (l *Ledger) GetDonor(walletID string) (*Donor, bool, error) {
	raw, err := l.db.Get(donorKey(walletID))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	donor := new(Donor)
	if err := json.Unmarshal(raw, donor); err != nil {
		return nil, false, fmt.Errorf("rewards: decode donor %s: %w", walletID, err)
	}
	return donor, true, nil
}

// PutDonor upserts the aggregate. First-time donors are appended to the
// insertion-order index and counted.
func (l *Ledger) PutDonor(donor *Donor) error {
	if donor == nil || donor.WalletID == "" {
		return fmt.Errorf("rewards: donor wallet id required")
	}
	exists, err := l.db.Has(donorKey(donor.WalletID))
	if err != nil {
		return err
	}
	raw, err := json.Marshal(donor)
	if err != nil {
		return fmt.Errorf("rewards: encode donor %s: %w", donor.WalletID, err)
	}
	if err := l.db.Put(donorKey(donor.WalletID), raw); err != nil {
		return err
	}
	if exists {
		return nil
	}
	count, err := l.counter(donorCountKey)
	if err != nil {
		return err
	}
	if err := l.db.Put(donorIndexEntryKey(count), []byte(donor.WalletID)); err != nil {
		return err
	}
	return l.setCounter(donorCountKey, count+1)
}

// AppendRecord appends the record to the ordered sequence and returns the
// position it was assigned.
func (l *Ledger) AppendRecord(record *AirdropRecord) (uint64, error) {
	if record == nil {
		return 0, fmt.Errorf("rewards: nil record")
	}
	count, err := l.counter(recordCountKey)
	if err != nil {
		return 0, err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("rewards: encode record: %w", err)
	}
	if err := l.db.Put(recordKey(count), raw); err != nil {
		return 0, err
	}
	if err := l.setCounter(recordCountKey, count+1); err != nil {
		return 0, err
	}
	return count, nil
}

// RecordAt loads the record stored at the position.
func (l *Ledger) RecordAt(pos uint64) (*AirdropRecord, error) {
	raw, err := l.db.Get(recordKey(pos))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	record := new(AirdropRecord)
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("rewards: decode record %d: %w", pos, err)
	}
	return record, nil
}

// ReplaceRecord rewrites the record at an existing position. Appending is the
// only way to extend the sequence.
func (l *Ledger) ReplaceRecord(pos uint64, record *AirdropRecord) error {
	if record == nil {
		return fmt.Errorf("rewards: nil record")
	}
	count, err := l.counter(recordCountKey)
	if err != nil {
		return err
	}
	if pos >= count {
		return ErrRecordNotFound
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("rewards: encode record: %w", err)
	}
	return l.db.Put(recordKey(pos), raw)
}

// RecordCount returns the length of the record sequence.
func (l *Ledger) RecordCount() (uint64, error) {
	return l.counter(recordCountKey)
}

// DonorCount returns the number of distinct donors.
func (l *Ledger) DonorCount() (uint64, error) {
	return l.counter(donorCountKey)
}

// TotalDistributed returns the cumulative reward quantity accrued across all
// records.
func (l *Ledger) TotalDistributed() (*big.Int, error) {
	raw, err := l.db.Get([]byte(distributedKey))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	total, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("rewards: corrupt distributed total %q", raw)
	}
	return total, nil
}

// AddDistributed bumps the cumulative reward total.
func (l *Ledger) AddDistributed(amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	total, err := l.TotalDistributed()
	if err != nil {
		return err
	}
	total.Add(total, amount)
	return l.db.Put([]byte(distributedKey), []byte(total.String()))
}

func checkLimit(limit uint64) error {
	if limit < minListLimit || limit > maxListLimit {
		return ErrInvalidLimit
	}
	return nil
}

// ListRecords returns one page of the record sequence in append order.
func (l *Ledger) ListRecords(start, limit uint64) (*PaginatedRecords, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	count, err := l.counter(recordCountKey)
	if err != nil {
		return nil, err
	}
	page := &PaginatedRecords{Records: []AirdropRecord{}}
	for pos := start; pos < count && uint64(len(page.Records)) < limit; pos++ {
		record, err := l.RecordAt(pos)
		if err != nil {
			return nil, err
		}
		page.Records = append(page.Records, *record)
	}
	page.HasMore = count > start+limit
	return page, nil
}

// ListRecordsByContribution pages over records whose contribution matches the
// class and, when ref is non-empty, the reference value.
func (l *Ledger) ListRecordsByContribution(class ContributionClass, ref string, start, limit uint64) (*PaginatedRecords, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	count, err := l.counter(recordCountKey)
	if err != nil {
		return nil, err
	}
	page := &PaginatedRecords{Records: []AirdropRecord{}}
	matched := uint64(0)
	for pos := uint64(0); pos < count; pos++ {
		record, err := l.RecordAt(pos)
		if err != nil {
			return nil, err
		}
		if record.Contribution.Class != class {
			continue
		}
		if ref != "" && record.Contribution.Ref != ref {
			continue
		}
		if matched >= start && uint64(len(page.Records)) < limit {
			page.Records = append(page.Records, *record)
		}
		matched++
	}
	page.HasMore = matched > start+limit
	return page, nil
}

// ListDonors returns one page of donor aggregates in first-contribution order.
func (l *Ledger) ListDonors(start, limit uint64) (*PaginatedDonors, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	count, err := l.counter(donorCountKey)
	if err != nil {
		return nil, err
	}
	page := &PaginatedDonors{Donors: []Donor{}}
	for pos := start; pos < count && uint64(len(page.Donors)) < limit; pos++ {
		donor, err := l.donorAtIndex(pos)
		if err != nil {
			return nil, err
		}
		page.Donors = append(page.Donors, *donor)
	}
	page.HasMore = count > start+limit
	return page, nil
}

// ListDonorsByContribution pages over donors holding the contribution tag.
func (l *Ledger) ListDonorsByContribution(class ContributionClass, ref string, start, limit uint64) (*PaginatedDonors, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	count, err := l.counter(donorCountKey)
	if err != nil {
		return nil, err
	}
	page := &PaginatedDonors{Donors: []Donor{}}
	matched := uint64(0)
	for pos := uint64(0); pos < count; pos++ {
		donor, err := l.donorAtIndex(pos)
		if err != nil {
			return nil, err
		}
		if !donor.hasContribution(class, ref) {
			continue
		}
		if matched >= start && uint64(len(page.Donors)) < limit {
			page.Donors = append(page.Donors, *donor)
		}
		matched++
	}
	page.HasMore = matched > start+limit
	return page, nil
}

func (l *Ledger) donorAtIndex(pos uint64) (*Donor, error) {
	walletRaw, err := l.db.Get(donorIndexEntryKey(pos))
	if err != nil {
		return nil, err
	}
	donor, ok, err := l.GetDonor(string(walletRaw))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("rewards: dangling donor index entry %d", pos)
	}
	return donor, nil
}

// ProjectTotalsFor aggregates record count and reward amount for the
// project-tagged contribution category.
func (l *Ledger) ProjectTotalsFor(projectID string) (*ProjectTotals, error) {
	count, err := l.counter(recordCountKey)
	if err != nil {
		return nil, err
	}
	totals := &ProjectTotals{ProjectID: projectID, Amount: big.NewInt(0)}
	for pos := uint64(0); pos < count; pos++ {
		record, err := l.RecordAt(pos)
		if err != nil {
			return nil, err
		}
		if record.Contribution.Class != ContributionProject || record.Contribution.Ref != projectID {
			continue
		}
		totals.Records++
		if record.Amount != nil {
			totals.Amount.Add(totals.Amount, record.Amount)
		}
	}
	return totals, nil
}

// findUnpaidRecord scans the sequence in append order for the oldest record
// matching the predicate. Returns the position, the record, and whether a
// match was found.
func (l *Ledger) findUnpaidRecord(match func(*AirdropRecord) bool) (uint64, *AirdropRecord, bool, error) {
	count, err := l.counter(recordCountKey)
	if err != nil {
		return 0, nil, false, err
	}
	for pos := uint64(0); pos < count; pos++ {
		record, err := l.RecordAt(pos)
		if err != nil {
			return 0, nil, false, err
		}
		if record.Paid {
			continue
		}
		if match(record) {
			return pos, record, true, nil
		}
	}
	return 0, nil, false, nil
}

package rewards

import (
	"fmt"
	"math/big"
	"strings"
)

// maxCampaignIDLength bounds campaign identifiers, matching the limit enforced
// when campaigns are registered upstream.
const maxCampaignIDLength = 64

// RewardClass discriminates the closed set of reward variants a donor can be
// entitled to.
type RewardClass uint8

const (
	// RewardToken is the fungible balance reward.
	RewardToken RewardClass = iota + 1
	// RewardNFT is a collectible reward minted on a specific channel.
	RewardNFT
)

// Valid reports whether the class is a known variant.
func (c RewardClass) Valid() bool {
	switch c {
	case RewardToken, RewardNFT:
		return true
	default:
		return false
	}
}

// String returns the canonical tag used on the wire and in logs.
func (c RewardClass) String() string {
	switch c {
	case RewardToken:
		return "token"
	case RewardNFT:
		return "nft"
	default:
		return "unknown"
	}
}

// RewardKind is one entitlement entry: the fungible token reward, or a
// collectible reward keyed by its channel. ItemID stays empty until the
// issuance flow settles.
type RewardKind struct {
	Class     RewardClass `json:"class"`
	ChannelID string      `json:"channelId,omitempty"`
	ItemID    string      `json:"itemId,omitempty"`
}

// TokenReward returns the fungible reward entitlement.
func TokenReward() RewardKind {
	return RewardKind{Class: RewardToken}
}

// NFTReward returns a collectible entitlement for the supplied channel with an
// unset item identifier.
func NFTReward(channelID string) RewardKind {
	return RewardKind{Class: RewardNFT, ChannelID: channelID}
}

// ContributionClass discriminates the closed set of contribution categories.
type ContributionClass uint8

const (
	// ContributionPool marks a contribution funded from a shared pool.
	ContributionPool ContributionClass = iota + 1
	// ContributionCampaign marks a contribution tagged with a campaign.
	ContributionCampaign
	// ContributionDirect marks a direct contribution with no tag.
	ContributionDirect
	// ContributionProject marks a contribution tagged with a project account.
	ContributionProject
)

// Valid reports whether the class is a known variant.
func (c ContributionClass) Valid() bool {
	switch c {
	case ContributionPool, ContributionCampaign, ContributionDirect, ContributionProject:
		return true
	default:
		return false
	}
}

// String returns the canonical tag used on the wire and in logs.
func (c ContributionClass) String() string {
	switch c {
	case ContributionPool:
		return "pool"
	case ContributionCampaign:
		return "campaign"
	case ContributionDirect:
		return "direct"
	case ContributionProject:
		return "project"
	default:
		return "unknown"
	}
}

// ParseContributionClass resolves the wire tag back into a class.
func ParseContributionClass(raw string) (ContributionClass, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pool":
		return ContributionPool, nil
	case "campaign":
		return ContributionCampaign, nil
	case "direct":
		return ContributionDirect, nil
	case "project":
		return ContributionProject, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidContribution, raw)
	}
}

// ContributionKind tags a contribution event with its category. Ref carries the
// category-specific identifier: the pool id, campaign id or project account.
// Direct contributions carry no identifier.
type ContributionKind struct {
	Class ContributionClass `json:"class"`
	Ref   string            `json:"ref,omitempty"`
}

// Validate enforces the per-variant input rules before any ledger mutation.
func (k ContributionKind) Validate() error {
	switch k.Class {
	case ContributionPool:
		if strings.TrimSpace(k.Ref) == "" {
			return fmt.Errorf("%w: pool id required", ErrInvalidContribution)
		}
	case ContributionCampaign:
		if strings.TrimSpace(k.Ref) == "" {
			return fmt.Errorf("%w: campaign id required", ErrInvalidContribution)
		}
		if len(k.Ref) > maxCampaignIDLength {
			return fmt.Errorf("%w: campaign id must be %d characters or less", ErrInvalidContribution, maxCampaignIDLength)
		}
	case ContributionDirect:
		if k.Ref != "" {
			return fmt.Errorf("%w: direct contribution carries no reference", ErrInvalidContribution)
		}
	case ContributionProject:
		if !validProjectID(k.Ref) {
			return fmt.Errorf("%w: malformed project id %q", ErrInvalidContribution, k.Ref)
		}
	default:
		return fmt.Errorf("%w: class %d", ErrInvalidContribution, k.Class)
	}
	return nil
}

// Equal reports whether two contribution kinds denote the same category value.
func (k ContributionKind) Equal(other ContributionKind) bool {
	return k.Class == other.Class && k.Ref == other.Ref
}

// validProjectID accepts lowercase account-style identifiers: 2 to 64
// characters of [a-z0-9._-] where separators neither lead, trail, nor repeat.
func validProjectID(id string) bool {
	if len(id) < 2 || len(id) > 64 {
		return false
	}
	prevSeparator := true
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevSeparator = false
		case c == '.' || c == '_' || c == '-':
			if prevSeparator {
				return false
			}
			prevSeparator = true
		default:
			return false
		}
	}
	return !prevSeparator
}

// Donor aggregates the ledger view of a single participant.
type Donor struct {
	WalletID       string             `json:"walletId"`
	DonationAmount *big.Int           `json:"donationAmount"`
	AirdropAmount  *big.Int           `json:"airdropAmount"`
	Paid           bool               `json:"paid"`
	RewardKinds    []RewardKind       `json:"rewardKinds"`
	Contributions  []ContributionKind `json:"contributions"`
}

// NewDonor returns a zeroed donor aggregate for the supplied wallet.
func NewDonor(walletID string) *Donor {
	return &Donor{
		WalletID:       walletID,
		DonationAmount: big.NewInt(0),
		AirdropAmount:  big.NewInt(0),
	}
}

// Clone returns a deep copy so callers can mutate without touching the stored
// instance.
func (d *Donor) Clone() *Donor {
	if d == nil {
		return nil
	}
	clone := *d
	clone.DonationAmount = cloneBigInt(d.DonationAmount)
	clone.AirdropAmount = cloneBigInt(d.AirdropAmount)
	clone.RewardKinds = append([]RewardKind(nil), d.RewardKinds...)
	clone.Contributions = append([]ContributionKind(nil), d.Contributions...)
	return &clone
}

// HasTokenReward reports whether the donor holds the fungible entitlement.
func (d *Donor) HasTokenReward() bool {
	if d == nil {
		return false
	}
	for _, kind := range d.RewardKinds {
		if kind.Class == RewardToken {
			return true
		}
	}
	return false
}

// FirstNFTReward returns the oldest collectible entitlement, if any.
func (d *Donor) FirstNFTReward() (RewardKind, bool) {
	if d == nil {
		return RewardKind{}, false
	}
	for _, kind := range d.RewardKinds {
		if kind.Class == RewardNFT {
			return kind, true
		}
	}
	return RewardKind{}, false
}

// addRewardKind appends the entitlement unless an equivalent entry exists.
// Token entitlements are keyed by class, NFT entitlements by channel.
func (d *Donor) addRewardKind(kind RewardKind) {
	for _, existing := range d.RewardKinds {
		if existing.Class != kind.Class {
			continue
		}
		if kind.Class == RewardToken || existing.ChannelID == kind.ChannelID {
			return
		}
	}
	d.RewardKinds = append(d.RewardKinds, kind)
}

// addContribution appends the category unless already present.
func (d *Donor) addContribution(kind ContributionKind) {
	for _, existing := range d.Contributions {
		if existing.Equal(kind) {
			return
		}
	}
	d.Contributions = append(d.Contributions, kind)
}

// hasContribution reports whether the donor contributed under the category.
func (d *Donor) hasContribution(class ContributionClass, ref string) bool {
	if d == nil {
		return false
	}
	for _, existing := range d.Contributions {
		if existing.Class == class && (ref == "" || existing.Ref == ref) {
			return true
		}
	}
	return false
}

// AirdropRecord is one append-only reward event. Records are identified by
// their position in the ledger sequence and are never deleted; Paid
// transitions false to true exactly once.
type AirdropRecord struct {
	Recipient    string           `json:"recipient"`
	Amount       *big.Int         `json:"amount"`
	Timestamp    int64            `json:"timestamp"`
	Paid         bool             `json:"paid"`
	Reward       RewardKind       `json:"reward"`
	Contribution ContributionKind `json:"contribution"`
}

// Clone returns a deep copy of the record.
func (r *AirdropRecord) Clone() *AirdropRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = cloneBigInt(r.Amount)
	return &clone
}

// PaginatedRecords is one page of airdrop records. HasMore is true iff strictly
// more qualifying records exist beyond start+limit.
type PaginatedRecords struct {
	Records []AirdropRecord `json:"records"`
	HasMore bool            `json:"hasMore"`
}

// PaginatedDonors is one page of donor aggregates.
type PaginatedDonors struct {
	Donors  []Donor `json:"donors"`
	HasMore bool    `json:"hasMore"`
}

// ProjectTotals aggregates reward accrual for a project-tagged contribution
// category.
type ProjectTotals struct {
	ProjectID string   `json:"projectId"`
	Records   uint64   `json:"records"`
	Amount    *big.Int `json:"amount"`
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

package rewards

import (
	"errors"
	"math/big"
	"strings"
	"testing"
)

func TestContributionKindValidate(t *testing.T) {
	cases := []struct {
		name string
		kind ContributionKind
		ok   bool
	}{
		{"pool", ContributionKind{Class: ContributionPool, Ref: "matching"}, true},
		{"pool empty ref", ContributionKind{Class: ContributionPool}, false},
		{"campaign", ContributionKind{Class: ContributionCampaign, Ref: "c1"}, true},
		{"campaign max ref", ContributionKind{Class: ContributionCampaign, Ref: strings.Repeat("a", 64)}, true},
		{"campaign ref too long", ContributionKind{Class: ContributionCampaign, Ref: strings.Repeat("a", 65)}, false},
		{"campaign empty ref", ContributionKind{Class: ContributionCampaign}, false},
		{"direct", ContributionKind{Class: ContributionDirect}, true},
		{"direct with ref", ContributionKind{Class: ContributionDirect, Ref: "x"}, false},
		{"project", ContributionKind{Class: ContributionProject, Ref: "lib.core"}, true},
		{"project bad id", ContributionKind{Class: ContributionProject, Ref: "Lib"}, false},
		{"unknown class", ContributionKind{Class: ContributionClass(99), Ref: "x"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.kind.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidContribution) {
				t.Fatalf("expected ErrInvalidContribution, got %v", err)
			}
		})
	}
}

func TestValidProjectID(t *testing.T) {
	valid := []string{"ab", "lib.core", "my-project", "a_b", "x0.y1", strings.Repeat("a", 64)}
	for _, id := range valid {
		if !validProjectID(id) {
			t.Errorf("%q should be valid", id)
		}
	}
	invalid := []string{"", "a", ".core", "core.", "a..b", "a.-b", "UPPER", "sp ace", strings.Repeat("a", 65)}
	for _, id := range invalid {
		if validProjectID(id) {
			t.Errorf("%q should be invalid", id)
		}
	}
}

func TestParseContributionClass(t *testing.T) {
	for _, raw := range []string{"pool", "campaign", "direct", "project"} {
		class, err := ParseContributionClass(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if class.String() != raw {
			t.Fatalf("parse %q round trip = %q", raw, class)
		}
	}
	if _, err := ParseContributionClass("bogus"); !errors.Is(err, ErrInvalidContribution) {
		t.Fatalf("expected ErrInvalidContribution, got %v", err)
	}
}

func TestDonorRewardKindDedup(t *testing.T) {
	donor := NewDonor("alice.donor")

	donor.addRewardKind(TokenReward())
	donor.addRewardKind(TokenReward())
	donor.addRewardKind(NFTReward("ch1"))
	donor.addRewardKind(NFTReward("ch1"))
	donor.addRewardKind(NFTReward("ch2"))

	if len(donor.RewardKinds) != 3 {
		t.Fatalf("reward kinds = %d, want 3 (token, ch1, ch2)", len(donor.RewardKinds))
	}
	if !donor.HasTokenReward() {
		t.Fatal("token entitlement missing")
	}
	first, ok := donor.FirstNFTReward()
	if !ok || first.ChannelID != "ch1" {
		t.Fatalf("first collectible = %+v ok=%v", first, ok)
	}
}

func TestDonorCloneIsDeep(t *testing.T) {
	donor := NewDonor("alice.donor")
	donor.DonationAmount = big.NewInt(100)
	donor.addRewardKind(NFTReward("ch1"))
	donor.addContribution(ContributionKind{Class: ContributionCampaign, Ref: "c1"})

	clone := donor.Clone()
	clone.DonationAmount.Add(clone.DonationAmount, big.NewInt(1))
	clone.RewardKinds[0].ItemID = "token-1"
	clone.Contributions[0].Ref = "c2"
	clone.Paid = true

	if donor.DonationAmount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("donation amount mutated through clone: %s", donor.DonationAmount)
	}
	if donor.RewardKinds[0].ItemID != "" {
		t.Fatal("reward kinds shared with clone")
	}
	if donor.Contributions[0].Ref != "c1" {
		t.Fatal("contributions shared with clone")
	}
	if donor.Paid {
		t.Fatal("paid flag shared with clone")
	}
}

func TestAirdropRecordCloneIsDeep(t *testing.T) {
	record := &AirdropRecord{
		Recipient: "alice.donor",
		Amount:    big.NewInt(1),
		Reward:    TokenReward(),
	}
	clone := record.Clone()
	clone.Amount.Add(clone.Amount, big.NewInt(5))
	clone.Paid = true
	if record.Amount.Cmp(big.NewInt(1)) != 0 || record.Paid {
		t.Fatalf("record mutated through clone: %+v", record)
	}
}

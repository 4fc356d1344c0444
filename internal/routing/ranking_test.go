package routing

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/config"
	"github.com/tradelinehq/tradeline/pkg/db/models"
)

func TestWeightedPolicyRanksByScore(t *testing.T) {
	t.Parallel()

	policy := NewWeightedPolicy(config.RoutingConfig{
		WeightStock:       0.5,
		WeightProximity:   0.2,
		WeightReliability: 0.3,
	})
	near := Candidate{SellerID: uuid.New(), Region: "tx", Reliability: 0.2, Coverage: 0.5}
	reliable := Candidate{SellerID: uuid.New(), Region: "ny", Reliability: 1.0, Coverage: 0.5}
	stocked := Candidate{SellerID: uuid.New(), Region: "ny", Reliability: 0.2, Coverage: 1.0}

	ranked := policy.Rank(&models.Order{}, "tx", []Candidate{near, reliable, stocked})
	// stocked: .5*1 + .3*.2 = .56; reliable: .25 + .3 = .55; near: .25 + .2 + .06 = .51
	if ranked[0].SellerID != stocked.SellerID {
		t.Fatalf("expected stocked seller first, got %+v", ranked[0])
	}
	if ranked[1].SellerID != reliable.SellerID {
		t.Fatalf("expected reliable seller second, got %+v", ranked[1])
	}
	if ranked[2].SellerID != near.SellerID {
		t.Fatalf("expected near seller third, got %+v", ranked[2])
	}
}

func TestWeightedPolicyTieBreaksOnVendorID(t *testing.T) {
	t.Parallel()

	policy := WeightedPolicy{WeightStock: 1}
	a := Candidate{SellerID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Coverage: 0.5}
	b := Candidate{SellerID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Coverage: 0.5}

	for i := 0; i < 5; i++ {
		ranked := policy.Rank(&models.Order{}, "", []Candidate{b, a})
		if ranked[0].SellerID != a.SellerID {
			t.Fatalf("tie-break must order by uuid string, got %s first", ranked[0].SellerID)
		}
	}
}

func TestCoverageFor(t *testing.T) {
	t.Parallel()

	p1, p2 := uuid.New(), uuid.New()
	items := []models.OrderItem{
		{ProductID: p1, Qty: 4},
		{ProductID: p2, Qty: 6},
	}

	full := coverageFor(items, map[uuid.UUID]int{p1: 10, p2: 10})
	if full != 1.0 {
		t.Fatalf("expected full coverage, got %f", full)
	}
	partial := coverageFor(items, map[uuid.UUID]int{p1: 4})
	if partial != 0.4 {
		t.Fatalf("expected 0.4 coverage, got %f", partial)
	}
	none := coverageFor(items, nil)
	if none != 0 {
		t.Fatalf("expected zero coverage, got %f", none)
	}
}

package routing

import (
	"sort"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/config"
	"github.com/tradelinehq/tradeline/pkg/db/models"
)

// Candidate is one seller scored for a broadcast: how much of the order it can
// cover, whether it sits in the buyer's region, and its historical reliability.
type Candidate struct {
	SellerID    uuid.UUID
	Region      string
	Reliability float64
	Coverage    float64
	Score       float64
}

// Policy ranks candidate sellers for an order. The coordinator broadcasts to
// tiers of the ranked list, best first.
type Policy interface {
	Rank(order *models.Order, buyerRegion string, candidates []Candidate) []Candidate
}

// WeightedPolicy is the default ranking: a weighted sum of stock coverage,
// regional proximity, and reliability. Ties break on the seller uuid string so
// the order is stable across runs.
type WeightedPolicy struct {
	WeightStock       float64
	WeightProximity   float64
	WeightReliability float64
}

// NewWeightedPolicy builds the default policy from routing config.
func NewWeightedPolicy(cfg config.RoutingConfig) WeightedPolicy {
	return WeightedPolicy{
		WeightStock:       cfg.WeightStock,
		WeightProximity:   cfg.WeightProximity,
		WeightReliability: cfg.WeightReliability,
	}
}

func (p WeightedPolicy) Rank(order *models.Order, buyerRegion string, candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		proximity := 0.0
		if buyerRegion != "" && ranked[i].Region == buyerRegion {
			proximity = 1.0
		}
		ranked[i].Score = p.WeightStock*ranked[i].Coverage +
			p.WeightProximity*proximity +
			p.WeightReliability*ranked[i].Reliability
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].SellerID.String() < ranked[j].SellerID.String()
	})
	return ranked
}

// coverageFor computes the fraction of requested quantity a seller can cover
// from physical stock. Scoring uses physical levels as a heuristic; actual
// availability is enforced at reservation time.
func coverageFor(items []models.OrderItem, stock map[uuid.UUID]int) float64 {
	var requested, covered int
	for _, item := range items {
		requested += item.Qty
		have := stock[item.ProductID]
		if have > item.Qty {
			have = item.Qty
		}
		covered += have
	}
	if requested == 0 {
		return 0
	}
	return float64(covered) / float64(requested)
}

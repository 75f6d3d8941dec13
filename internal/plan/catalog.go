// Package plan holds the static plan/price/tier lookup shared by the
// checkout and webhook paths, so the two never disagree about what a plan
// maps to.
package plan

// DefaultTier is assigned when a provider product id has no catalog mapping.
const DefaultTier = "initiate"

// Plan describes one purchasable subscription level.
type Plan struct {
	// ID is the client-facing plan identifier (e.g. "initiate").
	ID string
	// ProductID is the payment provider's product identifier.
	ProductID string
	// MonthlyPriceID is the provider price the plan bills under. Yearly
	// billing is not offered yet.
	MonthlyPriceID string
	// Tier is the human-facing subscription level shown in the product.
	Tier string
}

// Catalog resolves plan ids and provider product ids.
type Catalog struct {
	byID      map[string]Plan
	byProduct map[string]string
}

func NewCatalog(plans ...Plan) *Catalog {
	c := &Catalog{
		byID:      make(map[string]Plan, len(plans)),
		byProduct: make(map[string]string, len(plans)),
	}
	for _, p := range plans {
		c.byID[p.ID] = p
		c.byProduct[p.ProductID] = p.Tier
	}
	return c
}

// ByID returns the plan for a client-supplied plan id.
func (c *Catalog) ByID(planID string) (Plan, bool) {
	p, ok := c.byID[planID]
	return p, ok
}

// TierForProduct maps a provider product id to its tier name. Unknown
// product ids fall back to DefaultTier rather than failing reconciliation.
func (c *Catalog) TierForProduct(productID string) string {
	if tier, ok := c.byProduct[productID]; ok {
		return tier
	}
	return DefaultTier
}

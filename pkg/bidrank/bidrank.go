// Package bidrank computes the ranking score used to order ads in listing
// views: score = price + price*clicks*weight. A higher score ranks higher;
// an ad that bids nothing scores zero no matter how many clicks it has.
package bidrank

import "sort"

// DefaultClickWeight is the fallback weighting constant. The value has no
// documented derivation; deployments tune it through config.
const DefaultClickWeight = 0.42

// Score returns the bid score for a price (in cents) and click count.
// Negative inputs are treated as zero.
func Score(priceCents, clicks int64, weight float64) float64 {
	if priceCents <= 0 {
		return 0
	}
	if clicks < 0 {
		clicks = 0
	}
	p := float64(priceCents)
	return p + p*float64(clicks)*weight
}

// Ranked is anything that exposes the two scoring inputs.
type Ranked interface {
	BidPriceCents() int64
	BidClicks() int64
}

// SortByScore orders items descending by score in place. The sort is stable:
// items with equal scores keep their original relative order.
func SortByScore[T Ranked](items []T, weight float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return Score(items[i].BidPriceCents(), items[i].BidClicks(), weight) >
			Score(items[j].BidPriceCents(), items[j].BidClicks(), weight)
	})
}

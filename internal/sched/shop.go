package sched

import (
	"fmt"

	"github.com/saltmere/server/internal/clock"
	"github.com/saltmere/server/internal/data"
)

// ShopGate decides whether shops are open at the current world time.
type ShopGate struct {
	clock *clock.Clock
	shops *data.ShopTable
}

func NewShopGate(c *clock.Clock, shops *data.ShopTable) *ShopGate {
	return &ShopGate{clock: c, shops: shops}
}

// IsOpen reports whether a shop is open right now. Unknown shops default
// to open so a bad id never locks a room.
func (g *ShopGate) IsOpen(shopID string) bool {
	shop := g.shops.Get(shopID)
	if shop == nil {
		return true
	}
	if dayListed(shop.ClosedDays, g.clock.DayNumber()) || g.isFestival(shop) {
		return false
	}
	in, err := g.clock.IsTimeInRange(shop.Open, shop.Close)
	if err != nil {
		return true
	}
	return in
}

// isFestival reports whether the keeper is off at a festival today.
func (g *ShopGate) isFestival(shop *data.Shop) bool {
	return dayListed(shop.FestivalDays, g.clock.DayNumber())
}

func dayListed(days []int, day int64) bool {
	for _, d := range days {
		if int64(d) == day {
			return true
		}
	}
	return false
}

// Status returns "Open" or a closed line naming when trade resumes.
func (g *ShopGate) Status(shopID string) string {
	if g.IsOpen(shopID) {
		return "Open"
	}
	shop := g.shops.Get(shopID)
	if shop != nil && g.isFestival(shop) {
		return "Closed for the festival"
	}
	open := "08:00"
	if shop != nil {
		open = shop.Open
	}
	return fmt.Sprintf("Closed (opens at %s)", open)
}

package placement

import (
	"sync"
	"time"

	"github.com/ballast-sched/ballast/pkg/types"
)

// OfferPool holds the resource offers currently advertised by the cluster
// resource manager's offer feed (an external collaborator; this package only
// consumes what it pushes in via Add). Offers are ephemeral: Reserve removes
// one atomically so two concurrent placement attempts can never both win it.
type OfferPool struct {
	mu     sync.Mutex
	offers map[string]types.ResourceOffer
}

// NewOfferPool returns an empty pool.
func NewOfferPool() *OfferPool {
	return &OfferPool{offers: make(map[string]types.ResourceOffer)}
}

// Add registers or refreshes an offer.
func (p *OfferPool) Add(o types.ResourceOffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers[o.OfferID] = o
}

// Withdraw removes an offer outright, e.g. the resource manager rescinded it.
func (p *OfferPool) Withdraw(offerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.offers, offerID)
}

// Snapshot returns every currently unexpired offer, evicting expired ones as
// a side effect.
func (p *OfferPool) Snapshot(now time.Time) []types.ResourceOffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.ResourceOffer, 0, len(p.offers))
	for id, o := range p.offers {
		if now.After(o.ExpiresAt) {
			delete(p.offers, id)
			continue
		}
		out = append(out, o)
	}
	return out
}

// TryReserve atomically removes offerID if it is still present, so at most
// one caller ever wins a given offer.
func (p *OfferPool) TryReserve(offerID string) (types.ResourceOffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.offers[offerID]
	if ok {
		delete(p.offers, offerID)
	}
	return o, ok
}

// Release returns a reserved-but-unused offer to the pool, e.g. after a
// placement attempt failed downstream of the reservation.
func (p *OfferPool) Release(o types.ResourceOffer) {
	p.Add(o)
}

func fitsResources(o types.ResourceOffer, cfg types.TaskConfig) bool {
	return o.CPU >= cfg.CPU && o.RAMMB >= cfg.RAMMB && o.DiskMB >= cfg.DiskMB
}

func assignPorts(names []string, ranges []types.PortRange) ([]types.PortAssignment, bool) {
	if len(names) == 0 {
		return nil, true
	}
	out := make([]types.PortAssignment, 0, len(names))
	ri := 0
	var cur int32
	if len(ranges) > 0 {
		cur = ranges[0].Begin
	}
	for _, name := range names {
		for ri < len(ranges) && cur > ranges[ri].End {
			ri++
			if ri < len(ranges) {
				cur = ranges[ri].Begin
			}
		}
		if ri >= len(ranges) {
			return nil, false
		}
		out = append(out, types.PortAssignment{Name: name, Port: cur})
		cur++
	}
	return out, true
}

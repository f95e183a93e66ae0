package placement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/types"
)

func TestOfferPoolSnapshotEvictsExpired(t *testing.T) {
	p := NewOfferPool()
	now := time.Now()
	p.Add(types.ResourceOffer{OfferID: "stale", ExpiresAt: now.Add(-time.Second)})
	p.Add(types.ResourceOffer{OfferID: "fresh", ExpiresAt: now.Add(time.Minute)})

	snap := p.Snapshot(now)
	require.Len(t, snap, 1)
	assert.Equal(t, "fresh", snap[0].OfferID)

	_, ok := p.TryReserve("stale")
	assert.False(t, ok, "expired offer must be evicted by Snapshot")
}

func TestOfferPoolTryReserveIsExclusive(t *testing.T) {
	p := NewOfferPool()
	p.Add(types.ResourceOffer{OfferID: "o1", ExpiresAt: time.Now().Add(time.Minute)})

	_, ok1 := p.TryReserve("o1")
	_, ok2 := p.TryReserve("o1")
	assert.True(t, ok1)
	assert.False(t, ok2, "a reserved offer cannot be reserved twice")
}

func TestOfferPoolReleaseReturnsOffer(t *testing.T) {
	p := NewOfferPool()
	o := types.ResourceOffer{OfferID: "o1", ExpiresAt: time.Now().Add(time.Minute)}
	p.Add(o)
	reserved, _ := p.TryReserve("o1")
	p.Release(reserved)

	_, ok := p.TryReserve("o1")
	assert.True(t, ok)
}

func TestFitsResources(t *testing.T) {
	o := types.ResourceOffer{CPU: 2, RAMMB: 1024, DiskMB: 2048}
	assert.True(t, fitsResources(o, types.TaskConfig{CPU: 1, RAMMB: 512, DiskMB: 1024}))
	assert.False(t, fitsResources(o, types.TaskConfig{CPU: 4}))
	assert.False(t, fitsResources(o, types.TaskConfig{RAMMB: 2048}))
	assert.False(t, fitsResources(o, types.TaskConfig{DiskMB: 4096}))
}

func TestAssignPortsAcrossRanges(t *testing.T) {
	ranges := []types.PortRange{{Begin: 31000, End: 31000}, {Begin: 32000, End: 32001}}
	ports, ok := assignPorts([]string{"http", "admin", "debug"}, ranges)
	require.True(t, ok)
	require.Len(t, ports, 3)
	assert.Equal(t, "http", ports[0].Name)
	assert.Equal(t, int32(31000), ports[0].Port)
	assert.Equal(t, int32(32000), ports[1].Port)
	assert.Equal(t, int32(32001), ports[2].Port)
}

func TestAssignPortsInsufficientCapacity(t *testing.T) {
	ranges := []types.PortRange{{Begin: 31000, End: 31000}}
	_, ok := assignPorts([]string{"http", "admin"}, ranges)
	assert.False(t, ok)
}

func TestAssignPortsNoneRequested(t *testing.T) {
	ports, ok := assignPorts(nil, nil)
	assert.True(t, ok)
	assert.Nil(t, ports)
}

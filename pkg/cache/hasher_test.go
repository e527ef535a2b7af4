package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cvrp/pkg/domain"
)

func sampleDataset(reverse bool) *domain.Dataset {
	ds := domain.NewDataset()
	locs := []*domain.Location{
		{ID: 1, Kind: domain.KindWarehouse, Latitude: 55.75, Longitude: 37.61},
		{ID: 2, Kind: domain.KindDestination, Latitude: 59.93, Longitude: 30.33},
	}
	routes := []*domain.Route{
		{ID: 1, OriginID: 1, DestinationID: 2, DistanceKm: 700},
		{ID: 2, OriginID: 2, DestinationID: 1, DistanceKm: 710, RestrictedVehicles: []int64{3}},
	}
	if reverse {
		locs[0], locs[1] = locs[1], locs[0]
		routes[0], routes[1] = routes[1], routes[0]
	}

	for _, l := range locs {
		ds.AddLocation(l)
	}
	for _, r := range routes {
		ds.AddRoute(r)
	}
	ds.AddVehicle(&domain.Vehicle{ID: 1, Capacity: 100, RangeKm: 800, SpeedKmh: 60}).
		AddInventoryType(&domain.InventoryType{ID: 1, VolumePerUnit: 1}).
		SetInventory(1, 1, 50).
		SetFleet(1, 1, 2).
		AddDemand(&domain.Demand{LocationID: 2, InventoryID: 1, Quantity: 30, Priority: 2})
	return ds
}

func TestDatasetHash_OrderIndependent(t *testing.T) {
	a := DatasetHash(sampleDataset(false))
	b := DatasetHash(sampleDataset(true))

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
}

func TestDatasetHash_SensitiveToContent(t *testing.T) {
	base := DatasetHash(sampleDataset(false))

	changed := sampleDataset(false)
	changed.Demand[domain.Key{Location: 2, Item: 1}].Quantity = 31
	assert.NotEqual(t, base, DatasetHash(changed))

	changed = sampleDataset(false)
	changed.SetFleet(1, 1, 3)
	assert.NotEqual(t, base, DatasetHash(changed))

	changed = sampleDataset(false)
	changed.Routes[1].RestrictedVehicles = nil
	assert.NotEqual(t, base, DatasetHash(changed))
}

func TestDatasetHash_Nil(t *testing.T) {
	assert.Empty(t, DatasetHash(nil))
}

func TestBuildSolveKey(t *testing.T) {
	assert.Equal(t, "solve:abc:h2:v0:p3", BuildSolveKey("abc", 2, 0, 3))
}

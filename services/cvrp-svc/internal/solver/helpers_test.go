package solver

import (
	"time"

	"cvrp/pkg/domain"
	"cvrp/services/cvrp-svc/internal/graph"
	"cvrp/services/cvrp-svc/internal/routing"
)

var fixedStart = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedStart }

// склад 1, пункт назначения 2, маршрут 100 км, ТС со скоростью 50 км/ч
func singleLane(stock, demand int64, capacity float64, vehicles int64) *domain.Dataset {
	ds := domain.NewDataset()
	ds.AddLocation(&domain.Location{ID: 1, Name: "Склад", Kind: domain.KindWarehouse, Latitude: 55.75, Longitude: 37.61}).
		AddLocation(&domain.Location{ID: 2, Name: "Магазин", Kind: domain.KindDestination, Latitude: 55.0, Longitude: 37.0}).
		AddVehicle(&domain.Vehicle{ID: 1, Name: "Фургон", Capacity: capacity, RangeKm: 500, SpeedKmh: 50}).
		AddInventoryType(&domain.InventoryType{ID: 1, Name: "Коробка", VolumePerUnit: 1}).
		AddRoute(&domain.Route{ID: 1, OriginID: 1, DestinationID: 2, DistanceKm: 100}).
		SetInventory(1, 1, stock).
		AddDemand(&domain.Demand{LocationID: 2, InventoryID: 1, Quantity: demand, Priority: 1}).
		SetFleet(1, 1, vehicles)
	return ds
}

func newTestPlanner(ds *domain.Dataset, opts ...PlannerOption) (*Planner, *State) {
	oracle := graph.NewOracle(ds)
	finder := routing.NewFinder(ds, domain.BuildRouteGraph(ds.Routes), oracle)
	state := NewState(ds)
	return NewPlanner(ds, state, finder, oracle, opts...), state
}

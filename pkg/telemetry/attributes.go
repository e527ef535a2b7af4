package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	AttrRunID = "solve.run_id"

	AttrLocations   = "dataset.locations"
	AttrRoutes      = "dataset.routes"
	AttrVehicles    = "dataset.vehicle_types"
	AttrDemandLines = "dataset.demand_lines"

	AttrMaxHops     = "solve.max_hops"
	AttrMaxVehicles = "solve.max_vehicles"
	AttrCacheHit    = "solve.cache_hit"

	AttrDeliveries      = "result.deliveries"
	AttrFulfillmentRate = "result.fulfillment_rate"
	AttrPathSearches    = "result.path_searches"
)

// DatasetAttributes возвращает атрибуты набора данных
func DatasetAttributes(locations, routes, vehicles, demandLines int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrLocations, locations),
		attribute.Int(AttrRoutes, routes),
		attribute.Int(AttrVehicles, vehicles),
		attribute.Int(AttrDemandLines, demandLines),
	}
}

// ResultAttributes возвращает атрибуты результата
func ResultAttributes(deliveries int, rate float64, searches int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrDeliveries, deliveries),
		attribute.Float64(AttrFulfillmentRate, rate),
		attribute.Int64(AttrPathSearches, searches),
	}
}

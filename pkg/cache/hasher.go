package cache

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"maps"
	"slices"

	"cvrp/pkg/domain"
)

// DatasetHash вычисляет хеш набора данных для ключа кэша.
// Порядок добавления записей на результат не влияет.
func DatasetHash(ds *domain.Dataset) string {
	if ds == nil {
		return ""
	}

	h := sha256.New()
	writeCanonical(h, ds)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func writeCanonical(h hash.Hash, ds *domain.Dataset) {
	for _, id := range ds.LocationIDs() {
		l := ds.Locations[id]
		fmt.Fprintf(h, "l:%d:%d:%.6f:%.6f:%t;", l.ID, l.Kind, l.Latitude, l.Longitude, l.RefuelCapable)
	}

	for _, id := range ds.VehicleIDs() {
		v := ds.Vehicles[id]
		fmt.Fprintf(h, "v:%d:%.6f:%.6f:%.6f:%.6f:%.6f:%.6f;",
			v.ID, v.Capacity, v.RangeKm, v.SpeedKmh, v.RefuelTime, v.LoadingTime, v.UnloadingTime)
	}

	for _, id := range slices.Sorted(maps.Keys(ds.InventoryTypes)) {
		fmt.Fprintf(h, "i:%d:%.6f;", id, ds.InventoryTypes[id].VolumePerUnit)
	}

	for _, k := range sortedKeys(ds.Inventory) {
		fmt.Fprintf(h, "s:%s:%d;", k, ds.Inventory[k])
	}
	for _, k := range sortedKeys(ds.Fleet) {
		fmt.Fprintf(h, "f:%s:%d;", k, ds.Fleet[k])
	}
	for _, k := range sortedKeys(ds.Demand) {
		dm := ds.Demand[k]
		fmt.Fprintf(h, "d:%s:%d:%d;", k, dm.Quantity, dm.Priority)
	}

	routes := slices.Clone(ds.Routes)
	slices.SortStableFunc(routes, func(a, b *domain.Route) int {
		return cmp.Or(cmp.Compare(a.OriginID, b.OriginID), cmp.Compare(a.DestinationID, b.DestinationID))
	})
	for _, r := range routes {
		fmt.Fprintf(h, "r:%d:%d:%.6f:%s;", r.OriginID, r.DestinationID, r.DistanceKm,
			domain.FormatVehicleList(r.RestrictedVehicles))
	}
}

func sortedKeys[V any](m map[domain.Key]V) []domain.Key {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b domain.Key) int {
		return cmp.Or(cmp.Compare(a.Location, b.Location), cmp.Compare(a.Item, b.Item))
	})
	return keys
}

// BuildSolveKey строит ключ кэша для результата решения
func BuildSolveKey(datasetHash string, maxHops, maxVehicles, maxPaths int) string {
	return fmt.Sprintf("solve:%s:h%d:v%d:p%d", datasetHash, maxHops, maxVehicles, maxPaths)
}

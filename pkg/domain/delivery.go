package domain

import (
	"maps"
	"slices"
	"time"
)

// Loading - план загрузки: вид груза -> количество
type Loading map[int64]int64

// Total возвращает суммарное количество единиц
func (l Loading) Total() int64 {
	var total int64
	for _, qty := range l {
		total += qty
	}
	return total
}

// Items возвращает виды груза по возрастанию id
func (l Loading) Items() []int64 {
	return slices.Sorted(maps.Keys(l))
}

// Clone создаёт копию плана
func (l Loading) Clone() Loading {
	return maps.Clone(l)
}

// Delivery - зафиксированная доставка. После создания не изменяется.
type Delivery struct {
	VehicleID     int64     `json:"vehicle_id"`
	OriginID      int64     `json:"origin_id"`
	DestinationID int64     `json:"destination_id"`
	Path          []int64   `json:"path"`
	DistanceKm    float64   `json:"distance_km"`
	TimeHours     float64   `json:"time_hours"`
	Loading       Loading   `json:"loading"`
	Absorbed      Loading   `json:"absorbed"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

package domain

import (
	"maps"
	"slices"
)

// Statistics - метрики качества решения
type Statistics struct {
	VehiclesUsed    int     `json:"vehicles_used"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	TotalTimeHours  float64 `json:"total_time_hours"`
	TotalDemand     int64   `json:"total_demand"`
	FulfilledDemand int64   `json:"fulfilled_demand"`
	FulfillmentRate float64 `json:"fulfillment_rate"`

	// WarehouseUsage - число доставок из склада
	WarehouseUsage    map[int64]int `json:"warehouse_usage"`
	AvgWarehouseUsage float64       `json:"avg_warehouse_usage"`
	MaxWarehouseUsage int           `json:"max_warehouse_usage"`
	MinWarehouseUsage int           `json:"min_warehouse_usage"`
	// BalanceScore = min/max по использованным складам, 1.0 если доставок нет
	BalanceScore float64 `json:"balance_score"`
}

// CalculateStatistics вычисляет статистику по итоговому набору доставок
// и остаточному неудовлетворённому спросу
func CalculateStatistics(ds *Dataset, deliveries []Delivery, unfulfilled map[Key]int64) *Statistics {
	stats := &Statistics{
		VehiclesUsed:   len(deliveries),
		WarehouseUsage: make(map[int64]int),
		BalanceScore:   1.0,
	}

	for i := range deliveries {
		stats.TotalDistanceKm += deliveries[i].DistanceKm
		stats.TotalTimeHours += deliveries[i].TimeHours
		stats.WarehouseUsage[deliveries[i].OriginID]++
	}

	for k, dm := range ds.Demand {
		stats.TotalDemand += dm.Quantity
		stats.FulfilledDemand += dm.Quantity - unfulfilled[k]
	}

	if stats.TotalDemand > 0 {
		stats.FulfillmentRate = float64(stats.FulfilledDemand) / float64(stats.TotalDemand)
	}

	if len(stats.WarehouseUsage) > 0 {
		total := 0
		stats.MinWarehouseUsage = int(^uint(0) >> 1)
		for _, n := range stats.WarehouseUsage {
			total += n
			stats.MaxWarehouseUsage = max(stats.MaxWarehouseUsage, n)
			stats.MinWarehouseUsage = min(stats.MinWarehouseUsage, n)
		}
		stats.AvgWarehouseUsage = float64(total) / float64(len(stats.WarehouseUsage))
		stats.BalanceScore = float64(stats.MinWarehouseUsage) / float64(stats.MaxWarehouseUsage)
	}

	return stats
}

// UsedWarehouses возвращает id использованных складов по возрастанию
func (s *Statistics) UsedWarehouses() []int64 {
	return slices.Sorted(maps.Keys(s.WarehouseUsage))
}

// FulfillmentGrade оценка выполнения спроса
type FulfillmentGrade string

const (
	GradeA FulfillmentGrade = "A"
	GradeB FulfillmentGrade = "B"
	GradeC FulfillmentGrade = "C"
	GradeD FulfillmentGrade = "D"
	GradeF FulfillmentGrade = "F"
)

// Grade определяет оценку по доле выполненного спроса
func (s *Statistics) Grade() FulfillmentGrade {
	switch {
	case s.FulfillmentRate >= 0.95:
		return GradeA
	case s.FulfillmentRate >= 0.8:
		return GradeB
	case s.FulfillmentRate >= 0.6:
		return GradeC
	case s.FulfillmentRate >= 0.4:
		return GradeD
	default:
		return GradeF
	}
}

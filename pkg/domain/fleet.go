package domain

// Vehicle - тип транспортного средства. Экземпляры учитываются только
// количеством на локации.
type Vehicle struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Capacity      float64 `json:"capacity"`       // единицы объёма
	RangeKm       float64 `json:"range_km"`       // без дозаправки
	SpeedKmh      float64 `json:"speed_kmh"`
	RefuelTime    float64 `json:"refuel_time"`    // часы
	LoadingTime   float64 `json:"loading_time"`   // часы
	UnloadingTime float64 `json:"unloading_time"` // часы
}

// InventoryType - вид груза
type InventoryType struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	VolumePerUnit float64 `json:"volume_per_unit"`
	WeightPerUnit float64 `json:"weight_per_unit"`
}

// Volume возвращает объём qty единиц
func (t *InventoryType) Volume(qty int64) float64 {
	return float64(qty) * t.VolumePerUnit
}

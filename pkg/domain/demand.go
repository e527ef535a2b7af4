package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Key - составной ключ (локация, позиция). Для остатков и спроса Item -
// вид груза, для парка - тип транспортного средства.
type Key struct {
	Location int64
	Item     int64
}

// String возвращает строковое представление ключа
func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.Location, k.Item)
}

// Demand - потребность локации в виде груза
type Demand struct {
	LocationID  int64      `json:"location_id"`
	InventoryID int64      `json:"inventory_id"`
	Quantity    int64      `json:"quantity"`
	Priority    int        `json:"priority"` // больше = срочнее
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Key возвращает ключ строки спроса
func (d *Demand) Key() Key {
	return Key{Location: d.LocationID, Item: d.InventoryID}
}

// EdgeKey уникальный ключ направленного ребра
type EdgeKey struct {
	From int64
	To   int64
}

// String возвращает строковое представление ключа ребра
func (e EdgeKey) String() string {
	return fmt.Sprintf("%d->%d", e.From, e.To)
}

// Route - направленное ребро маршрутной сети
type Route struct {
	ID                 int64    `json:"id"`
	OriginID           int64    `json:"origin_id"`
	DestinationID      int64    `json:"destination_id"`
	DistanceKm         float64  `json:"distance_km"`
	EstimatedTimeHours *float64 `json:"estimated_time_hours,omitempty"`
	// RestrictedVehicles - типы ТС, которым ребро запрещено
	RestrictedVehicles []int64 `json:"restricted_vehicles,omitempty"`
}

// Key возвращает ключ ребра
func (r *Route) Key() EdgeKey {
	return EdgeKey{From: r.OriginID, To: r.DestinationID}
}

// AllowsVehicle проверяет, разрешено ли ребро для типа ТС
func (r *Route) AllowsVehicle(vehicleID int64) bool {
	return !slices.Contains(r.RestrictedVehicles, vehicleID)
}

// ParseVehicleList разбирает список id через запятую ("1, 3,4").
// Пустые элементы пропускаются.
func ParseVehicleList(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vehicle id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FormatVehicleList - обратная операция к ParseVehicleList
func FormatVehicleList(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

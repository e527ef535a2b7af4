package domain

import (
	"strings"
)

// LocationKind - набор флагов категории локации
type LocationKind uint8

const (
	KindWarehouse LocationKind = 1 << iota
	KindDestination
	KindRefuelPoint
)

// ParseLocationKind разбирает текстовую категорию вида "WAREHOUSE,REFUEL_POINT".
// Поиск подстрочный, поэтому допустимы любые разделители.
func ParseLocationKind(s string) LocationKind {
	s = strings.ToUpper(s)
	var k LocationKind
	if strings.Contains(s, "WAREHOUSE") {
		k |= KindWarehouse
	}
	if strings.Contains(s, "DESTINATION") {
		k |= KindDestination
	}
	if strings.Contains(s, "REFUEL") {
		k |= KindRefuelPoint
	}
	return k
}

// Has проверяет наличие флага
func (k LocationKind) Has(flag LocationKind) bool {
	return k&flag != 0
}

// String возвращает текстовое представление в формате хранилища
func (k LocationKind) String() string {
	var parts []string
	if k.Has(KindWarehouse) {
		parts = append(parts, "WAREHOUSE")
	}
	if k.Has(KindDestination) {
		parts = append(parts, "DESTINATION")
	}
	if k.Has(KindRefuelPoint) {
		parts = append(parts, "REFUEL_POINT")
	}
	if len(parts) == 0 {
		return "UNSPECIFIED"
	}
	return strings.Join(parts, ",")
}

// Location - точка сети: склад, пункт назначения, заправка или их комбинация
type Location struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Kind          LocationKind `json:"kind"`
	Latitude      float64      `json:"latitude"`
	Longitude     float64      `json:"longitude"`
	RefuelCapable bool         `json:"refuel_capable"`
	// WarehouseCapacity - вместимость склада, nil если не задана
	WarehouseCapacity *int64 `json:"warehouse_capacity,omitempty"`
}

// IsWarehouse проверяет, может ли локация быть точкой отправки
func (l *Location) IsWarehouse() bool {
	return l.Kind.Has(KindWarehouse)
}

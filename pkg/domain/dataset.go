package domain

import (
	"fmt"
	"maps"
	"slices"

	"cvrp/pkg/apperror"
)

// Dataset - неизменяемые справочные данные одного запуска солвера.
// Inventory и Fleet - базовые (загруженные) копии; рабочие копии живут
// в состоянии солвера.
type Dataset struct {
	Locations      map[int64]*Location
	Vehicles       map[int64]*Vehicle
	InventoryTypes map[int64]*InventoryType
	Inventory      map[Key]int64 // (локация, вид груза) -> количество
	Demand         map[Key]*Demand
	Routes         []*Route
	Fleet          map[Key]int64 // (локация, тип ТС) -> количество
}

// NewDataset создаёт пустой набор данных
func NewDataset() *Dataset {
	return &Dataset{
		Locations:      make(map[int64]*Location),
		Vehicles:       make(map[int64]*Vehicle),
		InventoryTypes: make(map[int64]*InventoryType),
		Inventory:      make(map[Key]int64),
		Demand:         make(map[Key]*Demand),
		Fleet:          make(map[Key]int64),
	}
}

// AddLocation добавляет локацию
func (d *Dataset) AddLocation(l *Location) *Dataset {
	d.Locations[l.ID] = l
	return d
}

// AddVehicle добавляет тип ТС
func (d *Dataset) AddVehicle(v *Vehicle) *Dataset {
	d.Vehicles[v.ID] = v
	return d
}

// AddInventoryType добавляет вид груза
func (d *Dataset) AddInventoryType(t *InventoryType) *Dataset {
	d.InventoryTypes[t.ID] = t
	return d
}

// SetInventory задаёт остаток на локации
func (d *Dataset) SetInventory(locationID, inventoryID, qty int64) *Dataset {
	d.Inventory[Key{Location: locationID, Item: inventoryID}] = qty
	return d
}

// AddDemand добавляет строку спроса
func (d *Dataset) AddDemand(dm *Demand) *Dataset {
	d.Demand[dm.Key()] = dm
	return d
}

// AddRoute добавляет направленное ребро
func (d *Dataset) AddRoute(r *Route) *Dataset {
	d.Routes = append(d.Routes, r)
	return d
}

// SetFleet задаёт количество ТС типа на локации
func (d *Dataset) SetFleet(locationID, vehicleID, count int64) *Dataset {
	d.Fleet[Key{Location: locationID, Item: vehicleID}] = count
	return d
}

// Location возвращает локацию по id
func (d *Dataset) Location(id int64) (*Location, error) {
	l, ok := d.Locations[id]
	if !ok {
		return nil, apperror.Newf(apperror.CodeNotFound, "location %d not found", id).WithField("location_id")
	}
	return l, nil
}

// Vehicle возвращает тип ТС по id
func (d *Dataset) Vehicle(id int64) (*Vehicle, error) {
	v, ok := d.Vehicles[id]
	if !ok {
		return nil, apperror.Newf(apperror.CodeNotFound, "vehicle %d not found", id).WithField("vehicle_id")
	}
	return v, nil
}

// InventoryType возвращает вид груза по id
func (d *Dataset) InventoryType(id int64) (*InventoryType, error) {
	t, ok := d.InventoryTypes[id]
	if !ok {
		return nil, apperror.Newf(apperror.CodeNotFound, "inventory type %d not found", id).WithField("inventory_id")
	}
	return t, nil
}

// LocationIDs возвращает id всех локаций по возрастанию
func (d *Dataset) LocationIDs() []int64 {
	return slices.Sorted(maps.Keys(d.Locations))
}

// VehicleIDs возвращает id всех типов ТС по возрастанию
func (d *Dataset) VehicleIDs() []int64 {
	return slices.Sorted(maps.Keys(d.Vehicles))
}

// WarehouseIDs возвращает id складов по возрастанию
func (d *Dataset) WarehouseIDs() []int64 {
	var ids []int64
	for _, id := range d.LocationIDs() {
		if d.Locations[id].IsWarehouse() {
			ids = append(ids, id)
		}
	}
	return ids
}

// DemandFor возвращает строку спроса или nil
func (d *Dataset) DemandFor(locationID, inventoryID int64) *Demand {
	return d.Demand[Key{Location: locationID, Item: inventoryID}]
}

// TotalDemand возвращает суммарный исходный спрос
func (d *Dataset) TotalDemand() int64 {
	var total int64
	for _, dm := range d.Demand {
		total += dm.Quantity
	}
	return total
}

// Validate проверяет ссылочную целостность и знаки количеств
func (d *Dataset) Validate() error {
	return d.Check().Err()
}

// Check собирает ошибки и предупреждения. Предупреждения не делают набор
// недопустимым: ТС без вместимости или запаса хода и спрос в пункте без
// входящих маршрутов.
func (d *Dataset) Check() *apperror.ValidationErrors {
	ve := apperror.NewValidationErrors()

	for id, l := range d.Locations {
		if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
			ve.Add(apperror.Newf(apperror.CodeInvalidCoordinate,
				"location %d has coordinates out of range (%f, %f)", id, l.Latitude, l.Longitude))
		}
	}

	for id, v := range d.Vehicles {
		if v.SpeedKmh <= 0 {
			ve.Add(apperror.Newf(apperror.CodeInvalidVehicle, "vehicle %d has non-positive speed", id))
		}
		if v.Capacity < 0 || v.RangeKm < 0 {
			ve.Add(apperror.Newf(apperror.CodeInvalidVehicle, "vehicle %d has negative capacity or range", id))
		} else if v.Capacity == 0 || v.RangeKm == 0 {
			ve.AddWarning(apperror.CodeInvalidVehicle, fmt.Sprintf("vehicle %d has zero capacity or range and cannot deliver", id))
		}
	}

	for id, t := range d.InventoryTypes {
		if t.VolumePerUnit < 0 {
			ve.Add(apperror.Newf(apperror.CodeNegativeQuantity, "inventory type %d has negative volume", id))
		}
	}

	for k, qty := range d.Inventory {
		d.checkRef(ve, "inventory", k.Location, k.Item, true)
		if qty < 0 {
			ve.Add(apperror.Newf(apperror.CodeNegativeQuantity, "inventory %s is negative (%d)", k, qty))
		}
	}

	for k, dm := range d.Demand {
		d.checkRef(ve, "demand", k.Location, k.Item, true)
		if dm.Quantity < 0 {
			ve.Add(apperror.Newf(apperror.CodeNegativeQuantity, "demand %s is negative (%d)", k, dm.Quantity))
		}
	}

	for k, count := range d.Fleet {
		d.checkRef(ve, "fleet", k.Location, k.Item, false)
		if count < 0 {
			ve.Add(apperror.Newf(apperror.CodeNegativeQuantity, "fleet %s is negative (%d)", k, count))
		}
	}

	for _, r := range d.Routes {
		if _, ok := d.Locations[r.OriginID]; !ok {
			ve.Add(apperror.Newf(apperror.CodeDanglingReference, "route %d origin %d not found", r.ID, r.OriginID))
		}
		if _, ok := d.Locations[r.DestinationID]; !ok {
			ve.Add(apperror.Newf(apperror.CodeDanglingReference, "route %d destination %d not found", r.ID, r.DestinationID))
		}
		if r.DistanceKm < 0 {
			ve.Add(apperror.Newf(apperror.CodeNegativeQuantity, "route %d has negative distance", r.ID))
		}
	}

	d.checkReachable(ve)
	return ve
}

// checkReachable предупреждает о спросе, к которому не ведёт ни один маршрут
func (d *Dataset) checkReachable(ve *apperror.ValidationErrors) {
	incoming := make(map[int64]bool, len(d.Routes))
	for _, r := range d.Routes {
		incoming[r.DestinationID] = true
	}

	pending := make(map[int64]int64)
	for k, dm := range d.Demand {
		if dm.Quantity > 0 {
			pending[k.Location] += dm.Quantity
		}
	}

	for _, id := range d.LocationIDs() {
		if pending[id] > 0 && !incoming[id] {
			ve.AddWarning(apperror.CodeNoPath, fmt.Sprintf("location %d has demand %d but no incoming route", id, pending[id]))
		}
	}
}

func (d *Dataset) checkRef(ve *apperror.ValidationErrors, table string, locationID, itemID int64, inventory bool) {
	if _, ok := d.Locations[locationID]; !ok {
		ve.Add(apperror.Newf(apperror.CodeDanglingReference, "%s row references unknown location %d", table, locationID))
	}
	if inventory {
		if _, ok := d.InventoryTypes[itemID]; !ok {
			ve.Add(apperror.Newf(apperror.CodeDanglingReference, "%s row references unknown inventory type %d", table, itemID))
		}
		return
	}
	if _, ok := d.Vehicles[itemID]; !ok {
		ve.Add(apperror.Newf(apperror.CodeDanglingReference, "%s row references unknown vehicle %d", table, itemID))
	}
}

// Summary возвращает краткое описание для логов
func (d *Dataset) Summary() string {
	return fmt.Sprintf("locations=%d vehicles=%d inventory_types=%d routes=%d demand_lines=%d",
		len(d.Locations), len(d.Vehicles), len(d.InventoryTypes), len(d.Routes), len(d.Demand))
}

package solver

import (
	"maps"
	"slices"

	"cvrp/pkg/apperror"
	"cvrp/pkg/domain"
)

// State - рабочее состояние одного запуска: доступные остатки, доступные ТС
// и неудовлетворённый спрос. Владелец - Solver; планировщик только читает.
// Запись и чтение не должны пересекаться во времени.
type State struct {
	ds *domain.Dataset

	inventory   map[domain.Key]int64
	fleet       map[domain.Key]int64
	unfulfilled map[domain.Key]int64
}

// Snapshot - независимая копия рабочего состояния
type Snapshot struct {
	Inventory   map[domain.Key]int64
	Fleet       map[domain.Key]int64
	Unfulfilled map[domain.Key]int64
}

// NewState создаёт состояние, сброшенное к базовым данным
func NewState(ds *domain.Dataset) *State {
	s := &State{ds: ds}
	s.Reset()
	return s
}

// Reset восстанавливает рабочие копии из базовых данных. Идемпотентен.
func (s *State) Reset() {
	s.inventory = maps.Clone(s.ds.Inventory)
	s.fleet = maps.Clone(s.ds.Fleet)

	s.unfulfilled = make(map[domain.Key]int64, len(s.ds.Demand))
	for k, dm := range s.ds.Demand {
		if dm.Quantity > 0 {
			s.unfulfilled[k] = dm.Quantity
		}
	}
}

// Snapshot возвращает копию текущего состояния
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Inventory:   maps.Clone(s.inventory),
		Fleet:       maps.Clone(s.fleet),
		Unfulfilled: maps.Clone(s.unfulfilled),
	}
}

// Available возвращает доступный остаток груза на локации
func (s *State) Available(locationID, inventoryID int64) int64 {
	return s.inventory[domain.Key{Location: locationID, Item: inventoryID}]
}

// Vehicles возвращает количество доступных ТС типа на локации
func (s *State) Vehicles(locationID, vehicleID int64) int64 {
	return s.fleet[domain.Key{Location: locationID, Item: vehicleID}]
}

// Outstanding возвращает неудовлетворённый спрос
func (s *State) Outstanding(locationID, inventoryID int64) int64 {
	return s.unfulfilled[domain.Key{Location: locationID, Item: inventoryID}]
}

// OutstandingLines возвращает положительные строки спроса локации
func (s *State) OutstandingLines(locationID int64) domain.Loading {
	lines := make(domain.Loading)
	for k, qty := range s.unfulfilled {
		if k.Location == locationID && qty > 0 {
			lines[k.Item] = qty
		}
	}
	return lines
}

// DemandLocations возвращает локации с неудовлетворённым спросом по возрастанию id
func (s *State) DemandLocations() []int64 {
	set := make(map[int64]struct{})
	for k, qty := range s.unfulfilled {
		if qty > 0 {
			set[k.Location] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// Unfulfilled возвращает копию неудовлетворённого спроса
func (s *State) Unfulfilled() map[domain.Key]int64 {
	return maps.Clone(s.unfulfilled)
}

// Commit применяет план, выбранный для локации loc: списывает ТС и груз
// на складе, уменьшает спрос loc на принятое количество (не ниже нуля).
// Спрос списывается с loc, даже если путь плана заканчивается в другом пункте.
// При нехватке ресурсов ничего не меняет и возвращает INFEASIBLE.
func (s *State) Commit(loc int64, p *Plan) error {
	vk := domain.Key{Location: p.OriginID, Item: p.VehicleID}
	if s.fleet[vk] < 1 {
		return apperror.Newf(apperror.CodeInfeasible,
			"vehicle %d not available at location %d", p.VehicleID, p.OriginID).
			WithDetails("vehicle_id", p.VehicleID).
			WithDetails("origin_id", p.OriginID)
	}

	for item, qty := range p.Loading {
		if qty < 0 {
			return apperror.Newf(apperror.CodeNegativeQuantity, "negative load %d of item %d", qty, item)
		}
		if s.inventory[domain.Key{Location: p.OriginID, Item: item}] < qty {
			return apperror.Newf(apperror.CodeInfeasible,
				"insufficient inventory of item %d at location %d", item, p.OriginID).
				WithDetails("requested", qty).
				WithDetails("available", s.inventory[domain.Key{Location: p.OriginID, Item: item}])
		}
	}

	s.fleet[vk]--

	for item, qty := range p.Loading {
		s.inventory[domain.Key{Location: p.OriginID, Item: item}] -= qty
	}

	for item, qty := range p.Absorbed {
		k := domain.Key{Location: loc, Item: item}
		left := s.unfulfilled[k] - qty
		if left <= 0 {
			delete(s.unfulfilled, k)
		} else {
			s.unfulfilled[k] = left
		}
	}

	return nil
}

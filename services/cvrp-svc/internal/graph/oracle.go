package graph

import (
	"cvrp/pkg/domain"
)

// Oracle отвечает на вопрос "сколько километров между двумя локациями".
// Записанное расстояние маршрута имеет приоритет над геометрией: маршрут
// может учитывать реальные объезды.
type Oracle struct {
	ds       *domain.Dataset
	recorded map[domain.EdgeKey]float64
}

// NewOracle создаёт оракул расстояний по набору данных
func NewOracle(ds *domain.Dataset) *Oracle {
	recorded := make(map[domain.EdgeKey]float64, len(ds.Routes))
	for _, r := range ds.Routes {
		recorded[r.Key()] = r.DistanceKm
	}
	return &Oracle{ds: ds, recorded: recorded}
}

// Distance возвращает расстояние от origin до destination в километрах.
// Неизвестная локация - ошибка NOT_FOUND.
func (o *Oracle) Distance(origin, destination int64) (float64, error) {
	if d, ok := o.recorded[domain.EdgeKey{From: origin, To: destination}]; ok {
		return d, nil
	}

	a, err := o.ds.Location(origin)
	if err != nil {
		return 0, err
	}
	b, err := o.ds.Location(destination)
	if err != nil {
		return 0, err
	}

	return domain.Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude), nil
}

// PathDistance суммирует расстояния между соседними узлами пути.
// Для пустого пути и пути из одного узла возвращает +Inf.
func (o *Oracle) PathDistance(path []int64) (float64, error) {
	if len(path) < 2 {
		return domain.Infinity, nil
	}

	var total float64
	for i := 0; i < len(path)-1; i++ {
		d, err := o.Distance(path[i], path[i+1])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

// PathTime возвращает полное время рейса в часах: погрузка, движение,
// дозаправка на каждой промежуточной заправочной точке и разгрузка.
// Для вырожденного пути возвращает +Inf.
func (o *Oracle) PathTime(path []int64, v *domain.Vehicle) (float64, error) {
	if len(path) < 2 {
		return domain.Infinity, nil
	}

	total := v.LoadingTime

	for i := 0; i < len(path)-1; i++ {
		d, err := o.Distance(path[i], path[i+1])
		if err != nil {
			return 0, err
		}
		total += d / v.SpeedKmh

		// Промежуточная остановка (не пункт назначения)
		if i < len(path)-2 {
			stop, err := o.ds.Location(path[i+1])
			if err != nil {
				return 0, err
			}
			if stop.RefuelCapable {
				total += v.RefuelTime
			}
		}
	}

	total += v.UnloadingTime

	return total, nil
}

package domain

import "math"

// Математические константы
const (
	Epsilon = 1e-9
	// EarthRadiusKm - радиус Земли для формулы гаверсинуса
	EarthRadiusKm = 6371.0
)

// Infinity - расстояние/время вырожденного пути; любое сравнение с ним проигрывает
var Infinity = math.Inf(1)

// Значения по умолчанию для транспортных средств (часы)
const (
	DefaultRefuelTime    = 0.5
	DefaultLoadingTime   = 0.5
	DefaultUnloadingTime = 0.5
)

// Параметры солвера по умолчанию
const (
	DefaultMaxHops  = 2
	DefaultMaxPaths = 3
)

// MinInt64 возвращает минимум двух int64
func MinInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

package report

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"cvrp/pkg/cache"
	"cvrp/pkg/domain"
	"cvrp/services/cvrp-svc/internal/service"
)

// Data данные для консольной сводки
type Data struct {
	RunID        uuid.UUID
	Dataset      *domain.Dataset
	Deliveries   []domain.Delivery
	Statistics   *domain.Statistics
	Unfulfilled  []cache.UnfulfilledLine
	PathSearches int64
	CacheHit     bool
	Saved        bool
	Duration     time.Duration
}

// FromResult собирает данные сводки из результата запуска
func FromResult(res *service.Result) *Data {
	return &Data{
		RunID:        res.RunID,
		Dataset:      res.Dataset,
		Deliveries:   res.Deliveries,
		Statistics:   res.Statistics,
		Unfulfilled:  cache.UnfulfilledLines(res.Unfulfilled),
		PathSearches: res.PathSearches,
		CacheHit:     res.CacheHit,
		Saved:        res.Saved,
		Duration:     res.Duration,
	}
}

// UsageRow строка агрегированной таблицы: склад, тип ТС или вид груза
type UsageRow struct {
	ID    int64
	Name  string
	Count int64
}

// Summary печатает итог запуска в консоль
type Summary struct {
	// Details добавляет таблицу доставок
	Details bool
}

// Write выводит сводку в w
func (s Summary) Write(w io.Writer, data *Data) error {
	bw := bufio.NewWriter(w)
	stats := statsOf(data)

	fmt.Fprintf(bw, "Run %s", data.RunID)
	if data.CacheHit {
		bw.WriteString(" (served from cache)")
	}
	bw.WriteString("\n")
	fmt.Fprintf(bw, "Solution found in %.2f seconds\n", data.Duration.Seconds())
	fmt.Fprintf(bw, "Total vehicles used: %d\n", stats.VehiclesUsed)
	fmt.Fprintf(bw, "Total distance: %.2f km\n", stats.TotalDistanceKm)
	fmt.Fprintf(bw, "Total time: %.2f hours\n", stats.TotalTimeHours)
	fmt.Fprintf(bw, "Demand fulfilled: %d of %d\n", stats.FulfilledDemand, stats.TotalDemand)
	fmt.Fprintf(bw, "Demand fulfillment rate: %.2f%% (grade %s)\n", stats.FulfillmentRate*100, stats.Grade())
	fmt.Fprintf(bw, "Balance score: %.2f\n", stats.BalanceScore)

	bw.WriteString("Warehouse usage:\n")
	usage := WarehouseUsage(data)
	if len(usage) == 0 {
		bw.WriteString("  none\n")
	}
	for _, row := range usage {
		fmt.Fprintf(bw, "  %s: %d vehicles\n", row.Name, row.Count)
	}

	if delivered := InventoryDelivered(data); len(delivered) > 0 {
		bw.WriteString("Inventory delivered:\n")
		for _, row := range delivered {
			fmt.Fprintf(bw, "  %s: %d\n", row.Name, row.Count)
		}
	}

	if len(data.Unfulfilled) > 0 {
		bw.WriteString("Unfulfilled demand:\n")
		for _, line := range data.Unfulfilled {
			fmt.Fprintf(bw, "  %s: %d x %s\n",
				locationName(data, line.LocationID), line.Quantity, inventoryName(data, line.InventoryID))
		}
	}

	if s.Details && len(data.Deliveries) > 0 {
		bw.WriteString("\n")
		if err := writeDeliveries(bw, data); err != nil {
			return err
		}
	}

	if data.Saved {
		fmt.Fprintf(bw, "Saved %d deliveries to database\n", len(data.Deliveries))
	}

	return bw.Flush()
}

func writeDeliveries(w io.Writer, data *Data) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tVehicle\tOrigin\tDestination\tDistance (km)\tTime (h)\tPath\tItems")
	for i := range data.Deliveries {
		d := &data.Deliveries[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\n",
			i+1,
			vehicleName(data, d.VehicleID),
			locationName(data, d.OriginID),
			locationName(data, d.DestinationID),
			d.DistanceKm,
			d.TimeHours,
			formatPath(d.Path),
			formatLoading(data, d.Loading),
		)
	}
	return tw.Flush()
}

// WarehouseUsage возвращает число доставок по складам, по возрастанию id
func WarehouseUsage(data *Data) []UsageRow {
	stats := statsOf(data)
	ids := stats.UsedWarehouses()
	rows := make([]UsageRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, UsageRow{ID: id, Name: locationName(data, id), Count: int64(stats.WarehouseUsage[id])})
	}
	return rows
}

// InventoryDelivered возвращает доставленное количество по видам груза
func InventoryDelivered(data *Data) []UsageRow {
	counts := make(map[int64]int64)
	for i := range data.Deliveries {
		for id, qty := range data.Deliveries[i].Loading {
			counts[id] += qty
		}
	}
	rows := make([]UsageRow, 0, len(counts))
	for _, id := range slices.Sorted(maps.Keys(counts)) {
		rows = append(rows, UsageRow{ID: id, Name: inventoryName(data, id), Count: counts[id]})
	}
	return rows
}

func statsOf(data *Data) *domain.Statistics {
	if data.Statistics == nil {
		return &domain.Statistics{WarehouseUsage: map[int64]int{}, BalanceScore: 1.0}
	}
	return data.Statistics
}

func formatPath(path []int64) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, " -> ")
}

// formatLoading печатает "40 Box, 5 Barrel" по возрастанию id груза
func formatLoading(data *Data, l domain.Loading) string {
	items := l.Items()
	parts := make([]string, len(items))
	for i, id := range items {
		parts[i] = fmt.Sprintf("%d %s", l[id], inventoryName(data, id))
	}
	return strings.Join(parts, ", ")
}

func locationName(data *Data, id int64) string {
	if data.Dataset != nil {
		if loc, ok := data.Dataset.Locations[id]; ok && loc.Name != "" {
			return loc.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func vehicleName(data *Data, id int64) string {
	if data.Dataset != nil {
		if v, ok := data.Dataset.Vehicles[id]; ok && v.Name != "" {
			return v.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func inventoryName(data *Data, id int64) string {
	if data.Dataset != nil {
		if t, ok := data.Dataset.InventoryTypes[id]; ok && t.Name != "" {
			return t.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

package meridian

import "sort"

// Catalog is the closed table of metrics the platform publishes per device
// kind, mapping each metric to the device property key that carries its
// point alias. The default catalog is a process-wide singleton and safe
// for concurrent readers.
type Catalog struct {
	entries map[DeviceKind]map[MetricName]string
}

var defaultCatalog = &Catalog{
	entries: map[DeviceKind]map[MetricName]string{
		KindCompressor: {
			DischargePressure:    "DischargePressure",
			DischargeTemperature: "DischargeTemperature",
			SuctionPressure:      "SuctionPressure",
			SuctionTemperature:   "SuctionTemperature",
		},
		KindCondenser: {
			DischargePressure:    "DischargePressure",
			DischargeTemperature: "DischargeTemperature",
		},
		KindEvaporator: {
			SupplyTemperature: "SupplyTemperature",
			ReturnTemperature: "ReturnTemperature",
		},
		KindVessel: {
			SuctionPressure: "SuctionPressure",
		},
	},
}

// DefaultCatalog returns the catalog of metrics built into the platform.
func DefaultCatalog() *Catalog { return defaultCatalog }

// KnownKind reports whether the device kind is catalogued.
func (c *Catalog) KnownKind(kind DeviceKind) bool {
	_, ok := c.entries[kind]
	return ok
}

// Valid reports whether the metric is defined for the device kind.
func (c *Catalog) Valid(kind DeviceKind, name MetricName) bool {
	_, ok := c.entries[kind][name]
	return ok
}

// PropertyKey returns the device property key carrying the alias for the
// given kind and metric, and whether the pair is catalogued.
func (c *Catalog) PropertyKey(kind DeviceKind, name MetricName) (string, bool) {
	key, ok := c.entries[kind][name]
	return key, ok
}

// Kinds returns the catalogued device kinds in sorted order.
func (c *Catalog) Kinds() []DeviceKind {
	kinds := make([]DeviceKind, 0, len(c.entries))
	for kind := range c.entries {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Metrics returns the metrics catalogued for a device kind in sorted
// order. Unknown kinds yield an empty slice.
func (c *Catalog) Metrics(kind DeviceKind) []MetricName {
	names := make([]MetricName, 0, len(c.entries[kind]))
	for name := range c.entries[kind] {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

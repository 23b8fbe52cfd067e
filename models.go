package meridian

// DeviceKind identifies the class of refrigeration equipment a device
// belongs to. The platform reports kinds as lowercase strings.
type DeviceKind string

const (
	KindCompressor DeviceKind = "compressor"
	KindCondenser  DeviceKind = "condenser"
	KindEvaporator DeviceKind = "evaporator"
	KindVessel     DeviceKind = "vessel"
)

// MetricName names a catalogued device metric. Metric names double as the
// device property keys under which agents publish the point alias carrying
// the metric.
type MetricName string

const (
	DischargePressure    MetricName = "DischargePressure"
	DischargeTemperature MetricName = "DischargeTemperature"
	SuctionPressure      MetricName = "SuctionPressure"
	SuctionTemperature   MetricName = "SuctionTemperature"
	SupplyTemperature    MetricName = "SupplyTemperature"
	ReturnTemperature    MetricName = "ReturnTemperature"
)

// AggregateBy selects the server-side aggregation applied to the raw
// samples inside each interval bucket.
type AggregateBy string

const (
	AggregateAvg   AggregateBy = "avg"
	AggregateMin   AggregateBy = "min"
	AggregateMax   AggregateBy = "max"
	AggregateFirst AggregateBy = "first"
	AggregateLast  AggregateBy = "last"
)

// Agent is a data-collection gateway installed at a facility.
type Agent struct {
	AgentID string `json:"agent_id"`
}

// Facility describes a monitored site and the agents installed there.
type Facility struct {
	OrganizationID string  `json:"organization_id"`
	FacilityID     string  `json:"facility_id"`
	DisplayName    string  `json:"display_name"`
	ShortName      string  `json:"short_name"`
	Address        string  `json:"address"`
	Timezone       string  `json:"timezone"`
	Agents         []Agent `json:"agents"`
}

// PropertyValue carries the point alias published for a device property.
type PropertyValue struct {
	Alias string `json:"alias"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Bias  string `json:"bias"`
}

// Property is a named attribute of a device. Catalogued metrics appear as
// properties keyed by the metric name.
type Property struct {
	Key   string        `json:"key"`
	Value PropertyValue `json:"value"`
}

// Connection links a device to an upstream or downstream peer.
type Connection struct {
	DeviceID string `json:"device_id"`
	Kind     string `json:"kind"`
}

// Device is a piece of equipment reported by a facility agent.
type Device struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Alias      string       `json:"alias"`
	Kind       DeviceKind   `json:"kind"`
	Properties []Property   `json:"properties,omitempty"`
	Upstream   []Connection `json:"upstream,omitempty"`
	Downstream []Connection `json:"downstream,omitempty"`
}

// AnalogValues holds raw analog samples as parallel timestamp and value
// slices. Timestamps are Unix seconds.
type AnalogValues struct {
	Timestamps []int64   `json:"timestamps"`
	Values     []float64 `json:"values"`
}

// DiscreteValues holds raw discrete samples as parallel timestamp and
// value slices. Timestamps are Unix seconds.
type DiscreteValues struct {
	Timestamps []int64 `json:"timestamps"`
	Values     []bool  `json:"values"`
}

// PointValues carries the samples of one point under one aggregation. At
// most one of Analog and Discrete is set.
type PointValues struct {
	Analog   *AnalogValues   `json:"analog,omitempty"`
	Discrete *DiscreteValues `json:"discrete,omitempty"`
}

// HistoricalValues is the per-point payload of a historical-value
// response, keyed by aggregation method.
type HistoricalValues struct {
	PointID string                      `json:"point_id"`
	Values  map[AggregateBy]PointValues `json:"values"`
}

// HistoricalPage is one page of a historical-value response. A non-empty
// Next token means more pages follow.
type HistoricalPage struct {
	Values []HistoricalValues `json:"values"`
	Next   string             `json:"next,omitempty"`
}

// HourlyRate is the rate in effect for the hour beginning at Start (Unix
// seconds).
type HourlyRate struct {
	Start int64   `json:"start"`
	Rate  float64 `json:"rate"`
}

// HourlyRates groups the rate categories published for a facility. The
// slices are empty for categories the facility does not subscribe to.
type HourlyRates struct {
	UsageRate             []HourlyRate `json:"usage_rate"`
	MaximumDemandCharge   []HourlyRate `json:"maximum_demand_charge"`
	TimeOfUseDemandCharge []HourlyRate `json:"time_of_use_demand_charge"`
	DayAheadMarketRate    []HourlyRate `json:"day_ahead_market_rate"`
	RealTimeMarketRate    []HourlyRate `json:"real_time_market_rate"`
}

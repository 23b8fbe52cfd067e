package meridian

import (
	"context"
	"fmt"
	"sort"
)

// PointBinding ties one resolved point to the facility, device, and
// metric selector it satisfies. PointID is empty until the alias has
// been resolved by the agent, and stays empty for aliases the agent does
// not know.
type PointBinding struct {
	Facility Facility
	Device   Device
	Metric   DeviceMetric
	Label    string // metric name, or the matched alias for regex selectors
	Alias    string // point alias published by the agent
	PointID  string
}

// Resolve expands the filter into concrete point bindings without
// fetching any samples. Bindings are ordered by facility short name,
// device id, and label, with duplicate (device, alias) pairs removed.
func (r *MetricsReader) Resolve(ctx context.Context, filter Filter) ([]PointBinding, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	facilities, err := selectFacilities(ctx, r.api, filter.Facilities)
	if err != nil {
		return nil, err
	}
	var bindings []PointBinding
	for _, facility := range facilities {
		fb, err := r.resolveFacility(ctx, facility, filter.Metrics)
		if err != nil {
			return nil, &FacilityError{Facility: facility.ShortName, Op: "resolve points", Err: err}
		}
		bindings = append(bindings, fb...)
	}
	return bindings, nil
}

// resolveFacility matches the metric selectors against the devices of
// one facility. The facility's first agent is authoritative. Catalogued
// metrics match the device property keyed by the metric name; regex
// selectors match any property alias, labeled by the alias itself so
// fan-out matches stay distinguishable.
func (r *MetricsReader) resolveFacility(ctx context.Context, facility Facility, metrics []DeviceMetric) ([]PointBinding, error) {
	agentID := facility.Agents[0].AgentID
	devices, err := r.api.ListDevices(ctx, facility.OrganizationID, agentID)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var bindings []PointBinding
	seen := make(map[string]struct{})
	add := func(device Device, metric DeviceMetric, label, alias string) {
		key := device.ID + "\x00" + alias
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		bindings = append(bindings, PointBinding{
			Facility: facility,
			Device:   device,
			Metric:   metric,
			Label:    label,
			Alias:    alias,
		})
	}

	for _, device := range devices {
		for _, metric := range metrics {
			if metric.DeviceKind != device.Kind {
				continue
			}
			if metric.Name != "" {
				key, ok := DefaultCatalog().PropertyKey(metric.DeviceKind, metric.Name)
				if !ok {
					return nil, fmt.Errorf("metric %q is not defined for device kind %q", metric.Name, metric.DeviceKind)
				}
				alias, found := propertyAlias(device, key)
				if !found {
					if r.strict {
						return nil, fmt.Errorf("device %s (%s) has no alias for metric %s", device.Name, device.ID, metric.Name)
					}
					continue
				}
				add(device, metric, string(metric.Name), alias)
				continue
			}
			re, err := compileAlias(metric.AliasRegex)
			if err != nil {
				return nil, fmt.Errorf("alias regex %q: %v", metric.AliasRegex, err)
			}
			for _, prop := range device.Properties {
				if alias := prop.Value.Alias; alias != "" && re.MatchString(alias) {
					add(device, metric, alias, alias)
				}
			}
		}
	}

	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].Device.ID != bindings[j].Device.ID {
			return bindings[i].Device.ID < bindings[j].Device.ID
		}
		if bindings[i].Label != bindings[j].Label {
			return bindings[i].Label < bindings[j].Label
		}
		return bindings[i].Alias < bindings[j].Alias
	})
	return bindings, nil
}

// propertyAlias returns the alias published under the given property key.
func propertyAlias(device Device, key string) (string, bool) {
	for _, prop := range device.Properties {
		if prop.Key == key && prop.Value.Alias != "" {
			return prop.Value.Alias, true
		}
	}
	return "", false
}

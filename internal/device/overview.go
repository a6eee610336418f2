package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Overview grammar tokens.
const (
	sectionName     = "NAME"
	sectionSwitches = "SWITCHES"
	sectionSensors  = "SENSORS"
	sectionHeaters  = "HEATERS"
	sectionDimmers  = "DIMMERS"
)

// ParseSnapshot parses a text status snapshot:
//
//	{NAME:<name>;SWITCHES,<id>:<val>,...;SENSORS,<id>:<val>,...;HEATERS,<id>:<set>|<on>|<max>,...;DIMMERS,<id>:<val>,...}
//
// Sections after NAME may appear in any order or not at all; unknown
// sections are ignored. A value that does not parse is recorded as the
// kind's error sentinel rather than failing the whole snapshot.
func ParseSnapshot(raw string) (*Snapshot, error) {
	body := strings.TrimSpace(raw)
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return nil, fmt.Errorf("%w: missing braces in %q", ErrInvalidSnapshot, raw)
	}
	body = body[1 : len(body)-1]

	snap := &Snapshot{}
	for _, section := range strings.Split(body, ";") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		if name, ok := strings.CutPrefix(section, sectionName+":"); ok {
			snap.Name = name
			continue
		}

		entries := strings.Split(section, ",")
		label := entries[0]
		for _, entry := range entries[1:] {
			id, value, ok := strings.Cut(entry, ":")
			if !ok || id == "" {
				continue
			}
			switch label {
			case sectionSwitches:
				snap.Switches = append(snap.Switches, IntReading{ID: id, Value: parseIntOr(value, SwitchError)})
			case sectionDimmers:
				snap.Dimmers = append(snap.Dimmers, IntReading{ID: id, Value: parseIntOr(value, DimmerError)})
			case sectionSensors:
				snap.Sensors = append(snap.Sensors, FloatReading{ID: id, Value: parseFloatOr(value, SensorError)})
			case sectionHeaters:
				h, err := ParseHeater(value)
				if err != nil {
					h = HeaterError
				}
				snap.Heaters = append(snap.Heaters, HeaterReading{ID: id, Heater: h})
			}
		}
	}
	return snap, nil
}

// ParseHeater parses a heater value "<set>|<on>|<max>".
func ParseHeater(raw string) (Heater, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		return HeaterError, fmt.Errorf("%w: heater value %q", ErrBadReply, raw)
	}
	set, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return HeaterError, fmt.Errorf("%w: heater set flag %q", ErrBadReply, parts[0])
	}
	on, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return HeaterError, fmt.Errorf("%w: heater on flag %q", ErrBadReply, parts[1])
	}
	maxValue, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return HeaterError, fmt.Errorf("%w: heater max %q", ErrBadReply, parts[2])
	}
	return Heater{Set: set != 0, On: on != 0, Max: maxValue}, nil
}

func parseIntOr(s string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloatOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return v
}

// OverviewStore is the persistence needed to merge a snapshot with metadata.
type OverviewStore interface {
	EnsureDevice(ctx context.Context, name string, protocol Protocol) error
	ListElements(ctx context.Context, deviceName string) ([]Element, error)
	CreateElement(ctx context.Context, e Element) error
}

// OverviewBuilder merges raw snapshots with persisted element metadata,
// creating default metadata for ids it has never seen.
type OverviewBuilder struct {
	store  OverviewStore
	logger Logger
}

// NewOverviewBuilder creates a builder over store.
func NewOverviewBuilder(store OverviewStore) *OverviewBuilder {
	return &OverviewBuilder{store: store, logger: noopLogger{}}
}

// SetLogger sets the logger for the builder.
func (b *OverviewBuilder) SetLogger(logger Logger) {
	b.logger = logger
}

// Build resolves the snapshot's device (creating it if unseen) and returns
// the merged overview. Values are in device units; Controller converts
// Fahrenheit elements afterwards. fallbackName is used when the snapshot
// carries no NAME section.
func (b *OverviewBuilder) Build(ctx context.Context, snap *Snapshot, fallbackName string, protocol Protocol) (*Overview, error) {
	name := snap.Name
	if name == "" {
		name = fallbackName
	}
	if err := b.store.EnsureDevice(ctx, name, protocol); err != nil {
		return nil, fmt.Errorf("resolving device %s: %w", name, err)
	}

	known, err := b.store.ListElements(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("listing elements of %s: %w", name, err)
	}
	meta := make(map[elementKey]Element, len(known))
	for _, e := range known {
		meta[elementKey{e.Kind, e.ID}] = e
	}

	lookup := func(kind Kind, id string) (Element, error) {
		if e, ok := meta[elementKey{kind, id}]; ok {
			return e, nil
		}
		e := NewElement(name, kind, id)
		if err := b.store.CreateElement(ctx, e); err != nil {
			return Element{}, fmt.Errorf("creating %s %s/%s: %w", kind, name, id, err)
		}
		b.logger.Info("element discovered", "device", name, "kind", kind, "element", id)
		meta[elementKey{kind, id}] = e
		return e, nil
	}

	ov := &Overview{Device: name}
	for _, r := range snap.Switches {
		e, err := lookup(KindSwitch, r.ID)
		if err != nil {
			return nil, err
		}
		ov.Switches = append(ov.Switches, SwitchStatus{Element: e, Value: r.Value})
	}
	for _, r := range snap.Sensors {
		e, err := lookup(KindSensor, r.ID)
		if err != nil {
			return nil, err
		}
		ov.Sensors = append(ov.Sensors, SensorStatus{Element: e, Value: r.Value})
	}
	for _, r := range snap.Heaters {
		e, err := lookup(KindHeater, r.ID)
		if err != nil {
			return nil, err
		}
		ov.Heaters = append(ov.Heaters, HeaterStatus{Element: e, Heater: r.Heater})
	}
	for _, r := range snap.Dimmers {
		e, err := lookup(KindDimmer, r.ID)
		if err != nil {
			return nil, err
		}
		ov.Dimmers = append(ov.Dimmers, DimmerStatus{Element: e, Value: r.Value})
	}
	return ov, nil
}

type elementKey struct {
	kind Kind
	id   string
}

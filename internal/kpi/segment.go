package kpi

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
)

// Segment is a named subset of stores. Segments are independent: one store
// can match several of them.
type Segment struct {
	Name  string
	Match func(model.MergedRecord) bool
}

// All matches every record.
func All(name string) Segment {
	return Segment{Name: name, Match: func(model.MergedRecord) bool { return true }}
}

// ExperienceCenter matches stores whose Experience Center flag equals flag.
func ExperienceCenter(name string, flag int) Segment {
	return Segment{Name: name, Match: func(r model.MergedRecord) bool {
		return r.Store.ExperienceCenter == flag
	}}
}

// InRegion matches stores in region.
func InRegion(name string, region model.Region) Segment {
	return Segment{Name: name, Match: func(r model.MergedRecord) bool {
		return r.Store.Region == region
	}}
}

// DefaultSegments is the standard report layout.
func DefaultSegments() []Segment {
	return []Segment{
		All("All Wakefit Stores"),
		ExperienceCenter("COCO Stores", 1),
		ExperienceCenter("Non COCO Stores", 0),
		InRegion("North", model.RegionNorth),
		InRegion("South", model.RegionSouth),
		InRegion("East", model.RegionEast),
		InRegion("West", model.RegionWest),
	}
}

// Definition describes a segment in configuration.
type Definition struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Field string `yaml:"field" mapstructure:"field"`
	Value string `yaml:"value" mapstructure:"value"`
}

// FromDefinitions builds segments from configuration. An empty list yields
// DefaultSegments.
func FromDefinitions(defs []Definition) ([]Segment, error) {
	if len(defs) == 0 {
		return DefaultSegments(), nil
	}

	segments := make([]Segment, 0, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, eris.New("kpi: segment name is required")
		}
		switch strings.ToLower(d.Field) {
		case "", "all":
			segments = append(segments, All(d.Name))
		case "experience_center":
			flag, err := strconv.Atoi(strings.TrimSpace(d.Value))
			if err != nil {
				return nil, eris.Wrapf(err, "kpi: segment %q: experience_center value", d.Name)
			}
			segments = append(segments, ExperienceCenter(d.Name, flag))
		case "region":
			segments = append(segments, InRegion(d.Name, model.NormalizeRegion(d.Value)))
		default:
			return nil, eris.Errorf("kpi: segment %q: unknown field %q", d.Name, d.Field)
		}
	}
	return segments, nil
}

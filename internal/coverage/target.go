package coverage

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/model"
)

// ZeroTargetRatio is reported when an area's target is not positive.
const ZeroTargetRatio = 2.0

// TargetKey addresses one target by area and business line.
type TargetKey struct {
	AreaID       string
	BusinessLine string
}

// TargetLookup maps (area, business line) to a target vendor count.
// It is built once and never mutated.
type TargetLookup map[TargetKey]float64

// BuildTargetLookup melts the wide target table into a lookup keyed by area
// ID. Area names are matched against areas; unmatched names are dropped with
// a warning, and nil or non-finite cells are skipped.
func BuildTargetLookup(rows []model.TargetRow, areas []model.Area) TargetLookup {
	nameToID := make(map[string]string, len(areas))
	for _, a := range areas {
		nameToID[strings.TrimSpace(a.Name)] = a.ID
	}

	lookup := make(TargetLookup)
	var unmapped []string
	for _, r := range rows {
		name := strings.TrimSpace(r.MarketingArea)
		id, ok := nameToID[name]
		if !ok {
			unmapped = append(unmapped, name)
			continue
		}
		for line, v := range r.Values {
			if model.FiniteOrNil(v) == nil {
				continue
			}
			lookup[TargetKey{AreaID: id, BusinessLine: line}] = *v
		}
	}

	if len(unmapped) > 0 {
		zap.L().Warn("coverage: target areas not found in polygon layer",
			zap.Int("count", len(unmapped)),
			zap.Strings("names", unmapped),
		)
	}
	return lookup
}

// Target returns the target for an area and business line.
func (l TargetLookup) Target(areaID, line string) (float64, bool) {
	v, ok := l[TargetKey{AreaID: areaID, BusinessLine: line}]
	return v, ok
}

// TargetLine reports the business line to compare against, if comparison
// applies: the city is the target city, exactly one line is selected and the
// lookup has entries.
func TargetLine(city, targetCity string, lines []string, lookup TargetLookup) (string, bool) {
	if city != targetCity || len(lines) != 1 || len(lookup) == 0 {
		return "", false
	}
	return lines[0], true
}

// CompareTargets attaches target fields to every point whose area has a
// target for line. Points without an area or a target are left unchanged.
func CompareTargets(points []model.CoveragePoint, line string, lookup TargetLookup) {
	for i := range points {
		p := &points[i]
		if p.AreaID == nil {
			continue
		}
		target, ok := lookup.Target(*p.AreaID, line)
		if !ok {
			continue
		}

		actual := p.Coverage.ByBusinessLine[line]
		ratio := ZeroTargetRatio
		if target > 0 {
			ratio = float64(actual) / target
		}

		p.TargetBusinessLine = &line
		p.TargetValue = model.FiniteOrNil(&target)
		p.ActualValue = &actual
		p.PerformanceRatio = &ratio
	}
}

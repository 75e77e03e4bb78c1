package main

import (
	"io"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/coverage-cli/internal/api"
)

// queryFlags mirrors the map API query parameters on the command line.
// Empty values fall back to the API defaults.
type queryFlags struct {
	city           string
	startDate      string
	endDate        string
	businessLines  []string
	vendorCodes    string
	statusIDs      []string
	grades         []string
	visible        string
	open           string
	vendorAreaType string
	vendorAreas    []string
	areaDisplay    string
	areaNames      []string
	zoom           string
	radiusMode     string
	radiusModifier string
	radiusFixed    string
	output         string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.city, "city", "", "city name (default tehran)")
	fs.StringVar(&f.startDate, "start-date", "", "first order date (YYYY-MM-DD)")
	fs.StringVar(&f.endDate, "end-date", "", "last order date, inclusive (YYYY-MM-DD)")
	fs.StringSliceVar(&f.businessLines, "business-line", nil, "business lines to include (repeatable)")
	fs.StringVar(&f.vendorCodes, "vendor-codes", "", "vendor codes separated by spaces, commas or semicolons")
	fs.StringSliceVar(&f.statusIDs, "status-id", nil, "vendor status IDs to include (repeatable)")
	fs.StringSliceVar(&f.grades, "grade", nil, "vendor grades to include (repeatable)")
	fs.StringVar(&f.visible, "visible", "", "vendor visibility: any, 1 or 0")
	fs.StringVar(&f.open, "open", "", "vendor open state: any, 1 or 0")
	fs.StringVar(&f.vendorAreaType, "vendor-area-layer", "", "layer used to filter vendors by area")
	fs.StringSliceVar(&f.vendorAreas, "vendor-area", nil, "area names of --vendor-area-layer (repeatable)")
	fs.StringVar(&f.areaDisplay, "area-display", "", "displayed layer, coverage_grid, all_districts or none")
	fs.StringSliceVar(&f.areaNames, "area", nil, "area names of the displayed layer (repeatable)")
	fs.StringVar(&f.zoom, "zoom", "", "map zoom level (default from config)")
	fs.StringVar(&f.radiusMode, "radius-mode", "", "percentage or fixed")
	fs.StringVar(&f.radiusModifier, "radius-modifier", "", "multiplier of the original radius in percentage mode")
	fs.StringVar(&f.radiusFixed, "radius-fixed", "", "radius in km in fixed mode")
	fs.StringVarP(&f.output, "output", "o", "json", "output format: json or yaml")
}

// values encodes the flags as API query parameters.
func (f *queryFlags) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("city", f.city)
	set("start_date", f.startDate)
	set("end_date", f.endDate)
	set("vendor_codes_filter", f.vendorCodes)
	set("vendor_visible", f.visible)
	set("vendor_is_open", f.open)
	set("vendor_area_main_type", f.vendorAreaType)
	set("area_type_display", f.areaDisplay)
	set("zoom_level", f.zoom)
	set("radius_mode", f.radiusMode)
	set("radius_modifier", f.radiusModifier)
	set("radius_fixed", f.radiusFixed)
	v["business_lines"] = f.businessLines
	v["vendor_status_ids"] = f.statusIDs
	v["vendor_grades"] = f.grades
	v["vendor_area_sub_type"] = f.vendorAreas
	v["area_sub_type_filter"] = f.areaNames
	return v
}

func (f *queryFlags) query(defaultZoom float64) (api.Query, error) {
	return api.ParseQuery(f.values(), defaultZoom)
}

// writeOutput renders v as indented JSON or as YAML. YAML keys follow the
// JSON field names.
func writeOutput(w io.Writer, format string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode output")
	}

	switch format {
	case "", "json":
		_, err = w.Write(append(body, '\n'))
		return err
	case "yaml":
		var doc any
		if err := yaml.Unmarshal(body, &doc); err != nil {
			return eris.Wrap(err, "convert output to yaml")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

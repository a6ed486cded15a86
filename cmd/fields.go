package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/USEPA/ATtILA2-sub000/internal/diag"
	"github.com/USEPA/ATtILA2-sub000/internal/metric"
)

var (
	fieldsScheme         schemeFlags
	fieldsFamily         string
	fieldsClasses        []string
	fieldsCoefficients   []string
	fieldsMaxFieldLength int
	fieldsAreaFields     bool
	fieldsUnitField      string
	fieldsJSON           bool
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Show the output field names a run would write",
	Long: `Resolves output column names for the selected family, classes and
coefficients without reading any tabulation. Truncated and renamed fields are
listed with the name they were derived from.

Examples:
  attila fields --lcc nlcd.lcc --empty-classes keep
  attila fields --lcc nlcd.lcc --empty-classes keep --family rlcp --class for,wetl --area-fields`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		doc, err := fieldsScheme.load(cmd.Context(), newLocalizer())
		if err != nil {
			return err
		}
		scheme, err := doc.Scheme()
		if err != nil {
			return err
		}

		family, err := familyFor(fieldsFamily, fieldsCoefficients)
		if err != nil {
			return err
		}
		maxLen := cfg.Run.MaxFieldLength
		if fieldsMaxFieldLength >= 0 {
			maxLen = fieldsMaxFieldLength
		}

		var sink diag.Collector
		layout, err := metric.Plan(scheme, metric.Options{
			Family:         family,
			ClassIDs:       classIDs(fieldsClasses),
			Coefficients:   splitList(fieldsCoefficients),
			AddAreaFields:  fieldsAreaFields || cfg.Run.AddAreaFields,
			MaxFieldLength: maxLen,
			UnitField:      orString(fieldsUnitField, orString(cfg.Tabulation.UnitField, "ID")),
			Sink:           &sink,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if fieldsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"layout": layout, "warnings": sink.Warnings()})
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FIELD\tKIND\tSOURCE\tPROPOSED")
		row := func(kind, name, key, proposed string) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, kind, key, proposed)
		}
		row("id", layout.UnitField, "", "")
		for _, f := range layout.Percent {
			row("percent", f.Name, f.Key, f.Proposed)
		}
		for _, f := range layout.Area {
			row("area", f.Name, f.Key, f.Proposed)
		}
		for _, f := range layout.Coefficients {
			row("coefficient", f.Name, f.Key, f.Proposed)
		}
		for _, name := range []string{metric.FieldEffective, metric.FieldExcluded, metric.FieldOverlap} {
			row("quality", name, "", "")
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		for _, w := range sink.Warnings() {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w.Message)
		}
		return nil
	},
}

// familyFor picks the family for a command line. Coefficients without a
// family select the coefficient calculator.
func familyFor(name string, coefficients []string) (metric.Family, error) {
	switch {
	case name == "" && len(splitList(coefficients)) > 0:
		return metric.LCCC, nil
	case name == "":
		return metric.LCP, nil
	case name == metric.LCCC.Name:
		return metric.LCCC, nil
	default:
		return metric.FamilyByName(name)
	}
}

func init() {
	fieldsScheme.register(fieldsCmd.Flags())
	fl := fieldsCmd.Flags()
	fl.StringVar(&fieldsFamily, "family", "", "lcp, rlcp, splcp, lcosp or lccc (default lcp)")
	fl.StringSliceVar(&fieldsClasses, "class", nil, "class ids in output order (default: all classes the family offers)")
	fl.StringSliceVar(&fieldsCoefficients, "coefficient", nil, "coefficient ids")
	fl.IntVar(&fieldsMaxFieldLength, "max-field-length", -1, "longest field name; 0 for no limit (default from config)")
	fl.BoolVar(&fieldsAreaFields, "area-fields", false, "include class area fields")
	fl.StringVar(&fieldsUnitField, "unit-field", "", "reporting unit id field")
	fl.BoolVar(&fieldsJSON, "json", false, "print JSON")
	rootCmd.AddCommand(fieldsCmd)
}

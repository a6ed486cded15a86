package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/USEPA/ATtILA2-sub000/internal/lcc"
)

var (
	lccFlags      schemeFlags
	lccShowFormat string
	lccValuesAll  bool
)

var lccCmd = &cobra.Command{
	Use:   "lcc",
	Short: "Inspect land cover classification files",
}

// schemeDump is the serialised view of a scheme.
type schemeDump struct {
	Source       string            `json:"source" yaml:"source"`
	Metadata     lcc.Metadata      `json:"metadata" yaml:"metadata"`
	Coefficients []lcc.Coefficient `json:"coefficients" yaml:"coefficients"`
	Values       []lcc.ValueEntry  `json:"values" yaml:"values"`
	Classes      []lcc.Class       `json:"classes" yaml:"classes"`
}

var lccShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the parsed classification",
	Long: `Parses a .lcc file and prints its values, coefficients and classes with
the aggregated value sets of every class.

Examples:
  attila lcc show --lcc nlcd.lcc --empty-classes keep
  attila lcc show --lcc nlcd.lcc --empty-classes drop --format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		doc, err := lccFlags.load(cmd.Context(), newLocalizer())
		if err != nil {
			return err
		}
		scheme, err := doc.Scheme()
		if err != nil {
			return err
		}
		dump := schemeDump{
			Source:       doc.Source(),
			Metadata:     scheme.Metadata(),
			Coefficients: scheme.Coefficients(),
			Values:       scheme.Values().Entries(),
			Classes:      scheme.Classes(),
		}

		out := cmd.OutOrStdout()
		switch strings.ToLower(lccShowFormat) {
		case "yaml", "yml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(dump); err != nil {
				return eris.Wrap(err, "lcc show: encode yaml")
			}
			return enc.Close()
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(dump)
		case "tree":
			for _, c := range dump.Classes {
				fmt.Fprintf(out, "%s%s  %s  %v\n", strings.Repeat("  ", c.Depth()), c.ID, c.Name, c.AggregateValues)
			}
			return nil
		default:
			return eris.Errorf("lcc show: unknown format %q", lccShowFormat)
		}
	},
}

var lccValuesCmd = &cobra.Command{
	Use:   "values",
	Short: "List the value codes of the classification",
	RunE: func(cmd *cobra.Command, _ []string) error {
		doc, err := lccFlags.load(cmd.Context(), newLocalizer())
		if err != nil {
			return err
		}
		var codes []lcc.ValueCode
		if lccValuesAll {
			codes, err = doc.AllValueIDs()
		} else {
			codes, err = doc.IncludedValueIDs()
		}
		if err != nil {
			return err
		}

		scheme, _ := doc.Scheme()
		out := cmd.OutOrStdout()
		for _, code := range codes {
			entry, _ := scheme.Values().Lookup(code)
			mark := ""
			if entry.Excluded {
				mark = "  (excluded)"
			}
			fmt.Fprintf(out, "%d\t%s%s\n", code, entry.Name, mark)
		}
		return nil
	},
}

func init() {
	lccFlags.register(lccCmd.PersistentFlags())

	lccShowCmd.Flags().StringVar(&lccShowFormat, "format", "yaml", "yaml, json or tree")
	lccValuesCmd.Flags().BoolVar(&lccValuesAll, "all", false, "include excluded values")

	lccCmd.AddCommand(lccShowCmd, lccValuesCmd)
	rootCmd.AddCommand(lccCmd)
}

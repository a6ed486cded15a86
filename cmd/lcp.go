package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/USEPA/ATtILA2-sub000/internal/metric"
)

var (
	lcpRun     runFlags
	lcpFamily  string
	lcpClasses []string
)

var lcpCmd = &cobra.Command{
	Use:   "lcp",
	Short: "Compute land cover proportions per reporting unit",
	Long: `Computes the percentage of each selected class within every reporting
unit, plus excluded area, effective area and overlap columns.

Tabulation tables hold the area of each grid value per unit, either wide
(one VALUE_<code> column per value) or long (--value-field and --area-field).
Nominal unit areas come from --units when given, otherwise from the
tabulation totals.

Examples:
  attila lcp --lcc nlcd.lcc --empty-classes keep --tabulation tab.csv --unit-field HUC12 -o lcp.csv
  attila lcp --family rlcp --lcc nlcd.lcc --empty-classes drop --tabulation tab.xlsx \
    --units huc12.zip --format shp -o rlcp.shp`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		family, err := metric.FamilyByName(orString(lcpFamily, metric.LCP.Name))
		if err != nil {
			return err
		}
		return lcpRun.execute(ctx, cmd, family, classIDs(lcpClasses), nil)
	},
}

func init() {
	lcpRun.register(lcpCmd)
	lcpCmd.Flags().StringVar(&lcpFamily, "family", "lcp", "proportion family: lcp, rlcp, splcp or lcosp")
	lcpCmd.Flags().StringSliceVar(&lcpClasses, "class", nil, "class ids in output order (default: all classes the family offers)")
	rootCmd.AddCommand(lcpCmd)
}

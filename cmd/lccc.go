package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/USEPA/ATtILA2-sub000/internal/metric"
)

var (
	lcccRun          runFlags
	lcccCoefficients []string
	lcccClasses      []string
)

var lcccCmd = &cobra.Command{
	Use:   "lccc",
	Short: "Compute land cover coefficients per reporting unit",
	Long: `Weights the area of every grid value by the coefficients of the
classification (for example impervious cover or nitrogen loading) and writes
one column per coefficient, named after its fieldName. Method P coefficients
are percentages of the effective area, method A coefficients are per unit
area. Without --coefficient every coefficient of the document is used.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return lcccRun.execute(ctx, cmd, metric.LCCC, classIDs(lcccClasses), splitList(lcccCoefficients))
	},
}

func init() {
	lcccRun.register(lcccCmd)
	lcccCmd.Flags().StringSliceVar(&lcccCoefficients, "coefficient", nil, "coefficient ids (default: all)")
	lcccCmd.Flags().StringSliceVar(&lcccClasses, "class", nil, "also write percentages for these classes")
	rootCmd.AddCommand(lcccCmd)
}

package cli

import (
	"fmt"

	"renthaus/internal/export"
	"renthaus/internal/models"
	"renthaus/internal/service"

	"github.com/spf13/cobra"
)

type ExportOptions struct {
	*RootOptions
	From   string
	To     string
	Output string
	Type   string
}

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions to a file",
		Long: `Write the orders created between --from and --to (inclusive) to a CSV,
XLSX or JSON file and print its path.

Examples:
  renthausctl export --from 2025-01-01 --to 2025-01-31 --type xlsx
  renthausctl export --type csv --out ./exports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "first day, YYYY-MM-DD (default: 30 days before --to)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&opts.Output, "out", "", "output directory (default: exports.path)")
	cmd.Flags().StringVar(&opts.Type, "type", "csv", "file type (csv|xlsx|json)")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	env, err := opts.environment()
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(opts.Type)
	if err != nil {
		return err
	}

	reports := service.NewReportService(env.Store, env.Location)
	from, to, err := reports.Window(opts.From, opts.To)
	if err != nil {
		return err
	}
	report, err := reports.Transactions(cmd.Context(), from, to)
	if err != nil {
		return err
	}

	dir := opts.Output
	if dir == "" && env.Config != nil {
		dir = env.Config.Exports.Path
	}
	prefix := fmt.Sprintf("transactions_%s_%s", from.Format(models.DateLayout), to.AddDate(0, 0, -1).Format(models.DateLayout))
	path, err := export.WriteFile(dir, prefix, format, export.Rows(report.Orders))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput() {
		return opts.printJSON(out, map[string]any{
			"path":            path,
			"count":           report.Count,
			"totalRevenue":    report.TotalRevenue,
			"totalCommission": report.TotalCommission,
		})
	}
	fmt.Fprintf(out, "wrote %d orders to %s (revenue %s, commission %s)\n",
		report.Count, path, report.TotalRevenue.StringFixed(2), report.TotalCommission.StringFixed(2))
	return nil
}

package cli

import (
	"fmt"
	"text/tabwriter"

	"renthaus/internal/models"
	"renthaus/internal/service"

	"github.com/spf13/cobra"
)

type PayoutsOptions struct {
	*RootOptions
	VendorID string
}

func NewPayoutsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PayoutsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "Show a vendor's earnings and payout state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayouts(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.VendorID, "vendor", "", "vendor uid (required)")
	_ = cmd.MarkFlagRequired("vendor")

	return cmd
}

func runPayouts(opts *PayoutsOptions, cmd *cobra.Command) error {
	env, err := opts.environment()
	if err != nil {
		return err
	}
	orders, err := env.Store.ListOrders(cmd.Context(), models.OrderFilter{VendorID: opts.VendorID})
	if err != nil {
		return err
	}
	payouts := service.SummarizePayouts(orders)

	out := cmd.OutOrStdout()
	if opts.jsonOutput() {
		return opts.printJSON(out, payouts)
	}

	fmt.Fprintf(out, "total earnings:    %s\n", payouts.TotalEarnings.StringFixed(2))
	fmt.Fprintf(out, "pending payouts:   %s\n", payouts.PendingPayouts.StringFixed(2))
	fmt.Fprintf(out, "completed payouts: %s\n", payouts.CompletedPayouts.StringFixed(2))
	if len(payouts.Orders) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tPAYMENT\tTOTAL\tEARNINGS")
	for _, line := range payouts.Orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			line.OrderID, line.Status, line.PaymentStatus, line.TotalAmount.StringFixed(2), line.Earnings.StringFixed(2))
	}
	return tw.Flush()
}

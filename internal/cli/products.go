package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"renthaus/internal/models"

	"github.com/spf13/cobra"
)

type ProductOptions struct {
	*RootOptions
	Vendor string
	All    bool
}

// NewProductCommand lists listings and switches them on or off.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage product listings",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List products, optionally for one vendor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment()
			if err != nil {
				return err
			}
			var products []*models.Product
			if opts.Vendor != "" {
				products, err = env.Store.ListProductsByVendor(cmd.Context(), opts.Vendor)
			} else {
				products, err = env.Store.ListProducts(cmd.Context())
			}
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				if products == nil {
					products = []*models.Product{}
				}
				return opts.printJSON(cmd.OutOrStdout(), products)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVENDOR\tTITLE\tDAILY\tAVAILABLE")
			for _, p := range products {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", p.ID, p.VendorID, p.Title, p.DailyPrice.StringFixed(2), p.Available)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&opts.Vendor, "vendor", "", "only this vendor's products")

	cmd.AddCommand(list)
	cmd.AddCommand(newProductToggleCommand(opts, "activate", true))
	cmd.AddCommand(newProductToggleCommand(opts, "deactivate", false))
	return cmd
}

func newProductToggleCommand(opts *ProductOptions, verb string, available bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   verb + " [product-id...]",
		Short: fmt.Sprintf("%s the given products, or every product with --all", verb),
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.All == (len(args) > 0) {
				return errors.New("give product ids or --all, not both")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment()
			if err != nil {
				return err
			}

			var products []*models.Product
			if opts.All {
				if products, err = env.Store.ListProducts(cmd.Context()); err != nil {
					return err
				}
			} else {
				for _, id := range args {
					p, err := env.Store.GetProduct(cmd.Context(), id)
					if err != nil {
						return err
					}
					products = append(products, p)
				}
			}

			changed := make([]string, 0, len(products))
			for _, p := range products {
				if p.Available == available {
					continue
				}
				p.Available = available
				if err := env.Store.UpsertProduct(cmd.Context(), p); err != nil {
					return fmt.Errorf("update product %s: %w", p.ID, err)
				}
				changed = append(changed, p.ID)
			}

			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), map[string]any{"available": available, "updated": len(changed), "ids": changed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd %d of %d products\n", verb, len(changed), len(products))
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "every product in the catalog")
	return cmd
}

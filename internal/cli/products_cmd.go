package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen11/selmag/internal/client/catalogue"
	"github.com/jsamuelsen11/selmag/internal/models"
)

type clientFunc func() (catalogue.ProductsClient, error)

func newListCmd(out io.Writer, opts *options, clientFor clientFunc) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products, optionally filtered by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := clientFor()
			if err != nil {
				return err
			}
			products, err := c.FindAllProducts(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(out, products)
			}
			return printProducts(out, products...)
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Case-insensitive title filter")
	return cmd
}

func newGetCmd(out io.Writer, opts *options, clientFor clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := clientFor()
			if err != nil {
				return err
			}
			product, found, err := c.FindProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
			}
			if opts.output == "json" {
				return printJSON(out, product)
			}
			return printProducts(out, product)
		},
	}
}

func newCreateCmd(out io.Writer, opts *options, clientFor clientFunc) *cobra.Command {
	var title, details string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := clientFor()
			if err != nil {
				return err
			}
			product, err := c.CreateProduct(cmd.Context(), title, details)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(out, product)
			}
			_, err = fmt.Fprintln(out, product.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Product title")
	cmd.Flags().StringVar(&details, "details", "", "Product details")
	return cmd
}

func newUpdateCmd(out io.Writer, clientFor clientFunc) *cobra.Command {
	var title, details string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a product's title and details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := clientFor()
			if err != nil {
				return err
			}
			if err = c.UpdateProduct(cmd.Context(), id, title, details); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "product %d updated\n", id)
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Product title")
	cmd.Flags().StringVar(&details, "details", "", "Product details")
	return cmd
}

func newDeleteCmd(out io.Writer, clientFor clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := clientFor()
			if err != nil {
				return err
			}
			if err = c.DeleteProduct(cmd.Context(), id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "product %d deleted\n", id)
			return err
		},
	}
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", arg)
	}
	return id, nil
}

func printProducts(out io.Writer, products ...models.Product) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tDETAILS")
	for _, p := range products {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Title, p.Details)
	}
	return tw.Flush()
}

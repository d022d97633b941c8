package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/storefront/internal/catalog"
	"github.com/nhle/storefront/internal/model"
)

func newCategoriesCmd(g *globals) *cobra.Command {
	var reveal string
	var all bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Print the product category tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			roots, err := svc.client.Categories(cmd.Context())
			if err != nil {
				return err
			}

			open := catalog.CollapseAll()
			switch {
			case all:
				open = expandAll(roots)
			case reveal != "":
				if _, ok := catalog.Find(roots, reveal); !ok {
					return fmt.Errorf("no category with id %q", reveal)
				}
				open = catalog.Toggle(catalog.ExpandPath(roots, open, reveal), reveal)
			}

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Categories(catalog.Flatten(roots, open))
		},
	}
	cmd.Flags().StringVar(&reveal, "open", "", "expand the path down to this category id")
	cmd.Flags().BoolVar(&all, "all", false, "expand every category")
	return cmd
}

// expandAll returns an OpenSet holding every category that has children.
func expandAll(roots []model.Category) catalog.OpenSet {
	open := catalog.OpenSet{}
	var walk func([]model.Category)
	walk = func(cs []model.Category) {
		for _, c := range cs {
			if len(c.Children) > 0 {
				open[c.ID.String()] = true
				walk(c.Children)
			}
		}
	}
	walk(roots)
	return open
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spendhelm/internal/client"
)

func (a *app) categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category", "cat"},
		Short:   "Manage expense categories",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List default and custom categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := a.client.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(cats)
			}
			return a.printCategories(cats)
		},
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := client.CategoryInput{Name: args[0]}
			in.Color, _ = cmd.Flags().GetString("color")
			in.Icon, _ = cmd.Flags().GetString("icon")
			c, err := a.client.CreateCategory(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(c)
			}
			fmt.Fprintf(a.out, "Created category %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}
	add.Flags().String("color", "", "hex color, e.g. #3b82f6")
	add.Flags().String("icon", "", "icon name")

	del := &cobra.Command{
		Use:   "delete <category-id>",
		Short: "Delete a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteCategory(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted category %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"spendhelm/internal/client"
	"spendhelm/internal/core"
)

func (a *app) expensesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "expenses",
		Aliases: []string{"expense", "exp"},
		Short:   "List, add and delete expenses",
	}
	cmd.AddCommand(a.expensesListCmd(), a.expensesAddCmd(), a.expensesDeleteCmd())
	return cmd
}

func optionalDate(cmd *cobra.Command, name string) (core.Date, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func (a *app) expensesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				q   client.ExpenseQuery
				err error
			)
			if q.From, err = optionalDate(cmd, "from"); err != nil {
				return err
			}
			if q.To, err = optionalDate(cmd, "to"); err != nil {
				return err
			}
			q.Category, _ = cmd.Flags().GetString("category")
			q.Limit, _ = cmd.Flags().GetInt("limit")

			items, err := a.client.ListExpenses(cmd.Context(), q)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(items)
			}
			return a.printExpenses(items)
		},
	}
	cmd.Flags().String("from", "", "first date (yyyy-mm-dd)")
	cmd.Flags().String("to", "", "last date (yyyy-mm-dd)")
	cmd.Flags().String("category", "", "only this category")
	cmd.Flags().Int("limit", 0, "maximum number of rows")
	return cmd
}

func (a *app) expensesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		Example: `  spendhelm expenses add --amount 12.50 --category Transportation --note "bus pass"
  spendhelm expenses add --amount 3 --category Food --date 2024-03-01 --currency EUR`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rawAmount, _ := cmd.Flags().GetString("amount")
			amount, err := core.ParseDecimalToCents(rawAmount)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			date, err := optionalDate(cmd, "date")
			if err != nil {
				return err
			}
			if date.IsZero() {
				date = core.DateOf(time.Now())
			}
			in := client.ExpenseInput{Amount: core.Money{Cents: amount}, Date: date}
			in.Category, _ = cmd.Flags().GetString("category")
			in.Currency, _ = cmd.Flags().GetString("currency")
			in.Note, _ = cmd.Flags().GetString("note")
			in.RequestID, _ = cmd.Flags().GetString("request-id")

			e, err := a.client.CreateExpense(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(e)
			}
			fmt.Fprintf(a.out, "Added %s %s on %s in %s (%s)\n", e.Amount, e.Currency, e.Date, e.Category, e.ID)
			return nil
		},
	}
	cmd.Flags().String("amount", "", "amount, e.g. 12.50")
	cmd.Flags().String("category", "", "category name")
	cmd.Flags().String("currency", "", "ISO currency code (default: your preferred currency)")
	cmd.Flags().String("date", "", "date (yyyy-mm-dd, default today)")
	cmd.Flags().String("note", "", "optional note")
	cmd.Flags().String("request-id", "", "idempotency key; repeating it returns the first expense")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func (a *app) expensesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <expense-id>",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteExpense(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted expense %s\n", args[0])
			return nil
		},
	}
}

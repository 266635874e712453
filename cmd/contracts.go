package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ucams-cli/pkg/models"
)

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "Show contracts with balance and services",
	Run: func(cmd *cobra.Command, args []string) {
		entry := setupSessions()
		ctx, cancel := commandContext()
		defer cancel()

		all, err := entry.Portal.AllContracts(ctx)
		exitOnError("fetching contracts", err)

		var details []models.ContractDetail
		for _, ref := range all.Detail.Contracts {
			info, err := entry.Portal.ContractDetails(ctx, ref.ContractID, ref.BillingID)
			exitOnError(fmt.Sprintf("fetching contract %d", ref.ContractID), err)
			details = append(details, info.Detail...)
		}

		if jsonOutput {
			printJSON(details)
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		for _, d := range details {
			fmt.Fprintf(w, "Contract:\t%d %s\n", d.ContractID, d.ContractTitle)
			fmt.Fprintf(w, "Address:\t%s\n", d.Address)
			fmt.Fprintf(w, "Balance:\t%.2f (recommended payment %.2f)\n", d.Balance.Current, d.Balance.Recommended)
			if d.Balance.ExpiryDate != nil {
				fmt.Fprintf(w, "Paid until:\t%s\n", time.Unix(*d.Balance.ExpiryDate, 0).Format("2006-01-02"))
			}
			for _, s := range d.Services {
				fmt.Fprintf(w, "  %s\t%s\t%.2f\n", s.Title, s.Tariff.Title, s.Cost)
			}
			fmt.Fprintln(w)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(contractsCmd)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/internal/otpuri"
)

func (a *app) vaultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage accounts saved with decode --save",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved accounts in their original order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, closeFn, err := a.openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			accounts, err := vault.List(cmd.Context())
			if err != nil {
				return err
			}

			views := make([]vaultView, 0, len(accounts))
			for _, acc := range accounts {
				uri, err := otpuri.ToURI(acc.Record)
				if err != nil {
					return fmt.Errorf("account %s: %w", acc.ID, err)
				}
				entry := models.Entry{Record: acc.Record, URI: uri, Warnings: otpuri.Warnings(acc.Record)}
				views = append(views, vaultView{
					ID:        acc.ID,
					CreatedAt: formatUnix(acc.CreatedAt),
					EntryView: entry.View(),
				})
			}
			return renderVault(cmd.OutOrStdout(), a.settings.GetFormat(), views)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, closeFn, err := a.openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := vault.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "deleted "+args[0])
			return err
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}

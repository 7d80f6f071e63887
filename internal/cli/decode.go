package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/internal/service"
)

func (a *app) decodeCommand() *cobra.Command {
	var (
		images    []string
		withCodes bool
		save      bool
	)

	cmd := &cobra.Command{
		Use:   "decode [export-url...]",
		Short: "Decode export URLs or QR images into provisioning URIs",
		Long: `Decode every export URL given as an argument, then every QR image given with
--image, and print the accounts in their original order. Without arguments and
images the URLs are read from stdin, one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := args
			if len(urls) == 0 && len(images) == 0 {
				lines, err := readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
				urls = lines
			}
			if len(urls) == 0 && len(images) == 0 {
				return errors.New("no export urls or images given")
			}

			extractor := service.NewExtractor(a.logger)
			var entries []models.Entry
			if len(urls) > 0 {
				got, err := extractor.ExtractAll(cmd.Context(), urls)
				if err != nil {
					return err
				}
				entries = append(entries, got...)
			}
			for _, path := range images {
				got, err := extractor.ExtractImageFile(path)
				if err != nil {
					return err
				}
				entries = append(entries, got...)
			}

			if dir := a.settings.GetQRDir(); dir != "" {
				if _, err := extractor.WriteQRCodes(entries, dir, a.settings.GetQRSize()); err != nil {
					return err
				}
			}

			if save {
				if err := a.saveEntries(cmd, entries); err != nil {
					return err
				}
			}

			views, err := extractor.Views(entries, withCodes, a.now())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.settings.GetFormat(), views)
		},
	}

	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "QR code image of an export (repeatable)")
	cmd.Flags().BoolVar(&withCodes, "codes", false, "Print the current code of every account")
	cmd.Flags().BoolVar(&save, "save", false, "Save the accounts to the vault")
	return cmd
}

func (a *app) saveEntries(cmd *cobra.Command, entries []models.Entry) error {
	vault, closeFn, err := a.openVault(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	records := make([]models.AccountRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Record)
	}
	ids, err := vault.Save(cmd.Context(), records)
	if err != nil {
		return err
	}
	a.logger.Infof("Saved %d accounts to the vault", len(ids))
	return nil
}

func (a *app) codeCommand() *cobra.Command {
	var at int64

	cmd := &cobra.Command{
		Use:   "code <otpauth-uri>",
		Short: "Print the current code of a provisioning URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := a.now()
			if at != 0 {
				when = time.Unix(at, 0)
			}
			code, err := service.NewExtractor(a.logger).Code(args[0], when)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), code)
			return err
		},
	}

	cmd.Flags().Int64Var(&at, "at", 0, "Unix time to compute the code for (default now)")
	return cmd
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// Package cli wires the otpexport commands.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vova4o/otpexport/internal/flags"
	"github.com/vova4o/otpexport/internal/service"
	"github.com/vova4o/otpexport/internal/storage"
	"github.com/vova4o/otpexport/package/logger"
)

// ErrMasterPasswordRequired is returned when a vault command runs without a master password
var ErrMasterPasswordRequired = errors.New("master password required (--master_password or OTPEXPORT_MASTER_PASSWORD)")

// app holds what every command needs once the configuration is loaded
type app struct {
	settings *flags.Settings
	logger   *logger.Logger
	now      func() time.Time
}

// NewRootCommand returns the otpexport command tree
func NewRootCommand() *cobra.Command {
	a := &app{
		settings: flags.NewSettings(),
		now:      time.Now,
	}

	root := &cobra.Command{
		Use:   "otpexport",
		Short: "Extract OTP accounts from authenticator export QR codes",
		Long: `otpexport decodes otpauth-migration:// export URLs (or the QR codes that carry
them) into standard otpauth:// provisioning URIs that any authenticator app can import.

Examples:
  # Decode an export URL
  otpexport decode 'otpauth-migration://offline?data=...'

  # Decode screenshots of a split export, print live codes and save QR codes per account
  otpexport decode --image part1.png --image part2.png --codes --qr_dir codes

  # Keep the accounts in an encrypted vault
  OTPEXPORT_MASTER_PASSWORD=... otpexport decode --save 'otpauth-migration://offline?data=...'`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.settings.LoadConfig(cmd.Flags()); err != nil {
				return err
			}
			a.logger = logger.NewLoggerWithWriter(a.settings.GetLogLevel(), cmd.ErrOrStderr())
			if a.settings.ConfigFile != "" {
				a.logger.Debug("Using config " + a.settings.ConfigFile)
			}
			return nil
		},
	}
	flags.AddFlags(root.PersistentFlags())

	root.AddCommand(
		a.decodeCommand(),
		a.codeCommand(),
		a.vaultCommand(),
		a.serveCommand(),
	)
	return root
}

// openVault opens the vault storage and unlocks it with the configured master password
func (a *app) openVault(ctx context.Context) (*service.Vault, func(), error) {
	password := a.settings.GetMasterPassword()
	if password == "" {
		return nil, nil, ErrMasterPasswordRequired
	}

	stor, err := storage.NewStorage(ctx, a.settings.GetVaultDriver(), a.settings.GetVaultDSN(), a.logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := stor.Close(); err != nil {
			a.logger.Error("Failed to close vault: " + err.Error())
		}
	}

	vault := service.NewVault(stor, a.logger)
	created, err := vault.Unlock(ctx, password)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if created {
		a.logger.Info("New vault created")
	}
	return vault, closeFn, nil
}

// readLines returns the non-empty lines of r
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return out, nil
}

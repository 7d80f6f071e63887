package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vova4o/otpexport/internal/flags"
	"github.com/vova4o/otpexport/internal/models"
	"gopkg.in/yaml.v3"
)

// vaultView is a saved account as printed by vault list
type vaultView struct {
	ID               string `json:"id" yaml:"id"`
	CreatedAt        string `json:"created_at" yaml:"created_at"`
	models.EntryView `yaml:",inline"`
}

func render(w io.Writer, format string, views []models.EntryView) error {
	switch format {
	case flags.FormatJSON:
		return writeJSON(w, views)
	case flags.FormatYAML:
		return writeYAML(w, views)
	default:
		for i, v := range views {
			writeText(w, i, "", v)
		}
		return nil
	}
}

func renderVault(w io.Writer, format string, views []vaultView) error {
	switch format {
	case flags.FormatJSON:
		return writeJSON(w, views)
	case flags.FormatYAML:
		return writeYAML(w, views)
	default:
		for i, v := range views {
			writeText(w, i, v.ID, v.EntryView)
		}
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// writeText prints one account as
//
//	1. Issuer:name (TOTP, SHA1, 6 digits)
//	   otpauth://...
func writeText(w io.Writer, i int, id string, v models.EntryView) {
	label := v.Name
	if v.Issuer != "" {
		label = v.Issuer + ":" + v.Name
	}
	fmt.Fprintf(w, "%d. %s (%s, %s, %d digits)\n", i+1, label, v.Type, v.Algorithm, v.Digits)
	if id != "" {
		fmt.Fprintf(w, "   id: %s\n", id)
	}
	fmt.Fprintf(w, "   %s\n", v.URI)
	switch {
	case v.Code != "" && v.ExpiresIn > 0:
		fmt.Fprintf(w, "   code: %s (expires in %ds)\n", v.Code, v.ExpiresIn)
	case v.Code != "":
		fmt.Fprintf(w, "   code: %s\n", v.Code)
	}
	if len(v.Warnings) > 0 {
		fmt.Fprintf(w, "   warnings: %s\n", strings.Join(v.Warnings, ", "))
	}
}

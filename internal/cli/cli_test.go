package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vova4o/otpexport/internal/exporturl"
	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/internal/payload"
	"github.com/vova4o/otpexport/internal/qr"
	"github.com/vova4o/otpexport/internal/service"
	"gopkg.in/yaml.v3"
)

const aliceURI = "otpauth://totp/Example:alice%40example.com?secret=JBSWY3DP&issuer=Example&algorithm=sha1&digits=6&period=30"

func exportURL(names ...string) string {
	var batch models.MigrationBatch
	for _, n := range names {
		rec := models.NewAccountRecord()
		rec.Issuer = "Example"
		rec.Name = n
		rec.Secret = []byte("Hello")
		rec.OtpType = models.OtpTypeTOTP
		batch.Accounts = append(batch.Accounts, rec)
	}
	return exporturl.BuildURL(payload.Encode(batch))
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--log_level", "error"))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDecodeText(t *testing.T) {
	out, err := run(t, "", "decode", exportURL("alice@example.com", "bob"))
	require.NoError(t, err)

	assert.Contains(t, out, "1. Example:alice@example.com (TOTP, SHA1, 6 digits)\n   "+aliceURI+"\n")
	assert.Contains(t, out, "2. Example:bob (TOTP, SHA1, 6 digits)")
	assert.NotContains(t, out, "code:")
}

func TestDecodeJSONWithCodes(t *testing.T) {
	out, err := run(t, "", "decode", "--format", "json", "--codes", exportURL("alice@example.com"))
	require.NoError(t, err)

	var views []models.EntryView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, aliceURI, views[0].URI)
	assert.Equal(t, "JBSWY3DP", views[0].Secret)
	assert.Len(t, views[0].Code, 6)
}

func TestDecodeYAMLFromStdin(t *testing.T) {
	stdin := exportURL("a") + "\n\n" + exportURL("b") + "\n"
	out, err := run(t, stdin, "decode", "-f", "yaml")
	require.NoError(t, err)

	var views []models.EntryView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "a", views[0].Name)
	assert.Equal(t, "b", views[1].Name)
	assert.Equal(t, 30, views[1].Period)
}

func TestDecodeImagesAndQRDir(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "export.png")
	require.NoError(t, qr.WriteFile(exportURL("alice@example.com"), 512, img))

	qrDir := filepath.Join(dir, "codes")
	out, err := run(t, "", "decode", "--image", img, "--qr_dir", qrDir)
	require.NoError(t, err)
	assert.Contains(t, out, aliceURI)

	text, err := qr.DecodeFile(filepath.Join(qrDir, "01-Example_alice@example.com.png"))
	require.NoError(t, err)
	assert.Equal(t, aliceURI, text)
}

func TestDecodeErrors(t *testing.T) {
	_, err := run(t, "", "decode", "otpauth-migration://offline")
	assert.ErrorIs(t, err, exporturl.ErrUnrecognizedExportFormat)

	_, err = run(t, "", "decode")
	assert.Error(t, err)

	_, err = run(t, "", "decode", "--format", "xml", exportURL("a"))
	assert.Error(t, err)
}

func TestCode(t *testing.T) {
	uri := "otpauth://totp/RFC?secret=GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ&digits=8"
	out, err := run(t, "", "code", uri, "--at", "59")
	require.NoError(t, err)
	assert.Equal(t, "94287082\n", out)

	_, err = run(t, "", "code")
	assert.Error(t, err)
}

func TestVault(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "vault.db")
	vaultArgs := []string{"--vault_dsn", dsn, "--master_password", "correct horse"}

	_, err := run(t, "", append([]string{"decode", "--save", exportURL("alice@example.com", "bob")}, vaultArgs...)...)
	require.NoError(t, err)
	_, err = run(t, "", append([]string{"decode", "--save", exportURL("carol")}, vaultArgs...)...)
	require.NoError(t, err)

	out, err := run(t, "", append([]string{"vault", "list", "-f", "json"}, vaultArgs...)...)
	require.NoError(t, err)

	var views []vaultView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 3)
	assert.Equal(t, aliceURI, views[0].URI)
	assert.Equal(t, "bob", views[1].Name)
	assert.Equal(t, "carol", views[2].Name)
	assert.NotEmpty(t, views[0].ID)

	raw, err := os.ReadFile(dsn)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "JBSWY3DP")

	out, err = run(t, "", append([]string{"vault", "delete", views[1].ID}, vaultArgs...)...)
	require.NoError(t, err)
	assert.Equal(t, "deleted "+views[1].ID+"\n", out)

	out, err = run(t, "", append([]string{"vault", "list"}, vaultArgs...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "1. Example:alice@example.com")
	assert.Contains(t, out, "2. Example:carol")
	assert.NotContains(t, out, "bob")

	_, err = run(t, "", "vault", "list", "--vault_dsn", dsn, "--master_password", "wrong")
	assert.ErrorIs(t, err, service.ErrWrongMasterPassword)

	_, err = run(t, "", "vault", "list", "--vault_dsn", dsn)
	assert.ErrorIs(t, err, ErrMasterPasswordRequired)
}

func TestServeStopsWithContext(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "--listen", "127.0.0.1:0", "--log_level", "error"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.NoError(t, cmd.ExecuteContext(ctx))
}

func TestWriteText(t *testing.T) {
	counter := uint64(3)
	tests := []struct {
		name string
		view models.EntryView
		want string
	}{
		{
			name: "totp with code",
			view: models.EntryView{Issuer: "Example", Name: "alice", Type: "TOTP", Algorithm: "SHA1", Digits: 6,
				URI: "otpauth://totp/Example:alice", Code: "123456", ExpiresIn: 12},
			want: "1. Example:alice (TOTP, SHA1, 6 digits)\n   otpauth://totp/Example:alice\n   code: 123456 (expires in 12s)\n",
		},
		{
			name: "hotp code never expires",
			view: models.EntryView{Name: "bob", Type: "HOTP", Algorithm: "SHA256", Digits: 8, Counter: &counter,
				URI: "otpauth://hotp/bob", Code: "12345678", Warnings: []string{"non_standard_digits"}},
			want: "1. bob (HOTP, SHA256, 8 digits)\n   otpauth://hotp/bob\n   code: 12345678\n   warnings: non_standard_digits\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeText(&buf, 0, "", tt.view)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

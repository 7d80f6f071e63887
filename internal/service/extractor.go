package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/creachadair/taskgroup"
	"github.com/vova4o/otpexport/internal/exporturl"
	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/internal/otpcode"
	"github.com/vova4o/otpexport/internal/otpuri"
	"github.com/vova4o/otpexport/internal/payload"
	"github.com/vova4o/otpexport/internal/qr"
	"github.com/vova4o/otpexport/package/logger"
)

// maxParallel bounds how many export URLs are decoded at once
const maxParallel = 4

// Extractor turns export URLs and QR images into account entries
type Extractor struct {
	logger *logger.Logger
}

// NewExtractor creates new extractor instance
func NewExtractor(logger *logger.Logger) *Extractor {
	return &Extractor{
		logger: logger,
	}
}

// Decode returns the batch carried by exportURL
func (e *Extractor) Decode(exportURL string) (models.MigrationBatch, error) {
	buf, err := exporturl.ExtractPayload(exportURL)
	if err != nil {
		e.logger.Error("Failed to extract payload: " + err.Error())
		return models.MigrationBatch{}, err
	}

	batch, err := payload.Decode(buf)
	if err != nil {
		e.logger.Error("Failed to decode payload: " + err.Error())
		return models.MigrationBatch{}, err
	}

	e.logger.Debugf("Decoded %d accounts (batch %d/%d)", len(batch.Accounts), batch.BatchIndex+1, batch.BatchSize)
	return batch, nil
}

// Extract decodes exportURL and renders every account as a provisioning URI
func (e *Extractor) Extract(exportURL string) ([]models.Entry, error) {
	batch, err := e.Decode(exportURL)
	if err != nil {
		return nil, err
	}
	return e.entries(batch.Accounts)
}

// ExtractAll decodes several export URLs, usually the QR codes of one split
// export. Entries keep the order of urls; any failure fails the whole call.
func (e *Extractor) ExtractAll(ctx context.Context, urls []string) ([]models.Entry, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := make([]models.MigrationBatch, len(urls))
	g, run := taskgroup.New(taskgroup.Trigger(cancel)).Limit(maxParallel)
	for i, u := range urls {
		run(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch, err := e.Decode(u)
			if err != nil {
				return fmt.Errorf("url %d: %w", i+1, err)
			}
			batches[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.checkBatches(batches)

	var out []models.Entry
	for _, b := range batches {
		entries, err := e.entries(b.Accounts)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	e.logger.Infof("Extracted %d accounts from %d export urls", len(out), len(urls))
	return out, nil
}

// ExtractImage reads an export QR code from an image
func (e *Extractor) ExtractImage(r io.Reader) ([]models.Entry, error) {
	text, err := qr.Decode(r)
	if err != nil {
		e.logger.Error("Failed to read QR code: " + err.Error())
		return nil, err
	}
	if !exporturl.IsExportURL(text) {
		e.logger.Warning("QR code is not an export url")
		return nil, fmt.Errorf("%w: qr code holds %q", exporturl.ErrUnrecognizedExportFormat, shorten(text))
	}
	return e.Extract(text)
}

// ExtractImageFile reads an export QR code from the image file at path
func (e *Extractor) ExtractImageFile(path string) ([]models.Entry, error) {
	text, err := qr.DecodeFile(path)
	if err != nil {
		e.logger.Error("Failed to read QR code from " + path + ": " + err.Error())
		return nil, err
	}
	if !exporturl.IsExportURL(text) {
		return nil, fmt.Errorf("%w: %s", exporturl.ErrUnrecognizedExportFormat, path)
	}
	return e.Extract(text)
}

// Code returns the live code of a provisioning URI at time at
func (e *Extractor) Code(uri string, at time.Time) (string, error) {
	rec, err := otpuri.ParseURI(uri)
	if err != nil {
		e.logger.Error("Failed to parse uri: " + err.Error())
		return "", err
	}
	return otpcode.Generate(rec, at)
}

// Views converts entries to their printable form, with live codes at time at
// when withCodes is set
func (e *Extractor) Views(entries []models.Entry, withCodes bool, at time.Time) ([]models.EntryView, error) {
	views := make([]models.EntryView, 0, len(entries))
	for _, entry := range entries {
		v := entry.View()
		if withCodes {
			code, err := otpcode.Generate(entry.Record, at)
			if err != nil {
				e.logger.Error("Failed to generate code: " + err.Error())
				return nil, err
			}
			v.Code = code
			// whole seconds, rounded up so a live code never shows 0
			v.ExpiresIn = int((otpcode.Remaining(entry.Record, at) + time.Second - 1) / time.Second)
		}
		views = append(views, v)
	}
	return views, nil
}

// WriteQRCodes writes one PNG per entry into dir and returns the file paths
func (e *Extractor) WriteQRCodes(entries []models.Entry, dir string, size int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		e.logger.Error("Failed to create qr directory: " + err.Error())
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for i, entry := range entries {
		path := filepath.Join(dir, fmt.Sprintf("%02d-%s.png", i+1, fileName(entry.Record.Label())))
		if err := qr.WriteFile(entry.URI, size, path); err != nil {
			e.logger.Error("Failed to write qr code: " + err.Error())
			return nil, err
		}
		paths = append(paths, path)
	}
	e.logger.Infof("Wrote %d qr codes to %s", len(paths), dir)
	return paths, nil
}

func (e *Extractor) entries(records []models.AccountRecord) ([]models.Entry, error) {
	out := make([]models.Entry, 0, len(records))
	for i, rec := range records {
		uri, err := otpuri.ToURI(rec)
		if err != nil {
			e.logger.Error(fmt.Sprintf("Failed to build uri for account %d: %v", i+1, err))
			return nil, fmt.Errorf("account %d: %w", i+1, err)
		}
		warnings := otpuri.Warnings(rec)
		for _, w := range warnings {
			e.logger.Warningf("Account %q: %s", rec.Label(), w)
		}
		out = append(out, models.Entry{Record: rec, URI: uri, Warnings: warnings})
	}
	return out, nil
}

// checkBatches warns when the decoded batches do not form one complete export
func (e *Extractor) checkBatches(batches []models.MigrationBatch) {
	seen := make(map[int32]map[int]bool)
	sizes := make(map[int32]int)
	for _, b := range batches {
		if b.BatchSize <= 1 {
			continue
		}
		if seen[b.BatchID] == nil {
			seen[b.BatchID] = make(map[int]bool)
		}
		seen[b.BatchID][b.BatchIndex] = true
		sizes[b.BatchID] = b.BatchSize
	}

	if len(seen) > 1 {
		e.logger.Warningf("Export urls come from %d different exports", len(seen))
	}
	for id, indexes := range seen {
		if len(indexes) < sizes[id] {
			e.logger.Warningf("Export %d is incomplete: %d of %d parts", id, len(indexes), sizes[id])
		}
	}
}

// fileName makes label safe to use as a file name
func fileName(label string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '@':
			return r
		default:
			return '_'
		}
	}, label)
	if name == "" {
		return "account"
	}
	return name
}

// shorten cuts s to at most limit bytes without splitting a rune
func shorten(s string) string {
	const limit = 32
	if len(s) <= limit {
		return s
	}
	cut := 0
	for cut < len(s) {
		_, size := utf8.DecodeRuneInString(s[cut:])
		if cut+size > limit {
			break
		}
		cut += size
	}
	return s[:cut] + "..."
}

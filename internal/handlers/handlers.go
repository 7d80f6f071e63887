// Package handlers serves the extractor over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/vova4o/otpexport/internal/exporturl"
	"github.com/vova4o/otpexport/internal/models"
	"github.com/vova4o/otpexport/internal/otpuri"
	"github.com/vova4o/otpexport/internal/payload"
	"github.com/vova4o/otpexport/internal/qr"
	"github.com/vova4o/otpexport/package/logger"
	"github.com/vova4o/otpexport/package/otpsecret"
	"github.com/vova4o/otpexport/package/varint"
)

// maxBodySize limits request bodies, QR screenshots included
const maxBodySize = 10 << 20

// Servicer interface
type Servicer interface {
	ExtractAll(ctx context.Context, urls []string) ([]models.Entry, error)
	ExtractImage(r io.Reader) ([]models.Entry, error)
	Views(entries []models.Entry, withCodes bool, at time.Time) ([]models.EntryView, error)
	Code(uri string, at time.Time) (string, error)
}

// Handlers struct
type Handlers struct {
	serv   Servicer
	qrSize int
	now    func() time.Time
	logger *logger.Logger
}

// NewHandlers creates new handlers instance
func NewHandlers(serv Servicer, qrSize int, log *logger.Logger) *Handlers {
	return &Handlers{
		serv:   serv,
		qrSize: qrSize,
		now:    time.Now,
		logger: log,
	}
}

// DecodeRequest is the body of POST /api/decode
type DecodeRequest struct {
	URLs  []string `json:"urls"`
	Codes bool     `json:"codes"`
}

// DecodeResponse lists the extracted accounts
type DecodeResponse struct {
	Accounts []models.EntryView `json:"accounts"`
}

// URIRequest is the body of POST /api/qr and POST /api/code
type URIRequest struct {
	URI string `json:"uri"`
	At  int64  `json:"at,omitempty"`
}

// CodeResponse holds a live code
type CodeResponse struct {
	Code string `json:"code"`
}

// ErrorResponse holds a machine readable error code
type ErrorResponse struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("bad request")

// Router returns the HTTP routes
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprintln(w, "OK"); err != nil {
			h.logger.Error("Failed to write health response: " + err.Error())
		}
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/decode", h.Decode).Methods(http.MethodPost)
	api.HandleFunc("/decode/image", h.DecodeImage).Methods(http.MethodPost)
	api.HandleFunc("/qr", h.QR).Methods(http.MethodPost)
	api.HandleFunc("/code", h.Code).Methods(http.MethodPost)
	return r
}

// Decode extracts the accounts of one or more export URLs
func (h *Handlers) Decode(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if len(req.URLs) == 0 {
		h.writeError(w, fmt.Errorf("%w: no urls", errBadRequest))
		return
	}

	entries, err := h.serv.ExtractAll(r.Context(), req.URLs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeEntries(w, entries, req.Codes)
}

// DecodeImage extracts the accounts of an export QR code uploaded as the
// multipart field "image"
func (h *Handlers) DecodeImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	file, _, err := r.FormFile("image")
	if err != nil {
		h.logger.Error("Failed to read image upload: " + err.Error())
		h.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer file.Close()

	entries, err := h.serv.ExtractImage(file)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeEntries(w, entries, r.FormValue("codes") == "true")
}

// QR renders a provisioning URI as a PNG QR code
func (h *Handlers) QR(w http.ResponseWriter, r *http.Request) {
	var req URIRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := otpuri.ParseURI(req.URI); err != nil {
		h.writeError(w, err)
		return
	}

	png, err := qr.Encode(req.URI, h.qrSize)
	if err != nil {
		h.logger.Error("Failed to encode qr code: " + err.Error())
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		h.logger.Error("Failed to write qr code: " + err.Error())
	}
}

// Code returns the live code of a provisioning URI
func (h *Handlers) Code(w http.ResponseWriter, r *http.Request) {
	var req URIRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	at := h.now()
	if req.At != 0 {
		at = time.Unix(req.At, 0)
	}
	code, err := h.serv.Code(req.URI, at)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CodeResponse{Code: code})
}

func (h *Handlers) writeEntries(w http.ResponseWriter, entries []models.Entry, withCodes bool) {
	views, err := h.serv.Views(entries, withCodes, h.now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DecodeResponse{Accounts: views})
}

func (h *Handlers) readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.logger.Error("Failed to decode request: " + err.Error())
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response: " + err.Error())
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status, code := errorCode(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed: " + err.Error())
	}
	h.writeJSON(w, status, ErrorResponse{Error: code})
}

// errorCodes maps input error kinds to stable codes
var errorCodes = []struct {
	err  error
	code string
}{
	{errBadRequest, "bad_request"},
	{varint.ErrTruncatedInput, "truncated_input"},
	{varint.ErrVarintOverflow, "varint_overflow"},
	{payload.ErrUnsupportedWireType, "unsupported_wire_type"},
	{payload.ErrInvalidFieldNumber, "invalid_field_number"},
	{payload.ErrInvalidText, "invalid_text"},
	{models.ErrEmptySecret, "empty_secret"},
	{otpsecret.ErrInvalidSecretEncoding, "invalid_secret_encoding"},
	{models.ErrUnsupportedAccountType, "unsupported_account_type"},
	{otpuri.ErrMalformedURI, "malformed_uri"},
	{exporturl.ErrUnrecognizedExportFormat, "unrecognized_export_format"},
	{exporturl.ErrInvalidBase64, "invalid_base64"},
	{qr.ErrNoQRCode, "no_qr_code"},
	{qr.ErrInvalidImage, "invalid_image"},
}

func errorCode(err error) (int, string) {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return http.StatusBadRequest, c.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

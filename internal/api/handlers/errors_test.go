package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/bulkupload"
)

func TestWriteAppError_Status(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.New(apperr.KindValidation, "op", "bad"), http.StatusBadRequest},
		{apperr.New(apperr.KindConflict, "op", "dup"), http.StatusConflict},
		{apperr.New(apperr.KindNotFound, "op", "gone"), http.StatusNotFound},
		{apperr.New(apperr.KindUpstream, "op", "timeout"), http.StatusBadGateway},
		{apperr.New(apperr.KindExtraction, "op", "unreadable"), http.StatusUnprocessableEntity},
		{apperr.New(apperr.KindNoUsableRows, "op", "empty"), http.StatusUnprocessableEntity},
		{apperr.New(apperr.KindPersistence, "op", "db down"), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAppError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestWriteAppError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAppError(rec, httptest.NewRequest(http.MethodGet, "/", nil),
		apperr.Wrap(apperr.KindPersistence, "SaveScore", "saving score", errors.New("password authentication failed")))

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "Internal server error" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestWriteAppError_ListsRowErrors(t *testing.T) {
	v := bulkupload.NewValidator(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	_, err := v.ValidateAll([]bulkupload.RawRecord{
		{Row: 1, Fields: map[string]string{"date": "2024-01-01", "description": "x", "amount": "abc", "transaction_type": "credit", "reference": "R1"}},
		{Row: 2, Fields: map[string]string{"date": "2024-01-01", "description": "y", "amount": "1", "transaction_type": "transfer", "reference": "R2"}},
	})
	if err == nil {
		t.Fatal("ValidateAll() error = nil")
	}

	rec := httptest.NewRecorder()
	writeAppError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)

	var body struct {
		Errors []bulkupload.RowError `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest || len(body.Errors) != 2 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if body.Errors[0].Field != "amount" || body.Errors[1].Field != "transaction_type" {
		t.Errorf("errors = %+v", body.Errors)
	}
}

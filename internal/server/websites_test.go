package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/quantfold/dealdesk/internal/store"
)

func TestListWebsitesForAdminSeesAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM websites WHERE active=TRUE ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(websiteRows).
			AddRow(1, "fo1", "Altius FO1", "", true, time.Now(), time.Now()).
			AddRow(2, "fo2", "Altius FO2", "", true, time.Now(), time.Now()))

	h := &WebsitesHandler{Store: &store.Store{DB: db}}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/websites/user", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", int64(1))
	ctx.Set("role", "admin")

	if err := h.listForUser(ctx); err != nil {
		t.Fatalf("listForUser: %v", err)
	}
	var resp WebsiteListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 websites, got %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListWebsitesForUserIsGrantScoped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM websites w\s+JOIN user_website_access a`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(websiteRows).
			AddRow(1, "fo1", "Altius FO1", "", true, time.Now(), time.Now()))

	h := &WebsitesHandler{Store: &store.Store{DB: db}}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/websites/user", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", int64(2))
	ctx.Set("role", "analyst")

	if err := h.listForUser(ctx); err != nil {
		t.Fatalf("listForUser: %v", err)
	}
	var resp WebsiteListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Websites[0].WebsiteID != "fo1" {
		t.Fatalf("expected the granted website, got %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

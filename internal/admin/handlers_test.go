package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"remit-backoffice/internal/records"

	"github.com/gin-gonic/gin"
)

func newRouter(store *records.MemoryStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := Handlers{Exec: store, Schema: records.DefaultSchema()}
	r := gin.New()
	r.POST("/v1/admin/:kind", h.Create)
	r.PATCH("/v1/admin/:kind/:id", h.Update)
	r.DELETE("/v1/admin/:kind/:id", h.Delete)
	r.GET("/v1/admin/:kind/:id", h.Get)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, out
}

func TestCreate(t *testing.T) {
	store := records.NewMemoryStore(records.DefaultSchema())
	r := newRouter(store)

	w, out := doJSON(t, r, http.MethodPost, "/v1/admin/Currency", `{"code":"USD","name":"US Dollar"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if out["success"] != true {
		t.Errorf("success = %v", out["success"])
	}
	data := out["data"].(map[string]any)
	if data["code"] != "USD" {
		t.Errorf("code = %v", data["code"])
	}
	if data["id"] == "" || data["id"] == nil {
		t.Error("created record missing id")
	}
	if store.Count("Currency") != 1 {
		t.Errorf("stored = %d", store.Count("Currency"))
	}
}

func TestCreate_UnknownKind(t *testing.T) {
	r := newRouter(records.NewMemoryStore(records.DefaultSchema()))
	w, out := doJSON(t, r, http.MethodPost, "/v1/admin/Widget", `{"name":"x"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if out["success"] != false {
		t.Errorf("success = %v", out["success"])
	}
}

func TestCreate_UnknownFieldRejected(t *testing.T) {
	r := newRouter(records.NewMemoryStore(records.DefaultSchema()))
	w, _ := doJSON(t, r, http.MethodPost, "/v1/admin/Currency", `{"code":"USD","no_such":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestUpdate(t *testing.T) {
	store := records.NewMemoryStore(records.DefaultSchema())
	store.Seed("User", records.Record{"id": "u1", "status": "ACTIVE"})
	r := newRouter(store)

	w, out := doJSON(t, r, http.MethodPatch, "/v1/admin/User/u1", `{"status":"BLOCKED"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	data := out["data"].(map[string]any)
	if data["status"] != "BLOCKED" {
		t.Errorf("status = %v", data["status"])
	}
}

func TestUpdate_NotFound(t *testing.T) {
	r := newRouter(records.NewMemoryStore(records.DefaultSchema()))
	w, _ := doJSON(t, r, http.MethodPatch, "/v1/admin/User/nope", `{"status":"BLOCKED"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDelete(t *testing.T) {
	store := records.NewMemoryStore(records.DefaultSchema())
	store.Seed("User", records.Record{"id": "u1", "status": "ACTIVE"})
	r := newRouter(store)

	w, out := doJSON(t, r, http.MethodDelete, "/v1/admin/User/u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	data := out["data"].(map[string]any)
	if data["id"] != "u1" {
		t.Errorf("deleted record = %v", data)
	}
	if store.Count("User") != 0 {
		t.Errorf("stored = %d", store.Count("User"))
	}
}

func TestGet(t *testing.T) {
	store := records.NewMemoryStore(records.DefaultSchema())
	store.Seed("User", records.Record{"id": "u1", "email": "a@b.c"})
	r := newRouter(store)

	w, out := doJSON(t, r, http.MethodGet, "/v1/admin/User/u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data := out["data"].(map[string]any)
	if data["email"] != "a@b.c" {
		t.Errorf("email = %v", data["email"])
	}
}

package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yiyu/yiyusite/internal/domain"
	"github.com/yiyu/yiyusite/internal/server"
	"github.com/yiyu/yiyusite/internal/service"
	"github.com/yiyu/yiyusite/internal/storage"
	"github.com/yiyu/yiyusite/internal/testutil"
)

func newTestServer(t *testing.T, fake *testutil.FakeSync) (*httptest.Server, *storage.Storage) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "site.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := service.NewScheduleService(store, fake, time.UTC, time.Second)
	srv := server.New(svc, domain.DefaultProfile(), t.TempDir())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()

	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, url, nil)
	} else {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, respBody
}

func TestCreateScheduleEndpoint(t *testing.T) {
	fake := testutil.NewFakeSync()
	fake.Disabled = true
	ts, _ := newTestServer(t, fake)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/schedule",
		`{"date": "2026-02-12", "title": "取 jacket", "note": "08:00 CET"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", resp.StatusCode, body)
	}

	var item domain.ScheduleItem
	if err := json.Unmarshal(body, &item); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if item.ID == "" || item.Title != "取 jacket" || item.Note != "08:00 CET" {
		t.Errorf("unexpected record: %+v", item)
	}
	if strings.Contains(string(body), "cal_uid") {
		t.Errorf("cal_uid must be absent with sync disabled: %s", body)
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	ts, _ := newTestServer(t, testutil.NewFakeSync())

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"date": "2026-02-12"}`},
		{"missing date", `{"title": "x"}`},
		{"empty body", `{}`},
		{"malformed", `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/schedule", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestListScheduleEndpoint(t *testing.T) {
	ts, store := newTestServer(t, testutil.NewFakeSync())

	if _, err := store.Create("2026-05-01", "later", "", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create("2026-01-01", "sooner", "", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/schedule", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var items []domain.ScheduleItem
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(items) != 2 || items[0].Title != "sooner" || items[1].Title != "later" {
		t.Errorf("expected date-sorted list, got %+v", items)
	}
}

func TestUpdateScheduleEndpoint(t *testing.T) {
	ts, store := newTestServer(t, testutil.NewFakeSync())

	item, err := store.Create("2026-02-12", "original", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp, body := doJSON(t, http.MethodPut, ts.URL+"/api/schedule/"+item.ID, `{"note": "updated"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, body)
	}

	var updated domain.ScheduleItem
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if updated.Note != "updated" || updated.Title != "original" {
		t.Errorf("unexpected record: %+v", updated)
	}
}

func TestUpdateUnknownIDEndpoint(t *testing.T) {
	ts, store := newTestServer(t, testutil.NewFakeSync())

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/api/schedule/s999", `{"note": "x"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("store changed by failed update: %d rows", n)
	}
}

func TestDeleteScheduleEndpoint(t *testing.T) {
	ts, store := newTestServer(t, testutil.NewFakeSync())

	item, err := store.Create("2026-02-12", "doomed", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/schedule/"+item.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/schedule/"+item.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestProfileEndpoint(t *testing.T) {
	ts, store := newTestServer(t, testutil.NewFakeSync())

	if _, err := store.Create("2026-02-12", "取 jacket", "", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/profile", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Profile  domain.Profile        `json:"profile"`
		Schedule []domain.ScheduleItem `json:"schedule"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Profile.Name == "" || len(payload.Profile.Sections) != 3 {
		t.Errorf("unexpected profile: %+v", payload.Profile)
	}
	if len(payload.Schedule) != 1 {
		t.Errorf("expected schedule in profile payload, got %+v", payload.Schedule)
	}
}

func TestStaticFallback(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "site.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	svc := service.NewScheduleService(store, testutil.NewFakeSync(), time.UTC, time.Second)

	dist := t.TempDir()
	if err := os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>yiyu</html>"), 0644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	ts := httptest.NewServer(server.New(svc, nil, dist).Handler())
	t.Cleanup(ts.Close)

	for _, path := range []string{"/", "/some/spa/route"} {
		resp, body := doJSON(t, http.MethodGet, ts.URL+path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
		if !strings.Contains(string(body), "yiyu") {
			t.Errorf("GET %s did not serve index.html: %s", path, body)
		}
	}
}

func TestStaticMissingBuild(t *testing.T) {
	ts, _ := newTestServer(t, testutil.NewFakeSync())

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Build not found") {
		t.Errorf("expected build hint, got %s", body)
	}
}

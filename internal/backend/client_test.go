package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotaouro/courier-agent/internal/model"
)

func record(t *testing.T, js string) *model.DeliveryRecord {
	t.Helper()
	var rec model.DeliveryRecord
	if err := json.Unmarshal([]byte(js), &rec); err != nil {
		t.Fatalf("bad test record: %v", err)
	}
	return &rec
}

func TestStillAssigned(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(10 * time.Second).Format(time.RFC3339)
	past := now.Add(-10 * time.Second).Format(time.RFC3339)

	tests := []struct {
		name string
		js   string
		want bool
	}{
		{"id match pending", `{"id":42,"status":"Novo","motoboy_id":9}`, true},
		{"pending alias", `{"id":42,"status":"AWAIT","motoboy_id":9}`, true},
		{"wrong courier id, name match", `{"id":42,"status":"pendente","motoboy_id":3,"atribuido_motoboy":" JOÃO Silva "}`, true},
		{"wrong courier entirely", `{"id":42,"status":"novo","motoboy_id":3,"atribuido_motoboy":"Maria"}`, false},
		{"already collecting", `{"id":42,"status":"Coletando","motoboy_id":9}`, false},
		{"deadline in future", `{"id":42,"status":"novo","motoboy_id":9,"assign_deadline_at":"` + future + `"}`, true},
		{"deadline elapsed", `{"id":42,"status":"novo","motoboy_id":9,"assign_deadline_at":"` + past + `"}`, false},
		{"no assignment at all", `{"id":42,"status":"novo"}`, false},
		{"name match via assigned_to_name", `{"id":42,"status":"waiting","assigned_to_name":"joão silva"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StillAssigned(record(t, tt.js), 9, "João Silva", now)
			if got != tt.want {
				t.Fatalf("StillAssigned=%v want %v", got, tt.want)
			}
		})
	}
}

func TestLegacyRouteFallback(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, nil)
	if !c.Accept(context.Background(), 42, 9) {
		t.Fatal("accept should succeed via legacy route")
	}
	want := []string{"/api/entregas-pendentes/42/accept", "/entregas-pendentes/42/accept"}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("routes tried %v, want %v", paths, want)
	}
}

func TestPrimaryRouteWins(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/entregas-pendentes/7/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != "Entregando" {
			t.Errorf("status body = %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, nil)
	if !c.UpdateStatus(context.Background(), 7, "Entregando") {
		t.Fatal("update status failed")
	}
	if calls != 1 {
		t.Fatalf("legacy route tried after a 2xx, calls=%d", calls)
	}
}

func TestFetchByIDShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{"object", `{"entrega_id":42,"status":"novo"}`, 42},
		{"array", `[{"id":42,"status":"novo"}]`, 42},
		{"rows envelope", `{"rows":[{"entrega_id":42}]}`, 42},
		{"string id", `{"entrega_id":"42"}`, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, "", time.Second, nil)
			rec := c.FetchByID(context.Background(), 42)
			if rec == nil || rec.DeliveryID() != tt.want {
				t.Fatalf("rec=%+v", rec)
			}
		})
	}
}

func TestCheckMediaFailureAssumesMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, nil)
	ms := c.CheckMedia(context.Background(), 42)
	if ms.HasPhotos || ms.HasSignature {
		t.Fatalf("failure must report missing media, got %+v", ms)
	}
}

func TestBatchStatusesEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"plain array", `[{"entrega_id":1,"status":"Coletando"},{"entrega_id":2,"status":"novo"}]`},
		{"data envelope", `{"data":[{"entrega_id":1,"status":"Coletando"},{"id":2,"situacao":"novo"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, "", time.Second, nil)
			list := c.BatchStatuses(context.Background())
			if len(list) != 2 {
				t.Fatalf("len=%d want 2", len(list))
			}
			if list[0].DeliveryID() != 1 || list[0].NormStatus() != model.StatusColetando {
				t.Fatalf("first entry %+v", list[0])
			}
			if list[1].DeliveryID() != 2 || list[1].NormStatus() != model.StatusNovo {
				t.Fatalf("second entry %+v", list[1])
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sekrit" {
			t.Errorf("missing bearer token")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit", time.Second, nil)
	if !c.Finalize(context.Background(), 42, 9) {
		t.Fatal("finalize should accept 204")
	}
}

func TestUploadPhotoMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		if fh.Filename == "" {
			t.Errorf("empty filename")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, nil)
	ok := c.UploadPhoto(context.Background(), 42, "foto_x.jpg", "image/jpeg", strings.NewReader("jpegbytes"))
	if !ok {
		t.Fatal("upload failed")
	}
}

package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dinesafe/internal/bootstrap/config"
)

func TestFetchPageQueryAndMapping(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"$limit":  r.URL.Query().Get("$limit"),
			"$offset": r.URL.Query().Get("$offset"),
			"$order":  r.URL.Query().Get("$order"),
			"$where":  r.URL.Query().Get("$where"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"inspection_id": "2609982",
				"license_": "112233",
				"dba_name": " The Golden Spoon ",
				"facility_type": "Restaurant",
				"risk": "Risk 1 (High)",
				"address": "123 W Adams St",
				"city": "Chicago",
				"state": "IL",
				"zip": "60604",
				"inspection_date": "2026-01-15T00:00:00.000",
				"inspection_type": "Canvass",
				"results": "Pass",
				"violations": "38. Insects and rodents - Comments: droppings",
				"latitude": "41.879",
				"longitude": "-87.635"
			},
			{
				"inspection_id": "2609990",
				"license_": "445566",
				"dba_name": "Corner Deli",
				"risk": "All",
				"inspection_date": "2026-01-16T00:00:00.000",
				"results": "Fail"
			}
		]`))
	}))
	defer server.Close()

	client := NewSocrataClient(config.SourceConfig{BaseURL: server.URL, TimeoutSeconds: 5})
	since := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	records, err := client.FetchPage(context.Background(), since, 200, 100)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("FetchPage() len = %d", len(records))
	}

	if gotQuery["$limit"] != "100" || gotQuery["$offset"] != "200" {
		t.Fatalf("paging query = %v", gotQuery)
	}
	if gotQuery["$order"] != "inspection_date, inspection_id" {
		t.Fatalf("$order = %q", gotQuery["$order"])
	}
	if gotQuery["$where"] != "inspection_date >= '2025-12-01T00:00:00'" {
		t.Fatalf("$where = %q", gotQuery["$where"])
	}

	first := records[0]
	if first.DBAName != "The Golden Spoon" {
		t.Fatalf("DBAName = %q", first.DBAName)
	}
	if first.RiskTier != 1 {
		t.Fatalf("RiskTier = %d", first.RiskTier)
	}
	if first.InspectionDate != "2026-01-15" {
		t.Fatalf("InspectionDate = %q", first.InspectionDate)
	}
	if first.Latitude == nil || *first.Latitude != 41.879 {
		t.Fatalf("Latitude = %v", first.Latitude)
	}

	second := records[1]
	if second.RiskTier != 3 {
		t.Fatalf("unlabeled RiskTier = %d", second.RiskTier)
	}
	if second.Latitude != nil || second.Longitude != nil {
		t.Fatalf("missing coordinates parsed as %v/%v", second.Latitude, second.Longitude)
	}
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewSocrataClient(config.SourceConfig{BaseURL: server.URL, TimeoutSeconds: 5})

	records, err := client.FetchPage(context.Background(), time.Now().UTC(), 0, 10)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if records != nil && len(records) != 0 {
		t.Fatalf("FetchPage() = %v", records)
	}
	if calls != 3 {
		t.Fatalf("server called %d times", calls)
	}
}

func TestFetchPageRejectsNonPositiveLimit(t *testing.T) {
	client := NewSocrataClient(config.SourceConfig{BaseURL: "http://localhost"})

	if _, err := client.FetchPage(context.Background(), time.Now(), 0, 0); err == nil {
		t.Fatal("FetchPage(limit=0) expected error")
	}
}

func TestParseRiskTier(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"Risk 1 (High)", 1},
		{"Risk 2 (Medium)", 2},
		{"Risk 3 (Low)", 3},
		{"All", 3},
		{"", 3},
	}
	for _, tc := range cases {
		if got := parseRiskTier(tc.raw); got != tc.want {
			t.Fatalf("parseRiskTier(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

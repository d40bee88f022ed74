package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/errs"
	"dinesafe/internal/infrastructure/httpx"
	"dinesafe/internal/ports"
)

// SocrataClient reads a Socrata-hosted inspection dataset (the city open
// data portal publishes one JSON resource per dataset).
type SocrataClient struct {
	baseURL string
	client  *http.Client
}

var _ ports.InspectionSource = (*SocrataClient)(nil)

func NewSocrataClient(cfg config.SourceConfig) *SocrataClient {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &SocrataClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpx.NewClient(timeout),
	}
}

// socrataRecord mirrors the dataset's JSON row. Socrata serves every field
// as a string.
type socrataRecord struct {
	InspectionID   string `json:"inspection_id"`
	LicenseNo      string `json:"license_"`
	DBAName        string `json:"dba_name"`
	AKAName        string `json:"aka_name"`
	FacilityType   string `json:"facility_type"`
	Risk           string `json:"risk"`
	Address        string `json:"address"`
	City           string `json:"city"`
	State          string `json:"state"`
	Zip            string `json:"zip"`
	InspectionDate string `json:"inspection_date"`
	InspectionType string `json:"inspection_type"`
	Results        string `json:"results"`
	Violations     string `json:"violations"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
}

func (c *SocrataClient) FetchPage(ctx context.Context, since time.Time, offset int, limit int) ([]ports.SourceRecord, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	q := url.Values{}
	q.Set("$limit", strconv.Itoa(limit))
	q.Set("$offset", strconv.Itoa(offset))
	q.Set("$order", "inspection_date, inspection_id")
	q.Set("$where", fmt.Sprintf("inspection_date >= '%s'", since.UTC().Format("2006-01-02T15:04:05")))

	endpoint := c.baseURL + "?" + q.Encode()

	var rows []socrataRecord
	err := httpx.Retry(ctx, 3, time.Second, 8*time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return errs.Wrap(err, "build source request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return errs.Wrap(err, "fetch source page")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("source returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		rows = rows[:0]
		if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
			return errs.Wrap(err, "decode source page")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]ports.SourceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, mapRecord(row))
	}
	return records, nil
}

func mapRecord(row socrataRecord) ports.SourceRecord {
	return ports.SourceRecord{
		InspectionID:   strings.TrimSpace(row.InspectionID),
		LicenseNo:      strings.TrimSpace(row.LicenseNo),
		DBAName:        strings.TrimSpace(row.DBAName),
		AKAName:        strings.TrimSpace(row.AKAName),
		FacilityType:   strings.TrimSpace(row.FacilityType),
		RiskTier:       parseRiskTier(row.Risk),
		Address:        strings.TrimSpace(row.Address),
		City:           strings.TrimSpace(row.City),
		State:          strings.TrimSpace(row.State),
		Zip:            strings.TrimSpace(row.Zip),
		Latitude:       parseCoordinate(row.Latitude),
		Longitude:      parseCoordinate(row.Longitude),
		InspectionDate: normalizeDate(row.InspectionDate),
		InspectionType: strings.TrimSpace(row.InspectionType),
		Result:         strings.TrimSpace(row.Results),
		ViolationsRaw:  row.Violations,
	}
}

// parseRiskTier turns labels like "Risk 1 (High)" into the numeric tier.
// Unlabeled facilities land in the lowest tier.
func parseRiskTier(risk string) int {
	risk = strings.TrimSpace(risk)
	if rest, ok := strings.CutPrefix(risk, "Risk "); ok && len(rest) > 0 {
		if tier := int(rest[0] - '0'); tier >= 1 && tier <= 3 {
			return tier
		}
	}
	return 3
}

func parseCoordinate(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}

// normalizeDate reduces the source's timestamp ("2026-01-15T00:00:00.000")
// to a plain ISO date.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, 'T'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}

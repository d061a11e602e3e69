package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/domwxyz/marxist-search/core"
	"github.com/domwxyz/marxist-search/storage"
)

// FilterSpec is the caller-facing metadata filter. DateRange takes a
// named preset ("past_week", "past_month", "past_3_months", "past_year",
// a decade like "2010s", or "custom"); with "custom", StartDate and
// EndDate are inclusive ISO dates (YYYY-MM-DD), either one optional.
type FilterSpec struct {
	Source    string `json:"source,omitempty"`
	Author    string `json:"author,omitempty"`
	DateRange string `json:"date_range,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Rolling preset widths in days.
var rollingPresets = map[string]int{
	"past_week":     7,
	"past_month":    30,
	"past_3_months": 90,
	"past_3months":  90, // legacy spelling
	"past_year":     365,
}

// Decade presets map to calendar-year windows.
var decadePresets = map[string]int{
	"1990s": 1990,
	"2000s": 2000,
	"2010s": 2010,
	"2020s": 2020,
}

// ResolveFilter translates a FilterSpec into the store's candidate
// filter, anchoring rolling presets at now. Unrecognized presets and
// malformed custom dates return core.ErrMalformedFilter.
func ResolveFilter(spec FilterSpec, now time.Time) (storage.CandidateFilter, error) {
	filter := storage.CandidateFilter{
		Source: spec.Source,
		Author: spec.Author,
	}

	rangeName := strings.ToLower(strings.TrimSpace(spec.DateRange))
	switch {
	case rangeName == "":
		return filter, nil

	case rangeName == "custom":
		if spec.StartDate != "" {
			start, err := time.Parse("2006-01-02", spec.StartDate)
			if err != nil {
				return storage.CandidateFilter{}, fmt.Errorf("%w: start date %q", core.ErrMalformedFilter, spec.StartDate)
			}
			filter.Start = start
		}
		if spec.EndDate != "" {
			end, err := time.Parse("2006-01-02", spec.EndDate)
			if err != nil {
				return storage.CandidateFilter{}, fmt.Errorf("%w: end date %q", core.ErrMalformedFilter, spec.EndDate)
			}
			// Inclusive end date; the store compares published_date < End.
			filter.End = end.AddDate(0, 0, 1)
		}
		if !filter.Start.IsZero() && !filter.End.IsZero() && filter.End.Before(filter.Start) {
			return storage.CandidateFilter{}, fmt.Errorf("%w: end date before start date", core.ErrMalformedFilter)
		}
		return filter, nil

	default:
		if days, ok := rollingPresets[rangeName]; ok {
			filter.Start = now.AddDate(0, 0, -days)
			return filter, nil
		}
		if year, ok := decadePresets[rangeName]; ok {
			filter.Start = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
			filter.End = time.Date(year+10, 1, 1, 0, 0, 0, 0, time.UTC)
			return filter, nil
		}
		return storage.CandidateFilter{}, fmt.Errorf("%w: unknown date range %q", core.ErrMalformedFilter, spec.DateRange)
	}
}

// ParseTags decodes the tags JSON blob stored on an article. Malformed
// blobs yield nil rather than an error; tags are cosmetic.
func ParseTags(tagsJSON string) []string {
	tagsJSON = strings.TrimSpace(tagsJSON)
	if tagsJSON == "" || tagsJSON == "[]" || tagsJSON == "null" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil
	}
	return tags
}

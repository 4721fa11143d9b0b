// Package campaign models the remote campaign records and drives their
// page-by-page retrieval through the request executor.
package campaign

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMissingRecords marks a page response without the expected records
// field. The paginator treats it as the end of data, not a failure.
var ErrMissingRecords = errors.New("page response missing data field")

// Record is one remote campaign. ID is the stable external identity;
// every other field is overwritten on each sync.
type Record struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Spend       float64 `json:"spend"`
}

// Page is one fetched page of records, consumed immediately by the
// paginator.
type Page struct {
	Records    []Record
	HasMore    bool
	PageNumber int
}

// ParsePage decodes a campaign list response. A payload without a `data`
// field returns ErrMissingRecords so the caller can treat the page as a
// pagination boundary. A `data` field that is present but not decodable
// is a real error.
func ParsePage(payload []byte, pageNumber int) (Page, error) {
	data := gjson.GetBytes(payload, "data")
	if !data.Exists() {
		return Page{}, fmt.Errorf("page %d: %w", pageNumber, ErrMissingRecords)
	}

	var records []Record
	if err := json.Unmarshal([]byte(data.Raw), &records); err != nil {
		return Page{}, fmt.Errorf("page %d: decode records: %w", pageNumber, err)
	}

	return Page{
		Records:    records,
		HasMore:    gjson.GetBytes(payload, "pagination.has_more").Bool(),
		PageNumber: pageNumber,
	}, nil
}

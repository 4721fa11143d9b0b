package campaign

import (
	"context"
	"fmt"
)

// DefaultPageLimit is the page size requested from the campaign API.
const DefaultPageLimit = 50

// Requester issues one logical API operation with retry and pacing
// handled internally. Satisfied by *client.Executor.
type Requester interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string, body []byte) ([]byte, error)
}

// API exposes the campaign operations of the remote service.
type API struct {
	exec  Requester
	limit int
}

// NewAPI creates a campaign API bound to an executor. limit is the page
// size; non-positive values fall back to DefaultPageLimit.
func NewAPI(exec Requester, limit int) *API {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &API{exec: exec, limit: limit}
}

// FetchPage retrieves one page of campaigns.
func (a *API) FetchPage(ctx context.Context, pageNumber int) (Page, error) {
	payload, err := a.exec.Get(ctx, fmt.Sprintf("/campaigns?page=%d&limit=%d", pageNumber, a.limit))
	if err != nil {
		return Page{}, fmt.Errorf("fetch page %d: %w", pageNumber, err)
	}
	return ParsePage(payload, pageNumber)
}

// TriggerSync requests a remote refresh of a single campaign before it is
// persisted locally.
func (a *API) TriggerSync(ctx context.Context, id string) error {
	if _, err := a.exec.Post(ctx, "/campaigns/"+id+"/sync", nil); err != nil {
		return fmt.Errorf("trigger sync for campaign %s: %w", id, err)
	}
	return nil
}

package campaign

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// PageFetcher retrieves a single page. Satisfied by *API.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageNumber int) (Page, error)
}

// Paginator drives successive page fetches until the server signals
// exhaustion, accumulating the complete ordered record set before any
// record is processed.
type Paginator struct {
	fetcher PageFetcher
	logger  zerolog.Logger
}

// NewPaginator creates a paginator over the given fetcher.
func NewPaginator(fetcher PageFetcher, logger zerolog.Logger) *Paginator {
	return &Paginator{
		fetcher: fetcher,
		logger:  logger.With().Str("component", "paginator").Logger(),
	}
}

// FetchAll fetches pages strictly sequentially starting at 1 and returns
// every record in page-then-intra-page order. Each page is fetched
// exactly once.
//
// A response missing the records field ends pagination with a warning
// rather than an error: a malformed boundary should not fail a whole
// sync. Note this can also mask a genuinely broken page.
func (p *Paginator) FetchAll(ctx context.Context) ([]Record, error) {
	var records []Record

	for pageNumber := 1; ; pageNumber++ {
		page, err := p.fetcher.FetchPage(ctx, pageNumber)
		if err != nil {
			if errors.Is(err, ErrMissingRecords) {
				p.logger.Warn().
					Int("page", pageNumber).
					Int("records", len(records)).
					Msg("Page response missing records field, treating as end of data")
				return records, nil
			}
			return nil, err
		}

		records = append(records, page.Records...)

		p.logger.Debug().
			Int("page", pageNumber).
			Int("page_records", len(page.Records)).
			Int("total_records", len(records)).
			Bool("has_more", page.HasMore).
			Msg("Fetched page")

		if !page.HasMore {
			break
		}
	}

	p.logger.Info().
		Int("records", len(records)).
		Msg("Pagination complete")

	return records, nil
}

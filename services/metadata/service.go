// Package metadata talks to TMDB and shapes search results for the
// add-to-list flow.
package metadata

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"cinelist/models"
)

// enrichmentConcurrency bounds parallel per-series detail calls within one
// search request.
const enrichmentConcurrency = 4

// Service composes TMDB calls into list-ready search results.
type Service struct {
	client *tmdbClient
}

// NewService creates a metadata service. httpc may be nil, in which case a
// default client with a 15s timeout is used.
func NewService(accessToken, language string, httpc *http.Client) *Service {
	return &Service{client: newTMDBClient(accessToken, language, httpc)}
}

// Search runs a TMDB multi-search and enriches series results with season and
// episode detail. A blank query returns an empty result set without touching
// the upstream. An upstream failure on the multi-search fails the whole call;
// a failed enrichment only degrades its own item. The output order always
// matches the upstream result order.
func (s *Service) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SearchResult{}, nil
	}

	raw, err := s.client.searchMulti(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(raw))
	for _, r := range raw {
		switch r.MediaType {
		case "movie":
			results = append(results, models.SearchResult{
				ID:          r.ID,
				Title:       r.Title,
				MediaType:   models.MediaTypeMovie,
				PosterPath:  r.PosterPath,
				ReleaseDate: r.ReleaseDate,
			})
		case "tv":
			results = append(results, models.SearchResult{
				ID:          r.ID,
				Title:       r.Name,
				MediaType:   models.MediaTypeSeries,
				PosterPath:  r.PosterPath,
				ReleaseDate: firstNonEmpty(r.ReleaseDate, r.FirstAirDate),
			})
		}
	}

	// Each goroutine writes only its own index, so the upstream order is
	// preserved no matter which enrichment call finishes first.
	p := pool.New().WithMaxGoroutines(enrichmentConcurrency)
	for idx := range results {
		if results[idx].MediaType != models.MediaTypeSeries {
			continue
		}
		idx := idx
		p.Go(func() {
			detail, err := s.client.seriesDetail(ctx, results[idx].ID)
			if err != nil {
				log.Printf("[metadata] series enrichment failed tmdbId=%d err=%v", results[idx].ID, err)
				return
			}
			seasons := shapeSeasons(detail)
			results[idx].NumberOfSeasons = detail.NumberOfSeasons
			results[idx].Seasons = &seasons
		})
	}
	p.Wait()

	return results, nil
}

func shapeSeasons(detail tmdbSeriesDetail) []models.Season {
	seasons := make([]models.Season, 0, len(detail.Seasons))
	for _, season := range detail.Seasons {
		// Specials are listed as season 0 upstream; the list flow ignores them.
		if season.SeasonNumber <= 0 {
			continue
		}
		episodes := make([]models.Episode, 0)
		for _, ep := range detail.EpisodesBySeason[season.SeasonNumber] {
			episodes = append(episodes, models.Episode{
				EpisodeNumber: ep.EpisodeNumber,
				Name:          ep.Name,
			})
		}
		seasons = append(seasons, models.Season{
			SeasonNumber: season.SeasonNumber,
			EpisodeCount: season.EpisodeCount,
			Episodes:     episodes,
		})
	}
	return seasons
}

// SeasonCount returns the live season count of a series. tmdbID is the
// stringified TMDB identifier stored on list items.
func (s *Service) SeasonCount(ctx context.Context, tmdbID string) (int, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(tmdbID), 10, 64)
	if err != nil {
		return 0, err
	}
	return s.client.seasonCount(ctx, id)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

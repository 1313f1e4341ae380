package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// maxAppendedSeasons bounds how many per-season episode lists are requested
// in one series detail call. TMDB caps append_to_response at 20 sub-requests;
// the add-to-list UI only ever drills into the first few seasons.
const maxAppendedSeasons = 6

type tmdbClient struct {
	accessToken string
	language    string
	httpc       *http.Client
}

func newTMDBClient(accessToken, language string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &tmdbClient{
		accessToken: strings.TrimSpace(accessToken),
		language:    strings.TrimSpace(language),
		httpc:       httpc,
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.accessToken != ""
}

// doGET performs a bearer-authenticated GET and decodes the JSON response.
// Failures surface immediately; there is deliberately no retry here.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("tmdb request failed: %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

type tmdbMultiResult struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	MediaType    string `json:"media_type"`
	PosterPath   string `json:"poster_path"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

// searchMulti runs a TMDB multi-search and returns the raw results in
// upstream order.
func (c *tmdbClient) searchMulti(ctx context.Context, query string) ([]tmdbMultiResult, error) {
	if !c.isConfigured() {
		return nil, errors.New("tmdb access token not configured")
	}

	endpoint := fmt.Sprintf("%s/search/multi?query=%s&include_adult=false",
		tmdbBaseURL, url.QueryEscape(query))
	if c.language != "" {
		endpoint += "&language=" + url.QueryEscape(c.language)
	}

	var payload struct {
		Results []tmdbMultiResult `json:"results"`
	}
	if err := c.doGET(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	return payload.Results, nil
}

type tmdbSeason struct {
	SeasonNumber int `json:"season_number"`
	EpisodeCount int `json:"episode_count"`
}

type tmdbEpisode struct {
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
}

type tmdbSeriesDetail struct {
	NumberOfSeasons int
	Seasons         []tmdbSeason
	// EpisodesBySeason holds the appended per-season episode lists, keyed by
	// season number. Seasons beyond the append window have no entry.
	EpisodesBySeason map[int][]tmdbEpisode
}

// seriesDetail fetches a series with its seasons and the episode lists of the
// first maxAppendedSeasons seasons appended in the same call.
func (c *tmdbClient) seriesDetail(ctx context.Context, tmdbID int64) (tmdbSeriesDetail, error) {
	if !c.isConfigured() {
		return tmdbSeriesDetail{}, errors.New("tmdb access token not configured")
	}

	appended := make([]string, 0, maxAppendedSeasons)
	for n := 1; n <= maxAppendedSeasons; n++ {
		appended = append(appended, fmt.Sprintf("season/%d", n))
	}
	endpoint := fmt.Sprintf("%s/tv/%d?append_to_response=%s",
		tmdbBaseURL, tmdbID, strings.Join(appended, ","))
	if c.language != "" {
		endpoint += "&language=" + url.QueryEscape(c.language)
	}

	var raw map[string]json.RawMessage
	if err := c.doGET(ctx, endpoint, &raw); err != nil {
		return tmdbSeriesDetail{}, err
	}

	detail := tmdbSeriesDetail{EpisodesBySeason: make(map[int][]tmdbEpisode)}
	if data, ok := raw["number_of_seasons"]; ok {
		if err := json.Unmarshal(data, &detail.NumberOfSeasons); err != nil {
			return tmdbSeriesDetail{}, fmt.Errorf("decode season count: %w", err)
		}
	}
	if data, ok := raw["seasons"]; ok {
		if err := json.Unmarshal(data, &detail.Seasons); err != nil {
			return tmdbSeriesDetail{}, fmt.Errorf("decode seasons: %w", err)
		}
	}
	for n := 1; n <= maxAppendedSeasons; n++ {
		data, ok := raw[fmt.Sprintf("season/%d", n)]
		if !ok {
			continue
		}
		var season struct {
			Episodes []tmdbEpisode `json:"episodes"`
		}
		if err := json.Unmarshal(data, &season); err != nil {
			continue
		}
		detail.EpisodesBySeason[n] = season.Episodes
	}

	return detail, nil
}

// seasonCount fetches only the number of seasons of a series.
func (c *tmdbClient) seasonCount(ctx context.Context, tmdbID int64) (int, error) {
	if !c.isConfigured() {
		return 0, errors.New("tmdb access token not configured")
	}

	endpoint := fmt.Sprintf("%s/tv/%d", tmdbBaseURL, tmdbID)
	if c.language != "" {
		endpoint += "?language=" + url.QueryEscape(c.language)
	}

	var payload struct {
		NumberOfSeasons int `json:"number_of_seasons"`
	}
	if err := c.doGET(ctx, endpoint, &payload); err != nil {
		return 0, err
	}

	return payload.NumberOfSeasons, nil
}

package models

import "time"

// MediaType identifies whether a list entry is a movie or a series.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// SeriesType narrows a series entry to the whole run, one season, or one episode.
type SeriesType string

const (
	SeriesTypeEntire  SeriesType = "series"
	SeriesTypeSeason  SeriesType = "season"
	SeriesTypeEpisode SeriesType = "episode"
)

// ListItem represents a media entry saved to the shared list.
type ListItem struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id,omitempty"` // owner; populated only in personal list mode
	Title            string     `json:"title"`
	MediaType        MediaType  `json:"media_type"`
	TMDBID           string     `json:"tmdb_id"`
	SeriesType       SeriesType `json:"series_type,omitempty"`
	SeasonNumber     *int       `json:"season_number,omitempty"`
	EpisodeNumber    *int       `json:"episode_number,omitempty"`
	EpisodeName      string     `json:"episode_name,omitempty"`
	PosterPath       string     `json:"poster_path,omitempty"`
	ReleaseDate      string     `json:"release_date,omitempty"`
	IsCompleted      bool       `json:"is_completed"`
	CompletedBy      string     `json:"completed_by,omitempty"`
	CompletedByEmail string     `json:"completed_by_email,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`

	// NumberOfSeasons is fetched live from TMDB when listing series entries.
	// It is never persisted.
	NumberOfSeasons int `json:"number_of_seasons,omitempty"`
}

// ListItemInput captures the data required to add an item to the list.
type ListItemInput struct {
	Title         string     `json:"title"`
	MediaType     MediaType  `json:"media_type"`
	TMDBID        string     `json:"tmdb_id"`
	SeriesType    SeriesType `json:"series_type,omitempty"`
	SeasonNumber  *int       `json:"season_number,omitempty"`
	EpisodeNumber *int       `json:"episode_number,omitempty"`
	EpisodeName   string     `json:"episode_name,omitempty"`
	PosterPath    string     `json:"poster_path,omitempty"`
	ReleaseDate   string     `json:"release_date,omitempty"`
}

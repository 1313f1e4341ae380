package models

// SearchResult is one entry of a TMDB multi-search response, normalised for
// the add-to-list flow.
type SearchResult struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	MediaType   MediaType `json:"media_type"`
	PosterPath  string    `json:"poster_path,omitempty"`
	ReleaseDate string    `json:"release_date,omitempty"`

	// NumberOfSeasons and Seasons are populated for series results only.
	// Seasons stays nil when enrichment failed for this item; an enriched
	// series with no seasons carries a pointer to an empty slice so the JSON
	// output is [] rather than absent.
	NumberOfSeasons int       `json:"number_of_seasons,omitempty"`
	Seasons         *[]Season `json:"seasons,omitempty"`
}

// Season summarises one season of a series, with its episode list when the
// upstream detail call returned one.
type Season struct {
	SeasonNumber int       `json:"season_number"`
	EpisodeCount int       `json:"episode_count"`
	Episodes     []Episode `json:"episodes"`
}

// Episode identifies a single episode within a season.
type Episode struct {
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
}

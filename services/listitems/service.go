package listitems

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"cinelist/config"
	"cinelist/models"
)

var (
	ErrTitleRequired     = errors.New("title is required")
	ErrMediaTypeInvalid  = errors.New("media type must be movie or series")
	ErrTMDBIDRequired    = errors.New("tmdb id is required")
	ErrSeriesTypeInvalid = errors.New("series type must be series, season or episode")
	ErrIDRequired        = errors.New("id is required")
	ErrDuplicate         = errors.New("item already exists in the list")
	ErrNotFound          = errors.New("item not found")
	ErrForbidden         = errors.New("insufficient permission")
)

// Actor identifies who is performing a mutation, with their resolved role.
type Actor struct {
	ID    string
	Admin bool
}

// Service manages persistence of list items. The configured list mode decides
// whether items belong to one shared list or to their owners.
type Service struct {
	db   *sql.DB
	mode config.ListMode
}

// NewService creates a list item repository on top of an open database.
func NewService(db *sql.DB, mode config.ListMode) *Service {
	if mode != config.ListModePersonal {
		mode = config.ListModeShared
	}
	return &Service{db: db, mode: mode}
}

// Mode returns the configured list mode.
func (s *Service) Mode() config.ListMode {
	return s.mode
}

// Create inserts a new list item owned by userID (ignored in shared mode).
// Adding an external id already on the list returns ErrDuplicate; the unique
// index enforces this even under concurrent adds.
func (s *Service) Create(ctx context.Context, userID string, input models.ListItemInput) (models.ListItem, error) {
	item, err := s.buildItem(userID, input)
	if err != nil {
		return models.ListItem{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cine_list_items
		   (id, user_id, title, media_type, tmdb_id, series_type,
		    season_number, episode_number, episode_name, poster_path,
		    release_date, is_completed, completed_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)`,
		item.ID, nullStr(item.UserID), item.Title, string(item.MediaType),
		item.TMDBID, nullStr(string(item.SeriesType)),
		item.SeasonNumber, item.EpisodeNumber, nullStr(item.EpisodeName),
		nullStr(item.PosterPath), nullStr(item.ReleaseDate), item.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ListItem{}, ErrDuplicate
		}
		return models.ListItem{}, fmt.Errorf("insert list item: %w", err)
	}

	return item, nil
}

func (s *Service) buildItem(userID string, input models.ListItemInput) (models.ListItem, error) {
	if strings.TrimSpace(input.Title) == "" {
		return models.ListItem{}, ErrTitleRequired
	}
	if strings.TrimSpace(input.TMDBID) == "" {
		return models.ListItem{}, ErrTMDBIDRequired
	}

	mediaType := models.MediaType(strings.ToLower(strings.TrimSpace(string(input.MediaType))))
	if mediaType != models.MediaTypeMovie && mediaType != models.MediaTypeSeries {
		return models.ListItem{}, ErrMediaTypeInvalid
	}

	item := models.ListItem{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		MediaType:   mediaType,
		TMDBID:      strings.TrimSpace(input.TMDBID),
		PosterPath:  strings.TrimSpace(input.PosterPath),
		ReleaseDate: strings.TrimSpace(input.ReleaseDate),
		CreatedAt:   time.Now().UTC(),
	}

	if s.mode == config.ListModePersonal {
		item.UserID = strings.TrimSpace(userID)
	}

	// Series scope fields only carry meaning for series entries.
	if mediaType == models.MediaTypeSeries {
		seriesType := input.SeriesType
		if seriesType == "" {
			seriesType = models.SeriesTypeEntire
		}
		switch seriesType {
		case models.SeriesTypeEntire, models.SeriesTypeSeason, models.SeriesTypeEpisode:
		default:
			return models.ListItem{}, ErrSeriesTypeInvalid
		}
		item.SeriesType = seriesType

		if seriesType == models.SeriesTypeSeason || seriesType == models.SeriesTypeEpisode {
			item.SeasonNumber = input.SeasonNumber
		}
		if seriesType == models.SeriesTypeEpisode {
			item.EpisodeNumber = input.EpisodeNumber
			item.EpisodeName = strings.TrimSpace(input.EpisodeName)
		}
	}

	return item, nil
}

const selectColumns = `
	i.id, i.user_id, i.title, i.media_type, i.tmdb_id, i.series_type,
	i.season_number, i.episode_number, i.episode_name, i.poster_path,
	i.release_date, i.is_completed, i.completed_by, u.email, i.created_at`

// List returns all items newest-first. In personal mode only userID's items
// are returned.
func (s *Service) List(ctx context.Context, userID string) ([]models.ListItem, error) {
	query := `SELECT` + selectColumns + `
		FROM cine_list_items i
		LEFT JOIN users u ON u.id = i.completed_by`
	args := []any{}
	if s.mode == config.ListModePersonal {
		query += ` WHERE i.user_id = ?`
		args = append(args, strings.TrimSpace(userID))
	}
	query += ` ORDER BY i.created_at DESC, i.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query list items: %w", err)
	}
	defer rows.Close()

	items := make([]models.ListItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list items: %w", err)
	}

	return items, nil
}

// Get returns a single item by id.
func (s *Service) Get(ctx context.Context, id string) (models.ListItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.ListItem{}, ErrIDRequired
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT`+selectColumns+`
		 FROM cine_list_items i
		 LEFT JOIN users u ON u.id = i.completed_by
		 WHERE i.id = ?`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ListItem{}, ErrNotFound
	}
	if err != nil {
		return models.ListItem{}, err
	}

	return item, nil
}

// SetCompletion toggles an item's completion state. In shared mode only
// admins may complete items; in personal mode only the owner. is_completed
// and completed_by always change together: completing records the actor,
// un-completing clears the reference.
func (s *Service) SetCompletion(ctx context.Context, id string, completed bool, actor Actor) (models.ListItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.ListItem{}, ErrIDRequired
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return models.ListItem{}, err
	}

	switch s.mode {
	case config.ListModePersonal:
		if item.UserID == "" || item.UserID != actor.ID {
			return models.ListItem{}, ErrForbidden
		}
	default:
		if !actor.Admin {
			return models.ListItem{}, ErrForbidden
		}
	}

	var completedBy any
	if completed {
		completedBy = actor.ID
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE cine_list_items SET is_completed = ?, completed_by = ? WHERE id = ?`,
		completed, completedBy, id,
	); err != nil {
		return models.ListItem{}, fmt.Errorf("update list item: %w", err)
	}

	return s.Get(ctx, id)
}

// Delete removes an item. Deleting an id that does not exist succeeds; the
// delete is idempotent at the repository boundary. In personal mode the
// delete is scoped to the owner's rows.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrIDRequired
	}

	query := `DELETE FROM cine_list_items WHERE id = ?`
	args := []any{id}
	if s.mode == config.ListModePersonal {
		query += ` AND user_id = ?`
		args = append(args, strings.TrimSpace(userID))
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete list item: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (models.ListItem, error) {
	var (
		item                            models.ListItem
		userID, seriesType, episodeName sql.NullString
		posterPath, releaseDate         sql.NullString
		completedBy, completedByEmail   sql.NullString
		seasonNumber, episodeNumber     sql.NullInt64
	)

	err := row.Scan(
		&item.ID, &userID, &item.Title, &item.MediaType, &item.TMDBID,
		&seriesType, &seasonNumber, &episodeNumber, &episodeName,
		&posterPath, &releaseDate, &item.IsCompleted,
		&completedBy, &completedByEmail, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ListItem{}, err
		}
		return models.ListItem{}, fmt.Errorf("scan list item: %w", err)
	}

	item.UserID = userID.String
	item.SeriesType = models.SeriesType(seriesType.String)
	item.EpisodeName = episodeName.String
	item.PosterPath = posterPath.String
	item.ReleaseDate = releaseDate.String
	item.CompletedBy = completedBy.String
	item.CompletedByEmail = completedByEmail.String
	if seasonNumber.Valid {
		n := int(seasonNumber.Int64)
		item.SeasonNumber = &n
	}
	if episodeNumber.Valid {
		n := int(episodeNumber.Int64)
		item.EpisodeNumber = &n
	}

	return item, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

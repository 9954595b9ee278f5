package googlebooks

import "github.com/lepinkainen/folio/internal/catalog"

// volumesResponse matches the /volumes search response.
type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Authors       []string `json:"authors"`
		PublishedDate string   `json:"publishedDate"`
		Description   string   `json:"description"`
		Categories    []string `json:"categories"`
		AverageRating *float64 `json:"averageRating"`
		ImageLinks    struct {
			Thumbnail      string `json:"thumbnail"`
			SmallThumbnail string `json:"smallThumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

func (v volume) toRecord() catalog.Record {
	info := v.VolumeInfo

	// Prefer larger thumbnail
	cover := info.ImageLinks.Thumbnail
	if cover == "" {
		cover = info.ImageLinks.SmallThumbnail
	}

	return catalog.Record{
		ID:            v.ID,
		Title:         info.Title,
		Authors:       info.Authors,
		Categories:    info.Categories,
		PublishedDate: info.PublishedDate,
		AverageRating: info.AverageRating,
		CoverURL:      cover,
		Description:   info.Description,
	}
}

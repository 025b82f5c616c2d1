package listing

import (
	"github.com/aws-agent/console/internal/storage/models"
)

// Pages is the cached value of one list key: every page fetched so far, in order.
// It is never modified in place.
type Pages struct {
	Pages []models.Page
}

func NewPages(first models.Page) Pages {
	return Pages{Pages: []models.Page{first}}
}

// Append returns a copy with next added after the existing pages.
func (p Pages) Append(next models.Page) Pages {
	pages := make([]models.Page, 0, len(p.Pages)+1)
	pages = append(pages, p.Pages...)
	pages = append(pages, next)
	return Pages{Pages: pages}
}

func (p Pages) Items() []models.Recommendation {
	n := 0
	for _, page := range p.Pages {
		n += len(page.Data)
	}
	items := make([]models.Recommendation, 0, n)
	for _, page := range p.Pages {
		items = append(items, page.Data...)
	}
	return items
}

// TotalItems is the count reported with the first page.
func (p Pages) TotalItems() int {
	if len(p.Pages) == 0 {
		return 0
	}
	return p.Pages[0].Pagination.TotalItems
}

// NextCursor is the cursor reported with the most recent page.
func (p Pages) NextCursor() string {
	if len(p.Pages) == 0 {
		return ""
	}
	return p.Pages[len(p.Pages)-1].NextCursor()
}

func (p Pages) HasNextPage() bool {
	return p.NextCursor() != ""
}

func (p Pages) AvailableTags() *models.AvailableTags {
	if len(p.Pages) == 0 {
		return nil
	}
	return p.Pages[0].AvailableTags.Sorted()
}

func (p Pages) Contains(id string) bool {
	for _, page := range p.Pages {
		for _, rec := range page.Data {
			if rec.RecommendationID == id {
				return true
			}
		}
	}
	return false
}

func (p Pages) Find(id string) (models.Recommendation, bool) {
	for _, page := range p.Pages {
		for _, rec := range page.Data {
			if rec.RecommendationID == id {
				return rec, true
			}
		}
	}
	return models.Recommendation{}, false
}

// Position locates id as (page index, index within page).
func (p Pages) Position(id string) (int, int, bool) {
	for i, page := range p.Pages {
		for j, rec := range page.Data {
			if rec.RecommendationID == id {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// Insert returns a copy with rec placed at index within page pageIdx. Out of range
// positions are clamped so the item is never dropped.
func (p Pages) Insert(pageIdx, index int, rec models.Recommendation) Pages {
	if len(p.Pages) == 0 {
		return Pages{Pages: []models.Page{{Data: []models.Recommendation{rec}}}}
	}
	pageIdx = max(0, min(pageIdx, len(p.Pages)-1))

	pages := make([]models.Page, len(p.Pages))
	copy(pages, p.Pages)

	target := pages[pageIdx]
	index = max(0, min(index, len(target.Data)))
	data := make([]models.Recommendation, 0, len(target.Data)+1)
	data = append(data, target.Data[:index]...)
	data = append(data, rec)
	data = append(data, target.Data[index:]...)
	target.Data = data
	pages[pageIdx] = target

	return Pages{Pages: pages}
}

// Without returns a copy with every item whose id matches removed. Totals and
// cursors are left as the server reported them.
func (p Pages) Without(id string) Pages {
	pages := make([]models.Page, len(p.Pages))
	for i, page := range p.Pages {
		data := make([]models.Recommendation, 0, len(page.Data))
		for _, rec := range page.Data {
			if rec.RecommendationID != id {
				data = append(data, rec)
			}
		}
		page.Data = data
		pages[i] = page
	}
	return Pages{Pages: pages}
}

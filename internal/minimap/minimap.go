package minimap

import (
	"checkexplorer/internal/models"
)

// DefaultPageSize is the number of timepoints displayed per section.
const DefaultPageSize = 60

// Partition slices a most-recent-first axis into sections of pageSize
// timepoints. Section 0 holds the most recent timepoints; the oldest section
// may be shorter.
func Partition(axis []models.Timepoint, pageSize int) []models.MinimapSection {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if len(axis) == 0 {
		return nil
	}

	sections := make([]models.MinimapSection, 0, (len(axis)+pageSize-1)/pageSize)
	for lo := 0; lo < len(axis); lo += pageSize {
		hi := lo + pageSize
		if hi > len(axis) {
			hi = len(axis)
		}
		latest := axis[lo]
		earliest := axis[hi-1]
		sections = append(sections, models.MinimapSection{
			Index:     len(sections),
			FromIndex: earliest.Index,
			ToIndex:   latest.Index,
			From:      earliest.AdjustedTime,
			To:        latest.End(),
		})
	}
	return sections
}

// FindActive returns the first section containing referenceTime.
func FindActive(sections []models.MinimapSection, referenceTime int64) (models.MinimapSection, bool) {
	for _, s := range sections {
		if s.Contains(referenceTime) {
			return s, true
		}
	}
	return models.MinimapSection{}, false
}

// SetActive returns a copy of sections where only the section containing
// referenceTime is flagged active.
func SetActive(sections []models.MinimapSection, referenceTime int64) []models.MinimapSection {
	out := make([]models.MinimapSection, len(sections))
	copy(out, sections)
	found := false
	for i := range out {
		out[i].Active = !found && out[i].Contains(referenceTime)
		if out[i].Active {
			found = true
		}
	}
	return out
}

// SectionOf returns the index of the section holding the timepoint index.
func SectionOf(sections []models.MinimapSection, index int) (int, bool) {
	for _, s := range sections {
		if index >= s.FromIndex && index <= s.ToIndex {
			return s.Index, true
		}
	}
	return 0, false
}

package timepoints

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"checkexplorer/internal/models"
)

// ErrInvalidConfig is returned when a configuration history cannot produce a
// trustworthy axis.
var ErrInvalidConfig = errors.New("invalid config")

// ValidateEpochs checks that every frequency is positive and that epochs are
// strictly ordered by EffectiveFrom.
func ValidateEpochs(epochs []models.ConfigEpoch) error {
	var result *multierror.Error
	for i, epoch := range epochs {
		if epoch.FrequencyMs <= 0 {
			result = multierror.Append(result, fmt.Errorf("epoch %d: frequency %dms must be positive", i, epoch.FrequencyMs))
		}
		if i > 0 && epoch.EffectiveFrom <= epochs[i-1].EffectiveFrom {
			result = multierror.Append(result, fmt.Errorf("epoch %d: effective_from %d not after %d", i, epoch.EffectiveFrom, epochs[i-1].EffectiveFrom))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Generate returns the expected execution instants in (rangeStart, rangeEnd],
// most recent first. Index 0 is assigned to the earliest timepoint.
func Generate(rangeStart, rangeEnd int64, epochs []models.ConfigEpoch) ([]models.Timepoint, error) {
	if err := ValidateEpochs(epochs); err != nil {
		return nil, err
	}
	if rangeEnd <= rangeStart || len(epochs) == 0 {
		return nil, nil
	}

	current := len(epochs) - 1
	cursor := snap(rangeEnd, epochs[current].FrequencyMs)

	var out []models.Timepoint
	for cursor > rangeStart {
		epoch := epochs[current]
		if cursor < epoch.EffectiveFrom {
			current--
			if current < 0 {
				break
			}
			// resume from the last older instant before the boundary so a
			// denser older epoch leaves no gap
			cursor = snap(epoch.EffectiveFrom-1, epochs[current].FrequencyMs)
			continue
		}
		out = append(out, models.Timepoint{
			AdjustedTime: cursor,
			DurationMs:   epoch.FrequencyMs,
			Config:       epoch,
		})
		cursor -= epoch.FrequencyMs
	}

	for i := range out {
		out[i].Index = len(out) - 1 - i
	}
	return out, nil
}

// Neighbors returns the timepoints adjacent to index on a descending axis.
func Neighbors(axis []models.Timepoint, index int) (prev, next *models.Timepoint) {
	pos := len(axis) - 1 - index
	if pos < 0 || pos >= len(axis) {
		return nil, nil
	}
	if pos+1 < len(axis) {
		prev = &axis[pos+1]
	}
	if pos-1 >= 0 {
		next = &axis[pos-1]
	}
	return prev, next
}

// At returns the timepoint with the given index on a descending axis.
func At(axis []models.Timepoint, index int) (models.Timepoint, bool) {
	pos := len(axis) - 1 - index
	if pos < 0 || pos >= len(axis) {
		return models.Timepoint{}, false
	}
	return axis[pos], true
}

// snap rounds instant down to the closest multiple of frequency.
func snap(instant, frequency int64) int64 {
	mod := instant % frequency
	if mod < 0 {
		mod += frequency
	}
	return instant - mod
}

// internal/pipeline/merge.go
package pipeline

import "car-advisor/internal/models"

// MergePinned concatenates the re-evaluated pinned cars and the new choices, marks an item
// pinned iff its key was pinned before the refinement, and drops later duplicates by key.
func MergePinned(s models.Suggestions, pinnedKeys map[string]bool) []models.VehicleCandidate {
	all := make([]models.VehicleCandidate, 0, len(s.PinnedCars)+len(s.Choices))
	all = append(all, s.PinnedCars...)
	all = append(all, s.Choices...)

	seen := make(map[string]bool, len(all))
	out := make([]models.VehicleCandidate, 0, len(all))
	for _, car := range all {
		key := car.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		car = car.Clone()
		car.Pinned = pinnedKeys[key]
		out = append(out, car)
	}
	return out
}

func pinnedKeySet(cars []models.VehicleCandidate) map[string]bool {
	keys := make(map[string]bool, len(cars))
	for _, c := range cars {
		keys[c.Key()] = true
	}
	return keys
}

func exclude(cars []models.VehicleCandidate, key string) []models.VehicleCandidate {
	out := make([]models.VehicleCandidate, 0, len(cars))
	for _, c := range cars {
		if c.Key() != key {
			out = append(out, c)
		}
	}
	return out
}

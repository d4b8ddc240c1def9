// Package timebox packs an ordered exercise pool into supersets that fit a
// session length. Packing is deterministic.
package timebox

import (
	"fmt"
	"strings"
)

// Intensity is a candidate's effort level.
type Intensity string

// Intensity levels. Low intensity work never enters a superset.
const (
	IntensityLow      Intensity = "low"
	IntensityModerate Intensity = "moderate"
	IntensityHigh     Intensity = "high"
)

// Prescription constants shared by every superset slot.
const (
	Sets             = 3
	RepsMin          = 10
	RepsMax          = 12
	TargetRPE        = 7
	WorkSeconds      = 60
	IntraRestSeconds = 30
	InterRestSeconds = 150

	// ShortSessionMinutes is the boundary below which supersets hold three
	// exercises instead of four.
	ShortSessionMinutes = 35
)

// Candidate is one exercise offered to the scheduler.
type Candidate struct {
	ID             string            `json:"id"`
	Modality       string            `json:"modality"`
	IntensityLevel Intensity         `json:"intensity_level"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Slot is one exercise's prescription inside a superset.
type Slot struct {
	ExerciseID  string `json:"exercise_id"`
	Modality    string `json:"modality"`
	Sets        int    `json:"sets"`
	RepsMin     int    `json:"reps_min"`
	RepsMax     int    `json:"reps_max"`
	TargetRPE   int    `json:"target_rpe"`
	WorkSeconds int    `json:"work_seconds"`
	RestSeconds int    `json:"rest_seconds"`
}

// Superset is a labelled group performed back to back.
type Superset struct {
	Label            string `json:"label"`
	Slots            []Slot `json:"slots"`
	EstimatedSeconds int    `json:"estimated_seconds"`
}

// Plan is the scheduler output. An empty Supersets slice is a valid plan.
type Plan struct {
	TargetMinutes    int        `json:"target_minutes"`
	SupersetSize     int        `json:"superset_size"`
	Supersets        []Superset `json:"supersets"`
	EstimatedSeconds int        `json:"estimated_seconds"`
}

// SupersetSize returns 3 for sessions shorter than ShortSessionMinutes, else 4.
func SupersetSize(targetMinutes int) int {
	if targetMinutes < ShortSessionMinutes {
		return 3
	}
	return 4
}

// SupersetSeconds is the wall time of one superset of size exercises:
// work, rest between exercises and the closing rest.
func SupersetSeconds(size int) int {
	return size*WorkSeconds + IntraRestSeconds*(size-1) + InterRestSeconds
}

// Budget is the number of 6.5 minute superset slots that fit targetMinutes.
func Budget(targetMinutes int) int {
	return targetMinutes * 2 / 13
}

// Build packs pool, in order, into at most min(Budget, eligible/size)
// supersets. Candidates below moderate intensity are skipped. A pool whose
// eligible part cannot fill one superset yields a plan with no supersets.
func Build(pool []Candidate, targetMinutes int) (Plan, error) {
	if targetMinutes <= 0 {
		return Plan{}, fmt.Errorf("%d minutes: %w", targetMinutes, ErrInvalidDuration)
	}
	eligible, err := filter(pool)
	if err != nil {
		return Plan{}, err
	}
	if len(eligible) == 0 {
		return Plan{}, fmt.Errorf("%d candidates: %w", len(pool), ErrEmptyPool)
	}

	size := SupersetSize(targetMinutes)
	count := min(Budget(targetMinutes), len(eligible)/size)
	plan := Plan{
		TargetMinutes: targetMinutes,
		SupersetSize:  size,
		Supersets:     make([]Superset, 0, count),
	}
	for i := 0; i < count; i++ {
		group := eligible[i*size : (i+1)*size]
		ss := Superset{Label: Label(i), Slots: make([]Slot, len(group)), EstimatedSeconds: SupersetSeconds(size)}
		for j, c := range group {
			rest := IntraRestSeconds
			if j == len(group)-1 {
				rest = InterRestSeconds
			}
			ss.Slots[j] = Slot{
				ExerciseID:  c.ID,
				Modality:    c.Modality,
				Sets:        Sets,
				RepsMin:     RepsMin,
				RepsMax:     RepsMax,
				TargetRPE:   TargetRPE,
				WorkSeconds: WorkSeconds,
				RestSeconds: rest,
			}
		}
		plan.Supersets = append(plan.Supersets, ss)
		plan.EstimatedSeconds += ss.EstimatedSeconds
	}
	return plan, nil
}

func filter(pool []Candidate) ([]Candidate, error) {
	out := make([]Candidate, 0, len(pool))
	for i, c := range pool {
		if c.ID == "" {
			return nil, fmt.Errorf("candidate %d: %w", i, ErrInvalidCandidate)
		}
		if Intensity(strings.ToLower(string(c.IntensityLevel))) == IntensityLow {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Label returns the spreadsheet-style name of the i-th superset:
// A..Z, then AA, AB, and so on.
func Label(i int) string {
	var b []byte
	for n := i + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

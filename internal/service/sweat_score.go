package service

import (
	"math"
)

// Sweat Score weights and normalization targets.
const (
	sweatWeightConsistency = 0.4
	sweatWeightStreak      = 0.2
	sweatWeightVolume      = 0.2
	sweatWeightHabits      = 0.2

	SweatWindowDays     = 7
	sweatStreakTarget   = 7
	sweatVolumeTarget   = 4
	sweatHabitDayTarget = SweatWindowDays
)

// SweatInputs are the raw counts over the trailing window.
type SweatInputs struct {
	SessionsInWindow  int // started or scheduled within the window
	CompletedInWindow int
	StreakDays        int // current, already reset if the streak lapsed
	HabitDays         int // distinct days with a habit check-in
}

// SweatScore is computed on read and never stored.
type SweatScore struct {
	Score       int     `json:"score"`
	Consistency float64 `json:"consistency"`
	Streak      float64 `json:"streak"`
	Volume      float64 `json:"volume"`
	Habits      float64 `json:"habits"`
	FromDay     string  `json:"fromDay"`
	ToDay       string  `json:"toDay"`
}

func ComputeSweatScore(in SweatInputs) SweatScore {
	var consistency float64
	if in.SessionsInWindow > 0 {
		consistency = ratio(in.CompletedInWindow, in.SessionsInWindow)
	}
	s := SweatScore{
		Consistency: consistency,
		Streak:      ratio(in.StreakDays, sweatStreakTarget),
		Volume:      ratio(in.CompletedInWindow, sweatVolumeTarget),
		Habits:      ratio(in.HabitDays, sweatHabitDayTarget),
	}
	total := sweatWeightConsistency*s.Consistency +
		sweatWeightStreak*s.Streak +
		sweatWeightVolume*s.Volume +
		sweatWeightHabits*s.Habits
	s.Score = int(math.Round(clamp100(total)))
	return s
}

// ratio returns num/den scaled to 0-100 and clamped.
func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return clamp100(float64(num) / float64(den) * 100)
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

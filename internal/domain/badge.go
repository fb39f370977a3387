package domain

// Badge is a named predicate over the cumulative counters of a profile.
// Once unlocked it is never removed.
type Badge struct {
	ID     string
	Title  string
	Earned func(p *GamificationProfile) bool
}

var BadgeCatalog = []Badge{
	{ID: "first_workout", Title: "First Workout", Earned: func(p *GamificationProfile) bool { return p.TotalWorkouts >= 1 }},
	{ID: "ten_workouts", Title: "10 Workouts", Earned: func(p *GamificationProfile) bool { return p.TotalWorkouts >= 10 }},
	{ID: "fifty_workouts", Title: "50 Workouts", Earned: func(p *GamificationProfile) bool { return p.TotalWorkouts >= 50 }},
	{ID: "week_streak", Title: "7-Day Streak", Earned: func(p *GamificationProfile) bool { return p.StreakDays >= 7 }},
	{ID: "month_streak", Title: "30-Day Streak", Earned: func(p *GamificationProfile) bool { return p.StreakDays >= 30 }},
	{ID: "habit_hero", Title: "Habit Hero", Earned: func(p *GamificationProfile) bool { return p.TotalHabits >= 100 }},
	{ID: "level_5", Title: "Level 5", Earned: func(p *GamificationProfile) bool { return p.Level >= 5 }},
}

// BadgeTitle returns the display title of a badge id, or the id itself.
func BadgeTitle(id string) string {
	for _, b := range BadgeCatalog {
		if b.ID == id {
			return b.Title
		}
	}
	return id
}

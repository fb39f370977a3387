package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GamificationProfile is the per-client aggregate of XP, streak, totals and badges.
// It is only changed through the Apply* methods, each of which is committed as one write.
type GamificationProfile struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID       primitive.ObjectID `bson:"clientId" json:"clientId"`
	XP             int                `bson:"xp" json:"xp"`
	Level          int                `bson:"level" json:"level"`
	StreakDays     int                `bson:"streakDays" json:"streakDays"`
	BestStreak     int                `bson:"bestStreak" json:"bestStreak"`
	TotalWorkouts  int                `bson:"totalWorkouts" json:"totalWorkouts"`
	TotalHabits    int                `bson:"totalHabits" json:"totalHabits"`
	Badges         []string           `bson:"badges" json:"badges"`
	LastActiveDate string             `bson:"lastActiveDate,omitempty" json:"lastActiveDate,omitempty"`
	Version        int64              `bson:"version" json:"-"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func NewGamificationProfile(clientID primitive.ObjectID) *GamificationProfile {
	return &GamificationProfile{
		ClientID: clientID,
		Level:    1,
		Badges:   []string{},
	}
}

// ScoringResult describes what a single Apply call changed.
type ScoringResult struct {
	XPEarned       int      `json:"xpEarned"`
	PreviousLevel  int      `json:"previousLevel"`
	NewLevel       int      `json:"newLevel"`
	BadgesUnlocked []string `json:"badgesUnlocked"`
	StreakDays     int      `json:"streakDays"`
}

func (r ScoringResult) LeveledUp() bool {
	return r.NewLevel > r.PreviousLevel
}

// ApplyWorkoutCompletion applies XP, streak, level, totals and badges for one completed session.
func (p *GamificationProfile) ApplyWorkoutCompletion(day string, xp int) ScoringResult {
	res := ScoringResult{PreviousLevel: p.level()}
	if xp > 0 {
		p.XP += xp
		res.XPEarned = xp
	}
	p.registerActivity(day)
	p.TotalWorkouts++
	p.finish(&res)
	return res
}

// ApplyHabitCompletion counts one habit check-in on day.
func (p *GamificationProfile) ApplyHabitCompletion(day string) ScoringResult {
	res := ScoringResult{PreviousLevel: p.level()}
	p.registerActivity(day)
	p.TotalHabits++
	p.finish(&res)
	return res
}

// CloseDay resets the streak when day had no qualifying activity.
// It reports whether the profile changed.
func (p *GamificationProfile) CloseDay(day string) bool {
	if p.LastActiveDate != "" && p.LastActiveDate >= day {
		return false
	}
	if p.StreakDays == 0 {
		return false
	}
	p.StreakDays = 0
	return true
}

func (p *GamificationProfile) registerActivity(day string) {
	switch {
	case p.LastActiveDate == day:
		// already counted today
	case p.LastActiveDate != "" && p.LastActiveDate > day:
		// late report for an earlier day; the streak is not rewritten
	case p.LastActiveDate != "" && AddDays(p.LastActiveDate, 1) == day:
		p.StreakDays++
		p.LastActiveDate = day
	default:
		p.StreakDays = 1
		p.LastActiveDate = day
	}
	if p.StreakDays > p.BestStreak {
		p.BestStreak = p.StreakDays
	}
}

func (p *GamificationProfile) finish(res *ScoringResult) {
	if lvl := LevelForXP(p.XP); lvl > p.level() {
		p.Level = lvl
	} else {
		p.Level = p.level()
	}
	res.NewLevel = p.Level
	res.BadgesUnlocked = p.unlockBadges()
	res.StreakDays = p.StreakDays
}

func (p *GamificationProfile) level() int {
	if p.Level < 1 {
		return 1
	}
	return p.Level
}

func (p *GamificationProfile) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}

func (p *GamificationProfile) unlockBadges() []string {
	unlocked := []string{}
	for _, b := range BadgeCatalog {
		if p.HasBadge(b.ID) || !b.Earned(p) {
			continue
		}
		p.Badges = append(p.Badges, b.ID)
		unlocked = append(unlocked, b.ID)
	}
	return unlocked
}

// XPForLevel is the cumulative XP needed to reach level. Going from L to L+1 costs L*100.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return 50 * (level - 1) * level
}

func LevelForXP(xp int) int {
	level := 1
	for xp >= XPForLevel(level+1) {
		level++
	}
	return level
}

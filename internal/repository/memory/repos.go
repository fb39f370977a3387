package memory

import (
	"context"
	"sort"
	"time"

	"alcyxob/workout-engine/internal/domain"
	"alcyxob/workout-engine/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) SetCoachForClient(ctx context.Context, clientID, coachID primitive.ObjectID) error {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[clientID]
	if !ok || u.Role != domain.RoleClient {
		return repository.ErrNotFound
	}
	u.CoachID = &coachID
	u.UpdatedAt = time.Now().UTC()
	r.s.users[clientID] = u
	return nil
}

func (r userRepo) GetClientsByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	defer r.s.lock(ctx)()
	out := []domain.User{}
	for _, u := range r.s.users {
		if u.Role == domain.RoleClient && u.CoachID != nil && *u.CoachID == coachID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type workoutRepo struct{ s *Store }

func (r workoutRepo) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	workout.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now
	r.s.workouts[workout.ID] = *workout
	return workout.ID, nil
}

func (r workoutRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	defer r.s.lock(ctx)()
	w, ok := r.s.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (r workoutRepo) GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Workout, error) {
	defer r.s.lock(ctx)()
	out := []domain.Workout{}
	for _, w := range r.s.workouts {
		if w.CoachID != nil && *w.CoachID == coachID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(ctx context.Context, session *domain.WorkoutSession, scheduled bool) (primitive.ObjectID, error) {
	defer r.s.lock(ctx)()
	if scheduled {
		for id, existing := range r.s.sessions {
			if r.s.scheduled[id] &&
				existing.ClientID == session.ClientID &&
				existing.WorkoutID == session.WorkoutID &&
				existing.ScheduledDay == session.ScheduledDay {
				return primitive.NilObjectID, repository.ErrDuplicate
			}
		}
	}
	session.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	r.s.sessions[session.ID] = *session
	r.s.scheduled[session.ID] = scheduled
	return session.ID, nil
}

func (r sessionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error) {
	defer r.s.lock(ctx)()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

func (r sessionRepo) FindOnDay(ctx context.Context, clientID, workoutID primitive.ObjectID, day string) ([]domain.WorkoutSession, error) {
	defer r.s.lock(ctx)()
	out := []domain.WorkoutSession{}
	for _, sess := range r.s.sessions {
		if sess.ClientID == clientID && sess.WorkoutID == workoutID && sess.ScheduledDay == day {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (r sessionRepo) ListByClient(ctx context.Context, clientID primitive.ObjectID, fromDay, toDay string) ([]domain.WorkoutSession, error) {
	defer r.s.lock(ctx)()
	out := []domain.WorkoutSession{}
	for _, sess := range r.s.sessions {
		if sess.ClientID != clientID {
			continue
		}
		if (fromDay != "" && sess.ScheduledDay < fromDay) || (toDay != "" && sess.ScheduledDay > toDay) {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTimeStarted.Before(out[j].DateTimeStarted) })
	return out, nil
}

func (r sessionRepo) Transition(ctx context.Context, id primitive.ObjectID, from, to domain.SessionStatus, completedAt *time.Time, xpEarned int) error {
	defer r.s.lock(ctx)()
	sess, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	if sess.Status != from {
		return repository.ErrConflict
	}
	sess.Status = to
	sess.DateTimeCompleted = completedAt
	sess.XPEarned = xpEarned
	sess.UpdatedAt = time.Now().UTC()
	r.s.sessions[id] = sess
	return nil
}

type setLogRepo struct{ s *Store }

func (r setLogRepo) Upsert(ctx context.Context, key repository.SetLogKey, seed domain.ExerciseSetLog, patch domain.SetLogPatch) (*domain.ExerciseSetLog, error) {
	defer r.s.lock(ctx)()
	now := time.Now().UTC()
	l, ok := r.s.setLogs[key]
	if !ok {
		l = seed
		l.ID = primitive.NewObjectID()
		l.SessionID = key.SessionID
		l.WorkoutExerciseID = key.WorkoutExerciseID
		l.SetNumber = key.SetNumber
		l.CreatedAt = now
	}
	patch.Apply(&l)
	l.UpdatedAt = now
	r.s.setLogs[key] = l
	return &l, nil
}

func (r setLogRepo) Insert(ctx context.Context, log *domain.ExerciseSetLog) error {
	defer r.s.lock(ctx)()
	key := repository.SetLogKey{SessionID: log.SessionID, WorkoutExerciseID: log.WorkoutExerciseID, SetNumber: log.SetNumber}
	if _, ok := r.s.setLogs[key]; ok {
		return repository.ErrDuplicate
	}
	log.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	log.CreatedAt = now
	log.UpdatedAt = now
	r.s.setLogs[key] = *log
	return nil
}

func (r setLogRepo) Get(ctx context.Context, key repository.SetLogKey) (*domain.ExerciseSetLog, error) {
	defer r.s.lock(ctx)()
	l, ok := r.s.setLogs[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r setLogRepo) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseSetLog, error) {
	defer r.s.lock(ctx)()
	out := []domain.ExerciseSetLog{}
	for k, l := range r.s.setLogs {
		if k.SessionID == sessionID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkoutExerciseID != out[j].WorkoutExerciseID {
			return out[i].WorkoutExerciseID.Hex() < out[j].WorkoutExerciseID.Hex()
		}
		return out[i].SetNumber < out[j].SetNumber
	})
	return out, nil
}

type profileRepo struct{ s *Store }

func (r profileRepo) GetByClientID(ctx context.Context, clientID primitive.ObjectID) (*domain.GamificationProfile, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.profiles[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Badges = append([]string{}, p.Badges...)
	return &p, nil
}

func (r profileRepo) Save(ctx context.Context, profile *domain.GamificationProfile) error {
	defer r.s.lock(ctx)()
	if err := r.s.FailNextProfileSave; err != nil {
		r.s.FailNextProfileSave = nil
		return err
	}
	stored, exists := r.s.profiles[profile.ClientID]
	if profile.ID.IsZero() {
		if exists {
			return repository.ErrConflict
		}
		profile.ID = primitive.NewObjectID()
	} else if !exists || stored.Version != profile.Version {
		return repository.ErrConflict
	}
	profile.Version++
	profile.UpdatedAt = time.Now().UTC()
	cp := *profile
	cp.Badges = append([]string{}, profile.Badges...)
	r.s.profiles[profile.ClientID] = cp
	return nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	defer r.s.lock(ctx)()
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now().UTC()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notificationRepo) ListByRecipient(ctx context.Context, recipientID primitive.ObjectID, limit int) ([]domain.Notification, error) {
	defer r.s.lock(ctx)()
	out := []domain.Notification{}
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if r.s.notifications[i].RecipientID == recipientID {
			out = append(out, r.s.notifications[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type coachNoteRepo struct{ s *Store }

func (r coachNoteRepo) Create(ctx context.Context, note *domain.CoachNote) error {
	defer r.s.lock(ctx)()
	note.ID = primitive.NewObjectID()
	note.CreatedAt = time.Now().UTC()
	r.s.coachNotes = append(r.s.coachNotes, *note)
	return nil
}

func (r coachNoteRepo) ListByCoach(ctx context.Context, coachID primitive.ObjectID, limit int) ([]domain.CoachNote, error) {
	defer r.s.lock(ctx)()
	out := []domain.CoachNote{}
	for i := len(r.s.coachNotes) - 1; i >= 0; i-- {
		if r.s.coachNotes[i].CoachID == coachID {
			out = append(out, r.s.coachNotes[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type habitRepo struct{ s *Store }

func (r habitRepo) Create(ctx context.Context, log *domain.HabitLog) error {
	defer r.s.lock(ctx)()
	for _, h := range r.s.habits {
		if h.ClientID == log.ClientID && h.Habit == log.Habit && h.Day == log.Day {
			return repository.ErrDuplicate
		}
	}
	log.ID = primitive.NewObjectID()
	r.s.habits = append(r.s.habits, *log)
	return nil
}

func (r habitRepo) CountActiveDays(ctx context.Context, clientID primitive.ObjectID, fromDay, toDay string) (int, error) {
	defer r.s.lock(ctx)()
	days := make(map[string]struct{})
	for _, h := range r.s.habits {
		if h.ClientID == clientID && h.Day >= fromDay && h.Day <= toDay {
			days[h.Day] = struct{}{}
		}
	}
	return len(days), nil
}

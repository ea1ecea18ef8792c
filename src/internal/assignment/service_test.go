package assignment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"careconnect-visits-svc/src/internal/config"
	"careconnect-visits-svc/src/internal/geo"
	"careconnect-visits-svc/src/internal/models"
)

// fakeSessionStore mimics the conditional-update semantics of the Mongo
// repository: TryAssign is a compare-and-swap filtered on status and the
// rejection set, AddRejection a set union guarded on pending status.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]*models.VisitSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[primitive.ObjectID]*models.VisitSession)}
}

func (f *fakeSessionStore) Create(ctx context.Context, session *models.VisitSession) (*models.VisitSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session.ID = primitive.NewObjectID()
	session.Status = models.SessionPending
	session.RejectedBy = []primitive.ObjectID{}
	f.sessions[session.ID] = session
	return copySession(session), nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.VisitSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (f *fakeSessionStore) List(ctx context.Context, status string, page, limit int) ([]*models.VisitSession, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.VisitSession
	for _, s := range f.sessions {
		if status == "" || s.Status == status {
			out = append(out, copySession(s))
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeSessionStore) TryAssign(ctx context.Context, id, counsellorID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[id]
	if !ok || session.Status != models.SessionPending || session.HasRejected(counsellorID) {
		return false, nil
	}

	session.Status = models.SessionAssigned
	session.AssignedCounsellor = &counsellorID
	return true, nil
}

func (f *fakeSessionStore) AddRejection(ctx context.Context, id, counsellorID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[id]
	if !ok || session.Status != models.SessionPending {
		return models.ErrSessionResolved
	}
	for _, existing := range session.RejectedBy {
		if existing == counsellorID {
			return nil
		}
	}
	session.RejectedBy = append(session.RejectedBy, counsellorID)
	return nil
}

func (f *fakeSessionStore) FindActiveForCounsellor(ctx context.Context, counsellorID primitive.ObjectID, at time.Time) (*models.VisitSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.sessions {
		if s.Status != models.SessionAssigned || s.AssignedCounsellor == nil || *s.AssignedCounsellor != counsellorID {
			continue
		}
		start, end := s.Window()
		if !at.Before(start) && !at.After(end) {
			return copySession(s), nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) Stats(ctx context.Context) (*models.SessionStats, error) {
	return &models.SessionStats{}, nil
}

func copySession(s *models.VisitSession) *models.VisitSession {
	clone := *s
	clone.RejectedBy = append([]primitive.ObjectID{}, s.RejectedBy...)
	if s.AssignedCounsellor != nil {
		id := *s.AssignedCounsellor
		clone.AssignedCounsellor = &id
	}
	return &clone
}

// fakeDirectory answers nearest-neighbor queries over a fixed roster using
// the same distance math as the production geo query.
type fakeDirectory struct {
	counsellors []*models.Counsellor
}

func (f *fakeDirectory) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Counsellor, error) {
	for _, c := range f.counsellors {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, models.ErrCounsellorNotFound
}

func (f *fakeDirectory) FindNearestExcluding(ctx context.Context, point models.GeoPoint, exclude []primitive.ObjectID, maxRadiusKm float64) (*models.Counsellor, error) {
	excluded := make(map[primitive.ObjectID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	var nearest *models.Counsellor
	nearestDist := maxRadiusKm
	for _, c := range f.counsellors {
		if !c.Approved || c.Location == nil || excluded[c.ID] {
			continue
		}
		dist := geo.DistanceKm(c.Location.Position(), point.Position())
		if dist <= nearestDist {
			nearest = c
			nearestDist = dist
		}
	}
	return nearest, nil
}

func (f *fakeDirectory) List(ctx context.Context, page, limit int) ([]*models.Counsellor, int64, error) {
	return f.counsellors, int64(len(f.counsellors)), nil
}

func (f *fakeDirectory) Stats(ctx context.Context) (*models.CounsellorStats, error) {
	return &models.CounsellorStats{}, nil
}

func (f *fakeDirectory) EnsureIndexes(ctx context.Context) error { return nil }

type fakeNotifier struct {
	mu     sync.Mutex
	offers []models.OfferMessage
	err    error
}

func (f *fakeNotifier) PublishOffer(offer models.OfferMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.offers = append(f.offers, offer)
	return nil
}

func (f *fakeNotifier) sent() []models.OfferMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OfferMessage{}, f.offers...)
}

func testConfig() *config.Configuration {
	return &config.Configuration{
		Assignment:   config.AssignmentConfig{MaxSearchRadiusKm: 50},
		Verification: config.VerificationConfig{RadiusKm: 1.0, ListLimit: 100},
	}
}

// counsellorAtKm places an approved counsellor roughly km kilometres due
// north of the given point.
func counsellorAtKm(point models.GeoPoint, km float64) *models.Counsellor {
	pos := point.Position()
	loc := models.NewGeoPoint(pos.Latitude+km/111.19, pos.Longitude)
	return &models.Counsellor{
		ID:        primitive.NewObjectID(),
		FirstName: "Counsellor",
		Approved:  true,
		Location:  &loc,
	}
}

func createPendingSession(t *testing.T, svc Service) *models.VisitSession {
	t.Helper()
	result, err := svc.CreateSession(context.Background(), &CreateSessionRequest{
		Address:         "14 Lakeview Road",
		Latitude:        20.0,
		Longitude:       73.85,
		ScheduledStart:  time.Now().Add(24 * time.Hour),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	return result.Session
}

func TestCreateSession_NotifiesNearest(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)
	mid := counsellorAtKm(origin, 5)
	far := counsellorAtKm(origin, 9)

	store := newFakeSessionStore()
	directory := &fakeDirectory{counsellors: []*models.Counsellor{far, near, mid}}
	notifier := &fakeNotifier{}
	svc := NewService(store, directory, notifier, testConfig())

	result, err := svc.CreateSession(context.Background(), &CreateSessionRequest{
		Latitude:        20.0,
		Longitude:       73.85,
		ScheduledStart:  time.Now().Add(24 * time.Hour),
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	assert.True(t, result.Matched)
	require.NotNil(t, result.Candidate)
	assert.Equal(t, near.ID, result.Candidate.ID)
	assert.Equal(t, models.SessionPending, result.Session.Status)
	assert.Nil(t, result.Session.AssignedCounsellor)

	offers := notifier.sent()
	require.Len(t, offers, 1)
	assert.Equal(t, near.ID.Hex(), offers[0].CounsellorID)
	assert.Equal(t, models.OfferKindInitial, offers[0].Kind)
	assert.InDelta(t, 2.0, offers[0].DistanceKm, 0.1)
}

func TestCreateSession_NoCandidateWithinRange(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	tooFar := counsellorAtKm(origin, 60)
	unlocated := &models.Counsellor{ID: primitive.NewObjectID(), Approved: true}

	store := newFakeSessionStore()
	directory := &fakeDirectory{counsellors: []*models.Counsellor{tooFar, unlocated}}
	notifier := &fakeNotifier{}
	svc := NewService(store, directory, notifier, testConfig())

	result, err := svc.CreateSession(context.Background(), &CreateSessionRequest{
		Latitude:        20.0,
		Longitude:       73.85,
		ScheduledStart:  time.Now().Add(24 * time.Hour),
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	assert.False(t, result.Matched)
	assert.Nil(t, result.Candidate)
	assert.Equal(t, models.SessionPending, result.Session.Status)
	assert.Empty(t, notifier.sent())
}

func TestCreateSession_InvalidInput(t *testing.T) {
	svc := NewService(newFakeSessionStore(), &fakeDirectory{}, &fakeNotifier{}, testConfig())

	_, err := svc.CreateSession(context.Background(), &CreateSessionRequest{
		Latitude:        95.0,
		Longitude:       73.85,
		ScheduledStart:  time.Now(),
		DurationMinutes: 60,
	})
	assert.ErrorIs(t, err, models.ErrInvalidCoordinates)

	_, err = svc.CreateSession(context.Background(), &CreateSessionRequest{
		Latitude:       20.0,
		Longitude:      73.85,
		ScheduledStart: time.Now(),
	})
	assert.ErrorIs(t, err, models.ErrInvalidVisitRequest)
}

func TestRespond_AcceptAssigns(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	c := counsellorAtKm(origin, 2)

	store := newFakeSessionStore()
	svc := NewService(store, &fakeDirectory{counsellors: []*models.Counsellor{c}}, &fakeNotifier{}, testConfig())
	sess := createPendingSession(t, svc)

	result, err := svc.Respond(context.Background(), sess.ID, c.ID, DecisionAccept)
	require.NoError(t, err)

	assert.Equal(t, models.SessionAssigned, result.Session.Status)
	require.NotNil(t, result.Session.AssignedCounsellor)
	assert.Equal(t, c.ID, *result.Session.AssignedCounsellor)
	assert.False(t, result.Session.HasRejected(c.ID))
}

func TestRespond_RejectCascadesToNextNearest(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)
	mid := counsellorAtKm(origin, 5)
	far := counsellorAtKm(origin, 9)

	store := newFakeSessionStore()
	notifier := &fakeNotifier{}
	svc := NewService(store, &fakeDirectory{counsellors: []*models.Counsellor{near, mid, far}}, notifier, testConfig())
	sess := createPendingSession(t, svc)

	result, err := svc.Respond(context.Background(), sess.ID, near.ID, DecisionReject)
	require.NoError(t, err)
	require.NotNil(t, result.NextNotified)
	assert.Equal(t, mid.ID, result.NextNotified.ID)
	assert.Equal(t, []primitive.ObjectID{near.ID}, result.Session.RejectedBy)

	result, err = svc.Respond(context.Background(), sess.ID, mid.ID, DecisionReject)
	require.NoError(t, err)
	require.NotNil(t, result.NextNotified)
	assert.Equal(t, far.ID, result.NextNotified.ID)

	result, err = svc.Respond(context.Background(), sess.ID, far.ID, DecisionReject)
	require.NoError(t, err)
	assert.Nil(t, result.NextNotified)
	assert.Equal(t, models.SessionPending, result.Session.Status)
	assert.Len(t, result.Session.RejectedBy, 3)

	// creation offer plus two cascade offers
	offers := notifier.sent()
	require.Len(t, offers, 3)
	assert.Equal(t, models.OfferKindCascade, offers[1].Kind)
	assert.Equal(t, mid.ID.Hex(), offers[1].CounsellorID)
	assert.Equal(t, far.ID.Hex(), offers[2].CounsellorID)
}

func TestRespond_RejectIsIdempotent(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)
	mid := counsellorAtKm(origin, 5)

	store := newFakeSessionStore()
	svc := NewService(store, &fakeDirectory{counsellors: []*models.Counsellor{near, mid}}, &fakeNotifier{}, testConfig())
	sess := createPendingSession(t, svc)

	_, err := svc.Respond(context.Background(), sess.ID, near.ID, DecisionReject)
	require.NoError(t, err)
	result, err := svc.Respond(context.Background(), sess.ID, near.ID, DecisionReject)
	require.NoError(t, err)

	assert.Equal(t, []primitive.ObjectID{near.ID}, result.Session.RejectedBy)
}

func TestRespond_RejectorCannotAccept(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)
	mid := counsellorAtKm(origin, 5)

	store := newFakeSessionStore()
	svc := NewService(store, &fakeDirectory{counsellors: []*models.Counsellor{near, mid}}, &fakeNotifier{}, testConfig())
	sess := createPendingSession(t, svc)

	_, err := svc.Respond(context.Background(), sess.ID, near.ID, DecisionReject)
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), sess.ID, near.ID, DecisionAccept)
	assert.ErrorIs(t, err, models.ErrCounsellorRejected)
}

func TestRespond_AfterResolutionConflicts(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)
	mid := counsellorAtKm(origin, 5)

	store := newFakeSessionStore()
	svc := NewService(store, &fakeDirectory{counsellors: []*models.Counsellor{near, mid}}, &fakeNotifier{}, testConfig())
	sess := createPendingSession(t, svc)

	_, err := svc.Respond(context.Background(), sess.ID, near.ID, DecisionAccept)
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), sess.ID, mid.ID, DecisionAccept)
	assert.ErrorIs(t, err, models.ErrSessionResolved)

	_, err = svc.Respond(context.Background(), sess.ID, mid.ID, DecisionReject)
	assert.ErrorIs(t, err, models.ErrSessionResolved)
}

func TestRespond_UnknownSessionAndCounsellor(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)

	store := newFakeSessionStore()
	svc := NewService(store, &fakeDirectory{counsellors: []*models.Counsellor{near}}, &fakeNotifier{}, testConfig())
	sess := createPendingSession(t, svc)

	_, err := svc.Respond(context.Background(), primitive.NewObjectID(), near.ID, DecisionAccept)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	_, err = svc.Respond(context.Background(), sess.ID, primitive.NewObjectID(), DecisionAccept)
	assert.ErrorIs(t, err, models.ErrCounsellorNotFound)
}

func TestRespond_InvalidDecision(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)

	store := newFakeSessionStore()
	svc := NewService(store, &fakeDirectory{counsellors: []*models.Counsellor{near}}, &fakeNotifier{}, testConfig())
	sess := createPendingSession(t, svc)

	_, err := svc.Respond(context.Background(), sess.ID, near.ID, "maybe")
	assert.ErrorIs(t, err, models.ErrInvalidDecision)
}

func TestRespond_AtMostOneConcurrentAccept(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)

	roster := make([]*models.Counsellor, 8)
	for i := range roster {
		roster[i] = counsellorAtKm(origin, float64(i+2))
	}

	store := newFakeSessionStore()
	svc := NewService(store, &fakeDirectory{counsellors: roster}, &fakeNotifier{}, testConfig())
	sess := createPendingSession(t, svc)

	var wg sync.WaitGroup
	results := make([]error, len(roster))
	for i, c := range roster {
		wg.Add(1)
		go func(i int, id primitive.ObjectID) {
			defer wg.Done()
			_, err := svc.Respond(context.Background(), sess.ID, id, DecisionAccept)
			results[i] = err
		}(i, c.ID)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.True(t, errors.Is(err, models.ErrSessionResolved))
		}
	}
	assert.Equal(t, 1, wins)

	final, err := store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionAssigned, final.Status)
	require.NotNil(t, final.AssignedCounsellor)
	assert.False(t, final.HasRejected(*final.AssignedCounsellor))
}

// interleavedSessionStore fires a one-shot hook after a GetByID read
// returns, simulating a concurrent write landing between the coordinator's
// read and its conditional update.
type interleavedSessionStore struct {
	*fakeSessionStore
	afterRead func()
}

func (s *interleavedSessionStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.VisitSession, error) {
	session, err := s.fakeSessionStore.GetByID(ctx, id)
	if s.afterRead != nil {
		hook := s.afterRead
		s.afterRead = nil
		hook()
	}
	return session, err
}

func TestRespond_AcceptLosesToInterleavedReject(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)
	mid := counsellorAtKm(origin, 5)

	store := newFakeSessionStore()
	interleaved := &interleavedSessionStore{fakeSessionStore: store}
	svc := NewService(interleaved, &fakeDirectory{counsellors: []*models.Counsellor{near, mid}}, &fakeNotifier{}, testConfig())
	sess := createPendingSession(t, svc)

	// The counsellor's own rejection lands right after the accept path reads
	// the still-clean session.
	interleaved.afterRead = func() {
		require.NoError(t, store.AddRejection(context.Background(), sess.ID, near.ID))
	}

	_, err := svc.Respond(context.Background(), sess.ID, near.ID, DecisionAccept)
	assert.ErrorIs(t, err, models.ErrCounsellorRejected)

	final, err := store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPending, final.Status)
	assert.Nil(t, final.AssignedCounsellor)
	assert.True(t, final.HasRejected(near.ID))
}

func TestRespond_RejectLosesToInterleavedAccept(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)
	mid := counsellorAtKm(origin, 5)

	store := newFakeSessionStore()
	interleaved := &interleavedSessionStore{fakeSessionStore: store}
	svc := NewService(interleaved, &fakeDirectory{counsellors: []*models.Counsellor{near, mid}}, &fakeNotifier{}, testConfig())
	sess := createPendingSession(t, svc)

	// Another counsellor's accept lands right after the reject path reads
	// the still-pending session.
	interleaved.afterRead = func() {
		ok, err := store.TryAssign(context.Background(), sess.ID, mid.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	_, err := svc.Respond(context.Background(), sess.ID, near.ID, DecisionReject)
	assert.ErrorIs(t, err, models.ErrSessionResolved)

	final, err := store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionAssigned, final.Status)
	require.NotNil(t, final.AssignedCounsellor)
	assert.Equal(t, mid.ID, *final.AssignedCounsellor)
	assert.Empty(t, final.RejectedBy)
}

func TestMatchAndNotify_NotifyFailureIsSoft(t *testing.T) {
	origin := models.NewGeoPoint(20.0, 73.85)
	near := counsellorAtKm(origin, 2)

	store := newFakeSessionStore()
	notifier := &fakeNotifier{err: errors.New("broker unavailable")}
	svc := NewService(store, &fakeDirectory{counsellors: []*models.Counsellor{near}}, notifier, testConfig())

	result, err := svc.CreateSession(context.Background(), &CreateSessionRequest{
		Latitude:        20.0,
		Longitude:       73.85,
		ScheduledStart:  time.Now().Add(24 * time.Hour),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, near.ID, result.Candidate.ID)
}

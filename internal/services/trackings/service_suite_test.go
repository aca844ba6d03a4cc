package trackings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	cachemocks "github.com/BearBump/CargoTrack/internal/cache/mocks"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/events"
	"github.com/BearBump/CargoTrack/internal/storage/memcargo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, topic string, key, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type ServiceSuite struct {
	suite.Suite

	store *memcargo.Storage
	cache *cachemocks.MockBytesCache
	pub   *publisherMock
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.store = memcargo.New()
	s.cache = &cachemocks.MockBytesCache{}
	s.pub = &publisherMock{}
	s.svc = New(s.store, events.NewEmitter(s.pub, "cargo.status_changed"), s.cache, 30*time.Second)
}

func (s *ServiceSuite) TestDashboard_CacheHit_NoStore() {
	counts := []models.StatusCount{{Status: models.StatusArrivedBranch, Count: 3}}
	b, _ := json.Marshal(counts)
	s.cache.On("Get", mock.Anything, "dashboard:branch:1").Return(b, true, nil).Once()

	got, err := s.svc.Dashboard(context.Background(), staffA)
	s.Require().NoError(err)
	s.Require().Equal(counts, got)
	s.cache.AssertNotCalled(s.T(), "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestDashboard_CacheMiss_StoresCounts() {
	s.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	register(s.T(), s.svc, "DB-1")
	register(s.T(), s.svc, "DB-2")

	s.cache.On("Get", mock.Anything, "dashboard:all").Return(nil, false, nil).Once()
	s.cache.On("Set", mock.Anything, "dashboard:all", mock.MatchedBy(func(b []byte) bool {
		var c []models.StatusCount
		return json.Unmarshal(b, &c) == nil && len(c) == 1 && c[0].Count == 2
	}), 30*time.Second).Return(nil).Once()

	got, err := s.svc.Dashboard(context.Background(), super)
	s.Require().NoError(err)
	s.Require().Equal([]models.StatusCount{{Status: models.StatusRegistered, Count: 2}}, got)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestDashboard_CacheErrorFallsBackToStore() {
	s.cache.On("Get", mock.Anything, "dashboard:all").Return(nil, false, errors.New("redis down")).Once()
	s.cache.On("Set", mock.Anything, "dashboard:all", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	got, err := s.svc.Dashboard(context.Background(), super)
	s.Require().NoError(err)
	s.Require().Empty(got)
}

func (s *ServiceSuite) TestDashboard_UserForbidden() {
	_, err := s.svc.Dashboard(context.Background(), owner)
	s.Require().True(errors.Is(err, models.ErrForbidden))
	s.cache.AssertNotCalled(s.T(), "Get", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestUpdateStatus_PublishesEvent() {
	s.pub.On("Publish", mock.Anything, "cargo.status_changed", mock.Anything, mock.Anything).Return(nil).Once()
	it := register(s.T(), s.svc, "EV-1")

	s.pub.On("Publish", mock.Anything, "cargo.status_changed", []byte("1"), mock.MatchedBy(func(b []byte) bool {
		m, err := messages.DecodeStatusChanged(b)
		return err == nil && m.NewStatus == "READY_FOR_PICKUP" && *m.PreviousStatus == "REGISTERED"
	})).Return(nil).Once()

	_, err := s.svc.UpdateStatus(context.Background(), it.ID, UpdateStatusInput{Status: models.StatusReadyForPickup}, staffA)
	s.Require().NoError(err)
	s.pub.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestUpdateStatus_PublishFailureDoesNotFail() {
	s.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down"))
	it := register(s.T(), s.svc, "EV-2")

	got, err := s.svc.UpdateStatus(context.Background(), it.ID, UpdateStatusInput{Status: models.StatusPickedUp}, super)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusPickedUp, got.CurrentStatus)
}

func (s *ServiceSuite) TestQuickUpdate_NoStatusChangeNoEvent() {
	s.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	register(s.T(), s.svc, "EV-3")

	// статус тот же, вес не задан, филиал уже есть: ничего не пишется
	_, err := s.svc.QuickUpdateByCode(context.Background(), QuickUpdateInput{TrackingCode: "EV-3", Status: statusPtr(models.StatusRegistered)}, staffA)
	s.Require().NoError(err)
	s.pub.AssertNumberOfCalls(s.T(), "Publish", 1)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

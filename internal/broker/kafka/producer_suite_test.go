package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func (s *ProducerSuite) TestNewProducer_NotNil() {
	p := NewProducer([]string{"localhost:0"})
	s.Require().NotNil(p)
}

func (s *ProducerSuite) TestNewProducerWithWriter_NotNil() {
	p := newProducerWithWriter(s.wm)
	s.Require().NotNil(p)
}

func (s *ProducerSuite) arrival() (messages.StatusChanged, []byte) {
	branch := int64(5)
	ev := messages.NewStatusChanged(1, "KH-1", &branch, nil, "ARRIVED_BRANCH", "EXCEL_IMPORT", 9, time.Now().UTC())
	b, err := ev.Encode()
	s.Require().NoError(err)
	return ev, b
}

func (s *ProducerSuite) TestPublish_OK() {
	ev, value := s.arrival()
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || msgs[0].Topic != statusTopic || string(msgs[0].Key) != "1" {
				return false
			}
			got, err := messages.DecodeStatusChanged(msgs[0].Value)
			return err == nil && got.EventID == ev.EventID && got.NewStatus == "ARRIVED_BRANCH"
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(context.Background(), statusTopic, ev.Key(), value))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_ErrorWrapped() {
	want := errors.New("boom")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()

	ev, value := s.arrival()
	err := s.p.Publish(context.Background(), statusTopic, ev.Key(), value)
	s.Require().ErrorIs(err, want)
	s.Require().Contains(err.Error(), "kafka publish "+statusTopic)
	s.wm.AssertExpectations(s.T())
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}



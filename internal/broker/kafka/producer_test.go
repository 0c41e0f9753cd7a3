package kafka

import (
	"context"
	"errors"
	"testing"

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

func (m *writerMock) Close() error {
	return m.Called().Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm, "package.updated")
}

func (s *ProducerSuite) TestPublish_KeyValueAndSortedHeaders() {
	s.wm.
		On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			m := msgs[0]
			return m.Topic == "" &&
				string(m.Key) == "LX123456789DE" &&
				string(m.Value) == `{"status":10}` &&
				len(m.Headers) == 2 &&
				m.Headers[0].Key == HeaderContentType && string(m.Headers[0].Value) == "application/json" &&
				m.Headers[1].Key == HeaderSource && string(m.Headers[1].Value) == "list"
		})).
		Return(nil).
		Once()

	s.Require().NoError(s.p.Publish(context.Background(), []byte("LX123456789DE"), []byte(`{"status":10}`), map[string]string{
		HeaderSource:      "list",
		HeaderContentType: "application/json",
	}))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_NoHeaders() {
	s.wm.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && msgs[0].Headers == nil
	})).Return(nil).Once()

	s.Require().NoError(s.p.Publish(context.Background(), []byte("RR1"), nil, nil))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_ErrorNamesTopic() {
	want := errors.New("leader not available")
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(want).Once()

	err := s.p.Publish(context.Background(), []byte("LX123456789DE"), nil, nil)
	s.Require().ErrorIs(err, want)
	s.Require().Contains(err.Error(), "publish to package.updated")
}

func (s *ProducerSuite) TestClose() {
	s.wm.On("Close").Return(nil).Once()
	s.Require().NoError(s.p.Close())

	s.wm.On("Close").Return(errors.New("flush failed")).Once()
	s.Require().ErrorContains(s.p.Close(), "close writer")
}

func (s *ProducerSuite) TestNewProducer() {
	p := NewProducer([]string{"localhost:0"}, "package.updated")
	s.Require().Equal("package.updated", p.Topic())
	s.Require().NoError(p.Close())
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}

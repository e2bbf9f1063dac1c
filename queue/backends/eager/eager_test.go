package eager_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/matchboxhq/matchbox/queue/backends/eager"
	"github.com/matchboxhq/matchbox/queue/backends/iface"
	"github.com/matchboxhq/matchbox/queue/tasks"
)

type EagerBackendTestSuite struct {
	suite.Suite

	backend iface.Backend
	st      []*tasks.Signature
}

func (s *EagerBackendTestSuite) SetupSuite() {
	// prepare common test data
	s.backend = eager.New()

	s.st = []*tasks.Signature{
		{UUID: "1", Name: "parse_resume"},
		{UUID: "2", Name: "parse_resume"},
		{UUID: "3", Name: "generate_embedding"},
		{UUID: "4", Name: "generate_embedding"},
		{UUID: "5", Name: "parse_resume"},
		{UUID: "6", Name: "parse_resume"},
	}

	for _, t := range s.st {
		s.backend.SetStatePending(t)
	}
}

func (s *EagerBackendTestSuite) TestSetStatePending() {
	// task 1
	t := s.st[0]

	// move the state forward
	s.backend.SetStateStarted(t)

	// a non terminal state may be overwritten
	s.backend.SetStatePending(t)

	st, err := s.backend.GetState(t.UUID)
	s.Nil(err)
	if st != nil {
		s.Equal(tasks.PendingState, st.State)
	}
}

func (s *EagerBackendTestSuite) TestSetStateStarted() {
	// task 2
	t := s.st[1]
	s.backend.SetStateStarted(t)
	st, err := s.backend.GetState(t.UUID)
	s.Nil(err)
	if st != nil {
		s.Equal(tasks.StartedState, st.State)
		s.Equal(t.Name, st.TaskName)
	}
}

func (s *EagerBackendTestSuite) TestSetStateSuccess() {
	// task 3
	t := s.st[2]
	taskResults := []*tasks.TaskResult{
		{
			Type:  "float64",
			Value: json.Number("300.0"),
		},
	}
	s.backend.SetStateSuccess(t, taskResults)
	st, err := s.backend.GetState(t.UUID)
	s.Nil(err)
	s.NotNil(st)

	s.Equal(tasks.SuccessState, st.State)
	s.Equal(taskResults, st.Results)
}

func (s *EagerBackendTestSuite) TestSetStateFailure() {
	// task 4
	t := s.st[3]
	s.backend.SetStateFailure(t, "error")
	st, err := s.backend.GetState(t.UUID)
	s.Nil(err)
	if st != nil {
		s.Equal(tasks.FailureState, st.State)
		s.Equal("error", st.Error)
	}
}

func (s *EagerBackendTestSuite) TestGetState() {
	// get something not existed -- empty string
	st, err := s.backend.GetState("")
	s.Nil(st)
	s.Equal(iface.ErrStateNotFound, err)
}

func (s *EagerBackendTestSuite) TestPurgeState() {
	// task 5
	t := s.st[4]
	st, err := s.backend.GetState(t.UUID)
	s.NotNil(st)
	s.Nil(err)

	// purge it
	s.Nil(s.backend.PurgeState(t.UUID))

	// should be not found
	st, err = s.backend.GetState(t.UUID)
	s.Nil(st)
	s.NotNil(err)

	// purge a not-existed state
	s.NotNil(s.backend.PurgeState(""))
}

func (s *EagerBackendTestSuite) TestTerminalStateImmutable() {
	// task 6
	t := s.st[5]
	s.Nil(s.backend.SetStateSuccess(t, nil))

	// late writes must not dethrone a completed state
	s.Nil(s.backend.SetStateStarted(t))
	st, err := s.backend.GetState(t.UUID)
	s.Nil(err)
	s.Equal(tasks.SuccessState, st.State)

	s.Nil(s.backend.SetStateFailure(t, "too late"))
	st, err = s.backend.GetState(t.UUID)
	s.Nil(err)
	s.Equal(tasks.SuccessState, st.State)
	s.Empty(st.Error)
}

func TestEagerBackendMain(t *testing.T) {
	suite.Run(t, &EagerBackendTestSuite{})
}

package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(groupTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type groupTestSuite struct{}

func (s *groupTestSuite) TestGroupTerminatesAfterASingleError(c *check.C) {
	grp := Group{
		testService{id: "session-0"},
		testService{id: "session-1", err: fmt.Errorf("browser session lost")},
		testService{id: "session-2"},
	}

	err := grp.Execute(context.TODO())
	c.Assert(err, check.Not(check.IsNil))
	c.Assert(err, check.ErrorMatches, "(?ms).*session-1: browser session lost.*")
}

func (s *groupTestSuite) TestGroupAccumulatesMultipleErrors(c *check.C) {
	grp := Group{
		testService{id: "session-0"},
		testService{id: "session-1", err: fmt.Errorf("browser session lost")},
		testService{id: "session-2", err: fmt.Errorf("browser session lost")},
	}

	err := grp.Execute(context.TODO())
	c.Assert(err, check.Not(check.IsNil))
	c.Assert(err, check.ErrorMatches, "(?ms).*session-1: browser session lost.*")
	c.Assert(err, check.ErrorMatches, "(?ms).*session-2: browser session lost.*")
}

func (s *groupTestSuite) TestGroupTerminatesWhenAllServicesFinish(c *check.C) {
	// Crawl sessions return nil on their own once the shared frontier
	// drains; the group must return without any cancellation.
	grp := Group{
		testService{id: "session-0", drained: true},
		testService{id: "session-1", drained: true},
		testService{id: "session-2", drained: true},
	}

	errChan := make(chan error, 1)
	go func() { errChan <- grp.Execute(context.TODO()) }()

	select {
	case err := <-errChan:
		c.Assert(err, check.IsNil)
	case <-time.After(2 * time.Second):
		c.Fatal("Execute did not return after all services finished")
	}
}

func (s *groupTestSuite) TestGroupTerminatesFromContext(c *check.C) {
	grp := Group{
		testService{id: "session-0"},
		testService{id: "session-1"},
		testService{id: "session-2"},
	}

	ctx, cancelFn := context.WithTimeout(context.TODO(), 200*time.Millisecond)
	defer cancelFn()

	err := grp.Execute(ctx)
	c.Assert(err, check.IsNil)
}

type testService struct {
	id      string
	err     error
	drained bool
}

func (s testService) Name() string { return s.id }

func (s testService) Run(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}

	// A drained service has no more work and returns right away, the
	// way a crawl session does when the frontier empties.
	if s.drained {
		return nil
	}

	<-ctx.Done()

	return nil
}

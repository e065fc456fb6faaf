package service

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"userapi/internal/model"
)

// communitySize is the user count from which the landing page shows community features.
const communitySize = 100

// Dashboard renders its widgets concurrently. Each widget asks for the user
// count on its own; the memo scope turns those into a single query.
func (s *userService) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	var d model.Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.CountUsers(gctx)
		if err != nil {
			return err
		}
		d.TotalUsers = n
		return nil
	})
	g.Go(func() error {
		n, err := s.CountUsers(gctx)
		if err != nil {
			return err
		}
		d.TotalLabel = userLabel(n)
		return nil
	})
	g.Go(func() error {
		n, err := s.CountUsers(gctx)
		if err != nil {
			return err
		}
		d.NextMilestone = nextMilestone(n)
		d.ToMilestone = d.NextMilestone - n
		return nil
	})
	g.Go(func() error {
		n, err := s.CountUsers(gctx)
		if err != nil {
			return err
		}
		d.IsCommunity = n >= communitySize
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

func userLabel(n int64) string {
	if n == 1 {
		return "1 user"
	}
	return fmt.Sprintf("%s users", humanize.Comma(n))
}

// nextMilestone returns the smallest power of ten (at least 10) above n.
func nextMilestone(n int64) int64 {
	m := int64(10)
	for m <= n {
		m *= 10
	}
	return m
}

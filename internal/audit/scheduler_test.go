package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb-works/collab-backend/internal/metrics"
	"github.com/sb-works/collab-backend/internal/projects/domain"
	"github.com/sb-works/collab-backend/internal/projects/repository"
)

type failingFinder struct{}

func (failingFinder) FindViolations(context.Context) ([]domain.Violation, error) {
	return nil, errors.New("db down")
}

func TestRunOnce_ReportsViolations(t *testing.T) {
	store := repository.NewMemoryStore()
	free := "free-a"
	store.Put(&domain.Project{ID: "ok", ClientID: "c", Status: domain.StatusActive, FreelancerID: &free})
	store.Put(&domain.Project{ID: "bad", ClientID: "c", Status: domain.StatusActive})

	s := NewScheduler(store, "")
	found, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bad", found[0].ProjectID)
	assert.Equal(t, domain.ViolationAssignment, found[0].Kind)
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry, strings.NewReader(`
# HELP collab_audit_violations Invariant violations found by the last audit run.
# TYPE collab_audit_violations gauge
collab_audit_violations 1
`), "collab_audit_violations"))
}

func TestRunOnce_PropagatesErrors(t *testing.T) {
	_, err := NewScheduler(failingFinder{}, "").RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	s := NewScheduler(failingFinder{}, "not a schedule")
	assert.Error(t, s.Start())

	ok := NewScheduler(failingFinder{}, "")
	require.NoError(t, ok.Start())
	ok.Stop()
}

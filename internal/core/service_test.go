package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingRepository struct {
	mu    sync.Mutex
	saved map[string]*core.Assessment
	err   error
}

func (r *recordingRepository) Get(ctx context.Context, id string) (*core.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.saved[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return a, nil
}

func (r *recordingRepository) Save(ctx context.Context, a *core.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.saved == nil {
		r.saved = make(map[string]*core.Assessment)
	}
	r.saved[a.ID] = a
	return nil
}

func (r *recordingRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saved, id)
	return nil
}

func (r *recordingRepository) Cleanup(ctx context.Context) error {
	return nil
}

func TestServiceStoresAssessments(t *testing.T) {
	repo := &recordingRepository{}
	o := newOrchestrator(&fakeReputation{}, nil, nil, core.AnalysisOptions{})
	svc := core.NewAnalysisService(o, repo, zap.NewNop(), true, withKey())

	a, err := svc.AnalyzeMessage(context.Background(), message("a@b.test", "hi", "hello"))
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, stored)
	assert.True(t, a.Enriched)
}

func TestServiceStoreDisabled(t *testing.T) {
	repo := &recordingRepository{}
	o := newOrchestrator(&fakeReputation{}, nil, nil, core.AnalysisOptions{})
	svc := core.NewAnalysisService(o, repo, zap.NewNop(), false, core.Credentials{})

	_, err := svc.AnalyzeMessage(context.Background(), message("a@b.test", "hi", "hello"))
	require.NoError(t, err)
	assert.Empty(t, repo.saved)
}

func TestServiceIgnoresStoreFailures(t *testing.T) {
	repo := &recordingRepository{err: errors.New("disk full")}
	o := newOrchestrator(&fakeReputation{}, nil, nil, core.AnalysisOptions{})
	svc := core.NewAnalysisService(o, repo, zap.NewNop(), true, core.Credentials{})

	a, err := svc.AnalyzeMessage(context.Background(), message("a@b.test", "Urgent", "hello"))
	require.NoError(t, err)
	assert.Equal(t, core.VerdictSuspicious, a.Verdict)
	assert.Contains(t, svc.Summary(a), "urgent language")
}

func TestServicePropagatesAnalysisErrors(t *testing.T) {
	o := newOrchestrator(&fakeReputation{}, nil, nil, core.AnalysisOptions{})
	svc := core.NewAnalysisService(o, nil, zap.NewNop(), true, core.Credentials{})

	_, err := svc.AnalyzeWithCredentials(context.Background(), []byte(""), withKey())
	assert.True(t, errors.Is(err, core.ErrParseFailed))
}

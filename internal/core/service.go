package core

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// AnalysisService is the core service for phishing analysis
type AnalysisService struct {
	orchestrator *AnalysisOrchestrator
	repository   AssessmentRepository
	logger       *zap.Logger
	storeEnabled bool
	credentials  Credentials
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	orchestrator *AnalysisOrchestrator,
	repository AssessmentRepository,
	logger *zap.Logger,
	storeEnabled bool,
	credentials Credentials,
) *AnalysisService {
	return &AnalysisService{
		orchestrator: orchestrator,
		repository:   repository,
		logger:       logger,
		storeEnabled: storeEnabled && repository != nil,
		credentials:  credentials,
	}
}

// AnalyzeMessage analyzes a raw message with the configured credentials
func (s *AnalysisService) AnalyzeMessage(ctx context.Context, raw []byte) (*Assessment, error) {
	return s.AnalyzeWithCredentials(ctx, raw, s.credentials)
}

// AnalyzeWithCredentials analyzes a raw message with caller-supplied credentials
func (s *AnalysisService) AnalyzeWithCredentials(ctx context.Context, raw []byte, creds Credentials) (*Assessment, error) {
	assessment, err := s.orchestrator.Analyze(ctx, raw, creds)
	if err != nil {
		s.logger.Error("Analysis failed", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Message analyzed",
		zap.String("id", assessment.ID),
		zap.String("sender", assessment.Message.Sender),
		zap.String("verdict", string(assessment.Verdict)),
		zap.Int("urgency", assessment.Urgency.Score),
		zap.Int("indicators", len(assessment.Indicators)),
		zap.Bool("enriched", assessment.Enriched))

	if s.storeEnabled {
		if err := s.repository.Save(ctx, assessment); err != nil {
			s.logger.Error("Failed to store assessment", zap.Error(err))
		}
	}

	return assessment, nil
}

// Summary renders the explanation lines as a single line for headers and logs
func (s *AnalysisService) Summary(assessment *Assessment) string {
	return strings.Join(assessment.Explanations, "; ")
}

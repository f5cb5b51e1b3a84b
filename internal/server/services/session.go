package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/handlewatch/internal/common"
	"github.com/dmitrijs2005/handlewatch/internal/credentials"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
)

type SessionManager interface {
	Authorizer
	Reset(ctx context.Context) error
}

type CredentialRouter interface {
	Route(from int64, text string) (credentials.Kind, bool)
}

type SessionService struct {
	sessions   SessionManager
	router     CredentialRouter
	monitoring *MonitoringService
	log        logging.Logger
}

func NewSessionService(sm SessionManager, r CredentialRouter, ms *MonitoringService, log logging.Logger) *SessionService {
	return &SessionService{sessions: sm, router: r, monitoring: ms, log: log.With("module", "session_service")}
}

// Authorize reports whether the session is ready; if not, a handshake
// prompting operatorID is running.
func (s *SessionService) Authorize(ctx context.Context, operatorID int64) (bool, error) {
	return s.sessions.EnsureAuthorized(ctx, operatorID)
}

// Reset stops monitoring, destroys the session and starts a new handshake
// prompting operatorID.
func (s *SessionService) Reset(ctx context.Context, operatorID int64) error {
	if err := s.monitoring.Halt(ctx); err != nil {
		return err
	}
	if err := s.sessions.Reset(ctx); err != nil {
		return err
	}
	s.log.Info(ctx, "session reset", "operator", operatorID)
	_, err := s.sessions.EnsureAuthorized(ctx, operatorID)
	return err
}

// SubmitInput hands text to the pending credential request.
func (s *SessionService) SubmitInput(_ context.Context, operatorID int64, text string) (credentials.Kind, error) {
	if strings.TrimSpace(text) == "" {
		return "", common.ErrEmptyInput
	}
	kind, ok := s.router.Route(operatorID, text)
	if kind == "" {
		return "", common.ErrNothingPending
	}
	if !ok {
		return kind, common.ErrorUnauthorized
	}
	return kind, nil
}

// Package street loads and creates the working street on the server.
package street

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/streetmix/sx/internal/apiclient"
	"github.com/streetmix/sx/internal/apperr"
	"github.com/streetmix/sx/internal/settings"
	"github.com/streetmix/sx/internal/store"
)

// ErrNoStreet is returned by FetchStreetFromServer when there is no working
// street to fetch.
var ErrNoStreet = errors.New("no working street")

// API is the subset of the API client the service uses.
type API interface {
	GetStreet(ctx context.Context, streetID, authorization string) (*apiclient.StreetResponse, error)
	CreateStreet(ctx context.Context, req *apiclient.CreateStreetRequest, authorization string) (*apiclient.StreetResponse, error)
}

// Service fetches and creates streets, recording results in the store.
type Service struct {
	api    API
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Service. A nil logger uses slog.Default.
func New(api API, st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{api: api, store: st, logger: logger, now: time.Now}
}

// FetchStreetFromServer loads the working street. A 404 shows NO_STREET; any
// other failure shows a generic error. When the street is marked for
// promotion and the user is signed in, an owned copy is created and becomes
// the working street.
func (s *Service) FetchStreetFromServer(ctx context.Context) error {
	current := s.store.Street()
	if current.ID == "" {
		s.store.ShowError(apperr.Error{Code: apperr.NoStreet, Fatal: true})
		return ErrNoStreet
	}

	auth := s.store.SignInData().AuthHeader()
	resp, err := s.api.GetStreet(ctx, current.ID, auth)
	if err != nil {
		if errors.Is(err, apiclient.ErrNotFound) {
			s.store.ShowError(apperr.Error{Code: apperr.NoStreet, Fatal: true})
		} else {
			s.store.ShowError(apperr.Error{Code: apperr.GenericError, Fatal: true})
		}
		return fmt.Errorf("fetch street %s: %w", current.ID, err)
	}

	s.receive(resp)
	s.logger.Debug("street: fetched", "id", resp.ID, "creator", resp.CreatorID)

	if s.store.PromoteStreet() && s.store.SignedIn() && resp.CreatorID == "" {
		return s.promote(ctx, resp, auth)
	}
	return nil
}

// promote creates a copy of an anonymous street owned by the signed-in user.
func (s *Service) promote(ctx context.Context, anon *apiclient.StreetResponse, auth string) error {
	req := &apiclient.CreateStreetRequest{
		Name:             anon.Name,
		Data:             anon.Data,
		OriginalStreetID: anon.ID,
		ClientUpdatedAt:  s.timestamp(),
	}
	resp, err := s.api.CreateStreet(ctx, req, auth)
	if err != nil {
		s.store.ShowError(apperr.Error{Code: apperr.NewStreetServerFailure, Fatal: true})
		return fmt.Errorf("promote street %s: %w", anon.ID, err)
	}
	s.store.SetPromoteStreet(false)
	s.receive(resp)
	s.logger.Info("street: promoted", "from", anon.ID, "to", resp.ID)
	return nil
}

// CreateNewStreetOnServer creates an empty street and makes it the working
// street. Failure shows NEW_STREET_SERVER_FAILURE.
func (s *Service) CreateNewStreetOnServer(ctx context.Context) error {
	req := &apiclient.CreateStreetRequest{ClientUpdatedAt: s.timestamp()}
	resp, err := s.api.CreateStreet(ctx, req, s.store.SignInData().AuthHeader())
	if err != nil {
		s.store.ShowError(apperr.Error{Code: apperr.NewStreetServerFailure, Fatal: true})
		return fmt.Errorf("create street: %w", err)
	}
	s.receive(resp)
	s.logger.Debug("street: created", "id", resp.ID)
	return nil
}

// SetPromoteStreet marks the working street for adoption by the signed-in
// user on the next fetch.
func (s *Service) SetPromoteStreet(promote bool) {
	s.store.SetPromoteStreet(promote)
}

func (s *Service) receive(resp *apiclient.StreetResponse) {
	namespacedID := ""
	if resp.NamespacedID != 0 {
		namespacedID = strconv.Itoa(resp.NamespacedID)
	}
	s.store.SetStreet(store.Street{
		ID:           resp.ID,
		NamespacedID: namespacedID,
		CreatorID:    resp.CreatorID,
		Name:         resp.Name,
		UpdatedAt:    resp.UpdatedAt,
	})

	patch := settings.Patch{
		LastStreetID:           &resp.ID,
		LastStreetNamespacedID: &namespacedID,
		LastStreetCreatorID:    &resp.CreatorID,
	}
	if err := s.store.UpdateSettings(patch); err != nil {
		s.logger.Warn("street: save settings", "err", err)
	}
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

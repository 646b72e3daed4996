// Package auth bootstraps the client session: it reconciles the sign-in
// cookie handoff with durable storage, fetches the user's details, applies
// feature-flag overrides, and runs the mode machine. It also handles sign-out
// and sign-in changes made by other processes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/streetmix/sx/internal/apiclient"
	"github.com/streetmix/sx/internal/apperr"
	"github.com/streetmix/sx/internal/flags"
	"github.com/streetmix/sx/internal/localstore"
	"github.com/streetmix/sx/internal/mode"
	"github.com/streetmix/sx/internal/settings"
	"github.com/streetmix/sx/internal/signin"
	"github.com/streetmix/sx/internal/store"
	"github.com/streetmix/sx/internal/tracking"
)

// API is the subset of the API client used for sessions.
type API interface {
	GetUser(ctx context.Context, userID, authorization string) (*apiclient.UserResponse, error)
	DeleteLoginToken(ctx context.Context, userID, authorization string) error
}

// Streets loads or creates the working street.
type Streets interface {
	FetchStreetFromServer(ctx context.Context) error
	CreateNewStreetOnServer(ctx context.Context) error
	SetPromoteStreet(promote bool)
}

// Tracker records diagnostic events.
type Tracker interface {
	TrackEvent(category tracking.Category, action tracking.Action, label string, value int, nonInteraction bool)
}

// Reloader discards in-process state and starts a fresh bootstrap.
type Reloader interface {
	Reload()
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func()

// Reload calls f.
func (f ReloaderFunc) Reload() { f() }

// Deps are the collaborators of a Session.
type Deps struct {
	Store       *store.Store
	Persistence *signin.Persistence
	API         API
	Streets     Streets
	Tracker     Tracker
	Reloader    Reloader
	// RoleTable maps role name to the flags it grants.
	RoleTable map[string]map[string]bool
	Machine   *mode.Machine
	// ReadOnly clients cannot create streets.
	ReadOnly bool
	// SignInURL is the legacy sign-in entry point.
	SignInURL string
	Logger    *slog.Logger
}

// Session runs the sign-in lifecycle against the injected store.
type Session struct {
	store     *store.Store
	persist   *signin.Persistence
	api       API
	streets   Streets
	tracker   Tracker
	reloader  Reloader
	roleTable map[string]map[string]bool
	machine   *mode.Machine
	readOnly  bool
	signInURL string
	logger    *slog.Logger

	load singleflight.Group
}

// New returns a Session. Store, Persistence, API, Streets and Machine are
// required.
func New(d Deps) *Session {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracker := d.Tracker
	if tracker == nil {
		tracker = tracking.New(logger)
	}
	reloader := d.Reloader
	if reloader == nil {
		reloader = ReloaderFunc(func() {})
	}
	return &Session{
		store:     d.Store,
		persist:   d.Persistence,
		api:       d.API,
		streets:   d.Streets,
		tracker:   tracker,
		reloader:  reloader,
		roleTable: d.RoleTable,
		machine:   d.Machine,
		readOnly:  d.ReadOnly,
		signInURL: d.SignInURL,
		logger:    logger,
	}
}

// LoadSignIn bootstraps the session. It always returns true once bootstrap
// has finished; the error reports degradations along the way, such as
// malformed durable data that was treated as signed out. Overlapping calls
// share a single run.
func (s *Session) LoadSignIn(ctx context.Context) (bool, error) {
	_, err, shared := s.load.Do("load", func() (any, error) {
		return nil, s.loadSignIn(ctx)
	})
	if shared {
		s.logger.Debug("auth: joined in-flight bootstrap")
	}
	return true, err
}

func (s *Session) loadSignIn(ctx context.Context) error {
	var errs []error

	if data, ok := s.persist.ReadSignInCookies(); ok {
		s.logger.Debug("auth: adopt sign-in cookies", "user", data.UserID)
		s.store.SetSignInData(data)
		if err := s.persist.RemoveSignInCookies(); err != nil {
			errs = append(errs, err)
		}
		if err := s.saveSignInDataLocally(); err != nil {
			errs = append(errs, err)
		}
	} else {
		persisted, err := s.persist.ReadPersisted()
		switch {
		case err != nil:
			s.logger.Warn("auth: read persisted sign-in", "err", err)
			errs = append(errs, err)
		case persisted != nil:
			s.store.SetSignInData(persisted)
		}
	}

	sessionFlags, err := s.persist.ReadSessionFlags()
	if err != nil {
		s.logger.Warn("auth: read session flags", "err", err)
		errs = append(errs, err)
	}
	sessionOverride := flags.GenerateOverride(sessionFlags, flags.ScopeSession)

	var overrides []flags.Override
	if data := s.store.SignInData(); data.Complete() {
		// Failures are handled inside; they leave no remote overrides.
		overrides, _ = s.FetchSignInDetails(ctx, data.UserID)
	} else {
		s.store.ClearSignInData()
	}

	table := s.store.Flags()
	table.Reset()
	table.Apply(append(overrides, sessionOverride)...)

	if err := s.signInLoaded(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// FetchSignInDetails requests the user's profile, roles and flags and returns
// the role and user overrides. On success the details are stored in memory
// and durably. On failure the error is returned after being handled:
//   - 401 signs out quietly and shows SIGN_IN_401
//   - 503 shows SIGN_IN_SERVER_FAILURE and keeps the session
//   - an aborted request does nothing
//   - anything else clears the in-memory sign-in data
func (s *Session) FetchSignInDetails(ctx context.Context, userID string) ([]flags.Override, error) {
	user, err := s.api.GetUser(ctx, userID, s.GetAuthHeader())
	if err == nil {
		var overrides []flags.Override
		overrides, err = flags.ResolveOverrides(user.Roles, user.Flags, s.roleTable)
		if err == nil {
			s.receiveSignInDetails(user)
			return overrides, nil
		}
	}
	s.errorReceiveSignInDetails(ctx, err)
	return nil, fmt.Errorf("fetch sign-in details: %w", err)
}

func (s *Session) receiveSignInDetails(user *apiclient.UserResponse) {
	details := &signin.UserDetails{
		ID:              user.ID,
		DisplayName:     user.DisplayName,
		ProfileImageURL: user.ProfileImageURL,
		Flags:           user.Flags,
		Roles:           user.Roles,
	}
	data := s.store.SignInData()
	if data == nil {
		data = &signin.Data{}
	}
	data.Details = details
	s.store.SetSignInData(data)
	if err := s.saveSignInDataLocally(); err != nil {
		s.logger.Warn("auth: persist sign-in details", "err", err)
	}
	s.store.RememberUserProfile(*details)
}

func (s *Session) errorReceiveSignInDetails(ctx context.Context, err error) {
	switch {
	case errors.Is(err, apiclient.ErrAborted):
		// No status: the request never completed. Sign-in data is kept.
		s.logger.Info("auth: user details request aborted", "err", err)
		return
	case errors.Is(err, apiclient.ErrUnauthorized):
		s.tracker.TrackEvent(tracking.CategoryError, tracking.ActionSignIn401, "", 0, false)
		s.SignOut(ctx, true)
		s.store.ShowError(apperr.Error{Code: apperr.SignIn401, Fatal: true})
		return
	case errors.Is(err, apiclient.ErrUnavailable):
		s.tracker.TrackEvent(tracking.CategoryError, tracking.ActionSignInServerFailure, "", 0, false)
		s.store.ShowError(apperr.Error{Code: apperr.SignInServerFailure, Fatal: true})
		return
	}
	s.logger.Warn("auth: user details failed, continuing signed out", "err", err)
	s.store.ClearSignInData()
}

// signInLoaded loads settings and runs the mode transition and dispatch.
func (s *Session) signInLoaded(ctx context.Context) error {
	var errs []error
	if err := s.loadSettings(); err != nil {
		errs = append(errs, err)
	}

	st := s.store.Settings()
	d := s.machine.Step(mode.Input{
		Saved: mode.StreetRef{
			ID:           st.LastStreetID,
			NamespacedID: st.LastStreetNamespacedID,
			CreatorID:    st.LastStreetCreatorID,
		},
		CurrentCreatorID: s.store.Street().CreatorID,
		ReadOnly:         s.readOnly,
	})
	s.logger.Debug("auth: mode resolved", "mode", d.Mode.String(), "effects", len(d.Effects))

	if err := s.execute(ctx, d.Effects); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) loadSettings() error {
	loaded, err := settings.Load(s.persist.Storage)
	if err != nil {
		s.logger.Warn("auth: load settings", "err", err)
		return err
	}
	s.store.LoadSettings(loaded)
	return nil
}

// ProcessMode dispatches the current mode's side effects.
func (s *Session) ProcessMode(ctx context.Context) error {
	return s.execute(ctx, mode.Dispatch(s.machine.Current(), s.readOnly))
}

func (s *Session) execute(ctx context.Context, effects []mode.Effect) error {
	for _, e := range effects {
		switch e.Kind {
		case mode.RestoreStreet:
			s.store.UpdateStreetIDMetadata(e.Street.ID, e.Street.NamespacedID, e.Street.CreatorID)
		case mode.PromoteStreet:
			s.streets.SetPromoteStreet(true)
		case mode.FetchStreet:
			if err := s.streets.FetchStreetFromServer(ctx); err != nil {
				return err
			}
		case mode.CreateStreet:
			if err := s.streets.CreateNewStreetOnServer(ctx); err != nil {
				return err
			}
		case mode.ShowError:
			s.store.ShowError(e.Error)
		case mode.ClearSignIn:
			s.clearSignIn()
		case mode.Reload:
			s.tracker.TrackEvent(tracking.CategorySystem, tracking.ActionForceReload, s.machine.Current().String(), 0, true)
			s.reloader.Reload()
			// Nothing runs after a reload.
			return nil
		}
	}
	return nil
}

// OnStorageChange reacts to another process changing durable storage. If
// the durable sign-in marker no longer agrees with the in-memory sign-in
// state, the mode becomes a forced reload and is dispatched.
func (s *Session) OnStorageChange(ctx context.Context) error {
	hasMarker, err := s.persist.HasMarker()
	if err != nil {
		return fmt.Errorf("read sign-in marker: %w", err)
	}

	signedIn := s.store.SignedIn()
	switch {
	case signedIn && !hasMarker:
		s.machine.Set(mode.ForceReloadSignOut)
	case !signedIn && hasMarker:
		s.machine.Set(mode.ForceReloadSignIn)
	default:
		return nil
	}
	s.tracker.TrackEvent(tracking.CategorySystem, tracking.ActionStorageChange, s.machine.Current().String(), 0, true)
	return s.ProcessMode(ctx)
}

// Watch calls OnStorageChange for each event until ctx is done or events is
// closed.
func (s *Session) Watch(ctx context.Context, events <-chan localstore.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.logger.Debug("auth: storage changed", "key", ev.Key, "origin", ev.Origin)
			if err := s.OnStorageChange(ctx); err != nil {
				s.logger.Warn("auth: storage change", "err", err)
			}
		}
	}
}

// OnSignOutClick signs out at the user's request.
func (s *Session) OnSignOutClick(ctx context.Context) {
	s.SignOut(ctx, false)
}

// SignOut clears the last-street settings, the sign-in cookies and the
// durable sign-in marker, then tells the server to revoke the login token.
// The server's answer does not matter: the mode becomes SIGN_OUT either way.
// quiet suppresses only the confirmation notice.
func (s *Session) SignOut(ctx context.Context, quiet bool) {
	data := s.store.SignInData()

	// Start from the stored settings so unrelated fields survive.
	_ = s.loadSettings()
	if err := s.store.UpdateSettings(settings.ClearLastStreet()); err != nil {
		s.logger.Warn("auth: clear last street", "err", err)
	}
	if err := s.persist.RemoveSignInCookies(); err != nil {
		s.logger.Warn("auth: remove sign-in cookies", "err", err)
	}
	if err := s.persist.RemoveMarker(); err != nil {
		s.logger.Warn("auth: remove sign-in marker", "err", err)
	}

	s.sendSignOutToServer(ctx, data, quiet)

	s.store.ClearSignInData()
	s.tracker.TrackEvent(tracking.CategoryInteraction, tracking.ActionSignOut, "", 0, quiet)
	s.machine.Set(mode.SignOut)
	if err := s.ProcessMode(ctx); err != nil {
		s.logger.Warn("auth: process sign-out mode", "err", err)
	}
}

func (s *Session) sendSignOutToServer(ctx context.Context, data *signin.Data, quiet bool) {
	if data == nil || data.UserID == "" {
		s.logger.Debug("auth: no user to sign out on server")
		return
	}
	if err := s.api.DeleteLoginToken(ctx, data.UserID, data.AuthHeader()); err != nil {
		s.logger.Info("auth: server sign-out failed", "user", data.UserID, "err", err)
		return
	}
	if !quiet {
		s.store.Notify("Signed out.")
	}
}

// GoReloadClearSignIn drops all sign-in state and reloads.
func (s *Session) GoReloadClearSignIn() {
	s.clearSignIn()
	s.reloader.Reload()
}

func (s *Session) clearSignIn() {
	s.store.ClearSignInData()
	if err := s.saveSignInDataLocally(); err != nil {
		s.logger.Warn("auth: persist cleared sign-in", "err", err)
	}
	if err := s.persist.RemoveSignInCookies(); err != nil {
		s.logger.Warn("auth: remove sign-in cookies", "err", err)
	}
}

// DoSignIn starts sign-in. With AUTHENTICATION_V2 on it shows the SIGN_IN
// dialog and returns ""; otherwise it returns the legacy sign-in URL for the
// caller to open.
func (s *Session) DoSignIn() string {
	if s.store.Flags().Value(flags.AuthenticationV2.Name) {
		s.store.ShowDialog(store.DialogSignIn)
		return ""
	}
	s.tracker.TrackEvent(tracking.CategoryInteraction, tracking.ActionSignIn, "legacy", 0, false)
	return s.signInURL
}

func (s *Session) saveSignInDataLocally() error {
	return s.persist.PersistLocally(s.store.SignInData())
}

// IsSignedIn reports whether the session holds sign-in data.
func (s *Session) IsSignedIn() bool {
	return s.store.SignedIn()
}

// GetSignInData returns a copy of the sign-in data; empty when signed out.
func (s *Session) GetSignInData() signin.Data {
	if data := s.store.SignInData(); data != nil {
		return *data
	}
	return signin.Data{}
}

// GetAuthToken returns the login token, or "".
func (s *Session) GetAuthToken() string {
	return s.GetSignInData().Token
}

// GetAuthHeader returns "Bearer <token>" when both token and user id are
// held, otherwise "".
func (s *Session) GetAuthHeader() string {
	return s.store.SignInData().AuthHeader()
}

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/streetmix/sx/internal/apiclient"
	"github.com/streetmix/sx/internal/auth"
	"github.com/streetmix/sx/internal/config"
	"github.com/streetmix/sx/internal/cookiejar"
	"github.com/streetmix/sx/internal/localstore"
	"github.com/streetmix/sx/internal/mode"
	"github.com/streetmix/sx/internal/roles"
	"github.com/streetmix/sx/internal/settings"
	"github.com/streetmix/sx/internal/signin"
	"github.com/streetmix/sx/internal/store"
	"github.com/streetmix/sx/internal/street"
	"github.com/streetmix/sx/internal/tracking"
)

// app is one client lifetime: what a page load is to the web client.
type app struct {
	storage *localstore.Store
	jar     *cookiejar.Jar
	api     *apiclient.Client
	store   *store.Store
	machine *mode.Machine
	session *auth.Session
}

// appOptions configure newApp.
type appOptions struct {
	mode     mode.Mode
	streetID string
	reloader auth.Reloader
}

func newApp(opts appOptions) (*app, error) {
	roleTable, err := roles.FlagTable()
	if err != nil {
		return nil, fmt.Errorf("load role table: %w", err)
	}
	dbPath, err := config.StorageDBPath()
	if err != nil {
		return nil, err
	}
	storage, err := localstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	jarPath, err := config.CookieJarPath()
	if err != nil {
		storage.Close()
		return nil, err
	}

	logger := slog.Default()
	st := store.New()
	st.SetSettingsSink(func(s settings.Settings) error {
		return settings.Save(storage, s)
	})
	if opts.streetID != "" {
		st.UpdateStreetIDMetadata(opts.streetID, "", "")
	}

	jar := cookiejar.Open(jarPath)
	api := apiclient.New(config.GetAPIURL(), config.GetRequestTimeout())
	machine := mode.NewMachine(opts.mode)

	session := auth.New(auth.Deps{
		Store:       st,
		Persistence: &signin.Persistence{Cookies: jar, Storage: storage},
		API:         api,
		Streets:     street.New(api, st, logger),
		Tracker:     tracking.New(logger),
		Reloader:    opts.reloader,
		RoleTable:   roleTable,
		Machine:     machine,
		ReadOnly:    config.IsReadOnly(),
		SignInURL:   config.GetSignInURL(),
		Logger:      logger,
	})

	return &app{
		storage: storage,
		jar:     jar,
		api:     api,
		store:   st,
		machine: machine,
		session: session,
	}, nil
}

func (a *app) Close() error {
	return a.storage.Close()
}

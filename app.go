package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-authgate/recruitctl/recruiting"
	"github.com/go-authgate/recruitctl/session"
	"github.com/go-authgate/recruitctl/storage"
	"github.com/go-authgate/recruitctl/tui"
)

// app wires the session, its storage and the recruiting API for one command.
type app struct {
	cfg     Config
	log     zerolog.Logger
	display tui.Displayer
	out     io.Writer
	format  string

	files *storage.FileStore
	jar   *storage.Jar
	sess  *session.Session
	auth  *session.Auth

	client *session.Client
	unsub  func()
}

func newApp(cfg Config, logger zerolog.Logger, d tui.Displayer, out io.Writer, format string) (*app, error) {
	files := storage.NewFileStore(cfg.StateFile)
	jar, err := storage.NewJar(files, cfg.ServerURL, session.FlagPersist)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie jar: %w", err)
	}

	store := session.NewStore()
	sess, err := session.New(
		session.Config{
			BaseURL: cfg.ServerURL,
			Jar:     jar,
			Timeout: cfg.Timeout,
			Logger:  logger,
		},
		store,
		session.WithPersistence(files),
		session.WithObserver(d),
	)
	if err != nil {
		return nil, err
	}

	unsub := store.Subscribe(func(st session.State) {
		logger.Debug().
			Bool("authenticated", st.IsAuthenticated).
			Bool("checking", st.IsAuthChecking).
			Bool("loading", st.IsLoading).
			Str("user", st.User.Name()).
			Msg("auth state changed")
	})

	return &app{
		cfg:     cfg,
		log:     logger,
		display: d,
		out:     out,
		format:  format,
		files:   files,
		jar:     jar,
		sess:    sess,
		auth:    session.NewAuth(sess),
		unsub:   unsub,
	}, nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
	a.unsub()
}

// restore brings back a remembered session: check-login, then a silent refresh.
func (a *app) restore(ctx context.Context) (*session.User, error) {
	if !a.files.Flag(session.FlagPersist) {
		a.display.SessionMissing(nil)
		return nil, fmt.Errorf("%w: run 'recruitctl login' first", session.ErrNotAuthenticated)
	}

	a.display.CheckingSession()
	user, err := a.auth.CheckAuth(ctx)
	if err != nil {
		a.display.SessionMissing(err)
		if session.IsUnauthorized(err) {
			a.forget()
		}
		return nil, err
	}
	a.display.SessionRestored(user)
	return user, nil
}

// forget drops whatever the state file remembers about the session.
func (a *app) forget() {
	if err := a.files.ClearFlags(session.FlagPersist, session.FlagIsAuth); err != nil {
		a.log.Warn().Err(err).Msg("failed to clear session flags")
	}
	if err := a.jar.Forget(); err != nil {
		a.log.Warn().Err(err).Msg("failed to clear saved cookies")
	}
}

// requireUser returns the signed-in user, restoring the session if needed.
func (a *app) requireUser(ctx context.Context) (*session.User, error) {
	if user := a.sess.Store().User(); user != nil {
		return user, nil
	}
	return a.restore(ctx)
}

// login signs in and, when remember is set, keeps the session for later runs.
func (a *app) login(ctx context.Context, creds session.Credentials) (*session.User, error) {
	a.display.LoggingIn(creds.Email)
	user, err := a.auth.Login(ctx, creds)
	if err != nil {
		a.display.LoginFailed(err)
		return nil, err
	}
	a.display.LoginOK(user)

	if !creds.Remember {
		if err := a.files.ClearFlags(session.FlagPersist); err != nil {
			a.log.Warn().Err(err).Msg("failed to clear persist flag")
		}
		if err := a.jar.Forget(); err != nil {
			a.log.Warn().Err(err).Msg("failed to clear saved cookies")
		}
		return user, nil
	}
	if err := a.jar.Save(); err != nil {
		a.display.SessionSaveFailed(err)
	} else {
		a.display.SessionSaved(a.files.Path())
	}
	return user, nil
}

// logout ends the session on the backend and locally.
func (a *app) logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		if session.IsCanceled(err) {
			return err
		}
		a.log.Warn().Err(err).Msg("backend logout failed, clearing local session")
		a.sess.Logout(ctx)
	}
	a.display.LoggedOut()
	return nil
}

// service returns the recruiting API for the signed-in user.
func (a *app) service(ctx context.Context) (*recruiting.Service, error) {
	if _, err := a.requireUser(ctx); err != nil {
		return nil, err
	}
	if a.client == nil {
		client, err := a.sess.NewAuthClient()
		if err != nil {
			return nil, err
		}
		a.client = client
	}
	return recruiting.New(a.client, recruiting.WithLogger(a.log))
}

// done reports the signed-in user with token details.
func (a *app) done(user *session.User) {
	if user == nil {
		a.display.Done(nil, "", 0)
		return
	}
	var expiresIn time.Duration
	if exp, ok := session.AccessExpiry(user.Access); ok {
		expiresIn = time.Until(exp)
	}
	a.display.Done(user, session.TokenPreview(user.Access), expiresIn)
}

// print writes v to the command output, as JSON or through table.
func (a *app) print(v any, table func() string) error {
	if a.format == "json" {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(a.out, table())
	return err
}

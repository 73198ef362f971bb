package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-authgate/recruitctl/recruiting"
	"github.com/go-authgate/recruitctl/session"
	"github.com/go-authgate/recruitctl/tui"
)

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "recruitctl",
		Short: "Command line client for the HR recruiting platform",
		Long: `recruitctl signs in to the HR recruiting backend and works with its
dashboard, job positions and PRF/position requests.

The session is kept in an HTTP-only refresh cookie. With --remember the
cookie is saved in the state file so later runs stay signed in; expired
access tokens are refreshed transparently.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "Config file (default: ~/.recruitctl.yaml or RECRUITCTL_CONFIG env)")
	pf.StringVar(&g.serverURL, "server-url", "", "Backend URL (default: http://localhost:8000 or SERVER_URL env)")
	pf.StringVar(&g.stateFile, "state-file", "", "Session state file (default: ~/.recruitctl-state.json or STATE_FILE env)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: warn or LOG_LEVEL env)")
	pf.StringVar(&g.logFile, "log-file", "", "Write logs to this file (or LOG_FILE env)")
	pf.DurationVar(&g.timeout, "timeout", 0, "Per-request timeout (default: 15s or RECRUITCTL_TIMEOUT env)")
	pf.StringVarP(&g.output, "output", "o", "table", "Output format: table or json")
	pf.BoolVar(&g.plain, "plain", false, "Plain text status output even on a terminal")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch g.output {
		case "table", "json":
			return nil
		default:
			return fmt.Errorf("unknown output format %q (want table or json)", g.output)
		}
	}

	root.AddCommand(
		loginCmd(g),
		logoutCmd(g),
		whoamiCmd(g),
		dashboardCmd(g),
		positionsCmd(g),
		requestsCmd(g),
		positionCmd(g),
	)
	return root
}

func loginCmd(g *globalFlags) *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
		remember      bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in with email and password.

The password is read from --password, --password-stdin or the
RECRUITCTL_PASSWORD environment variable, in that order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := session.Credentials{
				Email:    getConfig(email, "RECRUITCTL_EMAIL", ""),
				Password: password,
				Remember: remember,
			}
			if creds.Email == "" {
				return errors.New("email is required: use --email or RECRUITCTL_EMAIL")
			}
			if creds.Password == "" && passwordStdin {
				p, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				creds.Password = p
			}
			creds.Password = getConfig(creds.Password, "RECRUITCTL_PASSWORD", "")
			if creds.Password == "" {
				return errors.New("password is required: use --password-stdin or RECRUITCTL_PASSWORD")
			}

			return runCommand(cmd.Context(), g, func(ctx context.Context, a *app) error {
				user, err := a.login(ctx, creds)
				if err != nil {
					return err
				}
				a.done(user)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (or RECRUITCTL_EMAIL env)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().BoolVarP(&remember, "remember", "r", false, "Stay signed in across runs")
	return cmd
}

// readPassword reads the first line of r.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func logoutCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), g, func(ctx context.Context, a *app) error {
				if err := a.logout(ctx); err != nil {
					return err
				}
				a.done(nil)
				return nil
			})
		},
	}
}

func whoamiCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), g, func(ctx context.Context, a *app) error {
				user, err := a.requireUser(ctx)
				if err != nil {
					return err
				}
				a.done(user)

				shown := user.Clone()
				shown.Access = ""
				return a.print(shown, func() string {
					return fmt.Sprintf("%s <%s>", user.Name(), user.Email)
				})
			})
		},
	}
}

func dashboardCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the recruiting dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), g, func(ctx context.Context, a *app) error {
				svc, err := a.service(ctx)
				if err != nil {
					return err
				}
				a.display.Working("Loading dashboard")
				d, err := svc.Dashboard(ctx)
				if err != nil {
					return err
				}
				a.done(a.sess.Store().User())
				return a.print(d, func() string { return tui.DashboardTable(d) })
			})
		},
	}
}

func positionsCmd(g *globalFlags) *cobra.Command {
	var filter recruiting.PositionFilter
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List job positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), g, func(ctx context.Context, a *app) error {
				svc, err := a.service(ctx)
				if err != nil {
					return err
				}
				a.display.Working("Loading positions")
				positions, err := svc.ListPositions(ctx, filter)
				if err != nil {
					return err
				}
				a.done(a.sess.Store().User())
				return a.print(positions, func() string { return tui.PositionsTable(positions) })
			})
		},
	}
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only positions with this status")
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "Search title and department")
	return cmd
}

func requestsCmd(g *globalFlags) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List PRF and position requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := recruiting.ParseRequestType(kind)
			if err != nil {
				return err
			}
			return runCommand(cmd.Context(), g, func(ctx context.Context, a *app) error {
				svc, err := a.service(ctx)
				if err != nil {
					return err
				}
				a.display.Working("Loading requests")
				requests, err := svc.ListRequests(ctx, t)
				if err != nil {
					return err
				}
				a.done(a.sess.Store().User())
				return a.print(requests, func() string { return tui.RequestsTable(requests) })
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", "", "Request type: prf or position (default: all)")
	return cmd
}

func positionCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Manage a single position",
	}
	cmd.AddCommand(positionCreateCmd(g))
	return cmd
}

func positionCreateCmd(g *globalFlags) *cobra.Command {
	var (
		file  string
		title string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a position from a YAML or JSON draft",
		Long: `Create a position from a YAML or JSON draft.

The draft holds the sections assembled by the create-position wizard
(basic details, description, application form, pipeline, assessments).
Only "title" is required; --title overrides it. Use --file - for stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := readDraft(cmd.InOrStdin(), file, title)
			if err != nil {
				return err
			}
			return runCommand(cmd.Context(), g, func(ctx context.Context, a *app) error {
				svc, err := a.service(ctx)
				if err != nil {
					return err
				}
				a.display.Working("Creating position")
				p, err := svc.CreatePosition(ctx, draft)
				if err != nil {
					return err
				}
				a.done(a.sess.Store().User())
				return a.print(p, func() string {
					return tui.PositionsTable([]recruiting.Position{*p})
				})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Draft file, or - for stdin")
	cmd.Flags().StringVar(&title, "title", "", "Position title")
	return cmd
}

// readDraft loads the draft from file (or stdin for "-") and applies title.
func readDraft(stdin io.Reader, file, title string) (recruiting.PositionDraft, error) {
	var draft recruiting.PositionDraft
	if file != "" {
		r := stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return draft, fmt.Errorf("failed to open draft: %w", err)
			}
			defer f.Close()
			r = f
		}
		var err error
		draft, err = recruiting.LoadDraft(r)
		if err != nil && !(errors.Is(err, recruiting.ErrTitleRequired) && title != "") {
			return draft, err
		}
	}
	if title != "" {
		draft.Title = title
	}
	return draft, draft.Validate()
}

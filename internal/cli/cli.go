// Package cli is the wayfarer command-line front end. It keeps the signed-in
// session in a session.Store backed by a token cache file, talks to the API
// through internal/client and evaluates the route gate locally.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/pkordes/wayfarer/internal/client"
	"github.com/pkordes/wayfarer/internal/logging"
	"github.com/pkordes/wayfarer/internal/session"
)

const defaultAPI = "http://localhost:8080"

// App holds the process environment. Zero fields fall back to the os values.
type App struct {
	Out    io.Writer
	Err    io.Writer
	HTTP   *http.Client
	Getenv func(string) string
}

// env is what a command runs against.
type env struct {
	out    io.Writer
	log    *slog.Logger
	client *client.Client
	cache  session.TokenCache
	store  *session.Store
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

func commands() []command {
	return []command{
		{"signup", "register a traveler or agency account", runSignUp},
		{"signin", "sign in with email and password", runSignIn},
		{"signout", "sign out (--scope local|others|global)", runSignOut},
		{"confirm", "confirm an email address with its token", runConfirm},
		{"whoami", "show the signed-in account", runWhoAmI},
		{"profile", "show or update your profile", runProfile},
		{"packages", "search the published catalogue", runPackages},
		{"book", "request a booking", runBook},
		{"bookings", "list your bookings", runBookings},
		{"open", "check whether you may open a path", runOpen},
		{"keepalive", "keep the cached session refreshed until interrupted", runKeepAlive},
	}
}

// usageError makes Run exit with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// Run executes one command and returns the process exit status.
func (a *App) Run(ctx context.Context, args []string) int {
	out, errw := a.Out, a.Err
	if out == nil {
		out = os.Stdout
	}
	if errw == nil {
		errw = os.Stderr
	}

	global := pflag.NewFlagSet("wayfarer", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(errw)
	api := global.String("api", a.getenv("WAYFARER_API", defaultAPI), "API base URL")
	cachePath := global.String("cache", a.getenv("WAYFARER_CACHE", ""), "session cache file (default: user config dir)")
	verbose := global.BoolP("verbose", "v", false, "log debug output")
	global.Usage = func() { printUsage(errw, global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(errw, global)
		return 2
	}
	cmd, ok := lookup(rest[0])
	if !ok {
		fmt.Fprintf(errw, "wayfarer: unknown command %q\n", rest[0])
		printUsage(errw, global)
		return 2
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logging.New(errw, level, "text")

	path := *cachePath
	if path == "" {
		p, err := session.DefaultCachePath()
		if err != nil {
			fmt.Fprintf(errw, "wayfarer: %v\n", err)
			return 1
		}
		path = p
	}

	c := client.New(*api, client.WithHTTPClient(a.HTTP), client.WithLogger(log))
	cache := session.NewFileTokenCache(path)
	store := session.New(c, c, cache,
		session.WithLogger(log),
		session.WithProfileRetry(2, 200*time.Millisecond),
	)
	defer store.Close()
	store.Initialize(ctx)
	if st := store.Snapshot(); st.Session != nil {
		c.Resume(*st.Session)
	}

	e := &env{out: out, log: log, client: c, cache: cache, store: store}
	if err := cmd.run(ctx, e, rest[1:]); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(errw, "wayfarer %s: %s\n", cmd.name, ue.msg)
			return 2
		}
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(errw, "wayfarer %s: %v\n", cmd.name, err)
		return 1
	}
	return 0
}

func (a *App) getenv(key, fallback string) string {
	get := a.Getenv
	if get == nil {
		get = os.Getenv
	}
	if v := get(key); v != "" {
		return v
	}
	return fallback
}

func lookup(name string) (command, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer, global *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: wayfarer [flags] <command> [command flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	cmds := commands()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })
	for _, c := range cmds {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	fmt.Fprint(w, global.FlagUsages())
}

// newFlagSet returns a subcommand flag set that reports errors instead of exiting.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse wraps flag errors as usage errors.
func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return usageError{msg: err.Error()}
	}
	return nil
}

func required(fs *pflag.FlagSet, names ...string) error {
	var missing []string
	for _, n := range names {
		if f := fs.Lookup(n); f == nil || f.Value.String() == "" {
			missing = append(missing, "--"+n)
		}
	}
	if len(missing) > 0 {
		return usagef("%s required", strings.Join(missing, ", "))
	}
	return nil
}

// requireSession returns the access token of the signed-in session.
func (e *env) requireSession() (string, error) {
	st := e.store.Snapshot()
	if !st.Authenticated() {
		return "", errors.New("not signed in; run `wayfarer signin` first")
	}
	return st.Session.AccessToken, nil
}

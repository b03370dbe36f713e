package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/wayfarer/internal/client"
	"github.com/pkordes/wayfarer/internal/domain"
	"github.com/pkordes/wayfarer/internal/gate"
	"github.com/pkordes/wayfarer/internal/session"
)

func runSignUp(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("signup")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	role := fs.String("role", string(domain.RoleTraveler), "traveler or agency")
	first := fs.String("first-name", "", "first name (contact person for agencies)")
	last := fs.String("last-name", "", "last name (contact person for agencies)")
	phone := fs.String("phone", "", "phone number")
	company := fs.String("company", "", "company name, required for agencies")
	description := fs.String("description", "", "agency description")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "email", "password"); err != nil {
		return err
	}

	sess, err := e.store.SignUp(ctx, session.SignUpRequest{
		Email:    *email,
		Password: *password,
		Role:     domain.Role(*role),
		Metadata: domain.SignUpMetadata{
			FirstName:   *first,
			LastName:    *last,
			Phone:       *phone,
			CompanyName: *company,
			Description: *description,
		},
	})
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Fprintln(e.out, "Check your inbox to confirm your email address, then sign in.")
		return nil
	}
	fmt.Fprintf(e.out, "Signed up as %s (%s). Continue at %s\n",
		sess.Account.Email, sess.Account.Role, gate.DefaultPath(sess.Account.Role))
	return nil
}

func runSignIn(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("signin")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	redirect := fs.String("redirect", "", "path you were sent away from")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "email", "password"); err != nil {
		return err
	}

	if _, err := e.store.SignIn(ctx, *email, *password); err != nil {
		return err
	}
	st := e.store.Snapshot()
	role, _ := gateSession(st).Role()
	fmt.Fprintf(e.out, "Signed in as %s (%s). Continue at %s\n",
		st.Account.Email, role, gate.ResolvePostAuthRedirect(role, *redirect))
	return nil
}

func runSignOut(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("signout")
	scope := fs.String("scope", "local", "local, others or global")
	if err := parse(fs, args); err != nil {
		return err
	}

	switch *scope {
	case "local":
		if err := e.store.SignOut(ctx); err != nil {
			e.log.WarnContext(ctx, "session not revoked on the server", "error", err)
		}
		fmt.Fprintln(e.out, "Signed out.")
		return nil
	case "others", "global":
		token, err := e.requireSession()
		if err != nil {
			return err
		}
		if err := e.client.SignOut(ctx, token, *scope); err != nil {
			return err
		}
		if *scope == "others" {
			fmt.Fprintln(e.out, "Signed out of all other sessions.")
			return nil
		}
		if err := e.cache.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "Signed out everywhere.")
		return nil
	}
	return usagef("unknown scope %q", *scope)
}

func runConfirm(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("confirm")
	token := fs.String("token", "", "confirmation token from the email")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "token"); err != nil {
		return err
	}
	acct, err := e.client.ConfirmEmail(ctx, *token)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Confirmed %s. You can sign in now.\n", acct.Email)
	return nil
}

func runWhoAmI(_ context.Context, e *env, args []string) error {
	if err := parse(newFlagSet("whoami"), args); err != nil {
		return err
	}
	st := e.store.Snapshot()
	if !st.Authenticated() {
		fmt.Fprintln(e.out, "Not signed in.")
		return nil
	}
	role, _ := gateSession(st).Role()
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "email\t%s\n", st.Account.Email)
	fmt.Fprintf(tw, "role\t%s\n", role)
	if st.Account.ConfirmedAt != nil {
		fmt.Fprintf(tw, "confirmed\t%s\n", st.Account.ConfirmedAt.Format(time.DateOnly))
	}
	if st.Profile != nil {
		fmt.Fprintf(tw, "name\t%s\n", displayName(*st.Profile))
	} else {
		fmt.Fprintln(tw, "profile\tnot created yet")
	}
	fmt.Fprintf(tw, "home\t%s\n", gate.DefaultPath(role))
	return tw.Flush()
}

func runProfile(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("profile")
	fields := map[string]*string{}
	for _, name := range []string{"first-name", "last-name", "phone", "avatar-url", "company", "description"} {
		fields[name] = fs.String(name, "", "set "+strings.ReplaceAll(name, "-", " "))
	}
	if err := parse(fs, args); err != nil {
		return err
	}
	if _, err := e.requireSession(); err != nil {
		return err
	}

	patch := domain.ProfilePatch{}
	changed := false
	set := func(name string, dst **string) {
		if fs.Changed(name) {
			*dst = fields[name]
			changed = true
		}
	}
	set("first-name", &patch.FirstName)
	set("last-name", &patch.LastName)
	set("phone", &patch.Phone)
	set("avatar-url", &patch.AvatarURL)
	set("company", &patch.CompanyName)
	set("description", &patch.Description)

	p := e.store.Snapshot().Profile
	if changed {
		var err error
		if p, err = e.store.UpdateProfile(ctx, patch); err != nil {
			return err
		}
	}
	if p == nil {
		fmt.Fprintln(e.out, "Your profile has not been created yet; try again shortly.")
		return nil
	}
	return printProfile(e, *p)
}

func printProfile(e *env, p domain.Profile) error {
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "role\t%s\n", p.Role)
	fmt.Fprintf(tw, "name\t%s\n", displayName(p))
	switch {
	case p.Traveler != nil:
		fmt.Fprintf(tw, "phone\t%s\n", p.Traveler.Phone)
	case p.Agency != nil:
		fmt.Fprintf(tw, "company\t%s\n", p.Agency.CompanyName)
		fmt.Fprintf(tw, "status\t%s\n", p.Agency.Status)
		fmt.Fprintf(tw, "verified\t%t\n", p.Agency.Verified)
		fmt.Fprintf(tw, "phone\t%s\n", p.Agency.Phone)
	}
	return tw.Flush()
}

func displayName(p domain.Profile) string {
	switch {
	case p.Traveler != nil:
		return strings.TrimSpace(p.Traveler.FirstName + " " + p.Traveler.LastName)
	case p.Agency != nil:
		return strings.TrimSpace(p.Agency.ContactFirstName + " " + p.Agency.ContactLastName)
	}
	return p.Email
}

func runPackages(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("packages")
	var f domain.PackageFilter
	fs.StringVar(&f.Search, "search", "", "match title, description or destination")
	fs.StringVar(&f.Destination, "destination", "", "destination contains")
	fs.StringVar(&f.Category, "category", "", "exact category")
	fs.StringVar(&f.Difficulty, "difficulty", "", "exact difficulty level")
	minPrice := fs.Float64("min-price", 0, "lowest base price")
	maxPrice := fs.Float64("max-price", 0, "highest base price")
	days := fs.Int("days", 0, "exact duration in days")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.Changed("min-price") {
		m := domain.MoneyFromFloat(*minPrice)
		f.MinPrice = &m
	}
	if fs.Changed("max-price") {
		m := domain.MoneyFromFloat(*maxPrice)
		f.MaxPrice = &m
	}
	if fs.Changed("days") {
		f.DurationDays = days
	}

	pkgs, err := e.client.ListPackages(ctx, f)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		fmt.Fprintln(e.out, "No packages match.")
		return nil
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDESTINATION\tDAYS\tPRICE")
	for _, p := range pkgs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Title, p.Destination, p.DurationDays, p.BasePrice)
	}
	return tw.Flush()
}

func runBook(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("book")
	pkg := fs.String("package", "", "package id")
	date := fs.String("date", "", "travel date, YYYY-MM-DD")
	participants := fs.Int("participants", 1, "number of participants")
	requests := fs.String("requests", "", "special requests")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "package", "date"); err != nil {
		return err
	}
	id, err := uuid.Parse(*pkg)
	if err != nil {
		return usagef("--package: %v", err)
	}
	if _, err := time.Parse(time.DateOnly, *date); err != nil {
		return usagef("--date must be YYYY-MM-DD")
	}
	token, err := e.requireSession()
	if err != nil {
		return err
	}

	b, err := e.client.CreateBooking(ctx, token, client.BookingInput{
		PackageID:       id,
		BookingDate:     *date,
		Participants:    *participants,
		SpecialRequests: *requests,
	})
	if errors.Is(err, domain.ErrAuthentication) || errors.Is(err, domain.ErrNotAuthenticated) {
		return fmt.Errorf("%w; sign in again", err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Booking %s requested: %d participant(s), total %s, status %s\n",
		b.ID, b.Participants, b.TotalPrice, b.Status)
	return nil
}

func runBookings(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlagSet("bookings"), args); err != nil {
		return err
	}
	token, err := e.requireSession()
	if err != nil {
		return err
	}
	list, err := e.client.ListBookings(ctx, token)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(e.out, "No bookings yet.")
		return nil
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPACKAGE\tDATE\tPAX\tTOTAL\tSTATUS\tPAYMENT")
	for _, b := range list {
		title := b.PackageTitle
		if title == "" {
			title = b.PackageID.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			b.ID, title, b.BookingDate.Format(time.DateOnly), b.Participants, b.TotalPrice, b.Status, b.PaymentStatus)
	}
	return tw.Flush()
}

// runOpen evaluates the route gate for a path against the local session.
// The required role comes from the path's area unless --role is given.
func runOpen(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("open")
	role := fs.String("role", "", "role the page requires (default: from the path)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected exactly one path")
	}
	path := fs.Arg(0)
	need := domain.Role(*role)
	if need == "" {
		need = areaRole(path)
	}
	if !need.Valid() {
		return usagef("unknown role %q", *role)
	}

	d := gate.Decide(gateSession(e.store.Snapshot()), need, path)
	switch d.Outcome {
	case gate.Allow:
		fmt.Fprintf(e.out, "allow %s\n", path)
	case gate.Wait:
		fmt.Fprintln(e.out, "wait")
	default:
		fmt.Fprintf(e.out, "%s %s\n", d.Outcome, d.Location())
	}
	return nil
}

// areaRole maps a path to the role whose area it lies in.
func areaRole(path string) domain.Role {
	switch {
	case strings.HasPrefix(path, "/admin"):
		return domain.RoleAdmin
	case strings.HasPrefix(path, "/travel_agency"):
		return domain.RoleAgency
	}
	return domain.RoleTraveler
}

func gateSession(st session.State) gate.Session {
	return gate.Session{Loading: st.Loading, Account: st.Account, Profile: st.Profile}
}

// runKeepAlive refreshes the session ahead of expiry until ctx is cancelled.
// Refreshed tokens reach the cache through the store, so other wayfarer
// invocations keep working.
func runKeepAlive(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("keepalive")
	leeway := fs.Duration("leeway", 2*time.Minute, "refresh this long before the access token expires")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *leeway <= 0 {
		return usagef("--leeway must be positive")
	}
	if _, err := e.requireSession(); err != nil {
		return err
	}

	states, stop := e.store.Subscribe()
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.client.AutoRefresh(ctx, *leeway)
	}()
	defer func() {
		cancel()
		<-done
	}()

	var expires time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			if !st.Authenticated() {
				return errors.New("session ended; run `wayfarer signin` again")
			}
			if st.Session == nil {
				continue
			}
			switch {
			case expires.IsZero():
				fmt.Fprintf(e.out, "Keeping the session for %s fresh. Press Ctrl-C to stop.\n", st.Account.Email)
			case !st.Session.ExpiresAt.Equal(expires):
				fmt.Fprintf(e.out, "Session refreshed; valid until %s\n", st.Session.ExpiresAt.Format(time.RFC3339))
			}
			expires = st.Session.ExpiresAt
		}
	}
}

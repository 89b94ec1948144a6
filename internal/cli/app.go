package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/epetrov/studyvault/internal/asset"
	"github.com/epetrov/studyvault/internal/common"
	"github.com/epetrov/studyvault/internal/identity"
	"github.com/epetrov/studyvault/internal/logging"
	"github.com/epetrov/studyvault/internal/models"
)

const signedURLValidity = 15 * time.Minute

// App binds the session manager and the upload pipeline to the interactive
// shell.
type App struct {
	sessions *identity.Manager
	assets   *asset.Pipeline
	logger   logging.Logger

	reader *bufio.Reader
	out    io.Writer

	mu         sync.Mutex
	lastListed []*models.AssetRecord
}

// NewApp constructs the shell application reading from reader and writing
// to out. The same reader must be handed to RunShell.
func NewApp(sessions *identity.Manager, assets *asset.Pipeline, logger logging.Logger, reader *bufio.Reader, out io.Writer) *App {
	return &App{
		sessions: sessions,
		assets:   assets,
		logger:   logger.With("module", "cli"),
		reader:   reader,
		out:      out,
	}
}

func (a *App) isLoggedIn() bool {
	return a.sessions.CurrentUser() != nil
}

// status renders the prompt segment: the display name with a degraded
// marker, or "guest".
func (a *App) status() string {
	user := a.sessions.CurrentUser()
	if user == nil {
		return "guest"
	}
	name := user.DisplayName
	if name == "" {
		name = user.Email
	}
	if user.Degraded() {
		return name + " (profile incomplete)"
	}
	return name
}

// WatchSession prints session phase transitions until ctx is done.
func (a *App) WatchSession(ctx context.Context) {
	ch, cancel := a.sessions.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(a.out, "[session] %s\n", s.Phase)
		}
	}
}

// Login prompts for credentials and authenticates. The merged profile
// arrives asynchronously; the command returns as soon as the credentials
// are validated.
func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email:", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	if err := a.sessions.Login(ctx, email, password); err != nil {
		fmt.Fprintln(a.out, loginErrorMessage(err))
		return err
	}

	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return "Wrong email or password."
	case errors.Is(err, common.ErrRateLimited):
		return "Too many attempts, try again in a minute."
	case errors.Is(err, common.ErrEmailTaken):
		return "That email is already registered."
	case errors.Is(err, common.ErrProviderUnavailable):
		return "Sign-in service is unavailable, try again later."
	default:
		return "Login failed: " + err.Error()
	}
}

// Signup prompts for credentials plus the profile seed and registers. A
// profile-step failure is reported as a partial success, not a signup
// failure: the account exists and the profile can be finished later.
func (a *App) Signup(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email:", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	name, err := GetSimpleText(a.reader, "Display name:", a.out)
	if err != nil {
		return err
	}
	class, err := GetSimpleText(a.reader, "Class:", a.out)
	if err != nil {
		return err
	}
	yearText, err := GetSimpleText(a.reader, "Target year:", a.out)
	if err != nil {
		return err
	}
	year, _ := strconv.Atoi(yearText)

	outcome, err := a.sessions.Signup(ctx, email, password,
		models.ProfileSeed{DisplayName: name, Class: class, TargetYear: year})
	if err != nil {
		fmt.Fprintln(a.out, loginErrorMessage(err))
		return err
	}

	if !outcome.ProfileCreated {
		fmt.Fprintln(a.out, "Account created, but profile setup failed. Run profile to finish it.")
		return nil
	}
	fmt.Fprintln(a.out, "Account created.")
	return nil
}

// Logout tears down the session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.sessions.Logout(ctx); err != nil {
		fmt.Fprintln(a.out, "Logout failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// WhoAmI prints the reconciled user.
func (a *App) WhoAmI(ctx context.Context) error {
	user := a.sessions.CurrentUser()
	if user == nil {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}

	fmt.Fprintf(a.out, "%s <%s>\n", user.DisplayName, user.Email)
	if user.Degraded() {
		fmt.Fprintln(a.out, "Profile: incomplete (using account defaults)")
		return nil
	}
	fmt.Fprintf(a.out, "Class: %s, target year: %d\n", user.Class, user.TargetYear)
	return nil
}

// Profile prompts for profile changes; empty answers keep the stored value.
func (a *App) Profile(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Log in first.")
		return common.ErrNotAuthenticated
	}

	var patch models.ProfilePatch

	if name, err := GetSimpleText(a.reader, "Display name (empty to keep):", a.out); err != nil {
		return err
	} else if name != "" {
		patch.DisplayName = &name
	}
	if class, err := GetSimpleText(a.reader, "Class (empty to keep):", a.out); err != nil {
		return err
	} else if class != "" {
		patch.Class = &class
	}
	if yearText, err := GetSimpleText(a.reader, "Target year (empty to keep):", a.out); err != nil {
		return err
	} else if yearText != "" {
		if year, convErr := strconv.Atoi(yearText); convErr == nil {
			patch.TargetYear = &year
		}
	}

	if err := a.sessions.UpdateProfile(ctx, patch); err != nil {
		fmt.Fprintln(a.out, "Profile update failed:", err)
		return err
	}
	fmt.Fprintln(a.out, "Profile updated.")
	return nil
}

// Upload reads the named files and stores them as one batch. Files succeed
// and fail independently.
func (a *App) Upload(ctx context.Context, paths []string) error {
	user := a.sessions.CurrentUser()
	if user == nil {
		fmt.Fprintln(a.out, "Log in first.")
		return common.ErrNotAuthenticated
	}
	if len(paths) == 0 {
		fmt.Fprintln(a.out, "Usage: upload <file> [file...]")
		return nil
	}

	var files []models.UploadFile
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(a.out, "skipping %s: %v\n", p, err)
			continue
		}
		files = append(files, models.UploadFile{
			Name:        filepath.Base(p),
			ContentType: mime.TypeByExtension(filepath.Ext(p)),
			Data:        data,
		})
	}
	if len(files) == 0 {
		return nil
	}

	tasks := a.assets.Upload(ctx, user.Identity, files, func(t models.UploadTask) {
		fmt.Fprintf(a.out, "  %s: %s (%d%%)\n", t.FileName, t.Phase, t.Percent)
	})

	for _, t := range tasks {
		if t.Err != nil {
			fmt.Fprintf(a.out, "%s failed: %v\n", t.FileName, t.Err)
			continue
		}
		fmt.Fprintf(a.out, "%s stored.\n", t.FileName)
	}
	return nil
}

// List prints the user's assets, most recent first, and remembers the
// listing so rm/url can refer to entries by number.
func (a *App) List(ctx context.Context) error {
	user := a.sessions.CurrentUser()
	if user == nil {
		fmt.Fprintln(a.out, "Log in first.")
		return common.ErrNotAuthenticated
	}

	records, err := a.assets.ListAssets(ctx, user.Identity)
	if err != nil {
		fmt.Fprintln(a.out, "Listing failed:", err)
		return err
	}

	a.mu.Lock()
	a.lastListed = records
	a.mu.Unlock()

	if len(records) == 0 {
		fmt.Fprintln(a.out, "No assets.")
		return nil
	}
	for i, rec := range records {
		fmt.Fprintf(a.out, "%3d. %s (%s, %s) %s\n",
			i+1, rec.FileName, rec.Kind, rec.SizeText, rec.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// listedRecord resolves a 1-based index from the last listing.
func (a *App) listedRecord(arg string) (*models.AssetRecord, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", arg)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if n < 1 || n > len(a.lastListed) {
		return nil, fmt.Errorf("no such entry: %d (run list first)", n)
	}
	return a.lastListed[n-1], nil
}

// RemoveAsset deletes one asset by listing number. A failed removal leaves
// the asset fully present.
func (a *App) RemoveAsset(ctx context.Context, arg string) error {
	rec, err := a.listedRecord(arg)
	if err != nil {
		fmt.Fprintln(a.out, err)
		return err
	}

	if err := a.assets.Remove(ctx, rec); err != nil {
		fmt.Fprintf(a.out, "Removal of %s did not happen: %v\n", rec.FileName, err)
		return err
	}
	fmt.Fprintf(a.out, "%s removed.\n", rec.FileName)
	return nil
}

// AssetURL prints a signed read URL for one asset by listing number.
func (a *App) AssetURL(ctx context.Context, arg string) error {
	rec, err := a.listedRecord(arg)
	if err != nil {
		fmt.Fprintln(a.out, err)
		return err
	}

	url, err := a.assets.SignedReadURL(ctx, rec, signedURLValidity)
	if err != nil {
		if errors.Is(err, common.ErrRecordNotFound) {
			fmt.Fprintf(a.out, "%s has no stored blob.\n", rec.FileName)
		} else {
			fmt.Fprintln(a.out, "URL failed:", err)
		}
		return err
	}
	fmt.Fprintln(a.out, url)
	return nil
}

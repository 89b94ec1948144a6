package identity

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/epetrov/studyvault/internal/common"
	"github.com/epetrov/studyvault/internal/config"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

func newTestProvider(t *testing.T) (*PostgresProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{SecretKey: "test-secret", SessionTokenValidityDuration: time.Minute}
	return NewPostgresProvider(db, cfg, testLogger()), mock
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func TestPostgresProvider_SignIn(t *testing.T) {
	p, mock := newTestProvider(t)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "avatar_url"}).
		AddRow("id-1", "a@x.com", hashFor(t, "pw"), "Name", "avatar.png")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, display_name, avatar_url FROM users")).
		WithArgs("a@x.com").
		WillReturnRows(rows)

	ident, err := p.SignIn(context.Background(), "a@x.com", "pw")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if ident.ID != "id-1" || ident.Name != "Name" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
	if p.SessionToken() == "" {
		t.Fatal("expected a session token")
	}

	select {
	case ev := <-p.Events():
		if ev.Kind != EventSignedIn || ev.Identity == nil || ev.Identity.ID != "id-1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a signed-in event")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresProvider_SignIn_WrongPassword(t *testing.T) {
	p, mock := newTestProvider(t)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "avatar_url"}).
		AddRow("id-1", "a@x.com", hashFor(t, "right"), "Name", "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, display_name, avatar_url FROM users")).
		WithArgs("a@x.com").
		WillReturnRows(rows)

	_, err := p.SignIn(context.Background(), "a@x.com", "wrong")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestPostgresProvider_SignIn_UnknownEmail(t *testing.T) {
	p, mock := newTestProvider(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, display_name, avatar_url FROM users")).
		WithArgs("nobody@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "avatar_url"}))

	_, err := p.SignIn(context.Background(), "nobody@x.com", "pw")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("unknown email must look like wrong credentials, got %v", err)
	}
}

func TestPostgresProvider_SignIn_RateLimited(t *testing.T) {
	p, mock := newTestProvider(t)

	for i := 0; i < signInAttemptLimit; i++ {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, display_name, avatar_url FROM users")).
			WithArgs("a@x.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "avatar_url"}))

		if _, err := p.SignIn(context.Background(), "a@x.com", "pw"); !errors.Is(err, common.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := p.SignIn(context.Background(), "a@x.com", "pw")
	if !errors.Is(err, common.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestPostgresProvider_SignUp(t *testing.T) {
	p, mock := newTestProvider(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("b@x.com", sqlmock.AnyArg(), "B Name", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-2"))

	name := "B Name"
	ident, err := p.SignUp(context.Background(), "b@x.com", "pw", Metadata{Name: &name})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if ident.ID != "id-2" || ident.Email != "b@x.com" {
		t.Fatalf("unexpected identity: %+v", ident)
	}

	select {
	case ev := <-p.Events():
		if ev.Kind != EventSignedIn {
			t.Fatalf("unexpected event kind: %v", ev.Kind)
		}
	default:
		t.Fatal("expected a signed-in event")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresProvider_SignUp_EmailTaken(t *testing.T) {
	p, mock := newTestProvider(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err := p.SignUp(context.Background(), "b@x.com", "pw", Metadata{})
	if !errors.Is(err, common.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestPostgresProvider_SignOut_EmitsEvent(t *testing.T) {
	p, _ := newTestProvider(t)

	if err := p.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if p.SessionToken() != "" {
		t.Fatal("expected token cleared")
	}

	select {
	case ev := <-p.Events():
		if ev.Kind != EventSignedOut || ev.Identity != nil {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a signed-out event")
	}
}

func TestPostgresProvider_UpdateMetadata(t *testing.T) {
	p, mock := newTestProvider(t)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "avatar_url"}).
		AddRow("id-1", "a@x.com", hashFor(t, "pw"), "Old", "")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, display_name, avatar_url FROM users")).
		WithArgs("a@x.com").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET display_name = $2, avatar_url = $3")).
		WithArgs("id-1", "New", "new.png").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := p.SignIn(context.Background(), "a@x.com", "pw"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	<-p.Events()

	name, avatar := "New", "new.png"
	if err := p.UpdateMetadata(context.Background(), Metadata{Name: &name, AvatarURL: &avatar}); err != nil {
		t.Fatalf("update metadata: %v", err)
	}

	select {
	case ev := <-p.Events():
		if ev.Kind != EventMetadataUpdated || ev.Identity.Name != "New" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a metadata-updated event")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresProvider_UpdateMetadata_NotAuthenticated(t *testing.T) {
	p, _ := newTestProvider(t)

	name := "x"
	err := p.UpdateMetadata(context.Background(), Metadata{Name: &name})
	if !errors.Is(err, common.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

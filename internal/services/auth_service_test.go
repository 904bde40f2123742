package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/repository"
	"restaurant_ordering/pkg/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User
	nextID uint
	// pending is the pending repo PromotePending removes rows from.
	pending *fakePendingRepo
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	r.nextID++
	user.ID = r.nextID
	cp := *user
	r.users[user.Username] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r *fakeUserRepo) TouchLastLogin(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			u.LastLogin = &at
		}
	}
	return nil
}

func (r *fakeUserRepo) PromotePending(ctx context.Context, user *models.User, pendingID uint) error {
	if err := r.Create(ctx, user); err != nil {
		return err
	}
	return r.pending.Delete(ctx, pendingID)
}

type fakePendingRepo struct {
	mu     sync.Mutex
	rows   map[uint]*models.PendingUser
	nextID uint
}

func (r *fakePendingRepo) Create(_ context.Context, p *models.PendingUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Username == p.Username {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	p.ID = r.nextID
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *fakePendingRepo) GetByToken(_ context.Context, token string) (*models.PendingUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.VerificationToken == token {
			cp := *row
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakePendingRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePendingRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *fakePendingRepo) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.VerificationToken == token {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *fakePendingRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, row := range r.rows {
		if row.TokenExpiry.Before(now) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *fakePendingRepo) only(t *testing.T) *models.PendingUser {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.rows, 1)
	for _, row := range r.rows {
		return row
	}
	return nil
}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) (*mailer.SendEmailResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, msg)
	return &mailer.SendEmailResponse{MessageID: "1"}, nil
}

type fakeIssuer struct {
	lastBranch *uint
}

func (f *fakeIssuer) Issue(user *models.User, branchID *uint) (string, error) {
	f.lastBranch = branchID
	return "token-for-" + user.Username, nil
}

type authFixture struct {
	svc     *authService
	users   *fakeUserRepo
	pending *fakePendingRepo
	mail    *fakeMailer
	issuer  *fakeIssuer
}

func newAuthFixture() *authFixture {
	pending := &fakePendingRepo{rows: map[uint]*models.PendingUser{}}
	users := &fakeUserRepo{users: map[string]*models.User{}, pending: pending}
	branches := newFakeBranchRepo(
		models.Branch{ID: branchIST, Code: "IST", Active: true},
		models.Branch{ID: branchMLA, Code: "MLA", Active: true},
	)
	mail := &fakeMailer{}
	issuer := &fakeIssuer{}
	svc := NewAuthService(users, pending, branches, issuer, mail, AuthSettings{
		FrontendURL:     "https://shop.example/",
		VerificationTTL: 72 * time.Hour,
	}, quietLogger()).(*authService)
	return &authFixture{svc: svc, users: users, pending: pending, mail: mail, issuer: issuer}
}

func (f *authFixture) addUser(t *testing.T, username, password string, role models.UserRole, branchID *uint) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), &models.User{
		Username: username, PasswordHash: string(hash), Role: string(role), BranchID: branchID, Active: true,
	}))
}

func TestRegisterCreatesPendingUserAndSendsLink(t *testing.T) {
	f := newAuthFixture()
	err := f.svc.Register(context.Background(), RegisterInput{FullName: " Ada  Lovelace King ", Username: "ada@example.com", Password: "pw"})
	require.NoError(t, err)

	row := f.pending.only(t)
	assert.Len(t, row.VerificationToken, 64)
	assert.Equal(t, "Ada", *row.Name)
	assert.Equal(t, "Lovelace King", *row.Surname)
	assert.NotEqual(t, "pw", row.PasswordHash)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), row.TokenExpiry, time.Minute)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "ada@example.com", f.mail.sent[0].To.Email)
	assert.Contains(t, f.mail.sent[0].Text, "https://shop.example/verify?token="+row.VerificationToken)
}

func TestRegisterValidation(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.addUser(t, "taken@example.com", "pw", models.RoleCustomer, nil)

	requireKind(t, f.svc.Register(ctx, RegisterInput{Username: "x@example.com", Password: "pw"}), KindValidation)
	requireKind(t, f.svc.Register(ctx, RegisterInput{FullName: "A", Username: "ab", Password: "pw"}), KindValidation)
	requireKind(t, f.svc.Register(ctx, RegisterInput{FullName: "A", Username: "taken@example.com", Password: "pw"}), KindValidation)

	require.NoError(t, f.svc.Register(ctx, RegisterInput{FullName: "A", Username: "new@example.com", Password: "pw"}))
	requireKind(t, f.svc.Register(ctx, RegisterInput{FullName: "A", Username: "new@example.com", Password: "pw"}), KindValidation)
}

func TestRegisterRemovesPendingRowWhenMailFails(t *testing.T) {
	f := newAuthFixture()
	f.mail.err = errors.New("smtp down")

	err := f.svc.Register(context.Background(), RegisterInput{FullName: "A B", Username: "ab@example.com", Password: "pw"})
	require.Error(t, err)
	assert.Zero(t, KindOf(err))
	assert.Empty(t, f.pending.rows)
}

func TestVerifyPromotesPendingUser(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, RegisterInput{FullName: "Ada", Username: "ada@example.com", Password: "pw"}))
	token := f.pending.only(t).VerificationToken

	require.NoError(t, f.svc.Verify(ctx, token))
	assert.Empty(t, f.pending.rows)

	user, err := f.users.GetByUsername(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, string(models.RoleCustomer), user.Role)
	assert.Nil(t, user.BranchID)

	requireKind(t, f.svc.Verify(ctx, token), KindValidation)
	requireKind(t, f.svc.Verify(ctx, ""), KindValidation)
}

func TestVerifyExpiredTokenDropsRow(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, RegisterInput{FullName: "Ada", Username: "ada@example.com", Password: "pw"}))
	token := f.pending.only(t).VerificationToken

	f.svc.now = func() time.Time { return time.Now().Add(73 * time.Hour) }
	err := f.svc.Verify(ctx, token)
	requireKind(t, err, KindValidation)
	assert.Contains(t, err.Error(), "expired")
	assert.Empty(t, f.pending.rows)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.addUser(t, "chef@example.com", "secret", models.RoleStaff, uintPtr(branchIST))
	f.addUser(t, "boss@example.com", "secret", models.RoleAdmin, nil)

	res, err := f.svc.Login(ctx, LoginInput{Username: "chef@example.com", Password: "secret", BranchID: branchIST})
	require.NoError(t, err)
	assert.Equal(t, "token-for-chef@example.com", res.Token)
	assert.NotNil(t, res.User.LastLogin)
	require.NotNil(t, f.issuer.lastBranch)
	assert.Equal(t, branchIST, *f.issuer.lastBranch)

	_, err = f.svc.Login(ctx, LoginInput{Username: "chef@example.com", Password: "nope", BranchID: branchIST})
	requireKind(t, err, KindUnauthorized)

	_, err = f.svc.Login(ctx, LoginInput{Username: "chef@example.com", Password: "secret", BranchID: branchMLA})
	requireKind(t, err, KindForbidden)

	_, err = f.svc.Login(ctx, LoginInput{Username: "boss@example.com", Password: "secret", BranchID: branchMLA})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, LoginInput{Username: "ghost@example.com", Password: "x", BranchID: branchIST})
	requireKind(t, err, KindNotFound)

	_, err = f.svc.Login(ctx, LoginInput{Username: "chef@example.com", Password: "secret"})
	requireKind(t, err, KindValidation)

	_, err = f.svc.Login(ctx, LoginInput{Username: "chef@example.com", Password: "secret", BranchID: 42})
	requireKind(t, err, KindValidation)
}

func TestLoginWhilePending(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, RegisterInput{FullName: "Ada", Username: "ada@example.com", Password: "pw"}))

	_, err := f.svc.Login(ctx, LoginInput{Username: "ada@example.com", Password: "pw", BranchID: branchIST})
	requireKind(t, err, KindForbidden)
}

func TestPurgeExpired(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, RegisterInput{FullName: "Ada", Username: "ada@example.com", Password: "pw"}))

	n, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.now = func() time.Time { return time.Now().Add(100 * time.Hour) }
	n, err = f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

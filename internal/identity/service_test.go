package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/acaifrutal/storefront-backend/pkg/auth/session"
	"github.com/acaifrutal/storefront-backend/pkg/config"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	pkgredis "github.com/acaifrutal/storefront-backend/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (Service, *Stream) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Account{}))

	mr := miniredis.RunT(t)
	sessions, err := session.NewManager(pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})))
	require.NoError(t, err)

	stream := NewStream(logger.Nop())
	svc, err := NewService(ServiceParams{
		Accounts: NewAccountRepository(conn),
		Sessions: sessions,
		Stream:   stream,
		JWT:      config.JWTConfig{Secret: "secret", Issuer: "acai", ExpirationMinutes: 60, AnonExpirationMinutes: 120},
		Password: config.PasswordConfig{
			ArgonMemoryKB: 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32,
		},
		AdminEmail: "Dono@Acai.com",
		Scope:      "acai-test",
	})
	require.NoError(t, err)
	return svc, stream
}

func TestSignInAnonymousIssuesResolvableToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.SignInAnonymous(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Identity.Anonymous)
	assert.False(t, sess.Identity.Authenticated())

	who, err := svc.Resolve(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.Identity.ID, who.ID)
	assert.True(t, who.Anonymous)
	assert.NotEmpty(t, who.SessionID)
}

func TestRegisterAndSignInEmitTransitionFromAnonymous(t *testing.T) {
	svc, stream := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transitions := stream.Subscribe(ctx)

	anon, err := svc.SignInAnonymous(ctx)
	require.NoError(t, err)

	reg, err := svc.Register(ctx, RegisterInput{Email: " Ana@Example.com ", Password: "segredo1", Name: "Ana", PreviousToken: anon.AccessToken})
	require.NoError(t, err)
	require.NotNil(t, reg.Transition)
	assert.Equal(t, anon.Identity.ID, reg.Transition.From)
	assert.Equal(t, reg.Identity.ID, reg.Transition.To)
	assert.Equal(t, "ana@example.com", reg.Identity.Email)
	assert.False(t, reg.Identity.Admin)

	select {
	case got := <-transitions:
		assert.Equal(t, *reg.Transition, got)
	case <-time.After(time.Second):
		t.Fatal("expected a published transition")
	}

	_, err = svc.Resolve(ctx, anon.AccessToken)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized), "anonymous session should be revoked")

	// signing in from an authenticated token is not a transition
	again, err := svc.SignIn(ctx, "ana@example.com", "segredo1", reg.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, again.Transition)
	assert.Equal(t, reg.Identity.ID, again.Identity.ID)
}

func TestRegisterValidationAndConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "segredo1"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "123"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "segredo1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "A@B.com", Password: "segredo2"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "segredo1"})
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "a@b.com", "errado00", "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	_, err = svc.SignIn(ctx, "ninguem@b.com", "segredo1", "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	_, err = svc.SignIn(ctx, "a@b.com", "segredo1", "garbage-token")
	assert.NoError(t, err, "an unparsable previous token is ignored")
}

func TestAdminFlagFollowsConfiguredEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Email: "dono@acai.com", Password: "segredo1"})
	require.NoError(t, err)
	assert.True(t, res.Identity.Admin)

	who, err := svc.Resolve(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.True(t, who.Admin)
}

func TestSignOutRevokesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	res, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "segredo1"})
	require.NoError(t, err)

	who, err := svc.Resolve(ctx, res.AccessToken)
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(ctx, who))

	_, err = svc.Resolve(ctx, res.AccessToken)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	assert.True(t, pkgerrors.HasCode(svc.SignOut(ctx, Identity{ID: "x"}), pkgerrors.CodeUnauthorized))
}

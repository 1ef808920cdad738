package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oculab/retinagrade/internal/app/models"
	"github.com/oculab/retinagrade/internal/pkg/config"
)

// MockUserRepo is a mock implementation of the UserRepo interface
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Exists(ctx context.Context, usernameOrEmail string) (bool, error) {
	args := m.Called(ctx, usernameOrEmail)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepo) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepo) Create(ctx context.Context, username, email, hashedPassword string) (string, error) {
	args := m.Called(ctx, username, email, hashedPassword)
	return args.String(0), args.Error(1)
}

func (m *MockUserRepo) Degraded() bool {
	args := m.Called()
	return args.Bool(0)
}

func testConfig() *config.Config {
	cfg, _ := config.Load()
	cfg.JWT.SecretKey = "test-secret-key"
	return cfg
}

func TestLogin(t *testing.T) {
	mockRepo := new(MockUserRepo)
	logger := zap.NewNop()
	service := NewAuthService(mockRepo, testConfig(), logger)

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		password := "password123"
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		require.NoError(t, err)

		user := &models.User{
			ID:       "user123",
			Username: "testuser",
			Email:    "test@example.com",
			Password: string(hashedPassword),
		}

		mockRepo.On("FindByIdentifier", ctx, "testuser").Return(user, nil).Once()

		got, err := service.Login(ctx, "testuser", password)

		assert.NoError(t, err)
		assert.Equal(t, "testuser", got.Username)
		mockRepo.AssertExpectations(t)
	})

	t.Run("LoginByEmailMatchesSameUser", func(t *testing.T) {
		ctx := context.Background()
		password := "pw"
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		require.NoError(t, err)

		user := &models.User{
			ID:       "user456",
			Username: "bob",
			Email:    "b@x.com",
			Password: string(hashedPassword),
		}

		// The registry resolves username and email identically.
		mockRepo.On("FindByIdentifier", ctx, "b@x.com").Return(user, nil).Once()
		mockRepo.On("FindByIdentifier", ctx, "bob").Return(user, nil).Once()

		byEmail, err := service.Login(ctx, "b@x.com", password)
		assert.NoError(t, err)
		byUsername, err := service.Login(ctx, "bob", password)
		assert.NoError(t, err)
		assert.Equal(t, byEmail, byUsername)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UserNotFound", func(t *testing.T) {
		ctx := context.Background()

		mockRepo.On("FindByIdentifier", ctx, "nobody").Return(nil, models.ErrNotFound).Once()

		got, err := service.Login(ctx, "nobody", "password123")

		assert.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})

	t.Run("InvalidPassword", func(t *testing.T) {
		ctx := context.Background()
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("correctpassword"), bcrypt.DefaultCost)
		require.NoError(t, err)

		user := &models.User{
			ID:       "user123",
			Username: "testuser",
			Email:    "test@example.com",
			Password: string(hashedPassword),
		}

		mockRepo.On("FindByIdentifier", ctx, "testuser").Return(user, nil).Once()

		got, err := service.Login(ctx, "testuser", "wrongpassword")

		assert.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})
}

func TestRegister(t *testing.T) {
	mockRepo := new(MockUserRepo)
	logger := zap.NewNop()
	service := NewAuthService(mockRepo, testConfig(), logger)

	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()

		mockRepo.On("Exists", ctx, "alice").Return(false, nil).Once()
		mockRepo.On("Create", ctx, "alice", "a@x.com", mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) {
				// The repository must never see the raw password.
				hashed := args.String(3)
				assert.NotEqual(t, "p", hashed)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hashed), []byte("p")))
			}).
			Return("user789", nil).Once()

		userID, err := service.Register(ctx, "alice", "a@x.com", "p")

		assert.NoError(t, err)
		assert.Equal(t, "user789", userID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UsernameConflict", func(t *testing.T) {
		ctx := context.Background()

		// The rejected registration never reaches Create, so registry
		// state cannot change.
		mockRepo.On("Exists", ctx, "alice").Return(true, nil).Once()

		userID, err := service.Register(ctx, "alice", "other@x.com", "q")

		assert.Error(t, err)
		assert.Empty(t, userID)
		assert.ErrorIs(t, err, models.ErrConflict)
		mockRepo.AssertNotCalled(t, "Create", ctx, "alice", "other@x.com", mock.AnythingOfType("string"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("ConcurrentRacerConflictFromCreate", func(t *testing.T) {
		ctx := context.Background()

		mockRepo.On("Exists", ctx, "carol").Return(false, nil).Once()
		mockRepo.On("Create", ctx, "carol", "c@x.com", mock.AnythingOfType("string")).
			Return("", models.ErrConflict).Once()

		userID, err := service.Register(ctx, "carol", "c@x.com", "q")

		assert.Error(t, err)
		assert.Empty(t, userID)
		assert.ErrorIs(t, err, models.ErrConflict)
		mockRepo.AssertExpectations(t)
	})
}

func TestFallbackMode(t *testing.T) {
	logger := zap.NewNop()
	repo := NewFallbackUserRepo(logger)
	service := NewAuthService(repo, testConfig(), logger)

	t.Run("DegradedIsObservable", func(t *testing.T) {
		assert.True(t, repo.Degraded())
		assert.True(t, service.Degraded())
	})

	t.Run("DemoLogin", func(t *testing.T) {
		user, err := service.Login(context.Background(), "admin", "admin")
		assert.NoError(t, err)
		assert.Equal(t, "admin", user.Username)
	})

	t.Run("DemoLoginByEmail", func(t *testing.T) {
		user, err := service.Login(context.Background(), "admin@example.com", "admin")
		assert.NoError(t, err)
		assert.Equal(t, "admin", user.Username)
	})

	t.Run("DemoLoginWrongPassword", func(t *testing.T) {
		user, err := service.Login(context.Background(), "admin", "wrong")
		assert.Error(t, err)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})

	t.Run("RegistrationIsNoOpSuccess", func(t *testing.T) {
		userID, err := service.Register(context.Background(), "alice", "a@x.com", "p")
		assert.NoError(t, err)
		assert.NotEmpty(t, userID)

		// The simulated registration never creates a usable account.
		user, err := service.Login(context.Background(), "alice", "p")
		assert.Error(t, err)
		assert.Nil(t, user)
	})

	t.Run("ExistsMatchesDemoIdentityOnly", func(t *testing.T) {
		ok, err := repo.Exists(context.Background(), "admin")
		assert.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Exists(context.Background(), "someone-else")
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPostgresRepoNotDegraded(t *testing.T) {
	repo := NewPostgresUserRepo(nil, 0, zap.NewNop())
	assert.False(t, repo.Degraded())
}

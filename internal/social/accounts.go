package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/models"
	"github.com/socialnet/network/pkg/logging"
	"github.com/socialnet/network/pkg/telemetry"
)

// Profile is the header shown above an account's feed
type Profile struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Followers   int64  `json:"followers"`
	Following   int64  `json:"following"`
	IsFollowing bool   `json:"is_following"`
	IsSelf      bool   `json:"is_self"`
}

// AccountDirectory registers, authenticates and looks up accounts
type AccountDirectory struct {
	repo   *db.Repository
	cost   int
	logger *zap.Logger
}

// NewAccountDirectory creates a new account directory
func NewAccountDirectory(repo *db.Repository) *AccountDirectory {
	return &AccountDirectory{
		repo:   repo,
		cost:   bcrypt.DefaultCost,
		logger: logging.WithComponent("accounts"),
	}
}

// WithHashCost returns a copy of the directory hashing passwords at cost.
// Tests use bcrypt.MinCost.
func (d *AccountDirectory) WithHashCost(cost int) *AccountDirectory {
	cp := *d
	cp.cost = cost
	return &cp
}

// Register creates an account. The password is stored as a bcrypt hash.
func (d *AccountDirectory) Register(ctx context.Context, username, email, password, confirmation string) (*models.Account, error) {
	ctx, span := telemetry.StartSpan(ctx, "accounts.register")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, BadRequest("Username is required.")
	}
	if password == "" {
		return nil, BadRequest("Password is required.")
	}
	if password != confirmation {
		return nil, BadRequest("Passwords must match.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		Username: username,
		Email:    strings.TrimSpace(email),
		Password: string(hash),
	}
	if err := db.NewAccountRepository(d.repo).Create(ctx, account); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, Conflict("Username already taken.")
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	telemetry.Count(ctx, "network.accounts.registered")
	logging.FromContext(ctx).Info("Account registered",
		zap.Int64("account_id", account.ID),
		zap.String("username", account.Username),
	)
	return account, nil
}

// Authenticate checks a username and password pair
func (d *AccountDirectory) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	ctx, span := telemetry.StartSpan(ctx, "accounts.authenticate")
	defer span.End()

	account, err := db.NewAccountRepository(d.repo).GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)) != nil {
		telemetry.Count(ctx, "network.accounts.login_failed")
		d.logger.Debug("Login failed", zap.String("username", username))
		return nil, Unauthorized("Invalid username and/or password.")
	}
	return account, nil
}

// Get returns an account by ID
func (d *AccountDirectory) Get(ctx context.Context, id int64) (*models.Account, error) {
	account, err := db.NewAccountRepository(d.repo).GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, AccountNotFound()
	}
	return account, nil
}

// Profile builds the profile header of accountID as seen by viewerID (0 for
// anonymous viewers).
func (d *AccountDirectory) Profile(ctx context.Context, accountID, viewerID int64) (*Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, "accounts.profile")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	account, err := d.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	follows := db.NewFollowRepository(d.repo)
	followers, err := follows.CountFollowers(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count followers: %w", err)
	}
	following, err := follows.CountFollowing(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count following: %w", err)
	}

	profile := &Profile{
		ID:        account.ID,
		Username:  account.Username,
		Followers: followers,
		Following: following,
		IsSelf:    viewerID == accountID,
	}
	if viewerID != 0 && viewerID != accountID {
		if profile.IsFollowing, err = follows.IsFollowing(ctx, viewerID, accountID); err != nil {
			return nil, fmt.Errorf("failed to check following: %w", err)
		}
	}
	return profile, nil
}

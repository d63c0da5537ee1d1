package social

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/pkg/logging"
	"github.com/socialnet/network/pkg/telemetry"
)

// Intent is what a follow button asks for
type Intent int

const (
	IntentFollow Intent = iota
	IntentUnfollow
)

// ParseIntent reads the follow button label. "Follow" follows, anything
// else unfollows.
func ParseIntent(label string) Intent {
	if label == "Follow" {
		return IntentFollow
	}
	return IntentUnfollow
}

func (i Intent) String() string {
	if i == IntentFollow {
		return "follow"
	}
	return "unfollow"
}

// Counts is the size of an account's follow sets
type Counts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// Edge is one directed follow, From follows To
type Edge struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// ReconcileReport lists follow edges recorded on only one side
type ReconcileReport struct {
	MissingFollower  []Edge `json:"missing_follower"`
	MissingFollowing []Edge `json:"missing_following"`
	Repaired         bool   `json:"repaired"`
}

// Drift returns the number of one-sided edges
func (r *ReconcileReport) Drift() int {
	return len(r.MissingFollower) + len(r.MissingFollowing)
}

// GraphMutator keeps the following and followers sets mirrored
type GraphMutator struct {
	repo   *db.Repository
	logger *zap.Logger
}

// NewGraphMutator creates a new graph mutator
func NewGraphMutator(repo *db.Repository) *GraphMutator {
	return &GraphMutator{
		repo:   repo,
		logger: logging.WithComponent("graph"),
	}
}

// Follow makes viewerID follow targetID. Following an account twice is a
// no-op.
func (g *GraphMutator) Follow(ctx context.Context, viewerID, targetID int64) error {
	return g.Apply(ctx, viewerID, targetID, IntentFollow)
}

// Unfollow makes viewerID stop following targetID. Unfollowing an account
// that is not followed is a no-op.
func (g *GraphMutator) Unfollow(ctx context.Context, viewerID, targetID int64) error {
	return g.Apply(ctx, viewerID, targetID, IntentUnfollow)
}

// Apply updates both sides of the viewerID -> targetID edge in one
// transaction.
func (g *GraphMutator) Apply(ctx context.Context, viewerID, targetID int64, intent Intent) error {
	ctx, span := telemetry.StartSpan(ctx, "graph."+intent.String())
	defer span.End()
	span.SetAttributes(
		attribute.Int64("graph.viewer_id", viewerID),
		attribute.Int64("graph.target_id", targetID),
	)

	if viewerID == targetID {
		return BadRequest("You cannot follow yourself.")
	}

	err := g.repo.Transaction(ctx, func(tx *db.Repository) error {
		target, err := db.NewAccountRepository(tx).GetByID(ctx, targetID)
		if err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}
		if target == nil {
			return AccountNotFound()
		}

		follows := db.NewFollowRepository(tx)
		if intent == IntentFollow {
			if err := follows.AddFollowing(ctx, viewerID, targetID); err != nil {
				return fmt.Errorf("failed to add following: %w", err)
			}
			if err := follows.AddFollower(ctx, targetID, viewerID); err != nil {
				return fmt.Errorf("failed to add follower: %w", err)
			}
			return nil
		}

		if err := follows.RemoveFollowing(ctx, viewerID, targetID); err != nil {
			return fmt.Errorf("failed to remove following: %w", err)
		}
		if err := follows.RemoveFollower(ctx, targetID, viewerID); err != nil {
			return fmt.Errorf("failed to remove follower: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	telemetry.Count(ctx, "network.graph.mutations", attribute.String("intent", intent.String()))
	logging.FromContext(ctx).Debug("Follow graph updated",
		zap.Int64("viewer_id", viewerID),
		zap.Int64("target_id", targetID),
		zap.Stringer("intent", intent),
	)
	return nil
}

// IsFollowing reports whether viewerID follows targetID
func (g *GraphMutator) IsFollowing(ctx context.Context, viewerID, targetID int64) (bool, error) {
	ok, err := db.NewFollowRepository(g.repo).IsFollowing(ctx, viewerID, targetID)
	if err != nil {
		return false, fmt.Errorf("failed to check following: %w", err)
	}
	return ok, nil
}

// Counts returns the follower and following counts of accountID
func (g *GraphMutator) Counts(ctx context.Context, accountID int64) (*Counts, error) {
	follows := db.NewFollowRepository(g.repo)
	followers, err := follows.CountFollowers(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count followers: %w", err)
	}
	following, err := follows.CountFollowing(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count following: %w", err)
	}
	return &Counts{Followers: followers, Following: following}, nil
}

// Reconcile finds follow edges recorded on only one side. With repair set
// the missing mirror rows are inserted in the same transaction.
func (g *GraphMutator) Reconcile(ctx context.Context, repair bool) (*ReconcileReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "graph.reconcile")
	defer span.End()

	report := &ReconcileReport{
		MissingFollower:  []Edge{},
		MissingFollowing: []Edge{},
	}

	err := g.repo.Transaction(ctx, func(tx *db.Repository) error {
		follows := db.NewFollowRepository(tx)

		following, err := follows.FollowingWithoutFollower(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan following: %w", err)
		}
		for _, row := range following {
			report.MissingFollower = append(report.MissingFollower, Edge{From: row.AccountID, To: row.FollowingID})
		}

		followers, err := follows.FollowerWithoutFollowing(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan followers: %w", err)
		}
		for _, row := range followers {
			report.MissingFollowing = append(report.MissingFollowing, Edge{From: row.FollowerID, To: row.AccountID})
		}

		if !repair {
			return nil
		}
		for _, e := range report.MissingFollower {
			if err := follows.AddFollower(ctx, e.To, e.From); err != nil {
				return fmt.Errorf("failed to repair follower %d->%d: %w", e.From, e.To, err)
			}
		}
		for _, e := range report.MissingFollowing {
			if err := follows.AddFollowing(ctx, e.From, e.To); err != nil {
				return fmt.Errorf("failed to repair following %d->%d: %w", e.From, e.To, err)
			}
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.Drift() > 0 {
		g.logger.Warn("Follow graph drift found",
			zap.Int("missing_follower", len(report.MissingFollower)),
			zap.Int("missing_following", len(report.MissingFollowing)),
			zap.Bool("repaired", report.Repaired),
		)
	}
	return report, nil
}

package directory

import (
	"context"
	"time"
)

// User is the slice of a user profile the DM service needs: identity and
// the follow graph.
type User struct {
	ID        string    `bson:"_id" json:"id"`
	Username  string    `bson:"username" json:"username"`
	Following []string  `bson:"following" json:"following"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Directory answers identity and follow-graph questions. Mutual follow
// means each user appears in the other's Following list.
type Directory interface {
	UserExists(ctx context.Context, id string) (bool, error)
	IsMutualFollow(ctx context.Context, a, b string) (bool, error)
	// Follow and Unfollow are idempotent.
	Follow(ctx context.Context, follower, followee string) error
	Unfollow(ctx context.Context, follower, followee string) error
	// CreateUser registers id if unknown and leaves existing users untouched.
	CreateUser(ctx context.Context, id, username string) error
}

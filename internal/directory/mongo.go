package directory

import (
	"context"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const timeout = 5 * time.Second

type MongoDirectory struct {
	col *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database, collection string) *MongoDirectory {
	if collection == "" {
		collection = "users"
	}
	return &MongoDirectory{col: db.Collection(collection)}
}

func (d *MongoDirectory) UserExists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := d.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *MongoDirectory) IsMutualFollow(ctx context.Context, a, b string) (bool, error) {
	if a == b {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := d.col.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"_id": a, "following": b},
		bson.M{"_id": b, "following": a},
	}})
	if err != nil {
		return false, err
	}
	return n == 2, nil
}

func (d *MongoDirectory) Follow(ctx context.Context, follower, followee string) error {
	if follower == followee {
		return domain.ErrInvalidParticipants
	}
	ok, err := d.UserExists(ctx, followee)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res, err := d.col.UpdateOne(ctx,
		bson.M{"_id": follower},
		bson.M{"$addToSet": bson.M{"following": followee}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (d *MongoDirectory) Unfollow(ctx context.Context, follower, followee string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := d.col.UpdateOne(ctx,
		bson.M{"_id": follower},
		bson.M{"$pull": bson.M{"following": followee}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (d *MongoDirectory) CreateUser(ctx context.Context, id, username string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := User{ID: id, Username: username, Following: []string{}, CreatedAt: time.Now().UTC()}
	_, err := d.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": u},
		options.Update().SetUpsert(true),
	)
	return err
}

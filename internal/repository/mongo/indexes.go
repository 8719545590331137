package mongo

import (
	"alcyxob/personal-coach/internal/repository"
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes backing the equality queries the services
// run. Failures are logged; queries still work without them, only slower.
// Call this once during application startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *slog.Logger) {
	ensure(ctx, db.Collection(repository.UsersCollection), logger, userIndexes())
	ensure(ctx, db.Collection(repository.ExercisesCollection), logger, exerciseIndexes())
	ensure(ctx, db.Collection(repository.WorkoutsCollection), logger, workoutIndexes())
	ensure(ctx, db.Collection(repository.FeedbacksCollection), logger, feedbackIndexes())
	ensure(ctx, db.Collection(repository.CredentialsCollection), logger, credentialIndexes())
}

func ensure(ctx context.Context, collection *mongo.Collection, logger *slog.Logger, indexes []mongo.IndexModel) {
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Warn("failed to create indexes", "collection", collection.Name(), "error", err)
	}
}

func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// Referral code resolution: userType = trainer and referralCode = X.
			// Not unique, codes are not checked for collisions at generation.
			Keys:    bson.D{{Key: "userType", Value: 1}, {Key: "referralCode", Value: 1}},
			Options: options.Index(),
		},
		{
			// Roster derivation: personalId = trainer and userType = student.
			Keys:    bson.D{{Key: "personalId", Value: 1}, {Key: "userType", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
}

func exerciseIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "createdBy", Value: 1}},
			Options: options.Index(),
		},
	}
}

func workoutIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "personalId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "studentId", Value: 1}},
			Options: options.Index(),
		},
	}
}

func feedbackIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "studentId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "workoutId", Value: 1}},
			Options: options.Index(),
		},
	}
}

func credentialIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// Anonymous credentials carry no email, hence sparse.
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
}

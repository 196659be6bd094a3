package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

const pendingSignupsCollection = "pending_signups"

// PendingSignupRepository stores unverified signups. Records older than the
// signup TTL are reaped by a TTL index on created_at.
type PendingSignupRepository struct {
	coll *mongo.Collection
	ttl  time.Duration
}

func NewPendingSignupRepository(db *mongo.Database, ttl time.Duration) *PendingSignupRepository {
	if ttl <= 0 {
		ttl = domain.DefaultSignupTTL
	}
	return &PendingSignupRepository{coll: db.Collection(pendingSignupsCollection), ttl: ttl}
}

type mongoPendingSignup struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Code         string             `bson:"otp"`
	CodeExpires  time.Time          `bson:"otp_expires"`
	Attempts     int                `bson:"otp_attempts"`
	CreatedAt    time.Time          `bson:"created_at"`
}

// Upsert replaces any record for the same email, resetting the attempt
// counter and the TTL clock.
func (r *PendingSignupRepository) Upsert(ctx context.Context, p *domain.PendingSignup) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoPendingSignup{
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Code:         p.Code,
		CodeExpires:  p.CodeExpires.UTC(),
		Attempts:     p.Attempts,
		CreatedAt:    p.CreatedAt.UTC(),
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"email": p.Email}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert pending signup: %w", err)
	}
	return nil
}

func (r *PendingSignupRepository) FindByEmail(ctx context.Context, email string) (*domain.PendingSignup, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoPendingSignup
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSignupNotFound
		}
		return nil, fmt.Errorf("find pending signup: %w", err)
	}
	return toDomainPending(&doc), nil
}

// IncrementAttempts bumps the wrong-code counter and returns the new value.
func (r *PendingSignupRepository) IncrementAttempts(ctx context.Context, email string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoPendingSignup
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"email": email},
		bson.M{"$inc": bson.M{"otp_attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrSignupNotFound
		}
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return doc.Attempts, nil
}

func (r *PendingSignupRepository) ReplaceCode(ctx context.Context, email, code string, expires time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{
		"otp":          code,
		"otp_expires":  expires.UTC(),
		"otp_attempts": 0,
	}})
	if err != nil {
		return fmt.Errorf("replace otp: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSignupNotFound
	}
	return nil
}

func (r *PendingSignupRepository) Delete(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.coll.DeleteOne(ctx, bson.M{"email": email}); err != nil {
		return fmt.Errorf("delete pending signup: %w", err)
	}
	return nil
}

func (r *PendingSignupRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(r.ttl.Seconds()))},
	})
	return err
}

func toDomainPending(doc *mongoPendingSignup) *domain.PendingSignup {
	return &domain.PendingSignup{
		ID:           doc.ID.Hex(),
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Code:         doc.Code,
		CodeExpires:  doc.CodeExpires,
		Attempts:     doc.Attempts,
		CreatedAt:    doc.CreatedAt,
	}
}

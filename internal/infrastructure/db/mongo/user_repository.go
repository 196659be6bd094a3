package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
)

const usersCollection = "users"

// UserRepository implements ports.UserRepository on MongoDB. Counter and lock
// updates are single-document atomic writes; no in-process locking is used.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type mongoUser struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	Name                 string             `bson:"name"`
	Email                string             `bson:"email"`
	Phone                string             `bson:"phone,omitempty"`
	Addresses            []mongoAddress     `bson:"addresses,omitempty"`
	Role                 string             `bson:"role"`
	IsVerified           bool               `bson:"is_verified"`
	Active               bool               `bson:"active"`
	PasswordHash         string             `bson:"password_hash"`
	RefreshTokenHash     string             `bson:"refresh_token_hash,omitempty"`
	LoginAttempts        int                `bson:"login_attempts"`
	LockUntil            *time.Time         `bson:"lock_until,omitempty"`
	PasswordChangedAt    *time.Time         `bson:"password_changed_at,omitempty"`
	PasswordResetHash    string             `bson:"password_reset_hash,omitempty"`
	PasswordResetExpires *time.Time         `bson:"password_reset_expires,omitempty"`
	CreatedAt            time.Time          `bson:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at"`
}

type mongoAddress struct {
	ID           string `bson:"id"`
	AddressLine1 string `bson:"address_line1"`
	AddressLine2 string `bson:"address_line2,omitempty"`
	City         string `bson:"city"`
	State        string `bson:"state"`
	Pincode      string `bson:"pincode"`
	Phone        string `bson:"phone"`
	IsDefault    bool   `bson:"is_default"`
}

// active restricts a filter to accounts that have not been soft-deleted.
func active(filter bson.M) bson.M {
	filter["active"] = bson.M{"$ne": false}
	return filter
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoUser(user)
	doc.ID = primitive.NilObjectID
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	created := *user
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, active(bson.M{"_id": oid}))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, active(bson.M{"email": email}))
}

func (r *UserRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, f domain.LoginFailure) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	var update bson.M
	if f.Restart {
		update = bson.M{
			"$set":   bson.M{"login_attempts": 1, "updated_at": now},
			"$unset": bson.M{"lock_until": ""},
		}
	} else {
		set := bson.M{"updated_at": now}
		if f.LockUntil != nil {
			set["lock_until"] = f.LockUntil.UTC()
		}
		update = bson.M{"$inc": bson.M{"login_attempts": 1}, "$set": set}
	}

	var mu mongoUser
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&mu)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("record login failure: %w", err)
	}
	return toDomainUser(&mu), nil
}

func (r *UserRepository) ResetLoginAttempts(ctx context.Context, id string) error {
	return r.updateByID(ctx, id, bson.M{
		"$set":   bson.M{"login_attempts": 0},
		"$unset": bson.M{"lock_until": ""},
	})
}

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	if hash == "" {
		return r.updateByID(ctx, id, bson.M{"$unset": bson.M{"refresh_token_hash": ""}})
	}
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"refresh_token_hash": hash}})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	return r.updateByID(ctx, id, bson.M{
		"$set": bson.M{
			"password_hash":       hash,
			"password_changed_at": changedAt.UTC(),
			"login_attempts":      0,
		},
		"$unset": bson.M{
			"lock_until":             "",
			"password_reset_hash":    "",
			"password_reset_expires": "",
		},
	})
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, id, hash string, expires time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"password_reset_hash":    hash,
		"password_reset_expires": expires.UTC(),
	}})
}

func (r *UserRepository) ClearPasswordReset(ctx context.Context, id string) error {
	return r.updateByID(ctx, id, bson.M{"$unset": bson.M{
		"password_reset_hash":    "",
		"password_reset_expires": "",
	}})
}

func (r *UserRepository) FindByResetHash(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	return r.findOne(ctx, active(bson.M{
		"password_reset_hash":    hash,
		"password_reset_expires": bson.M{"$gt": now.UTC()},
	}))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, p ports.ProfileUpdate) (*domain.User, error) {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Unverify {
		set["is_verified"] = false
	}

	u, err := r.findOneAndSet(ctx, id, set)
	if mongo.IsDuplicateKeyError(err) {
		return nil, domain.ErrEmailInUse
	}
	return u, err
}

// SetAddresses overwrites the whole address book in one write.
func (r *UserRepository) SetAddresses(ctx context.Context, id string, book []domain.Address) (*domain.User, error) {
	docs := make([]mongoAddress, 0, len(book))
	for _, a := range book {
		docs = append(docs, mongoAddress(a))
	}
	return r.findOneAndSet(ctx, id, bson.M{"addresses": docs})
}

// Deactivate soft-deletes the account and drops its refresh slot.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	return r.updateByID(ctx, id, bson.M{
		"$set":   bson.M{"active": false},
		"$unset": bson.M{"refresh_token_hash": ""},
	})
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := active(bson.M{})
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(pageSkip(f.Page, f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}

	users := make([]*domain.User, 0, len(docs))
	for i := range docs {
		users = append(users, toDomainUser(&docs[i]))
	}
	return users, total, nil
}

// EnsureIndexes creates the unique email index the Credential Store relies on.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "password_reset_hash", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return toDomainUser(&mu), nil
}

// pageSkip saturates instead of overflowing on absurd page numbers.
func pageSkip(page, limit int) int64 {
	if page <= 1 || limit <= 0 {
		return 0
	}
	if int64(page-1) > math.MaxInt64/int64(limit) {
		return math.MaxInt64
	}
	return int64(page-1) * int64(limit)
}

// findOneAndSet applies set to an active user and returns the stored result.
func (r *UserRepository) findOneAndSet(ctx context.Context, id string, set bson.M) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set["updated_at"] = time.Now().UTC()
	var mu mongoUser
	err = r.coll.FindOneAndUpdate(ctx, active(bson.M{"_id": oid}), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&mu)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return toDomainUser(&mu), nil
}

func (r *UserRepository) updateByID(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updated_at"] = time.Now().UTC()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func toMongoUser(u *domain.User) mongoUser {
	mu := mongoUser{
		Name:                 u.Name,
		Email:                u.Email,
		Phone:                u.Phone,
		Role:                 string(u.Role),
		IsVerified:           u.IsVerified,
		Active:               u.Active,
		PasswordHash:         u.PasswordHash,
		RefreshTokenHash:     u.RefreshTokenHash,
		LoginAttempts:        u.LoginAttempts,
		LockUntil:            u.LockUntil,
		PasswordChangedAt:    u.PasswordChangedAt,
		PasswordResetHash:    u.PasswordResetHash,
		PasswordResetExpires: u.PasswordResetExpires,
		CreatedAt:            u.CreatedAt.UTC(),
		UpdatedAt:            u.UpdatedAt.UTC(),
	}
	for _, a := range u.Addresses {
		mu.Addresses = append(mu.Addresses, mongoAddress(a))
	}
	if oid, err := primitive.ObjectIDFromHex(u.ID); err == nil {
		mu.ID = oid
	}
	return mu
}

func toDomainUser(mu *mongoUser) *domain.User {
	u := &domain.User{
		ID:                   mu.ID.Hex(),
		Name:                 mu.Name,
		Email:                mu.Email,
		Phone:                mu.Phone,
		Role:                 domain.Role(mu.Role),
		IsVerified:           mu.IsVerified,
		Active:               mu.Active,
		PasswordHash:         mu.PasswordHash,
		RefreshTokenHash:     mu.RefreshTokenHash,
		LoginAttempts:        mu.LoginAttempts,
		LockUntil:            mu.LockUntil,
		PasswordChangedAt:    mu.PasswordChangedAt,
		PasswordResetHash:    mu.PasswordResetHash,
		PasswordResetExpires: mu.PasswordResetExpires,
		CreatedAt:            mu.CreatedAt,
		UpdatedAt:            mu.UpdatedAt,
	}
	for _, a := range mu.Addresses {
		u.Addresses = append(u.Addresses, domain.Address(a))
	}
	return u
}

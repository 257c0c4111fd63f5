package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/razikuljoni/crud-express/internal/domain"
	"github.com/razikuljoni/crud-express/internal/repository"
	"github.com/razikuljoni/crud-express/pkg/database"
)

// CollectionUsers is the collection holding user documents.
const CollectionUsers = "users"

const (
	usernameIndex = "username_unique"
	emailIndex    = "email_unique"
)

// userDocument is the stored shape of a user. Field names match documents
// written by earlier versions of the service.
type userDocument struct {
	ID           bson.ObjectID `bson:"_id"`
	RoleID       int           `bson:"roleId"`
	FirstName    string        `bson:"firstName"`
	MiddleName   *string       `bson:"middleName"`
	LastName     string        `bson:"lastName"`
	Username     string        `bson:"username"`
	Mobile       string        `bson:"mobile"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"passwordHash"`
	RegisteredAt time.Time     `bson:"registeredAt"`
	LastLogin    *time.Time    `bson:"lastLogin"`
	Intro        *string       `bson:"intro"`
	Profile      *string       `bson:"profile"`
}

func toDocument(u *domain.User) (userDocument, error) {
	id, err := bson.ObjectIDFromHex(u.ID)
	if err != nil {
		return userDocument{}, fmt.Errorf("user id %q: %w", u.ID, err)
	}
	return userDocument{
		ID:           id,
		RoleID:       u.RoleID,
		FirstName:    u.FirstName,
		MiddleName:   u.MiddleName,
		LastName:     u.LastName,
		Username:     u.Username,
		Mobile:       u.Mobile,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		RegisteredAt: u.RegisteredAt,
		LastLogin:    u.LastLogin,
		Intro:        u.Intro,
		Profile:      u.Profile,
	}, nil
}

func (d *userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:           d.ID.Hex(),
		RoleID:       d.RoleID,
		FirstName:    d.FirstName,
		MiddleName:   d.MiddleName,
		LastName:     d.LastName,
		Username:     d.Username,
		Mobile:       d.Mobile,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		RegisteredAt: d.RegisteredAt.UTC(),
		Intro:        d.Intro,
		Profile:      d.Profile,
	}
	if d.LastLogin != nil {
		t := d.LastLogin.UTC()
		u.LastLogin = &t
	}
	return u
}

// UserRepository is the MongoDB user directory.
type UserRepository struct {
	coll *mongo.Collection
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a user directory over db's users collection.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(CollectionUsers)}
}

// EnsureIndexes creates the unique username and email indexes and the
// lookup indexes used by listing. It is idempotent.
func (r *UserRepository) EnsureIndexes(ctx context.Context) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "EnsureUserIndexes", CollectionUsers+".createIndexes")
	defer func() { end(err) }()

	_, err = r.coll.Indexes().CreateMany(ctx, indexModels())
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func indexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName(usernameIndex).SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName(emailIndex).SetUnique(true)},
		{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: options.Index().SetName("mobile")},
		{Keys: bson.D{{Key: "roleId", Value: 1}, {Key: "registeredAt", Value: -1}}, Options: options.Index().SetName("roleId_registeredAt")},
		{Keys: bson.D{{Key: "registeredAt", Value: -1}}, Options: options.Index().SetName("registeredAt")},
	}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	if u.ID == "" {
		u.ID = repository.NewID()
	}
	doc, err := toDocument(u)
	if err != nil {
		return err
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "InsertUser", CollectionUsers+".insertOne")
	defer func() { end(err) }()

	if _, err = r.coll.InsertOne(ctx, doc); err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID returns the user with id. Ids that are not valid ObjectIDs match
// nothing.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, "GetUserByID", bson.D{{Key: "_id", Value: oid}})
}

// GetByUsername returns the user with username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "GetUserByUsername", bson.D{{Key: "username", Value: username}})
}

// GetByEmail returns the user with email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "GetUserByEmail", bson.D{{Key: "email", Value: email}})
}

func (r *UserRepository) findOne(ctx context.Context, operation string, filter bson.D) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, operation, CollectionUsers+".findOne")
	defer func() { end(err) }()

	var doc userDocument
	if err = r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// Update applies the set fields of upd and returns the document after the
// update.
func (r *UserRepository) Update(ctx context.Context, id string, upd domain.UserUpdate) (_ *domain.User, err error) {
	if upd.IsEmpty() {
		return r.GetByID(ctx, id)
	}
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "UpdateUser", CollectionUsers+".findOneAndUpdate")
	defer func() { end(err) }()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: setDocument(upd)}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return doc.toDomain(), nil
}

func setDocument(upd domain.UserUpdate) bson.D {
	var set bson.D
	add := func(key string, value any) {
		set = append(set, bson.E{Key: key, Value: value})
	}

	if upd.RoleID != nil {
		add("roleId", *upd.RoleID)
	}
	if upd.FirstName != nil {
		add("firstName", *upd.FirstName)
	}
	if upd.MiddleName != nil {
		add("middleName", *upd.MiddleName)
	}
	if upd.LastName != nil {
		add("lastName", *upd.LastName)
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.Mobile != nil {
		add("mobile", *upd.Mobile)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Intro != nil {
		add("intro", *upd.Intro)
	}
	if upd.Profile != nil {
		add("profile", *upd.Profile)
	}
	return set
}

// UpdateLastLogin records a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.setField(ctx, "UpdateLastLogin", id, "lastLogin", at.UTC())
}

// UpdatePasswordHash replaces the stored digest.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.setField(ctx, "UpdatePasswordHash", id, "passwordHash", hash)
}

func (r *UserRepository) setField(ctx context.Context, operation, id, field string, value any) (err error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, operation, CollectionUsers+".updateOne")
	defer func() { end(err) }()

	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: value}}}},
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete removes the user with id.
func (r *UserRepository) Delete(ctx context.Context, id string) (err error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "DeleteUser", CollectionUsers+".deleteOne")
	defer func() { end(err) }()

	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns a page of users, newest registration first.
func (r *UserRepository) List(ctx context.Context, filter domain.UserFilter) (_ []domain.User, _ int64, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "ListUsers", CollectionUsers+".find")
	defer func() { end(err) }()

	query := listFilter(filter)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "registeredAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(max(filter.Offset, 0))).
		SetLimit(int64(filter.Limit))
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find users: %w", err)
	}

	var docs []userDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}

	users := make([]domain.User, len(docs))
	for i := range docs {
		users[i] = *docs[i].toDomain()
	}
	return users, total, nil
}

func listFilter(filter domain.UserFilter) bson.D {
	query := bson.D{}
	if filter.RoleID != nil {
		query = append(query, bson.E{Key: "roleId", Value: *filter.RoleID})
	}
	return query
}

// duplicateError maps a duplicate key error on the username or email index
// to the matching domain error. It returns nil for anything else.
func duplicateError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return nil
	}
	switch {
	case se.HasErrorMessage(usernameIndex):
		return domain.ErrDuplicateUsername
	case se.HasErrorMessage(emailIndex):
		return domain.ErrDuplicateEmail
	default:
		return nil
	}
}

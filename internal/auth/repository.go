package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zhou-shi/pentama-app/internal/core"
)

var (
	ErrUserNotFound    = core.NewNotFoundError("user not found")
	ErrEmailRegistered = core.NewConflictError("email already registered")
	ErrNIMRegistered   = core.NewConflictError("NIM already registered")
)

// Users is the user persistence the auth service needs.
type Users interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByNIM(ctx context.Context, nim string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	LinkGoogleID(ctx context.Context, id primitive.ObjectID, googleID string) error
	UpdateProfile(ctx context.Context, user *User) error
}

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection("users")}
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "find user")
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByNIM(ctx context.Context, nim string) (*User, error) {
	return r.findOne(ctx, bson.M{"student.nim": nim})
}

// FindByRoles returns users holding any of roles; "admin" matches the admin flag.
func (r *UserRepository) FindByRoles(ctx context.Context, roles []string) ([]*User, error) {
	var or bson.A
	for _, role := range roles {
		if role == RoleAdmin {
			or = append(or, bson.M{"is_admin": true})
		} else {
			or = append(or, bson.M{"role": role})
		}
	}
	filter := bson.M{}
	if len(or) > 0 {
		filter["$or"] = or
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "find users by role")
	}
	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return users, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *User) error {
	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailRegistered
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (r *UserRepository) LinkGoogleID(ctx context.Context, id primitive.ObjectID, googleID string) error {
	update := bson.M{"$set": bson.M{"google_id": googleID, "updated_at": time.Now().UTC()}}
	res, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return errors.Wrap(err, "link google id")
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateProfile writes the editable profile fields. The examiner counter is
// left to its own $inc updates.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *User) error {
	set := bson.M{"name": user.Name, "updated_at": user.UpdatedAt}
	if user.Student != nil {
		set["student.research_field"] = user.Student.ResearchField
	}
	if user.Lecturer != nil {
		set["lecturer.expertise_field"] = user.Lecturer.ExpertiseField
		set["lecturer.academic_title"] = user.Lecturer.AcademicTitle
		set["lecturer.position"] = user.Lecturer.Position
	}
	res, err := r.collection.UpdateByID(ctx, user.ID, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "update profile")
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoUserStore struct {
	coll *mongo.Collection
}

type userDoc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Name     string             `bson:"name"`
	Email    string             `bson:"email"`
	Password string             `bson:"password"`
	Role     Role               `bson:"role"`
	Sessions []SessionRecord    `bson:"sessions"`
}

func NewMongoUserStore(ctx context.Context, cli *mongo.Client, db, coll string) (*MongoUserStore, error) {
	c := cli.Database(db).Collection(coll)

	_, _ = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoUserStore{coll: c}, nil
}

func (s *MongoUserStore) Add(ctx context.Context, u *User) (string, error) {
	doc := userDoc{
		Name:     u.Name,
		Email:    normalizeEmail(u.Email),
		Password: u.PassHash,
		Role:     u.Role,
		Sessions: []SessionRecord{},
	}
	res, err := s.coll.InsertOne(ctx, doc)
	if wex, ok := err.(mongo.WriteException); ok {
		for _, we := range wex.WriteErrors {
			if we.Code == 11000 { // duplicate key
				return "", ErrEmailExists
			}
		}
	}
	if err != nil {
		return "", err
	}
	oid := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (s *MongoUserStore) findOne(ctx context.Context, filter any) (*User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return docToUser(&doc), nil
}

func docToUser(doc *userDoc) *User {
	return &User{
		ID:       doc.ID.Hex(),
		Name:     doc.Name,
		Email:    doc.Email,
		PassHash: doc.Password,
		Role:     doc.Role,
		Sessions: doc.Sessions,
	}
}

func (s *MongoUserStore) UpdatePassword(ctx context.Context, id, newHash string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrUserNotFound
	}
	res, err := s.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"password": newHash}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) UpdateProfile(ctx context.Context, id, name, email string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrUserNotFound
	}
	set := bson.M{}
	if name != "" {
		set["name"] = name
	}
	if email != "" {
		set["email"] = normalizeEmail(email)
	}
	if len(set) == 0 {
		return nil
	}
	res, err := s.coll.UpdateByID(ctx, oid, bson.M{"$set": set})
	if wex, ok := err.(mongo.WriteException); ok {
		for _, we := range wex.WriteErrors {
			if we.Code == 11000 { // unique email index
				return ErrEmailExists
			}
		}
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) ListByRole(ctx context.Context, role Role) ([]*User, error) {
	cur, err := s.coll.Find(ctx, bson.M{"role": role})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*User
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, docToUser(&doc))
	}
	return out, cur.Err()
}

// RecordLogin appends a session record with a $push so concurrent logins do
// not clobber each other's append.
func (s *MongoUserStore) RecordLogin(ctx context.Context, userID, token string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}
	rec := SessionRecord{ID: uuid.New().String(), Token: token, LoginAt: time.Now()}
	res, err := s.coll.UpdateByID(ctx, oid, bson.M{"$push": bson.M{"sessions": rec}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) ListSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.Sessions, nil
}

func (s *MongoUserStore) RevokeAll(ctx context.Context, userID string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}
	res, err := s.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"sessions": []SessionRecord{}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) RevokeByToken(ctx context.Context, userID, token string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}
	res, err := s.coll.UpdateByID(ctx, oid, bson.M{"$pull": bson.M{"sessions": bson.M{"token": token}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

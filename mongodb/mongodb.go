// Package mongodb is the MongoDB implementation of store.Store.
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store"
)

const (
	FormCollection     = "forms"
	ResponseCollection = "form_responses"
	DraftCollection    = "drafts"
	UserCollection     = "users"
	TokenCollection    = "tokens"
)

// Store keeps forms and responses in MongoDB collections.
type Store struct {
	client    *mongo.Client
	forms     *mongo.Collection
	responses *mongo.Collection
	drafts    *mongo.Collection
	users     *mongo.Collection
	tokens    *mongo.Collection
}

var _ store.Store = (*Store)(nil)

type formDocument struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	model.FormDefinition `bson:",inline"`
}

type responseDocument struct {
	ID          string         `bson:"_id"`
	FormSlug    string         `bson:"form_slug"`
	SubmittedAt time.Time      `bson:"submitted_at"`
	IP          string         `bson:"ip_address"`
	Responses   map[string]any `bson:"responses"`
}

type draftDocument struct {
	Key  string               `bson:"_id"`
	Form model.FormDefinition `bson:"form"`
}

type userDocument struct {
	Username     string `bson:"_id"`
	PasswordHash []byte `bson:"password_hash"`
}

type tokenDocument struct {
	Username       string    `bson:"username"`
	TokenID        string    `bson:"token_id"`
	RefreshTokenID string    `bson:"refresh_token_id"`
	Expiration     time.Time `bson:"expiration"`
}

// Open connects to uri, checks the connection and makes sure the indexes
// the store relies on exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, store.Unavailable("mongo.connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, store.Unavailable("mongo.ping", err)
	}

	db := client.Database(database)
	s := &Store{
		client:    client,
		forms:     db.Collection(FormCollection),
		responses: db.Collection(ResponseCollection),
		drafts:    db.Collection(DraftCollection),
		users:     db.Collection(UserCollection),
		tokens:    db.Collection(TokenCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.forms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return store.Unavailable("mongo.index.forms", err)
	}
	_, err = s.responses.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "form_slug", Value: 1}, {Key: "submitted_at", Value: 1}}},
		{Keys: bson.D{{Key: "form_slug", Value: 1}, {Key: "ip_address", Value: 1}}},
	})
	if err != nil {
		return store.Unavailable("mongo.index.responses", err)
	}
	_, err = s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}, {Key: "token_id", Value: 1}, {Key: "refresh_token_id", Value: 1}},
	})
	if err != nil {
		return store.Unavailable("mongo.index.tokens", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// Drop deletes the whole database. Meant for tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.forms.Database().Drop(ctx)
}

func (s *Store) ListForms(ctx context.Context) ([]model.FormDefinition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.forms.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, store.Unavailable("mongo.list_forms", err)
	}
	defer cursor.Close(ctx)

	forms := []model.FormDefinition{}
	for cursor.Next(ctx) {
		var doc formDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, store.Unavailable("mongo.list_forms.decode", err)
		}
		forms = append(forms, doc.FormDefinition)
	}
	if err := cursor.Err(); err != nil {
		return nil, store.Unavailable("mongo.list_forms", err)
	}
	return forms, nil
}

func (s *Store) LoadForm(ctx context.Context, slug string) (model.FormDefinition, error) {
	var doc formDocument
	err := s.forms.FindOne(ctx, bson.M{"slug": slug}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.FormDefinition{}, store.ErrNotFound
	}
	if err != nil {
		return model.FormDefinition{}, store.Unavailable("mongo.load_form", err)
	}
	return doc.FormDefinition, nil
}

func (s *Store) CreateForm(ctx context.Context, form model.FormDefinition) (model.FormDefinition, error) {
	form = form.Clone()
	store.Stamp(&form, time.Time{})

	_, err := s.forms.InsertOne(ctx, formDocument{FormDefinition: form})
	if mongo.IsDuplicateKeyError(err) {
		return model.FormDefinition{}, store.ErrExists
	}
	if err != nil {
		return model.FormDefinition{}, store.Unavailable("mongo.insert_form", err)
	}
	return form, nil
}

func (s *Store) SaveForm(ctx context.Context, form model.FormDefinition) (model.FormDefinition, error) {
	form = form.Clone()

	var prev formDocument
	err := s.forms.FindOne(ctx, bson.M{"slug": form.Slug}).Decode(&prev)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return model.FormDefinition{}, store.Unavailable("mongo.save_form.lookup", err)
	}
	store.Stamp(&form, prev.CreatedAt)

	opts := options.Replace().SetUpsert(true)
	_, err = s.forms.ReplaceOne(ctx, bson.M{"slug": form.Slug}, formDocument{FormDefinition: form}, opts)
	if err != nil {
		return model.FormDefinition{}, store.Unavailable("mongo.save_form", err)
	}
	return form, nil
}

func (s *Store) DeleteForm(ctx context.Context, slug string) error {
	res, err := s.forms.DeleteOne(ctx, bson.M{"slug": slug})
	if err != nil {
		return store.Unavailable("mongo.delete_form", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}

	_, err = s.responses.DeleteMany(ctx, bson.M{"form_slug": slug})
	if err != nil {
		return store.Unavailable("mongo.delete_form.responses", err)
	}
	return nil
}

func (s *Store) SaveDraft(ctx context.Context, key string, form model.FormDefinition) error {
	form = form.Clone()

	var prev draftDocument
	err := s.drafts.FindOne(ctx, bson.M{"_id": key}).Decode(&prev)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return store.Unavailable("mongo.save_draft.lookup", err)
	}
	store.Stamp(&form, prev.Form.CreatedAt)

	opts := options.Replace().SetUpsert(true)
	_, err = s.drafts.ReplaceOne(ctx, bson.M{"_id": key}, draftDocument{Key: key, Form: form}, opts)
	if err != nil {
		return store.Unavailable("mongo.save_draft", err)
	}
	return nil
}

func (s *Store) LoadDraft(ctx context.Context, key string) (model.FormDefinition, error) {
	var doc draftDocument
	err := s.drafts.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.FormDefinition{}, store.ErrNotFound
	}
	if err != nil {
		return model.FormDefinition{}, store.Unavailable("mongo.load_draft", err)
	}
	return doc.Form, nil
}

func (s *Store) ListResponses(ctx context.Context, slug string) ([]model.ResponseRecord, error) {
	form, err := s.LoadForm(ctx, slug)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.responses.Find(ctx, bson.M{"form_slug": slug}, opts)
	if err != nil {
		return nil, store.Unavailable("mongo.list_responses", err)
	}
	defer cursor.Close(ctx)

	responses := []model.ResponseRecord{}
	for cursor.Next(ctx) {
		var doc responseDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, store.Unavailable("mongo.list_responses.decode", err)
		}
		raw := make(map[string]json.RawMessage, len(doc.Responses))
		for key, value := range doc.Responses {
			b, err := json.Marshal(value)
			if err != nil {
				continue
			}
			raw[key] = b
		}
		responses = append(responses, model.ResponseRecord{
			ID:        doc.ID,
			FormSlug:  doc.FormSlug,
			Timestamp: doc.SubmittedAt.UTC(),
			IP:        doc.IP,
			Data:      model.DecodeData(form, raw),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, store.Unavailable("mongo.list_responses", err)
	}
	return responses, nil
}

func (s *Store) AppendResponse(ctx context.Context, slug string, r model.ResponseRecord) error {
	n, err := s.forms.CountDocuments(ctx, bson.M{"slug": slug}, options.Count().SetLimit(1))
	if err != nil {
		return store.Unavailable("mongo.insert_response.lookup", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	doc := responseDocument{
		ID:          r.ID,
		FormSlug:    slug,
		SubmittedAt: r.Timestamp.UTC(),
		IP:          r.IP,
		Responses:   make(map[string]any, len(r.Data)),
	}
	for key, value := range r.Data {
		doc.Responses[key] = model.ToPlain(value)
	}

	_, err = s.responses.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrExists
	}
	if err != nil {
		return store.Unavailable("mongo.insert_response", err)
	}
	return nil
}

func (s *Store) HasResponseFrom(ctx context.Context, slug, ip string) (bool, error) {
	n, err := s.responses.CountDocuments(ctx, bson.M{"form_slug": slug, "ip_address": ip}, options.Count().SetLimit(1))
	if err != nil {
		return false, store.Unavailable("mongo.get_ip", err)
	}
	return n > 0, nil
}

func (s *Store) PasswordHash(ctx context.Context, username string) ([]byte, error) {
	var doc userDocument
	err := s.users.FindOne(ctx, bson.M{"_id": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("mongo.get_user", err)
	}
	return doc.PasswordHash, nil
}

func (s *Store) PutUser(ctx context.Context, username string, hash []byte) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": username}, userDocument{Username: username, PasswordHash: hash}, opts)
	if err != nil {
		return store.Unavailable("mongo.put_user", err)
	}
	return nil
}

func (s *Store) StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error {
	_, err := s.tokens.InsertOne(ctx, tokenDocument{
		Username:       username,
		TokenID:        tokenID,
		RefreshTokenID: refreshTokenID,
		Expiration:     expiration.UTC(),
	})
	if err != nil {
		return store.Unavailable("mongo.store_token", err)
	}
	return nil
}

func (s *Store) ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) (time.Time, error) {
	var doc tokenDocument
	err := s.tokens.FindOneAndDelete(ctx, bson.M{
		"username":         username,
		"token_id":         tokenID,
		"refresh_token_id": refreshTokenID,
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, store.ErrNotFound
	}
	if err != nil {
		return time.Time{}, store.Unavailable("mongo.consume_token", err)
	}
	return doc.Expiration, nil
}

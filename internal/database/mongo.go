package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"qrshare/entity"
	"qrshare/internal/config"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

const (
	collectionUsers      = "users"
	collectionBundles    = "bundles"
	collectionScanEvents = "scan_events"
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	_ = connection.Disconnect(ctx)
}

func (m *MongoDB) GetUser(token string) (*entity.User, error) {
	ctx := context.Background()
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "token", Value: token}}
	var user entity.User
	err = collection.FindOne(ctx, filter).Decode(&user)
	return &user, err
}

func (m *MongoDB) BundleByPublicId(ctx context.Context, publicId string) (*entity.Bundle, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionBundles)
	filter := bson.D{{Key: "public_id", Value: publicId}}
	var bundle entity.Bundle
	err = collection.FindOne(ctx, filter).Decode(&bundle)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return &bundle, nil
}

func (m *MongoDB) SaveBundle(ctx context.Context, b *entity.Bundle) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionBundles)
	_, err = collection.InsertOne(ctx, b)
	return err
}

// UpdateBundleMeta applies only the fields the request carries. The view
// counter is owned by AdmitView and is never part of this write, so a
// metadata update racing with admitted scans cannot revert it.
func (m *MongoDB) UpdateBundleMeta(ctx context.Context, publicId string, upd *entity.BundleUpdate) error {
	set := bson.D{{Key: "updated_at", Value: nowUTC()}}
	if upd.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *upd.Title})
	}
	if upd.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *upd.Description})
	}
	if upd.CustomMessage != nil {
		set = append(set, bson.E{Key: "custom_message", Value: *upd.CustomMessage})
	}
	if upd.ShowLockStatus != nil {
		set = append(set, bson.E{Key: "access.show_lock_status", Value: *upd.ShowLockStatus})
	}
	if upd.ExpiryDate != nil {
		set = append(set, bson.E{Key: "access.expiry_date", Value: *upd.ExpiryDate})
	}
	if upd.ClearExpiryDate {
		set = append(set, bson.E{Key: "access.expiry_date", Value: nil})
	}
	if upd.PublishDate != nil {
		set = append(set, bson.E{Key: "access.publish_date", Value: *upd.PublishDate})
	}
	if upd.ClearPublishDate {
		set = append(set, bson.E{Key: "access.publish_date", Value: nil})
	}
	if upd.MaxViews != nil {
		set = append(set, bson.E{Key: "access.max_views", Value: *upd.MaxViews})
	}
	return m.updateBundleFields(ctx, publicId, set)
}

// UpdateApproval replaces the approval sub-record; nothing else.
func (m *MongoDB) UpdateApproval(ctx context.Context, publicId string, approval entity.Approval) error {
	set := bson.D{
		{Key: "approval", Value: approval},
		{Key: "updated_at", Value: nowUTC()},
	}
	return m.updateBundleFields(ctx, publicId, set)
}

// UpdatePasscode swaps the passcode material; nothing else.
func (m *MongoDB) UpdatePasscode(ctx context.Context, publicId string, hash, salt []byte) error {
	set := bson.D{
		{Key: "access.has_passcode", Value: true},
		{Key: "access.passcode_hash", Value: hash},
		{Key: "access.passcode_salt", Value: salt},
		{Key: "updated_at", Value: nowUTC()},
	}
	return m.updateBundleFields(ctx, publicId, set)
}

func (m *MongoDB) updateBundleFields(ctx context.Context, publicId string, set bson.D) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionBundles)
	filter := bson.D{{Key: "public_id", Value: publicId}}
	result, err := collection.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (m *MongoDB) DeleteBundle(ctx context.Context, publicId string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionBundles)
	result, err := collection.DeleteOne(ctx, bson.D{{Key: "public_id", Value: publicId}})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// TouchBundle bumps the update timestamp on a reused share and merges in
// a new custom message when one was supplied.
func (m *MongoDB) TouchBundle(ctx context.Context, publicId, customMessage string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	set := bson.D{{Key: "updated_at", Value: nowUTC()}}
	if customMessage != "" {
		set = append(set, bson.E{Key: "custom_message", Value: customMessage})
	}
	collection := connection.Database(m.database).Collection(collectionBundles)
	_, err = collection.UpdateOne(ctx, bson.D{{Key: "public_id", Value: publicId}}, bson.D{{Key: "$set", Value: set}})
	return err
}

// FindReusable looks up a bundle matching the dedup reuse key: same
// creator, exact document set (order-independent), public, no passcode,
// no expiry, unlimited views, approval approved or published. Returns
// (nil, nil) on no match.
func (m *MongoDB) FindReusable(ctx context.Context, creator string, documents []string) (*entity.Bundle, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	// documents are duplicate-free, so $all + $size is set equality.
	filter := bson.D{
		{Key: "creator_id", Value: creator},
		{Key: "documents", Value: bson.D{{Key: "$all", Value: documents}, {Key: "$size", Value: len(documents)}}},
		{Key: "access.is_public", Value: true},
		{Key: "access.has_passcode", Value: false},
		{Key: "access.expiry_date", Value: nil},
		{Key: "access.max_views", Value: 0},
		{Key: "approval.status", Value: bson.D{{Key: "$in", Value: bson.A{
			string(entity.ApprovalApproved), string(entity.ApprovalPublished),
		}}}},
	}
	collection := connection.Database(m.database).Collection(collectionBundles)
	var bundle entity.Bundle
	err = collection.FindOne(ctx, filter).Decode(&bundle)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	return &bundle, nil
}

// AdmitView is the single atomic quota-aware admission: the counter is
// incremented only when the filter still matches, so concurrent scans can
// never push current_views past max_views. A read-then-write here would
// be a race.
func (m *MongoDB) AdmitView(ctx context.Context, publicId string) (bool, int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, 0, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{
		{Key: "public_id", Value: publicId},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "access.max_views", Value: 0}},
			bson.D{{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{"$access.current_views", "$access.max_views"}}}}},
		}},
	}
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "access.current_views", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: nowUTC()}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	collection := connection.Database(m.database).Collection(collectionBundles)
	var bundle entity.Bundle
	err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&bundle)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either the bundle is gone or the quota is spent; distinguish so
		// the caller can 404 the former.
		count, cErr := collection.CountDocuments(ctx, bson.D{{Key: "public_id", Value: publicId}})
		if cErr != nil {
			return false, 0, fmt.Errorf("mongodb count: %w", cErr)
		}
		if count == 0 {
			return false, 0, entity.ErrNotFound
		}
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("mongodb find and update: %w", err)
	}
	return true, bundle.Access.CurrentViews, nil
}

// SaveScanEvent appends one audit event; events are insert-only.
func (m *MongoDB) SaveScanEvent(ctx context.Context, e *entity.ScanEvent) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionScanEvents)
	_, err = collection.InsertOne(ctx, e)
	return err
}

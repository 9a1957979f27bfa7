package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cartDocument is the Mongo layout. Prices are stored as decimal strings.
type cartDocument struct {
	OwnerID       string         `bson:"owner_id"`
	SchemaVersion int            `bson:"schema_version"`
	Revision      int64          `bson:"revision"`
	UpdatedAt     time.Time      `bson:"updated_at"`
	Lines         []lineDocument `bson:"lines"`
}

type lineDocument struct {
	ProductID   int64   `bson:"product_id"`
	Key         string  `bson:"key"`
	Title       string  `bson:"title"`
	UnitPrice   string  `bson:"unit_price"`
	Image       *string `bson:"image,omitempty"`
	Quantity    int     `bson:"quantity"`
	MaxQuantity *int    `bson:"max_quantity,omitempty"`
}

type MongoRepository struct {
	collection *mongo.Collection
	ownerID    string
}

func NewMongoRepository(db *mongo.Database, ownerID string) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
		ownerID:    ownerID,
	}
}

func (m *MongoRepository) Load(ctx context.Context) (*domain.CartRecord, error) {
	var doc cartDocument

	filter := bson.M{"owner_id": m.ownerID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if doc.SchemaVersion > domain.CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, doc.SchemaVersion)
	}
	return fromDocument(&doc)
}

func (m *MongoRepository) Save(ctx context.Context, record *domain.CartRecord) error {
	doc := toDocument(m.ownerID, record)

	filter := bson.M{"owner_id": m.ownerID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func toDocument(ownerID string, record *domain.CartRecord) *cartDocument {
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	doc := &cartDocument{
		OwnerID:       ownerID,
		SchemaVersion: domain.CurrentSchemaVersion,
		Revision:      int64(record.Revision),
		UpdatedAt:     updatedAt.UTC(),
		Lines:         make([]lineDocument, 0, len(record.Lines)),
	}
	for _, l := range record.Lines {
		doc.Lines = append(doc.Lines, lineDocument{
			ProductID:   l.ProductID,
			Key:         l.Key,
			Title:       l.Title,
			UnitPrice:   l.UnitPrice.String(),
			Image:       l.Image,
			Quantity:    l.Quantity,
			MaxQuantity: l.MaxQuantity,
		})
	}
	return doc
}

func fromDocument(doc *cartDocument) (*domain.CartRecord, error) {
	record := &domain.CartRecord{
		SchemaVersion: domain.CurrentSchemaVersion,
		OwnerID:       doc.OwnerID,
		Revision:      uint64(doc.Revision),
		UpdatedAt:     doc.UpdatedAt,
		Lines:         make([]domain.CartLine, 0, len(doc.Lines)),
	}
	for _, l := range doc.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price for line %q: %w", l.Key, err)
		}
		record.Lines = append(record.Lines, domain.CartLine{
			ProductID:   l.ProductID,
			Key:         l.Key,
			Title:       l.Title,
			UnitPrice:   price,
			Image:       l.Image,
			Quantity:    l.Quantity,
			MaxQuantity: l.MaxQuantity,
		})
	}
	return record, nil
}

package repository

import (
	"context"
	"time"

	"github.com/example/bookadmin/pkg/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ActionStatusChange is the audit action for an accepted status write.
const ActionStatusChange = "status_change"

// AuditRepository records order desk actions in MongoDB.
type AuditRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	service    string
}

func NewAuditRepository(cfg *config.MongoDBConfig, service string) (*AuditRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &AuditRepository{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		service:    service,
	}, nil
}

func (m *AuditRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *AuditRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// AuditLog is one recorded action on an order.
type AuditLog struct {
	ID        string    `bson:"_id,omitempty" json:"id,omitempty"`
	Service   string    `bson:"service" json:"service"`
	Action    string    `bson:"action" json:"action"`
	EntityID  string    `bson:"entity_id" json:"entityId"`
	Data      bson.M    `bson:"data" json:"data"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// StatusChangeLog builds the audit entry for a status transition.
func StatusChangeLog(orderID, from, to, actor string) *AuditLog {
	return &AuditLog{
		Action:   ActionStatusChange,
		EntityID: orderID,
		Data:     bson.M{"from": from, "to": to, "actor": actor},
	}
}

func (m *AuditRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.Service == "" {
		log.Service = m.service
	}
	log.CreatedAt = time.Now()
	_, err := m.collection.InsertOne(ctx, log)
	return err
}

// GetAuditLogs returns the newest entries for entityID first.
func (m *AuditRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []*AuditLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

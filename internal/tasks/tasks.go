package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/config"
	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/models"
)

// Task types handled by the background worker.
const (
	TypeOfferExpiry      = "offer:expire"
	TypeRedemptionExpiry = "redemption:expire"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	})
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks. Both sweeps are idempotent
// UpdateMany calls, so overlapping runs are harmless.
type TaskProcessor struct {
	cfg *config.Config
	db  *mongo.Database
}

func NewTaskProcessor(cfg *config.Config, db *mongo.Database) *TaskProcessor {
	return &TaskProcessor{cfg: cfg, db: db}
}

// HandleOfferExpiryTask cancels offers whose window has closed: collector
// bulk offers past their expiry while still open, and user offers past their
// availability window with no accepted bid.
func (p *TaskProcessor) HandleOfferExpiryTask(ctx context.Context, t *asynq.Task) error {
	now := time.Now().UTC()

	result, err := p.db.Collection("waste_offers").UpdateMany(ctx,
		bson.M{
			"status":     bson.M{"$in": bson.A{models.CollectorOfferAvailable, models.CollectorOfferReserved}},
			"expires_at": bson.M{"$lt": now},
		},
		bson.M{"$set": bson.M{"status": models.CollectorOfferCancelled, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to expire collector offers: %w", err)
	}
	if result.ModifiedCount > 0 {
		log.Printf("Expired %d collector offers.", result.ModifiedCount)
	}

	result, err = p.db.Collection("user_waste_offers").UpdateMany(ctx,
		bson.M{
			"status":          models.UserOfferAvailable,
			"available_until": bson.M{"$lt": now},
		},
		bson.M{"$set": bson.M{"status": models.UserOfferCancelled, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to expire user offers: %w", err)
	}
	if result.ModifiedCount > 0 {
		log.Printf("Expired %d user offers.", result.ModifiedCount)
	}
	return nil
}

// HandleRedemptionExpiryTask marks never-presented redemption codes as
// expired once past their deadline. Codes presented after their deadline are
// also expired lazily at verification time.
func (p *TaskProcessor) HandleRedemptionExpiryTask(ctx context.Context, t *asynq.Task) error {
	now := time.Now().UTC()
	result, err := p.db.Collection("reward_redemptions").UpdateMany(ctx,
		bson.M{
			"status":     models.RedemptionActive,
			"expires_at": bson.M{"$lt": now},
		},
		bson.M{"$set": bson.M{"status": models.RedemptionExpired}},
	)
	if err != nil {
		return fmt.Errorf("failed to expire redemptions: %w", err)
	}
	if result.ModifiedCount > 0 {
		log.Printf("Expired %d redemptions.", result.ModifiedCount)
	}
	return nil
}

// SetupServer configures and returns an Asynq server instance.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"default": 3,
				"low":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Error: %v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeOfferExpiry, processor.HandleOfferExpiryTask)
	mux.HandleFunc(TypeRedemptionExpiry, processor.HandleRedemptionExpiryTask)

	return srv, mux
}

// SetupScheduler registers the periodic sweep tasks at the configured
// interval and returns the scheduler.
func SetupScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
			DB:       rdb.Options().DB,
		},
		&asynq.SchedulerOpts{},
	)

	every := fmt.Sprintf("@every %s", cfg.ExpirySweepInterval)
	if _, err := scheduler.Register(every, asynq.NewTask(TypeOfferExpiry, nil), asynq.Queue("low")); err != nil {
		return nil, fmt.Errorf("failed to register offer expiry sweep: %w", err)
	}
	if _, err := scheduler.Register(every, asynq.NewTask(TypeRedemptionExpiry, nil), asynq.Queue("low")); err != nil {
		return nil, fmt.Errorf("failed to register redemption expiry sweep: %w", err)
	}
	return scheduler, nil
}

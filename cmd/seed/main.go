package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"usersvc/internal/config"
	"usersvc/internal/db"
	apperrors "usersvc/internal/errors"
	"usersvc/internal/logger"
	"usersvc/internal/model"
	"usersvc/internal/payment"
	"usersvc/internal/repository"
	"usersvc/internal/service"
)

const defaultSource = "seed/users.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	source := defaultSource
	if len(os.Args) > 1 {
		source = os.Args[1]
	}

	ctx := context.Background()
	mongoClient, err := db.NewMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	database := mongoClient.Database(cfg.MongoDatabase)
	if err := db.EnsureIndexes(ctx, database, log); err != nil {
		log.Fatal("failed to ensure indexes", zap.Error(err))
	}

	log.Info("loading users", zap.String("source", source))
	users, err := loadUsers(ctx, source)
	if err != nil {
		log.Fatal("failed to load users", zap.Error(err))
	}

	stripeClient := payment.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil, log)
	svc := service.NewUserService(repository.NewUserRepository(database), stripeClient, nil, log)

	res, err := seedUsers(ctx, svc, users)
	if err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("seed completed",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
	)
}

type seedResult struct {
	Created int
	Updated int
	Skipped int
}

// seedUsers creates users that do not exist yet and refreshes the profile
// fields of those that do. Entries without clerkId or email are skipped.
func seedUsers(ctx context.Context, svc service.UserService, users []model.CreateUserRequest) (seedResult, error) {
	var res seedResult
	for _, u := range users {
		u := u // per-iteration copy: the update below keeps pointers to u's fields
		if u.ClerkID == "" || u.Email == "" {
			res.Skipped++
			continue
		}

		existing, err := svc.FindByClerkID(ctx, u.ClerkID)
		switch {
		case stderrors.Is(err, apperrors.ErrUserNotFound):
			if _, err := svc.Create(ctx, u); err != nil {
				return res, fmt.Errorf("create %s: %w", u.ClerkID, err)
			}
			res.Created++
		case err != nil:
			return res, fmt.Errorf("lookup %s: %w", u.ClerkID, err)
		default:
			update := model.UpdateUserRequest{
				Email:     &u.Email,
				FirstName: &u.FirstName,
				LastName:  &u.LastName,
				Roles:     u.Roles,
				Metadata:  u.Metadata,
			}
			if _, err := svc.Update(ctx, existing.ID.Hex(), update); err != nil {
				return res, fmt.Errorf("update %s: %w", u.ClerkID, err)
			}
			res.Updated++
		}
	}
	return res, nil
}

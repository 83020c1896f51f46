package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/RyanW02/waterledger/internal/config"
	"github.com/RyanW02/waterledger/internal/logger"
	"github.com/RyanW02/waterledger/internal/server"
	"github.com/RyanW02/waterledger/internal/utils"
	"github.com/RyanW02/waterledger/pkg/blockchain"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"github.com/RyanW02/waterledger/pkg/offchain/leveldb"
	"github.com/RyanW02/waterledger/pkg/offchain/mongodb"
	"github.com/RyanW02/waterledger/pkg/verification"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var configPath = flag.String("config", "", "Path to config.json")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := utils.Must(logger.Build(cfg))
	defer logger.Sync()

	repository := buildRepository(cfg, logger.With(zap.String("module", "repository")))
	defer func() {
		ctx, cancelFunc := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFunc()

		if err := repository.Close(ctx); err != nil {
			logger.Error("Failed to close repository", zap.Error(err))
		}
	}()

	store := offchain.NewStore(logger.With(zap.String("module", "store")), repository, cfg.Store.LocatorBase)

	// Verification against the ledger is only served when a node is configured
	var events verification.EventSource
	if len(cfg.Blockchain.NodeAddresses) > 0 {
		blockchainClient := buildBlockchainClient(cfg, logger)
		defer blockchainClient.Close()

		events = blockchainClient
	} else {
		logger.Info("No blockchain nodes specified, ledger verification is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	httpServer := server.NewServer(cfg, logger.With(zap.String("module", "server")), store, events)
	if err := httpServer.Run(ctx); err != nil {
		logger.Error("HTTP server stopped", zap.Error(err))
		return
	}

	logger.Info("Shutdown gracefully")
}

func buildRepository(cfg config.Config, logger *zap.Logger) offchain.Repository {
	switch cfg.Store.Type {
	case config.StoreTypeMongoDB:
		repo := mongodb.NewMongoRepository(logger, connectMongo(cfg, logger))
		if err := repo.InitSchema(context.Background()); err != nil {
			logger.Fatal("failed to initialize MongoDB schema", zap.Error(err))
		}

		return repo
	default:
		repo, err := leveldb.Open(cfg.Store.LevelDB.Path)
		if err != nil {
			logger.Fatal("failed to open LevelDB store", zap.Error(err), zap.String("path", cfg.Store.LevelDB.Path))
		}

		return repo
	}
}

func connectMongo(cfg config.Config, logger *zap.Logger) *mongo.Database {
	opts := options.Client().
		ApplyURI(cfg.MongoDB.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}

	// Ping server
	if err := client.Ping(context.Background(), nil); err != nil {
		logger.Fatal("failed to ping MongoDB server", zap.Error(err))
	}

	return client.Database(cfg.MongoDB.DatabaseName)
}

func buildBlockchainClient(cfg config.Config, logger *zap.Logger) *blockchain.Client {
	nodes, err := blockchain.Dial(cfg.Blockchain.NodeAddresses)
	if err != nil {
		logger.Fatal("Failed to create blockchain client", zap.Error(err))
	}

	// Verification only reads, so a key is optional
	var key ed25519.PrivateKey
	if cfg.Blockchain.KeyFile != "" {
		key, err = utils.LoadPrivateKey(cfg.Blockchain.KeyFile)
		if err != nil {
			logger.Fatal("Failed to load private key", zap.Error(err), zap.String("path", cfg.Blockchain.KeyFile))
		}
	}

	return blockchain.NewClient(logger, nodes, key, blockchain.Config{
		RequestTimeout: cfg.Blockchain.RequestTimeout.Duration(),
		PollFrequency:  cfg.Blockchain.PollFrequency.Duration(),
		PollTimeout:    cfg.Blockchain.PollTimeout.Duration(),
	})
}

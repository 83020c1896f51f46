package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RyanW02/waterledger/internal/config"
	"github.com/RyanW02/waterledger/internal/logger"
	"github.com/RyanW02/waterledger/internal/utils"
	"github.com/RyanW02/waterledger/pkg/auditapp"
	"github.com/RyanW02/waterledger/pkg/multiplexer"
	dbm "github.com/cometbft/cometbft-db"
	abci "github.com/cometbft/cometbft/abci/types"
	cfg "github.com/cometbft/cometbft/config"
	tmflags "github.com/cometbft/cometbft/libs/cli/flags"
	"github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	tendermintConfigPath = flag.String("tendermint_config", "", "Path to cometbft config.toml")
	configPath           = flag.String("config", "", "Path to config.json")
)

func main() {
	flag.Parse()

	conf := loadConfig()

	logger := utils.Must(logger.Build(conf))
	defer logger.Sync()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.Fatal("failed to find home directory", zap.Error(err))
	}

	// Set up state store
	dbGenerator := newDbGenerator(logger, conf)
	stateDb := utils.Must(dbGenerator("state"))

	auditApp, err := auditapp.NewAuditApp(logger, utils.Must(dbGenerator("audit")))
	if err != nil {
		logger.Fatal("failed to load audit ledger", zap.Error(err))
	}

	app, err := multiplexer.NewApplication(logger, stateDb, auditApp)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}

	app.RetainBlocks = conf.Ledger.RetainBlocks

	configFile := *tendermintConfigPath
	if configFile == "" {
		configFile = conf.Ledger.TendermintConfig
	}
	configFile = strings.ReplaceAll(configFile, "$HOME", homeDir)

	node, err := newNode(app, configFile, cfg.DefaultDBProvider)
	if err != nil {
		logger.Fatal("failed to create new node", zap.Error(err))
	}

	if err := node.Start(); err != nil {
		logger.Fatal("failed to start CometBFT node", zap.Error(err))
	}

	logger.Info("Ledger node started", zap.String("tendermint_config", configFile))

	defer func() {
		if err := node.Stop(); err != nil {
			logger.Error("failed to stop CometBFT node", zap.Error(err))
		}

		node.Wait()
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Received shutdown signal!")
}

// loadConfig writes out the default config and exits if an explicitly requested config file is missing.
func loadConfig() config.Config {
	if *configPath != "" {
		if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
			defaultConf := utils.Must(config.Default())
			marshalled := utils.Must(json.MarshalIndent(defaultConf, "", "  "))

			if err := os.WriteFile(*configPath, marshalled, 0644); err != nil {
				panic(fmt.Errorf("failed to write default config file: %w", err))
			}

			fmt.Fprintf(os.Stderr, "created default config file at %s\n", *configPath)
			os.Exit(1)
		}
	}

	return utils.Must(config.Load(*configPath))
}

func newNode(app abci.Application, configFile string, dbProvider cfg.DBProvider) (*nm.Node, error) {
	config := cfg.DefaultConfig()
	config.RootDir = filepath.Dir(filepath.Dir(configFile))

	// Read config
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read cometbft config file: %w", err)
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cometbft config file: %w", err)
	}

	if err := config.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("cometbft config is invalid: %w", err)
	}

	logger := log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	var err error
	logger, err = tmflags.ParseLogLevel(config.LogLevel, logger, cfg.DefaultLogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	pv := privval.LoadFilePV(config.PrivValidatorKeyFile(), config.PrivValidatorStateFile())

	nodeKey, err := p2p.LoadNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load node key: %w", err)
	}

	node, err := nm.NewNode(
		config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(app),
		nm.DefaultGenesisDocProviderFunc(config),
		dbProvider,
		nm.DefaultMetricsProvider(config.Instrumentation),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create new CometBFT node: %w", err)
	}

	return node, nil
}

func newDbGenerator(logger *zap.Logger, conf config.Config) func(name string) (dbm.DB, error) {
	switch conf.Ledger.StateStore.Type {
	case config.StateStoreTypeDisk:
		if err := os.MkdirAll(conf.Ledger.StateStore.Directory, 0755); err != nil {
			logger.Fatal("failed to create state store directory", zap.Error(err))
		}

		return func(name string) (dbm.DB, error) {
			return dbm.NewGoLevelDB(name, conf.Ledger.StateStore.Directory)
		}
	case config.StateStoreTypeMemory:
		logger.Warn("Using in-memory state store, ledger state will not survive a restart")

		return func(name string) (dbm.DB, error) {
			return dbm.NewMemDB(), nil
		}
	default:
		logger.Fatal("unknown state store type", zap.String("type", string(conf.Ledger.StateStore.Type)))
		panic("unreachable")
	}
}

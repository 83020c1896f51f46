package config

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/RyanW02/waterledger/pkg/types"
	"github.com/caarlos0/env/v10"
)

type (
	Config struct {
		Production bool       `json:"production" env:"PRODUCTION" envDefault:"false"`
		PrettyLogs bool       `json:"pretty_logs" env:"PRETTY_LOGS" envDefault:"false"`
		LogLevel   string     `json:"log_level" env:"LOG_LEVEL" envDefault:"info"`
		Server     Server     `json:"server" envPrefix:"SERVER_"`
		Store      Store      `json:"store" envPrefix:"STORE_"`
		MongoDB    MongoDB    `json:"mongodb" envPrefix:"MONGODB_"`
		Ledger     Ledger     `json:"ledger" envPrefix:"LEDGER_"`
		Blockchain Blockchain `json:"blockchain" envPrefix:"BLOCKCHAIN_"`
	}

	Server struct {
		Address        string                   `json:"address" env:"ADDRESS" envDefault:"0.0.0.0:8080"`
		RequestTimeout types.MarshalledDuration `json:"request_timeout" env:"REQUEST_TIMEOUT" envDefault:"5s"`
	}

	Store struct {
		Type        StoreType `json:"type" env:"TYPE" envDefault:"leveldb"`
		LocatorBase string    `json:"locator_base" env:"LOCATOR_BASE" envDefault:"offchain://water-audit"`
		LevelDB     struct {
			Path string `json:"path" env:"PATH" envDefault:"offchain.db"`
		} `json:"leveldb" envPrefix:"LEVELDB_"`
	}

	MongoDB struct {
		URI          string `json:"uri" env:"URI"`
		DatabaseName string `json:"database_name" env:"DATABASE_NAME" envDefault:"waterledger"`
	}

	Ledger struct {
		TendermintConfig string `json:"tendermint_config" env:"TENDERMINT_CONFIG" envDefault:"$HOME/.cometbft/config/config.toml"`
		RetainBlocks     int64  `json:"retain_blocks" env:"RETAIN_BLOCKS" envDefault:"0"`
		StateStore       struct {
			Type      StateStoreType `json:"type" env:"TYPE" envDefault:"disk"`
			Directory string         `json:"directory" env:"DIRECTORY" envDefault:"state"`
		} `json:"state_store" envPrefix:"STATE_STORE_"`
	}

	Blockchain struct {
		NodeAddresses  []string                 `json:"node_addresses" env:"NODE_ADDRESSES" envSeparator:","`
		KeyFile        string                   `json:"key_file" env:"KEY_FILE"`
		RequestTimeout types.MarshalledDuration `json:"request_timeout" env:"REQUEST_TIMEOUT" envDefault:"5s"`
		PollFrequency  types.MarshalledDuration `json:"poll_frequency" env:"POLL_FREQUENCY" envDefault:"200ms"`
		PollTimeout    types.MarshalledDuration `json:"poll_timeout" env:"POLL_TIMEOUT" envDefault:"15s"`
	}

	StoreType      string
	StateStoreType string
)

const (
	StoreTypeLevelDB StoreType = "leveldb"
	StoreTypeMongoDB StoreType = "mongodb"

	StateStoreTypeDisk   StateStoreType = "disk"
	StateStoreTypeMemory StateStoreType = "memory"
)

const DefaultPath = "config.json"

var ErrInvalidConfig = errors.New("invalid config")

// Load reads the JSON config file at path, falling back to environment variables if it does not exist. Values
// missing from the file keep their defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}

	conf, err := Default()
	if err != nil {
		return Config{}, err
	}

	// Try to load JSON config file, but fallback to environment variables if it does not exist
	bytes, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(bytes, &conf); err != nil {
			return Config{}, err
		}

		return conf, conf.Validate()
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	if err := env.Parse(&conf); err != nil {
		return Config{}, err
	}

	return conf, conf.Validate()
}

// Default returns the config with every default applied.
func Default() (Config, error) {
	var conf Config
	if err := env.ParseWithOptions(&conf, env.Options{Environment: map[string]string{}}); err != nil {
		return Config{}, err
	}

	return conf, nil
}

func (c Config) Validate() error {
	switch c.Store.Type {
	case StoreTypeLevelDB:
	case StoreTypeMongoDB:
		if c.MongoDB.URI == "" {
			return errors.Join(ErrInvalidConfig, errors.New("mongodb uri is required for the mongodb store"))
		}
	default:
		return errors.Join(ErrInvalidConfig, errors.New("unknown store type: "+string(c.Store.Type)))
	}

	switch c.Ledger.StateStore.Type {
	case StateStoreTypeDisk, StateStoreTypeMemory:
	default:
		return errors.Join(ErrInvalidConfig, errors.New("unknown state store type: "+string(c.Ledger.StateStore.Type)))
	}

	return nil
}

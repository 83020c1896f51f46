package multiplexer

import (
	"encoding/json"
	"sort"

	"github.com/RyanW02/waterledger/internal/utils"
	dbm "github.com/cometbft/cometbft-db"
)

const stateKey = "muxer_state"

// State is the multiplexer's own bookkeeping, persisted on every Commit so that Info can report the last block
// after a restart.
type State struct {
	db        dbm.DB
	Height    int64             `json:"height"`
	AppHashes map[string][]byte `json:"app_hashes"`
}

// GenerateAppHash combines the hashes of every sub-application in name order.
func (s State) GenerateAppHash() []byte {
	appNames := utils.Keys(s.AppHashes)
	sort.Strings(appNames)

	var combined []byte
	for _, name := range appNames {
		combined = append(combined, s.AppHashes[name]...)
	}

	return utils.Sha256Sum(combined)
}

func loadState(db dbm.DB) (State, error) {
	state := State{
		db:        db,
		AppHashes: make(map[string][]byte),
	}

	stateBytes, err := db.Get(utils.Bytes(stateKey))
	if err != nil {
		return State{}, err
	}

	if len(stateBytes) == 0 {
		return state, nil
	}

	if err := json.Unmarshal(stateBytes, &state); err != nil {
		return State{}, err
	}

	if state.AppHashes == nil {
		state.AppHashes = make(map[string][]byte)
	}

	return state, nil
}

func saveState(state State) error {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		return err
	}

	return state.db.SetSync(utils.Bytes(stateKey), stateBytes)
}

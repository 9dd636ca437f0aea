package game

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/types"
)

// LoadPack reads and decodes the quiz pack at path. The pack is validated
// before it is handed to a runner so a bad file fails the startGame command
// instead of a mid-game round.
func LoadPack(path string) (types.Pack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Pack{}, fmt.Errorf("failed to read pack: %w", err)
	}

	var pack types.Pack
	if err := json.Unmarshal(raw, &pack); err != nil {
		return types.Pack{}, fmt.Errorf("failed to decode pack: %w", err)
	}

	if err := pack.Validate(); err != nil {
		return types.Pack{}, fmt.Errorf("invalid pack: %w", err)
	}
	return pack, nil
}

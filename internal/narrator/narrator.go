package narrator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/reqfaster-debug/bunker-ws/internal/character"
	"github.com/reqfaster-debug/bunker-ws/internal/game"
)

// Narrator turns a prompt about the current game into a feed line.
// Implementations may call out to an external text service; callers
// must tolerate errors and fall back to the raw prompt.
type Narrator interface {
	Line(ctx context.Context, prompt string) (string, error)
}

// BuildPrompt summarizes the disaster and what is publicly known about
// the survivors, for a narrator to riff on.
func BuildPrompt(s *game.State) string {
	var b strings.Builder
	if s.GameData != nil {
		fmt.Fprintf(&b, "Disaster: %s. Bunker: %s (capacity %d).",
			s.GameData.Disaster, s.GameData.Bunker.Description, s.GameData.Bunker.Capacity)
	}
	for _, p := range s.Roster() {
		if p.Character == nil {
			continue
		}
		var known []string
		for _, name := range []character.TraitName{
			character.TraitGender, character.TraitProfession, character.TraitHobby, character.TraitPhobia,
		} {
			if tr := p.Character.Trait(name); tr != nil && tr.Revealed {
				known = append(known, tr.Primary())
			}
		}
		if len(known) > 0 {
			fmt.Fprintf(&b, " %s: %s.", p.Name, strings.Join(known, ", "))
		}
	}
	return b.String()
}

// Static serves canned lines without any external service. It is the
// default narrator and the fallback when a remote one fails.
type Static struct {
	mu    sync.Mutex
	rng   *rand.Rand
	lines []string
}

var defaultLines = []string{
	"A distant rumble shakes dust from the bunker ceiling.",
	"The ventilation system sputters, then steadies.",
	"Someone finds an old newspaper from before the catastrophe.",
	"The radio crackles with a voice that cuts out mid-sentence.",
	"Supplies are counted again. The numbers do not improve.",
	"A cold draft passes through the bunker. Nobody finds the source.",
	"The lights flicker twice and hold.",
	"Scratching sounds come from behind the east wall.",
}

func NewStatic(rng *rand.Rand) *Static {
	return &Static{rng: rng, lines: defaultLines}
}

func (s *Static) Line(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines[s.rng.Intn(len(s.lines))], nil
}

package character

// TraitName identifies one of the nine slots on a character sheet.
type TraitName string

const (
	TraitGender      TraitName = "gender"
	TraitBody        TraitName = "body"
	TraitPersonality TraitName = "personality"
	TraitProfession  TraitName = "profession"
	TraitHobby       TraitName = "hobby"
	TraitPhobia      TraitName = "phobia"
	TraitInventory   TraitName = "inventory"
	TraitExtra       TraitName = "extra"
	TraitHealth      TraitName = "health"
)

// None is the placeholder left behind when the last item of a
// multi-value trait is removed. The list never goes empty.
const None = "none"

var allTraits = []TraitName{
	TraitGender, TraitBody, TraitPersonality, TraitProfession, TraitHobby,
	TraitPhobia, TraitInventory, TraitExtra, TraitHealth,
}

func (n TraitName) Valid() bool {
	for _, t := range allTraits {
		if t == n {
			return true
		}
	}
	return false
}

// Multi reports whether the trait holds an ordered list of items
// rather than exactly one value.
func (n TraitName) Multi() bool {
	return n == TraitInventory || n == TraitExtra
}

type Trait struct {
	Values   []string `json:"values"`
	Revealed bool     `json:"revealed"`
}

// Primary is the first item of the list; for single-value traits it is
// the value itself.
func (t *Trait) Primary() string {
	if len(t.Values) == 0 {
		return None
	}
	return t.Values[0]
}

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Severities is the ordinal scale, mildest first.
var Severities = []Severity{SeverityMild, SeverityModerate, SeveritySevere, SeverityCritical}

func (s Severity) Index() int {
	for i, sev := range Severities {
		if sev == s {
			return i
		}
	}
	return -1
}

func (s Severity) Valid() bool { return s.Index() >= 0 }

type Disease struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
}

type Health struct {
	Diseases []Disease `json:"diseases"`
	Revealed bool      `json:"revealed"`
}

// Healthy means the disease list is empty.
func (h Health) Healthy() bool { return len(h.Diseases) == 0 }

type Profession struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Gender values form a closed set; they are not table-driven because
// the roster normalization in Normalize depends on them.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderNeutral = "neutral"
)

// Character is one player's sheet. Traits and Health are created once
// at game start and only mutated afterwards, never regenerated.
type Character struct {
	Age        int                  `json:"age"`
	Experience int                  `json:"experience"`
	Traits     map[TraitName]*Trait `json:"traits"`
	Health     Health               `json:"health"`
}

// Trait returns the named slot, or nil for health and unknown names.
func (c *Character) Trait(name TraitName) *Trait {
	return c.Traits[name]
}

func (c *Character) Gender() string {
	if t := c.Traits[TraitGender]; t != nil {
		return t.Primary()
	}
	return ""
}

func (c *Character) setGender(g string) {
	c.Traits[TraitGender] = &Trait{Values: []string{g}, Revealed: c.Traits[TraitGender].Revealed}
}

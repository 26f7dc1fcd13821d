package character

import "math/rand"

const (
	minAge = 18
	maxAge = 90

	// redrawAttempts bounds how long Redraw hunts for a value that
	// differs from the current one.
	redrawAttempts = 50
)

// Params are the generation knobs that have diverged between historic
// revisions of the game. They are configuration, not constants.
type Params struct {
	MaleWeight   float64 // probability of drawing "male"
	FemaleWeight float64 // probability of drawing "female"; the rest is neutral
	YoungDivisor int     // max experience = age / YoungDivisor for age <= 24
	AdultDivisor int     // max experience = age / AdultDivisor otherwise
}

func DefaultParams() Params {
	return Params{
		MaleWeight:   0.45,
		FemaleWeight: 0.45,
		YoungDivisor: 8,
		AdultDivisor: 4,
	}
}

// Generator produces character sheets from a table set. It is
// deterministic given a seeded rng. Not safe for concurrent use; each
// lobby owns its own instance.
type Generator struct {
	tables Tables
	params Params
	rng    *rand.Rand
}

func NewGenerator(tables Tables, params Params, rng *rand.Rand) *Generator {
	return &Generator{tables: tables, params: params, rng: rng}
}

func (g *Generator) Tables() Tables { return g.tables }

func (g *Generator) pick(values []string) string {
	return values[g.rng.Intn(len(values))]
}

func (g *Generator) gender() string {
	r := g.rng.Float64()
	switch {
	case r < g.params.MaleWeight:
		return GenderMale
	case r < g.params.MaleWeight+g.params.FemaleWeight:
		return GenderFemale
	default:
		return GenderNeutral
	}
}

func (g *Generator) experience(age int) int {
	div := g.params.AdultDivisor
	if age <= 24 {
		div = g.params.YoungDivisor
	}
	max := age / div
	if max < 1 {
		max = 1
	}
	return g.rng.Intn(max) + 1
}

// RandomSeverity draws uniformly from the ordinal scale.
func (g *Generator) RandomSeverity() Severity {
	return Severities[g.rng.Intn(len(Severities))]
}

// RandomHealth draws a whole new health state. One extra slot beyond
// the disease table stands for "healthy".
func (g *Generator) RandomHealth() []Disease {
	i := g.rng.Intn(len(g.tables.Diseases) + 1)
	if i == len(g.tables.Diseases) {
		return nil
	}
	return []Disease{{Name: g.tables.Diseases[i], Severity: g.RandomSeverity()}}
}

// RandomDisease draws a disease entry, never the healthy slot.
func (g *Generator) RandomDisease() Disease {
	return Disease{
		Name:     g.pick(g.tables.Diseases),
		Severity: g.RandomSeverity(),
	}
}

// Redraw picks a new value for the trait, retrying a bounded number of
// times until it differs from current. Falls back to the last draw if
// the table is too small to offer an alternative.
func (g *Generator) Redraw(name TraitName, current string) string {
	var v string
	for i := 0; i < redrawAttempts; i++ {
		if name == TraitGender {
			v = g.gender()
		} else {
			v = g.pick(g.tables.values(name))
		}
		if v != current {
			return v
		}
	}
	return v
}

func (g *Generator) RandomDisaster() string { return g.pick(g.tables.Disasters) }
func (g *Generator) RandomBunker() string   { return g.pick(g.tables.Bunkers) }

// Character generates one sheet. Multi-value traits start as a
// single-item list; extra items only appear through mutation ops.
func (g *Generator) Character() *Character {
	age := g.rng.Intn(maxAge-minAge+1) + minAge
	c := &Character{
		Age:        age,
		Experience: g.experience(age),
		Traits:     make(map[TraitName]*Trait, 8),
		Health:     Health{Diseases: g.RandomHealth()},
	}
	c.Traits[TraitGender] = &Trait{Values: []string{g.gender()}}
	c.Traits[TraitBody] = &Trait{Values: []string{g.pick(g.tables.Bodies)}}
	c.Traits[TraitPersonality] = &Trait{Values: []string{g.pick(g.tables.Personalities)}}
	c.Traits[TraitProfession] = &Trait{Values: []string{g.tables.Professions[g.rng.Intn(len(g.tables.Professions))].Name}}
	c.Traits[TraitHobby] = &Trait{Values: []string{g.pick(g.tables.Hobbies)}}
	c.Traits[TraitPhobia] = &Trait{Values: []string{g.pick(g.tables.Phobias)}}
	c.Traits[TraitInventory] = &Trait{Values: []string{g.pick(g.tables.Inventory)}}
	c.Traits[TraitExtra] = &Trait{Values: []string{g.pick(g.tables.Extras)}}
	return c
}

// Normalize runs the once-per-game gender correction over the full
// roster: at least one male and one female whenever possible, and at
// most one neutral-gendered character.
func (g *Generator) Normalize(roster []*Character) {
	hasGender := func(want string) bool {
		for _, c := range roster {
			if c.Gender() == want {
				return true
			}
		}
		return false
	}

	force := func(want, avoid string) {
		for _, c := range roster {
			if c.Gender() != avoid {
				c.setGender(want)
				return
			}
		}
		// Uniform roster of the other binary gender: reassigning the
		// last sheet keeps at least one of each when len >= 2.
		if len(roster) >= 2 {
			roster[len(roster)-1].setGender(want)
		}
	}

	if !hasGender(GenderMale) {
		force(GenderMale, GenderFemale)
	}
	if !hasGender(GenderFemale) {
		force(GenderFemale, GenderMale)
	}

	seen := false
	for _, c := range roster {
		if c.Gender() != GenderNeutral {
			continue
		}
		if !seen {
			seen = true
			continue
		}
		if g.rng.Float64() < 0.5 {
			c.setGender(GenderMale)
		} else {
			c.setGender(GenderFemale)
		}
	}
}

package character

// Tables lists the allowed values per trait. The generator only ever
// draws from these; mutation ops validate against them.
type Tables struct {
	Bodies        []string
	Personalities []string
	Professions   []Profession
	Hobbies       []string
	Phobias       []string
	Inventory     []string
	Extras        []string
	Diseases      []string
	Disasters     []string
	Bunkers       []string
}

func (t Tables) values(name TraitName) []string {
	switch name {
	case TraitGender:
		return []string{GenderMale, GenderFemale, GenderNeutral}
	case TraitBody:
		return t.Bodies
	case TraitPersonality:
		return t.Personalities
	case TraitProfession:
		names := make([]string, len(t.Professions))
		for i, p := range t.Professions {
			names[i] = p.Name
		}
		return names
	case TraitHobby:
		return t.Hobbies
	case TraitPhobia:
		return t.Phobias
	case TraitInventory:
		return t.Inventory
	case TraitExtra:
		return t.Extras
	default:
		return nil
	}
}

// Contains reports whether value is a legal entry for the trait.
func (t Tables) Contains(name TraitName, value string) bool {
	for _, v := range t.values(name) {
		if v == value {
			return true
		}
	}
	return false
}

// ContainsDisease checks the closed disease vocabulary.
func (t Tables) ContainsDisease(name string) bool {
	for _, d := range t.Diseases {
		if d == name {
			return true
		}
	}
	return false
}

// ProfessionDescription returns the flavor text for a profession name,
// or an empty string if the name is unknown.
func (t Tables) ProfessionDescription(name string) string {
	for _, p := range t.Professions {
		if p.Name == name {
			return p.Description
		}
	}
	return ""
}

// DefaultTables is the built-in content set, used when no external
// table provider is configured.
func DefaultTables() Tables {
	return Tables{
		Bodies: []string{
			"slim", "athletic", "average", "stocky", "heavy", "obese",
		},
		Personalities: []string{
			"brave", "cowardly", "aggressive", "calm", "kind", "cruel",
			"cunning", "honest", "deceitful", "generous", "greedy",
		},
		Professions: []Profession{
			{Name: "doctor", Description: "can treat the sick"},
			{Name: "engineer", Description: "can repair machinery"},
			{Name: "soldier", Description: "trained with weapons"},
			{Name: "teacher", Description: "can educate others"},
			{Name: "builder", Description: "can construct shelter"},
			{Name: "farmer", Description: "can grow food"},
			{Name: "chemist", Description: "can synthesize medicine"},
		},
		Hobbies: []string{
			"fishing", "hunting", "reading", "sports", "music",
			"painting", "cooking", "gardening",
		},
		Phobias: []string{
			"claustrophobia", "arachnophobia", "acrophobia",
			"nyctophobia", "none",
		},
		Inventory: []string{
			"first aid kit", "knife", "flashlight", "rope", "matches",
			"canned food", "tent", "compass", "axe",
		},
		Extras: []string{
			"driver's license", "speaks three languages", "survival training",
			"medical degree", "technical degree", "ham radio operator",
		},
		Diseases: []string{
			"diabetes", "asthma", "hypertension", "allergy", "arthritis",
			"ulcer", "hepatitis", "tuberculosis", "epilepsy", "migraine",
		},
		Disasters: []string{
			"Nuclear war. The surface is a radioactive wasteland.",
			"Global pandemic. A virus wiped out 90% of the population.",
			"Asteroid impact. The climate has changed forever.",
			"Supervolcano eruption. Years of volcanic winter ahead.",
			"Zombie outbreak. The world has collapsed into chaos.",
			"Climate catastrophe. Most of the land is underwater.",
		},
		Bunkers: []string{
			"Rated for 4 years, food for 3. Air filtration and a medical bay.",
			"Rated for 3 years, food for 2. Fuel for 2 years and working internet.",
			"Rated for 5 years, food for 4. A gym and a library.",
			"Rated for 2 years, food for 5. Plenty of supplies, poor ventilation.",
		},
	}
}

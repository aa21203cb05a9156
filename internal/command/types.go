package command

// Command is one parsed line of player text.
type Command struct {
	Raw        string
	Normalised string
	Verb       string
	Args       []string
	Confidence float64
	// Clarify is set when the line could not be mapped with confidence;
	// Verb may still hold the best guess.
	Clarify string
}

// Context is what the parser knows about the running session.
type Context struct {
	Buildings []string
	Resources []string
	// Entities are entity ids (e.g. W7, B2) usable as assign targets.
	Entities []string
}

type argKind int

const (
	argNone argKind = iota
	argDirection
	argBuilding
	argResource
	argEntity
	argNumber
)

type Def struct {
	Canonical string
	Aliases   []string
	Args      []argKind
	MinArgs   int
}

package wiki

// Game is the wiki's current snapshot for one row of the compatibility
// table. The rating is a categorical label, not a number.
type Game struct {
	Title  string
	Link   string
	Rating string
}

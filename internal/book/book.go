package book

import (
	"strings"

	"github.com/corentings/chess/v2"

	"chess_review/internal/pgn"
)

// maxBookPly bounds how deep a game can still be inside opening theory.
const maxBookPly = 25

// Entry is one known opening line in SAN, space separated.
type Entry struct {
	EcoCode string
	Name    string
	Moves   string
}

// Book maps normalized position keys to opening metadata. Entries are
// expanded once at construction; lookups never touch the engine.
type Book struct {
	byKey map[string]Entry
}

// New expands the given lines into a position-key table. A line that fails
// to replay is truncated at the bad move, the prefix is still indexed.
// Earlier entries win shared positions, so the table should be ordered from
// general lines to specific ones.
func New(entries []Entry) *Book {
	b := &Book{byKey: make(map[string]Entry, len(entries)*8)}
	notation := chess.AlgebraicNotation{}

	for _, entry := range entries {
		game := chess.NewGame()
		for _, san := range strings.Fields(entry.Moves) {
			mv, err := notation.Decode(game.Position(), san)
			if err != nil {
				break
			}
			if err := game.Move(mv, nil); err != nil {
				break
			}
			key := positionKey(game.Position().String())
			if _, ok := b.byKey[key]; !ok {
				b.byKey[key] = entry
			}
		}
	}
	return b
}

// Default returns a book over the embedded ECO table.
func Default() *Book {
	return New(ecoTable)
}

// IsBookMove reports whether playing moveUci from fenBefore stays inside
// known opening theory. Any replay error degrades to "not book".
func (b *Book) IsBookMove(fenBefore, moveUci string, ply int) bool {
	if ply > maxBookPly {
		return false
	}

	game, err := pgn.GameFromFEN(fenBefore)
	if err != nil {
		return false
	}
	mv, err := chess.UCINotation{}.Decode(game.Position(), moveUci)
	if err != nil {
		return false
	}
	if err := game.Move(mv, nil); err != nil {
		return false
	}

	if _, ok := b.byKey[positionKey(game.Position().String())]; ok {
		return true
	}
	// Already inside a known line: treat the continuation as book too.
	_, ok := b.byKey[positionKey(fenBefore)]
	return ok
}

// Lookup returns the opening reached by the given position, if known.
func (b *Book) Lookup(fen string) (Entry, bool) {
	entry, ok := b.byKey[positionKey(fen)]
	return entry, ok
}

// positionKey keeps board, side to move, castling and en passant; the move
// counters are irrelevant for identifying an opening position.
func positionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return fen
	}
	return strings.Join(fields[:4], " ")
}

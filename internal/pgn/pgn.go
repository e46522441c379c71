package pgn

import (
	"regexp"
	"strings"

	"github.com/corentings/chess/v2"

	"chess_review/internal/domain/review"
)

// ParsedMove is one transcript move replayed on a legal board.
// For consecutive moves FenBefore of move i+1 equals FenAfter of move i.
type ParsedMove struct {
	Ply            int
	San            string
	Uci            string
	SideToMove     review.Color
	FenBefore      string
	FenAfter       string
	LegalMoveCount int
}

var (
	commentRe    = regexp.MustCompile(`\{[^}]*\}`)
	nagRe        = regexp.MustCompile(`\$\d+`)
	moveNumberRe = regexp.MustCompile(`^\d+\.+`)
)

var resultTokens = map[string]bool{
	"1-0":     true,
	"0-1":     true,
	"1/2-1/2": true,
	"*":       true,
}

// Parse replays a PGN-style transcript into an ordered move list.
// Parsing is best effort: unparseable or illegal tokens are skipped so a
// single corrupt token never loses the rest of the game.
func Parse(transcript string) []ParsedMove {
	game := chess.NewGame()
	notation := chess.AlgebraicNotation{}
	uciNotation := chess.UCINotation{}

	moves := make([]ParsedMove, 0, 80)
	ply := 1

	for _, token := range tokenize(transcript) {
		pos := game.Position()
		legalCount := len(pos.ValidMoves())
		fenBefore := pos.String()
		side := colorOf(pos.Turn())

		mv, err := notation.Decode(pos, token)
		if err != nil {
			continue
		}
		if err := game.Move(mv, nil); err != nil {
			continue
		}

		moves = append(moves, ParsedMove{
			Ply:            ply,
			San:            notation.Encode(pos, mv),
			Uci:            uciNotation.Encode(pos, mv),
			SideToMove:     side,
			FenBefore:      fenBefore,
			FenAfter:       game.Position().String(),
			LegalMoveCount: legalCount,
		})
		ply++
	}

	return moves
}

func tokenize(transcript string) []string {
	text := stripTagPairs(transcript)
	text = commentRe.ReplaceAllString(text, " ")
	text = stripVariations(text)
	text = nagRe.ReplaceAllString(text, " ")

	var tokens []string
	for _, raw := range strings.Fields(text) {
		token := moveNumberRe.ReplaceAllString(raw, "")
		token = strings.TrimRight(token, "!?")
		if token == "" || resultTokens[token] {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func stripTagPairs(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "[") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// stripVariations removes parenthesized variations, including nested ones.
func stripVariations(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
			b.WriteRune(' ')
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GameFromFEN rebuilds a playable game from a FEN string.
func GameFromFEN(fen string) (*chess.Game, error) {
	option, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(option), nil
}

func colorOf(c chess.Color) review.Color {
	if c == chess.White {
		return review.White
	}
	return review.Black
}

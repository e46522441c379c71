package analysis

import (
	"github.com/corentings/chess/v2"

	"chess_review/internal/pgn"
)

// Material values for exchange arithmetic. The king is worth zero here: it
// can initiate a capture but is never truly lost in an exchange.
var pieceValues = map[chess.PieceType]int{
	chess.Pawn:   100,
	chess.Knight: 320,
	chess.Bishop: 330,
	chess.Rook:   500,
	chess.Queen:  900,
	chess.King:   0,
}

const maxExchangePlies = 10

// BestExchangeGain computes the best static-exchange gain available to the
// side to move in fen by starting a capture sequence on target. Both sides
// feed in their least valuable capturer; the gain/loss chain is minimaxed
// back to the first capture, the first attacker's own value is subtracted
// from the net, and the result is floored at zero.
func BestExchangeGain(fen string, target chess.Square) int {
	game, err := pgn.GameFromFEN(fen)
	if err != nil {
		return 0
	}
	pos := game.Position()

	var chain []int
	firstAttacker := 0

	for ply := 0; ply < maxExchangePlies; ply++ {
		victim := pos.Board().Piece(target)
		if victim == chess.NoPiece {
			break
		}
		mv, attackerValue, ok := leastValuableCapture(pos, target)
		if !ok {
			break
		}
		chain = append(chain, pieceValues[victim.Type()])
		if ply == 0 {
			firstAttacker = attackerValue
		}
		pos = pos.Update(mv)
	}

	if len(chain) == 0 {
		return 0
	}

	// running[i-1] = max(running[i-1], -running[i]): at every ply the side
	// to move keeps the better of stopping the trade or continuing it.
	running := make([]int, len(chain))
	copy(running, chain)
	for i := len(running) - 1; i > 0; i-- {
		if -running[i] > running[i-1] {
			running[i-1] = -running[i]
		}
	}

	net := running[0] - firstAttacker
	if net < 0 {
		return 0
	}
	return net
}

// CanCaptureOn reports whether the side to move in fen has any legal
// capture landing on target.
func CanCaptureOn(fen string, target chess.Square) bool {
	game, err := pgn.GameFromFEN(fen)
	if err != nil {
		return false
	}
	_, _, ok := leastValuableCapture(game.Position(), target)
	return ok
}

// LeastValuableCapturerType returns the piece type of the cheapest legal
// capturer onto target for the side to move in fen.
func LeastValuableCapturerType(fen string, target chess.Square) (chess.PieceType, bool) {
	game, err := pgn.GameFromFEN(fen)
	if err != nil {
		return chess.NoPieceType, false
	}
	mv, _, ok := leastValuableCapture(game.Position(), target)
	if !ok {
		return chess.NoPieceType, false
	}
	return game.Position().Board().Piece(mv.S1()).Type(), true
}

func leastValuableCapture(pos *chess.Position, target chess.Square) (*chess.Move, int, bool) {
	moves := pos.ValidMoves()
	bestIdx := -1
	bestValue := 0

	for i := range moves {
		mv := &moves[i]
		if mv.S2() != target {
			continue
		}
		if !mv.HasTag(chess.Capture) && !mv.HasTag(chess.EnPassant) {
			continue
		}
		attacker := pos.Board().Piece(mv.S1())
		value := pieceValues[attacker.Type()]
		if bestIdx < 0 || value < bestValue {
			bestIdx = i
			bestValue = value
		}
	}

	if bestIdx < 0 {
		return nil, 0, false
	}
	return &moves[bestIdx], bestValue, true
}

package analysis

import (
	"errors"

	"github.com/corentings/chess/v2"

	"chess_review/internal/domain/review"
	"chess_review/internal/pgn"
)

// Tuning constants for the brilliance pipeline. These are deliberately
// fixed: the classifier thresholds are configurable, brilliance is not.
const (
	brilliantMaxLoss      = 25
	stabilityTolerance    = 50
	competitiveFloor      = -150
	competitiveCeiling    = 650
	equalTradeTolerance   = 50
	sacrificeFloor        = 150
	largeSwingThreshold   = 200
	seeSacrificeMin       = 150
	clearlyWinningCapture = 300
)

// BrilliantContext is everything the detector needs about one candidate
// move. Evaluations are from White's perspective.
type BrilliantContext struct {
	FenBefore      string
	San            string
	Uci            string
	EvalBefore     review.Score
	EvalAfter      review.Score
	Mover          review.Color
	CentipawnLoss  int
	LegalMoveCount int
	MateBefore     bool
	MateAfter      bool
	IsEngineBest   bool
}

// IsBrilliant runs the layered gate pipeline. Any internal failure while
// reconstructing the position degrades to "not brilliant"; brilliance
// detection must never abort the surrounding analysis.
func IsBrilliant(bc BrilliantContext) bool {
	brilliant, err := detectBrilliant(bc)
	if err != nil {
		return false
	}
	return brilliant
}

func detectBrilliant(bc BrilliantContext) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = false, errors.New("brilliance reconstruction failed")
		}
	}()

	// Near-best gate: a brilliancy is still one of the strongest moves.
	if bc.CentipawnLoss > brilliantMaxLoss {
		return false, nil
	}
	// Not-forced gate: the only legal move shows no skill.
	if bc.LegalMoveCount <= 1 {
		return false, nil
	}

	// Stability gate: the position must not have worsened beyond tolerance
	// and must have been competitive to begin with.
	moverBefore := bc.EvalBefore.POV(bc.Mover)
	moverAfter := bc.EvalAfter.POV(bc.Mover)
	if moverAfter < moverBefore-stabilityTolerance {
		return false, nil
	}
	if moverBefore < competitiveFloor || moverBefore > competitiveCeiling {
		return false, nil
	}

	game, err := pgn.GameFromFEN(bc.FenBefore)
	if err != nil {
		return false, err
	}
	posBefore := game.Position()
	mv, err := (chess.UCINotation{}).Decode(posBefore, bc.Uci)
	if err != nil {
		return false, err
	}

	movedType := posBefore.Board().Piece(mv.S1()).Type()
	if mv.Promo() != chess.NoPieceType {
		movedType = mv.Promo()
	}
	movedValue := pieceValues[movedType]

	isCapture := mv.HasTag(chess.Capture) || mv.HasTag(chess.EnPassant)
	capturedValue := 0
	if isCapture {
		if victim := posBefore.Board().Piece(mv.S2()); victim != chess.NoPiece {
			capturedValue = pieceValues[victim.Type()]
		} else {
			capturedValue = pieceValues[chess.Pawn] // en passant
		}
	}

	matesNow := bc.MateAfter && moverAfter > 0
	bigSwing := moverAfter-moverBefore >= largeSwingThreshold

	// Capture killer: a roughly equal trade, or a swing too small to be a
	// sacrifice, is a normal trade unless it mates or swings the eval.
	if isCapture {
		swing := movedValue - capturedValue
		equalTrade := abs(capturedValue-movedValue) <= equalTradeTolerance
		if (equalTrade || swing < sacrificeFloor) && !matesNow && !bigSwing {
			return false, nil
		}
	}

	if err := game.Move(mv, nil); err != nil {
		return false, err
	}
	fenAfter := game.Position().String()
	target := mv.S2()

	// Queen killer: a queen hanging after the move is a disguised blunder
	// unless it is the engine move and it mates or swings the eval.
	if hangingQueen(fenAfter, bc.Mover) {
		if !bc.IsEngineBest || (!matesNow && !bigSwing) {
			return false, nil
		}
	}

	// Sacrifice signal: the moved piece must be capturable and the
	// opponent's best exchange on its square must win real material,
	// otherwise nobody can punish the "sacrifice" and it is not one.
	if !CanCaptureOn(fenAfter, target) {
		return false, nil
	}
	opponentGain := BestExchangeGain(fenAfter, target)
	if opponentGain < seeSacrificeMin {
		return false, nil
	}

	// Anti-trivial-exchange gate: a queen offered where only a queen can
	// take back is a trade, not a sacrifice.
	if movedType == chess.Queen && !matesNow {
		if recapturer, ok := LeastValuableCapturerType(fenAfter, target); ok && recapturer == chess.Queen {
			return false, nil
		}
	}

	// Anti-normal-win gate: grabbing a clearly winning amount of material
	// is simply a good capture.
	if isCapture && capturedValue-movedValue >= clearlyWinningCapture {
		return false, nil
	}

	return true, nil
}

// hangingQueen reports whether the mover left a queen on a square the
// opponent can legally capture.
func hangingQueen(fenAfter string, mover review.Color) bool {
	game, err := pgn.GameFromFEN(fenAfter)
	if err != nil {
		return false
	}
	pos := game.Position()

	for _, mv := range pos.ValidMoves() {
		if !mv.HasTag(chess.Capture) {
			continue
		}
		victim := pos.Board().Piece(mv.S2())
		if victim == chess.NoPiece || victim.Type() != chess.Queen {
			continue
		}
		if colorOf(victim.Color()) == mover {
			return true
		}
	}
	return false
}

func colorOf(c chess.Color) review.Color {
	if c == chess.White {
		return review.White
	}
	return review.Black
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

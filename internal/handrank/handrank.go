// Package handrank adapts the paulhankin/poker evaluator to the
// ledger's HandRanker collaborator. Higher scores always win.
package handrank

import (
	"fmt"

	poker "github.com/paulhankin/poker"

	"github.com/potchannel/potchannel/internal/channel"
)

// Evaluator ranks seven-card hands.
type Evaluator struct{}

// New returns the evaluator.
func New() Evaluator { return Evaluator{} }

// Rank scores the best five-card hand out of seven cards.
func (Evaluator) Rank(cards [7]channel.Card) (int, error) {
	var seven [7]poker.Card
	for i, c := range cards {
		pc, err := toPoker(c)
		if err != nil {
			return 0, err
		}
		seven[i] = pc
	}
	return int(poker.Eval7(&seven)), nil
}

var suits = [4]poker.Suit{poker.Club, poker.Diamond, poker.Heart, poker.Spade}

// toPoker converts a suit-major card index (suit*13 + rank-1, ranks
// A,2..K) to the library's representation.
func toPoker(c channel.Card) (poker.Card, error) {
	if c > 51 {
		return 0, fmt.Errorf("card index %d out of range", c)
	}
	suit := suits[c/13]
	rank := poker.Rank(c%13 + 1) // library ranks: 1 = ace .. 13 = king
	card, err := poker.MakeCard(suit, rank)
	if err != nil {
		return 0, fmt.Errorf("card index %d: %w", c, err)
	}
	return card, nil
}

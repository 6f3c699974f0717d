package combat

import "math"

// Absorption records one armor piece's share of mitigated damage.
type Absorption struct {
	Piece    ArmorPiece
	Absorbed int
	Broke    bool
}

// Mitigation is the outcome of running a hit through armor.
type Mitigation struct {
	Damage   int // final damage after DR, >= 1 when input damage >= 1
	Absorbed int
	Pieces   []Absorption
}

// ApplyArmor sums the damage-type DR of every contributing piece, floors
// the final damage at 1, and degrades each piece's armor HP by its
// proportional (half-up rounded) share of the absorbed total.
func ApplyArmor(pieces []ArmorPiece, damage int, damageType string) Mitigation {
	type contrib struct {
		piece ArmorPiece
		dr    int
	}
	var contribs []contrib
	totalDR := 0
	for _, p := range pieces {
		if dr := p.Reduction(damageType); dr > 0 {
			contribs = append(contribs, contrib{p, dr})
			totalDR += dr
		}
	}
	if totalDR == 0 {
		return Mitigation{Damage: damage}
	}

	final := damage - totalDR
	if final < 1 {
		final = 1
	}
	absorbed := damage - final
	m := Mitigation{Damage: final, Absorbed: absorbed}
	if absorbed <= 0 {
		return m
	}

	// Distribute half-up by DR share, then push any rounding remainder
	// onto the largest contributor so the shares sum to the total.
	shares := make([]int, len(contribs))
	sum := 0
	largest := 0
	for i, c := range contribs {
		shares[i] = int(math.Round(float64(absorbed) * float64(c.dr) / float64(totalDR)))
		sum += shares[i]
		if c.dr > contribs[largest].dr {
			largest = i
		}
	}
	if diff := absorbed - sum; diff != 0 {
		shares[largest] += diff
		if shares[largest] < 0 {
			shares[largest] = 0
		}
	}

	for i, c := range contribs {
		if shares[i] <= 0 {
			continue
		}
		broke := c.piece.Degrade(shares[i])
		m.Pieces = append(m.Pieces, Absorption{Piece: c.piece, Absorbed: shares[i], Broke: broke})
	}
	return m
}

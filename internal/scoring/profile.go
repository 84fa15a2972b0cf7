package scoring

import "sort"

// Canonical trait order, also used to break ranking ties.
var discTraits = []string{"D", "I", "S", "C"}

type profileStrategy struct {
	traits []string
	meta   MetadataLookup
}

func (s profileStrategy) Score(in Input) (Payload, error) {
	tally := make(map[string]float64, len(s.traits))
	for _, t := range s.traits {
		tally[t] = 0
	}
	for _, q := range in.Questions {
		opt, ok := selectedOption(q, in.Answers)
		if !ok {
			continue
		}
		for trait, w := range weights(opt.Score) {
			if _, known := tally[trait]; known {
				tally[trait] += w
			}
		}
	}

	total := 0.0
	for _, v := range tally {
		total += v
	}
	p := Payload{Tallies: tally, Percentages: make(map[string]int, len(s.traits))}
	for _, t := range s.traits {
		p.Percentages[t] = percent(tally[t], total)
	}
	if total <= 0 {
		p.InsufficientData = true
		return p, nil
	}

	ranked := make([]string, len(s.traits))
	copy(ranked, s.traits)
	sort.SliceStable(ranked, func(i, j int) bool { return tally[ranked[i]] > tally[ranked[j]] })

	primary := ranked[0]
	p.TypeCode = primary
	if len(ranked) > 1 && tally[ranked[1]] > 0 {
		p.TypeCode = primary + ranked[1]
	}
	p.Info = lookup(s.meta, in.Type, p.TypeCode, primary)
	return p, nil
}

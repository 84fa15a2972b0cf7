package scoring

// Dimension is one bipolar axis. Default resolves ties, including a
// dimension nobody answered.
type Dimension struct {
	Left, Right string
	Default     string
}

// Canonical order; ties resolve to the first letter of each pair.
var mbtiDimensions = []Dimension{
	{Left: "E", Right: "I", Default: "E"},
	{Left: "S", Right: "N", Default: "S"},
	{Left: "T", Right: "F", Default: "T"},
	{Left: "J", Right: "P", Default: "J"},
}

type dimensionalStrategy struct {
	dims []Dimension
	meta MetadataLookup
}

func (s dimensionalStrategy) Score(in Input) (Payload, error) {
	tally := map[string]float64{}
	for _, d := range s.dims {
		tally[d.Left], tally[d.Right] = 0, 0
	}
	for _, q := range in.Questions {
		opt, ok := selectedOption(q, in.Answers)
		if !ok {
			continue
		}
		for letter, w := range weights(opt.Score) {
			if _, known := tally[letter]; known {
				tally[letter] += w
			}
		}
	}

	p := Payload{
		Tallies:     tally,
		Percentages: map[string]int{},
		Dimensions:  make([]DimensionResult, 0, len(s.dims)),
	}
	code := ""
	for _, d := range s.dims {
		l, r := tally[d.Left], tally[d.Right]
		res := DimensionResult{
			Pair:        d.Left + d.Right,
			Tallies:     map[string]float64{d.Left: l, d.Right: r},
			Percentages: map[string]int{},
		}
		switch {
		case l > r:
			res.Letter = d.Left
		case r > l:
			res.Letter = d.Right
		default:
			res.Letter, res.Tie = d.Default, true
		}
		if l+r == 0 {
			res.Percentages[d.Left], res.Percentages[d.Right] = 50, 50
		} else {
			res.Percentages[d.Left] = percent(l, l+r)
			res.Percentages[d.Right] = percent(r, l+r)
		}
		p.Percentages[d.Left] = res.Percentages[d.Left]
		p.Percentages[d.Right] = res.Percentages[d.Right]
		p.Dimensions = append(p.Dimensions, res)
		code += res.Letter
	}
	p.TypeCode = code
	p.Info = lookup(s.meta, in.Type, code)
	return p, nil
}

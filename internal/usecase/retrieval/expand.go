package retrieval

// synonyms maps a folded query token to near-equivalent tokens added with
// reduced weight. Only domain vocabulary belongs here; generic verbs add
// noise without recall.
var synonyms = map[string][]string{
	"re":    {"mem", "thap"},
	"dat":   {"cao"},
	"thue":  {"muon", "tro"},
	"phong": {"tro"},
	"tro":   {"phong"},
	"gia":   {"tien"},
	"gan":   {"canh", "ke"},
	"rong":  {"lon"},
	"nho":   {"hep"},
	"sach":  {"se"},
	"dep":   {"xinh"},
	"o":     {"tro"},
	"nha":   {"can"},
}

const synonymWeight = 0.5

// weightedToken carries a query token and its contribution weight.
type weightedToken struct {
	term   string
	weight float64
}

// expandQuery adds synonyms for each token without duplicating terms already
// present in the query.
func expandQuery(tokens []string) []weightedToken {
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		seen[t] = true
	}

	out := make([]weightedToken, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, weightedToken{term: t, weight: 1})
		for _, syn := range synonyms[t] {
			if seen[syn] {
				continue
			}
			seen[syn] = true
			out = append(out, weightedToken{term: syn, weight: synonymWeight})
		}
	}
	return out
}

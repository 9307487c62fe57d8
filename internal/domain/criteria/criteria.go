// Package criteria extracts structured rental filters from free-form
// Vietnamese text: price and area bounds, category, features, province and
// requested result count. Parsing works on folded text so callers can pass
// raw user input.
package criteria

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/vntext"
)

// Mode classifies how a numeric bound constrains a value.
type Mode int

const (
	ModeExact Mode = iota
	ModeApprox
	ModeMin
	ModeMax
	ModeRange
)

func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeApprox:
		return "approx"
	case ModeMin:
		return "min"
	case ModeMax:
		return "max"
	case ModeRange:
		return "range"
	}
	return "unknown"
}

// Bound is a parsed numeric constraint. Value is set for exact, approx, min
// and max modes; Lo/Hi for range. Exclusive marks strict thresholds
// ("trên 5 triệu" means strictly above 5).
type Bound struct {
	Mode      Mode
	Value     float64
	Lo, Hi    float64
	Exclusive bool
}

// Tolerance widens exact and approximate bounds during matching.
type Tolerance struct {
	ExactDelta float64 // half-width of the exact window
	ApproxPct  float64 // relative half-width of the approx window
	ApproxMin  float64 // floor for the approx half-width
}

// DefaultPriceTolerance matches prices in millions of VND.
var DefaultPriceTolerance = Tolerance{ExactDelta: 0.25, ApproxPct: 0.10, ApproxMin: 0.5}

// DefaultAreaTolerance matches areas in square meters.
var DefaultAreaTolerance = Tolerance{ExactDelta: 2, ApproxPct: 0.10, ApproxMin: 2}

// Matches reports whether v satisfies the bound under the given tolerance.
func (b *Bound) Matches(v float64, tol Tolerance) bool {
	if b == nil {
		return true
	}
	switch b.Mode {
	case ModeExact:
		return v >= b.Value-tol.ExactDelta && v <= b.Value+tol.ExactDelta
	case ModeApprox:
		d := b.Value * tol.ApproxPct
		if d < tol.ApproxMin {
			d = tol.ApproxMin
		}
		return v >= b.Value-d && v <= b.Value+d
	case ModeMin:
		if b.Exclusive {
			return v > b.Value
		}
		return v >= b.Value
	case ModeMax:
		if b.Exclusive {
			return v < b.Value
		}
		return v <= b.Value
	case ModeRange:
		return v >= b.Lo && v <= b.Hi
	}
	return false
}

// Criteria is the full set of filters recognized in one message.
type Criteria struct {
	Category domain.Category
	Features []domain.Feature
	Price    *Bound
	Area     *Bound
	Province string
	Quantity int
	WantAll  bool
}

// HasFilter reports whether any listing-narrowing filter was recognized.
func (c Criteria) HasFilter() bool {
	return c.Category != "" || len(c.Features) > 0 || c.Price != nil || c.Area != nil || c.Province != ""
}

const (
	defaultQuantity = 3
	allQuantity     = 5
	maxQuantity     = 10
)

var (
	// "5 triệu rưỡi" -> 5.5
	rePriceHalf = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:trieu|tr)\s+ruoi\b`)
	// "3tr5", "3 triệu 5" -> 3.5
	rePriceFrac = regexp.MustCompile(`(\d+)\s*(?:trieu|tr)\s*(\d)\b`)
	// "5 triệu", "5.5tr"
	rePrice = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:trieu|tr)\b`)
	// "500k" -> 0.5
	rePriceK = regexp.MustCompile(`(\d{3,4})\s*k\b`)
	// "từ 3 đến 5 triệu": the unit may appear only after the second number
	rePriceRange = regexp.MustCompile(`(\d+(?:[.,]\d+)?)(?:\s*(?:trieu|tr))?\s*(?:den|toi|-)\s*(\d+(?:[.,]\d+)?)\s*(?:trieu|tr)\b`)
	// "25m2", "25 mét vuông", "30 mét"
	reArea      = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:m2|met vuong|met)\b`)
	reAreaRange = regexp.MustCompile(`(\d+(?:[.,]\d+)?)(?:\s*(?:m2|met vuong|met))?\s*(?:den|toi|-)\s*(\d+(?:[.,]\d+)?)\s*(?:m2|met vuong|met)\b`)

	reQuantity = regexp.MustCompile(`(\d+)\s*(?:phong|can|cai|tin|cho o|bai)\b`)

	// "ba muoi" -> "30"; applied before the unit rewrite below
	reWordTens = regexp.MustCompile(`\b(hai|ba|bon|nam|sau|bay|tam|chin)\s+muoi\b`)
	// "nam trieu" -> "5 trieu", "muoi met" -> "10 met"
	reWordDigit = regexp.MustCompile(`\b(mot|hai|ba|bon|nam|sau|bay|tam|chin|muoi)\s+(trieu|tr|met vuong|met|m2)\b`)
)

var wordDigits = map[string]string{
	"mot": "1", "hai": "2", "ba": "3", "bon": "4", "nam": "5",
	"sau": "6", "bay": "7", "tam": "8", "chin": "9", "muoi": "10",
}

// orderedCategories is matched first to last; more specific categories come
// before the generic ones they contain ("căn hộ mini" before "căn hộ").
var orderedCategories = []struct {
	cat  domain.Category
	cues []string
}{
	{domain.CategoryMiniApartment, []string{"can ho mini", "chung cu mini"}},
	{domain.CategoryServicedApt, []string{"can ho dich vu", "chdv"}},
	{domain.CategoryApartment, []string{"can ho", "chung cu"}},
	{domain.CategoryCommercial, []string{"mat bang", "kiot", "ki ot"}},
	{domain.CategoryWholeHouse, []string{"nha nguyen can", "nguyen can", "nha rieng"}},
	{domain.CategoryShared, []string{"o ghep", "tim nguoi o ghep", "share phong"}},
	{domain.CategoryRoom, []string{"phong tro", "nha tro", "phong"}},
}

var featureCues = []struct {
	feat domain.Feature
	cues []string
}{
	{domain.FeatureFurnished, []string{"day du noi that", "full noi that", "noi that"}},
	{domain.FeatureAircon, []string{"may lanh", "dieu hoa"}},
	{domain.FeatureElevator, []string{"thang may"}},
	{domain.FeatureSecurity, []string{"bao ve 24", "bao ve", "an ninh"}},
	{domain.FeatureLoft, []string{"gac lung", "co gac", "gac"}},
	{domain.FeatureWasher, []string{"may giat"}},
	{domain.FeaturePrivateEntry, []string{"khong chung chu", "khong o chung chu"}},
	{domain.FeatureParking, []string{"ham de xe", "cho de xe", "giu xe"}},
	{domain.FeatureKitchen, []string{"ke bep", "co bep", "nau an"}},
	{domain.FeatureFridge, []string{"tu lanh"}},
	{domain.FeatureFlexHours, []string{"gio giac tu do", "tu do gio giac", "ve khuya"}},
}

// Parse recognizes all filters present in the message. Price phrases are
// removed before area parsing and vice versa so "phòng 5 triệu 25m2" never
// reads 5 as an area or 25 as a price.
func Parse(text string) Criteria {
	folded := vntext.Fold(strings.ReplaceAll(text, "m²", "m2"))
	folded = reWordTens.ReplaceAllStringFunc(folded, func(m string) string {
		return wordDigits[strings.Fields(m)[0]] + "0"
	})
	folded = reWordDigit.ReplaceAllStringFunc(folded, func(m string) string {
		parts := strings.Fields(m)
		return wordDigits[parts[0]] + " " + strings.Join(parts[1:], " ")
	})

	c := Criteria{
		Province: vntext.FindProvince(text),
		Quantity: parseQuantity(folded),
	}
	if strings.Contains(folded, "tat ca") || containsPhrase(folded, "cac") {
		c.WantAll = true
		if c.Quantity == defaultQuantity {
			c.Quantity = allQuantity
		}
	}
	c.Category = parseCategory(folded)
	c.Features = parseFeatures(folded)
	c.Price = parsePrice(stripArea(folded))
	c.Area = parseArea(stripPrice(folded))
	return c
}

func stripArea(folded string) string {
	return reArea.ReplaceAllString(folded, " ")
}

func stripPrice(folded string) string {
	s := rePriceHalf.ReplaceAllString(folded, " ")
	s = rePriceFrac.ReplaceAllString(s, " ")
	s = rePrice.ReplaceAllString(s, " ")
	return rePriceK.ReplaceAllString(s, " ")
}

func parseQuantity(folded string) int {
	if m := reQuantity.FindStringSubmatch(folded); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			if n > maxQuantity {
				return maxQuantity
			}
			return n
		}
	}
	return defaultQuantity
}

func parseCategory(folded string) domain.Category {
	for _, entry := range orderedCategories {
		for _, cue := range entry.cues {
			if containsPhrase(folded, cue) {
				return entry.cat
			}
		}
	}
	return ""
}

func parseFeatures(folded string) []domain.Feature {
	var feats []domain.Feature
	for _, entry := range featureCues {
		for _, cue := range entry.cues {
			if containsPhrase(folded, cue) {
				feats = append(feats, entry.feat)
				break
			}
		}
	}
	return feats
}

// containsPhrase matches the cue on word boundaries so "gac" never fires
// inside an unrelated word.
func containsPhrase(folded, cue string) bool {
	idx := 0
	for {
		i := strings.Index(folded[idx:], cue)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(cue)
		leftOK := start == 0 || !isWordByte(folded[start-1])
		rightOK := end == len(folded) || !isWordByte(folded[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

// priceAmounts returns every price value in the text in order of appearance.
func priceAmounts(folded string) []float64 {
	type span struct {
		start int
		val   float64
	}
	var spans []span
	consumed := make([]bool, len(folded))
	mark := func(lo, hi int) {
		for i := lo; i < hi && i < len(consumed); i++ {
			consumed[i] = true
		}
	}
	free := func(lo, hi int) bool {
		for i := lo; i < hi && i < len(consumed); i++ {
			if consumed[i] {
				return false
			}
		}
		return true
	}
	for _, m := range rePriceHalf.FindAllStringSubmatchIndex(folded, -1) {
		v := parseNum(folded[m[2]:m[3]])
		spans = append(spans, span{m[0], v + 0.5})
		mark(m[0], m[1])
	}
	for _, m := range rePriceFrac.FindAllStringSubmatchIndex(folded, -1) {
		if !free(m[0], m[1]) {
			continue
		}
		whole := parseNum(folded[m[2]:m[3]])
		frac := parseNum(folded[m[4]:m[5]])
		spans = append(spans, span{m[0], whole + frac/10})
		mark(m[0], m[1])
	}
	for _, m := range rePrice.FindAllStringSubmatchIndex(folded, -1) {
		if !free(m[0], m[1]) {
			continue
		}
		spans = append(spans, span{m[0], parseNum(folded[m[2]:m[3]])})
		mark(m[0], m[1])
	}
	for _, m := range rePriceK.FindAllStringSubmatchIndex(folded, -1) {
		if !free(m[0], m[1]) {
			continue
		}
		spans = append(spans, span{m[0], parseNum(folded[m[2]:m[3]]) / 1000})
		mark(m[0], m[1])
	}
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	vals := make([]float64, len(spans))
	for i, s := range spans {
		vals[i] = s.val
	}
	return vals
}

func parseNum(s string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return v
}

func parsePrice(folded string) *Bound {
	if m := rePriceRange.FindStringSubmatch(folded); m != nil {
		return rangeBound(parseNum(m[1]), parseNum(m[2]))
	}
	vals := priceAmounts(folded)
	if len(vals) == 0 {
		return nil
	}
	return boundFromCues(folded, vals[0])
}

func parseArea(folded string) *Bound {
	if m := reAreaRange.FindStringSubmatch(folded); m != nil {
		return rangeBound(parseNum(m[1]), parseNum(m[2]))
	}
	m := reArea.FindStringSubmatch(folded)
	if m == nil {
		return nil
	}
	return boundFromCues(folded, parseNum(m[1]))
}

// rangeBound normalizes a range so lo <= hi regardless of how the user
// phrased it.
func rangeBound(a, b float64) *Bound {
	if a > b {
		a, b = b, a
	}
	return &Bound{Mode: ModeRange, Lo: a, Hi: b}
}

func boundFromCues(folded string, v float64) *Bound {
	switch {
	case containsPhrase(folded, "tren") || containsPhrase(folded, "hon") || containsPhrase(folded, "cao hon"):
		return &Bound{Mode: ModeMin, Value: v, Exclusive: true}
	case containsPhrase(folded, "duoi") || containsPhrase(folded, "thap hon") || containsPhrase(folded, "re hon"):
		return &Bound{Mode: ModeMax, Value: v, Exclusive: true}
	case containsPhrase(folded, "toi da") || containsPhrase(folded, "khong qua"):
		return &Bound{Mode: ModeMax, Value: v}
	case reTuDigit.MatchString(folded):
		return &Bound{Mode: ModeMin, Value: v}
	case containsPhrase(folded, "khoang") || approxTam(folded):
		return &Bound{Mode: ModeApprox, Value: v}
	default:
		return &Bound{Mode: ModeExact, Value: v}
	}
}

// "từ" folds to the same word as "tủ" inside "tủ lạnh"; require a digit right
// after so the fridge amenity never turns a price into a lower bound.
var reTuDigit = regexp.MustCompile(`\btu\s+\d`)

// "tầm" folds to the same word as "tám" (eight); treat it as an approx cue
// only when a digit follows.
var reTamDigit = regexp.MustCompile(`\btam\s+\d`)

func approxTam(folded string) bool {
	return reTamDigit.MatchString(folded)
}

// Describe renders the recognized filters in Vietnamese, for echoing back to
// the user which constraints were applied.
func (c Criteria) Describe() string {
	var parts []string
	if c.Category != "" {
		if label, ok := domain.CategoryLabels[c.Category]; ok {
			parts = append(parts, "loại: "+label)
		}
	}
	if c.Price != nil {
		parts = append(parts, "giá "+describeBound(c.Price, "triệu"))
	}
	if c.Area != nil {
		parts = append(parts, "diện tích "+describeBound(c.Area, "m²"))
	}
	if c.Province != "" {
		parts = append(parts, "khu vực: "+c.Province)
	}
	for _, f := range c.Features {
		if label, ok := domain.FeatureLabels[f]; ok {
			parts = append(parts, label)
		}
	}
	return strings.Join(parts, ", ")
}

func describeBound(b *Bound, unit string) string {
	fmtNum := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	switch b.Mode {
	case ModeRange:
		return fmt.Sprintf("từ %s đến %s %s", fmtNum(b.Lo), fmtNum(b.Hi), unit)
	case ModeMin:
		if b.Exclusive {
			return fmt.Sprintf("trên %s %s", fmtNum(b.Value), unit)
		}
		return fmt.Sprintf("từ %s %s", fmtNum(b.Value), unit)
	case ModeMax:
		if b.Exclusive {
			return fmt.Sprintf("dưới %s %s", fmtNum(b.Value), unit)
		}
		return fmt.Sprintf("tối đa %s %s", fmtNum(b.Value), unit)
	case ModeApprox:
		return fmt.Sprintf("khoảng %s %s", fmtNum(b.Value), unit)
	default:
		return fmt.Sprintf("%s %s", fmtNum(b.Value), unit)
	}
}

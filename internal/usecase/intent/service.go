// Package intent answers structured rental questions deterministically:
// extremum queries, filtered searches, contact and pricing requests. What it
// cannot resolve falls through to retrieval-augmented generation.
package intent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/domain/criteria"
	"github.com/timtro-cloud/trobot/internal/vntext"
)

// Result is a deterministic answer, or Handled=false when the engine has
// nothing definite to say.
type Result struct {
	Handled  bool
	Intent   string
	Answer   string
	Listings []domain.Listing
}

// Service is the deterministic intent engine.
type Service struct {
	listings   ListingSource
	packages   []domain.Package
	priceTol   criteria.Tolerance
	maskPhones bool
	intentHits *prometheus.CounterVec
}

// New creates the engine. intentHits is a counter vec with label "intent",
// passed explicitly; nil disables metrics.
func New(
	listings ListingSource,
	packages []domain.Package,
	priceTol criteria.Tolerance,
	maskPhones bool,
	intentHits *prometheus.CounterVec,
) *Service {
	return &Service{
		listings:   listings,
		packages:   packages,
		priceTol:   priceTol,
		maskPhones: maskPhones,
		intentHits: intentHits,
	}
}

func (s *Service) hit(name string) {
	if s.intentHits != nil {
		s.intentHits.WithLabelValues(name).Inc()
	}
}

// extremum orderings, checked in declaration order. More specific phrasings
// sit above the generic ones they contain.
var extremums = []struct {
	name string
	cues []string
}{
	{"cheapest", []string{"re nhat", "gia thap nhat", "thap nhat"}},
	{"priciest", []string{"dat nhat", "mac nhat", "gia cao nhat", "cao cap nhat"}},
	{"largest", []string{"rong nhat", "lon nhat", "dien tich lon nhat"}},
	{"smallest", []string{"nho nhat", "hep nhat"}},
	{"hottest", []string{"hot nhat", "nhieu nguoi hoi nhat", "duoc quan tam nhat", "duoc hoi nhieu nhat"}},
	{"newest", []string{"moi nhat", "moi dang", "dang gan day"}},
}

var contactCues = []string{"lien he", "so dien thoai", "sdt", "so dt", "lien lac", "goi cho chu"}

var pricingCues = []string{"bang gia", "gia goi", "goi vip", "phi dang tin", "gia dang tin", "dang tin mat phi"}

// Handle resolves one message. sessCtx carries province, price and last
// shown listing from earlier turns; authenticated controls phone masking.
func (s *Service) Handle(ctx context.Context, text string, sessCtx Context, authenticated bool) (Result, error) {
	folded := vntext.Fold(text)
	crit := criteria.Parse(text)

	explicitProvince := crit.Province != ""
	if crit.Province == "" {
		crit.Province = sessCtx.Province
	}
	if crit.Price == nil && mentionsPrice(folded) {
		crit.Price = sessCtx.Price
	}

	if matchesAny(folded, contactCues) {
		return s.handleContact(ctx, text, folded, sessCtx, authenticated)
	}
	if matchesAny(folded, pricingCues) {
		s.hit("pricing")
		return Result{Handled: true, Intent: "pricing", Answer: formatPricing(s.packages)}, nil
	}

	for _, ex := range extremums {
		if matchesAny(folded, ex.cues) {
			return s.handleExtremum(ctx, ex.name, crit, explicitProvince)
		}
	}

	if crit.HasFilter() && mentionsListings(folded) {
		return s.handleFiltered(ctx, crit, explicitProvince)
	}

	return Result{}, nil
}

func matchesAny(folded string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(folded, cue) {
			return true
		}
	}
	return false
}

func mentionsPrice(folded string) bool {
	return strings.Contains(folded, "gia") || strings.Contains(folded, "tien")
}

// mentionsListings guards the filtered search: a bare feature word in an
// unrelated question must not trigger a listing dump.
func mentionsListings(folded string) bool {
	for _, cue := range []string{"phong", "can ho", "chung cu", "nha", "mat bang", "tro", "o ghep", "tin", "thue", "tim"} {
		if strings.Contains(folded, cue) {
			return true
		}
	}
	return false
}

var textPostID = regexp.MustCompile(`/post/(\d+)/|\btin\s+(?:so\s+)?(\d+)\b|ID:\s*(\d+)`)

var supportCues = []string{"admin", "quan tri", "ho tro ky thuat", "bao loi", "trung tam ho tro"}

func (s *Service) handleContact(ctx context.Context, text, folded string, sessCtx Context, authenticated bool) (Result, error) {
	if matchesAny(folded, supportCues) {
		s.hit("support")
		return Result{
			Handled: true,
			Intent:  "support",
			Answer:  "Bạn cần hỗ trợ từ quản trị viên? Gửi email tới hotro@trobot.vn hoặc dùng mục Báo lỗi ở cuối trang, đội ngũ sẽ phản hồi trong 24 giờ.",
		}, nil
	}

	id := sessCtx.LastPostID
	if m := textPostID.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				id, _ = strconv.ParseInt(g, 10, 64)
				break
			}
		}
	}

	s.hit("contact")
	if id == 0 {
		return Result{
			Handled: true,
			Intent:  "contact",
			Answer:  "Bạn muốn liên hệ tin nào? Gửi kèm mã tin hoặc chọn một tin từ kết quả trước nhé.",
		}, nil
	}

	l, err := s.listings.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			return Result{
				Handled: true,
				Intent:  "contact",
				Answer:  fmt.Sprintf("Tin số %d không còn trên hệ thống.", id),
			}, nil
		}
		return Result{}, fmt.Errorf("get listing %d: %w", id, err)
	}

	masked := s.maskPhones && !authenticated
	return Result{
		Handled:  true,
		Intent:   "contact",
		Answer:   formatContact(l, masked),
		Listings: []domain.Listing{l},
	}, nil
}

func (s *Service) handleExtremum(ctx context.Context, name string, crit criteria.Criteria, explicitProvince bool) (Result, error) {
	matched, err := s.filtered(ctx, crit)
	if err != nil {
		return Result{}, err
	}
	if len(matched) == 0 {
		return s.emptyResult(ctx, name, crit, explicitProvince)
	}

	switch name {
	case "cheapest":
		matched = withValue(matched, func(l domain.Listing) bool { return l.PriceMil > 0 })
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].PriceMil < matched[j].PriceMil })
	case "priciest":
		matched = withValue(matched, func(l domain.Listing) bool { return l.PriceMil > 0 })
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].PriceMil > matched[j].PriceMil })
	case "largest":
		matched = withValue(matched, func(l domain.Listing) bool { return l.AreaM2 > 0 })
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].AreaM2 > matched[j].AreaM2 })
	case "smallest":
		matched = withValue(matched, func(l domain.Listing) bool { return l.AreaM2 > 0 })
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].AreaM2 < matched[j].AreaM2 })
	case "newest":
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	case "hottest":
		s.loadRequestCounts(ctx, matched)
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Requests24h > matched[j].Requests24h })
	}

	if len(matched) == 0 {
		return s.emptyResult(ctx, name, crit, explicitProvince)
	}
	if len(matched) > crit.Quantity {
		matched = matched[:crit.Quantity]
	}

	s.hit(name)
	return Result{
		Handled:  true,
		Intent:   name,
		Answer:   formatListings(extremumIntro(name, len(matched)), matched, crit),
		Listings: matched,
	}, nil
}

func withValue(listings []domain.Listing, keep func(domain.Listing) bool) []domain.Listing {
	out := listings[:0]
	for _, l := range listings {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// loadRequestCounts refreshes the rolling 24h counters before ranking by
// popularity. A counter read failure just leaves the stored value.
func (s *Service) loadRequestCounts(ctx context.Context, listings []domain.Listing) {
	for i := range listings {
		if n, err := s.listings.Requests24h(ctx, listings[i].ID); err == nil {
			listings[i].Requests24h = n
		}
	}
}

func extremumIntro(name string, n int) string {
	switch name {
	case "cheapest":
		return fmt.Sprintf("Đây là %d tin có giá thấp nhất:", n)
	case "priciest":
		return fmt.Sprintf("Đây là %d tin có giá cao nhất:", n)
	case "largest":
		return fmt.Sprintf("Đây là %d tin có diện tích lớn nhất:", n)
	case "smallest":
		return fmt.Sprintf("Đây là %d tin có diện tích nhỏ gọn nhất:", n)
	case "hottest":
		return fmt.Sprintf("Đây là %d tin được hỏi nhiều nhất 24 giờ qua:", n)
	case "newest":
		return fmt.Sprintf("Đây là %d tin đăng mới nhất:", n)
	default:
		return fmt.Sprintf("Đây là %d tin phù hợp:", n)
	}
}

func (s *Service) handleFiltered(ctx context.Context, crit criteria.Criteria, explicitProvince bool) (Result, error) {
	matched, err := s.filtered(ctx, crit)
	if err != nil {
		return Result{}, err
	}
	if len(matched) == 0 {
		return s.emptyResult(ctx, "search", crit, explicitProvince)
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if len(matched) > crit.Quantity {
		matched = matched[:crit.Quantity]
	}

	s.hit("search")
	return Result{
		Handled:  true,
		Intent:   "search",
		Answer:   formatListings(fmt.Sprintf("Tìm thấy %d tin phù hợp:", len(matched)), matched, crit),
		Listings: matched,
	}, nil
}

// filtered loads visible listings and applies every recognized constraint.
func (s *Service) filtered(ctx context.Context, crit criteria.Criteria) ([]domain.Listing, error) {
	visible, err := s.listings.Visible(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	return applyFilters(visible, crit, s.priceTol), nil
}

func applyFilters(listings []domain.Listing, crit criteria.Criteria, priceTol criteria.Tolerance) []domain.Listing {
	var out []domain.Listing
	for _, l := range listings {
		if crit.Category != "" && l.Category != crit.Category {
			continue
		}
		if crit.Province != "" && l.Province != crit.Province {
			continue
		}
		if crit.Price != nil && !crit.Price.Matches(l.PriceMil, priceTol) {
			continue
		}
		if crit.Area != nil && !crit.Area.Matches(l.AreaM2, criteria.DefaultAreaTolerance) {
			continue
		}
		if !hasAllFeatures(l, crit.Features) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func hasAllFeatures(l domain.Listing, feats []domain.Feature) bool {
	for _, f := range feats {
		if !l.HasFeature(f) {
			return false
		}
	}
	return true
}

// emptyResult handles a query that matched nothing. Without an explicit
// location the engine retries once with loosened bounds; with one it never
// substitutes a different area and only suggests.
func (s *Service) emptyResult(ctx context.Context, intentName string, crit criteria.Criteria, explicitProvince bool) (Result, error) {
	if !explicitProvince && crit.Province == "" {
		widened := widen(crit)
		if widened != nil {
			matched, err := s.filtered(ctx, *widened)
			if err != nil {
				return Result{}, err
			}
			if len(matched) > 0 {
				sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
				if len(matched) > crit.Quantity {
					matched = matched[:crit.Quantity]
				}
				s.hit(intentName + "_widened")
				return Result{
					Handled:  true,
					Intent:   intentName,
					Answer:   formatListings("Không có tin đúng yêu cầu, đây là các tin gần nhất:", matched, *widened),
					Listings: matched,
				}, nil
			}
		}
	}

	s.hit(intentName + "_empty")
	return Result{
		Handled: true,
		Intent:  intentName,
		Answer:  formatEmpty(crit, suggestions(crit)),
	}, nil
}

// widen loosens numeric bounds and drops to sibling categories. Returns nil
// when nothing can be loosened.
func widen(crit criteria.Criteria) *criteria.Criteria {
	w := crit
	changed := false

	if b := widenPrice(crit.Price); b != nil {
		w.Price = b
		changed = true
	}
	if b := widenArea(crit.Area); b != nil {
		w.Area = b
		changed = true
	}
	if !changed && crit.Category != "" {
		w.Category = ""
		changed = true
	}
	if !changed {
		return nil
	}
	return &w
}

func widenPrice(b *criteria.Bound) *criteria.Bound {
	if b == nil {
		return nil
	}
	switch b.Mode {
	case criteria.ModeMax:
		return &criteria.Bound{Mode: criteria.ModeMax, Value: b.Value * 1.3}
	case criteria.ModeMin:
		return &criteria.Bound{Mode: criteria.ModeMin, Value: b.Value * 0.8}
	case criteria.ModeExact, criteria.ModeApprox:
		return &criteria.Bound{Mode: criteria.ModeRange, Lo: b.Value * 0.8, Hi: b.Value * 1.3}
	case criteria.ModeRange:
		return &criteria.Bound{Mode: criteria.ModeRange, Lo: b.Lo * 0.8, Hi: b.Hi * 1.3}
	}
	return nil
}

func widenArea(b *criteria.Bound) *criteria.Bound {
	if b == nil {
		return nil
	}
	switch b.Mode {
	case criteria.ModeMax:
		return &criteria.Bound{Mode: criteria.ModeMax, Value: b.Value * 1.2}
	case criteria.ModeMin:
		return &criteria.Bound{Mode: criteria.ModeMin, Value: b.Value * 0.8}
	case criteria.ModeExact, criteria.ModeApprox:
		return &criteria.Bound{Mode: criteria.ModeRange, Lo: b.Value * 0.8, Hi: b.Value * 1.2}
	case criteria.ModeRange:
		return &criteria.Bound{Mode: criteria.ModeRange, Lo: b.Lo * 0.8, Hi: b.Hi * 1.2}
	}
	return nil
}

var siblingCategories = map[domain.Category][]domain.Category{
	domain.CategoryRoom:          {domain.CategoryMiniApartment, domain.CategoryShared},
	domain.CategoryMiniApartment: {domain.CategoryRoom, domain.CategoryServicedApt},
	domain.CategoryServicedApt:   {domain.CategoryMiniApartment, domain.CategoryApartment},
	domain.CategoryApartment:     {domain.CategoryServicedApt, domain.CategoryMiniApartment},
	domain.CategoryWholeHouse:    {domain.CategoryApartment},
	domain.CategoryShared:        {domain.CategoryRoom},
	domain.CategoryCommercial:    {domain.CategoryWholeHouse},
}

// suggestions builds human loosening proposals for an empty result.
func suggestions(crit criteria.Criteria) []string {
	var out []string

	if crit.Price != nil {
		switch crit.Price.Mode {
		case criteria.ModeMax, criteria.ModeExact, criteria.ModeApprox:
			out = append(out, fmt.Sprintf("Tăng ngân sách lên khoảng %s triệu", formatNum(roundHalf(crit.Price.Value*1.3))))
		case criteria.ModeMin:
			out = append(out, fmt.Sprintf("Hạ mức tối thiểu xuống khoảng %s triệu", formatNum(roundHalf(crit.Price.Value*0.8))))
		case criteria.ModeRange:
			out = append(out, fmt.Sprintf("Mở rộng khoảng giá thành %s–%s triệu",
				formatNum(roundHalf(crit.Price.Lo*0.8)), formatNum(roundHalf(crit.Price.Hi*1.3))))
		}
	}
	if crit.Area != nil && crit.Area.Value > 0 {
		out = append(out, fmt.Sprintf("Chấp nhận diện tích %s–%s m²",
			formatNum(roundHalf(crit.Area.Value*0.8)), formatNum(roundHalf(crit.Area.Value*1.2))))
	}
	if sibs, ok := siblingCategories[crit.Category]; ok {
		var labels []string
		for _, c := range sibs {
			if label, found := domain.CategoryLabels[c]; found {
				labels = append(labels, label)
			}
		}
		if len(labels) > 0 {
			out = append(out, "Xem thêm loại hình: "+strings.Join(labels, ", "))
		}
	}
	if crit.Province != "" {
		if near := vntext.NearbyProvinces(crit.Province); len(near) > 0 {
			out = append(out, "Khu vực lân cận: "+strings.Join(near, ", "))
		}
	}
	return out
}

// roundHalf rounds to the nearest 0.5 so suggestions read naturally.
func roundHalf(v float64) float64 {
	return float64(int(v*2+0.5)) / 2
}

package domain

import "time"

// Category is a rental listing category code.
type Category string

// Category codes, as stored on listings.
const (
	CategoryRoom          Category = "phongtro"
	CategoryApartment     Category = "canho"
	CategoryMiniApartment Category = "canho_mini"
	CategoryServicedApt   Category = "canho_dichvu"
	CategoryWholeHouse    Category = "nhanguyencan"
	CategoryShared        Category = "oghep"
	CategoryCommercial    Category = "matbang"
)

// CategoryLabels maps category codes to display labels.
var CategoryLabels = map[Category]string{
	CategoryRoom:          "Phòng trọ",
	CategoryApartment:     "Căn hộ chung cư",
	CategoryMiniApartment: "Căn hộ mini",
	CategoryServicedApt:   "Căn hộ dịch vụ",
	CategoryWholeHouse:    "Nhà nguyên căn",
	CategoryShared:        "Ở ghép",
	CategoryCommercial:    "Mặt bằng",
}

// Feature is a listing amenity code.
type Feature string

// Amenity codes, as stored on listings.
const (
	FeatureFurnished    Feature = "day_du_noi_that"
	FeatureAircon       Feature = "co_may_lanh"
	FeatureElevator     Feature = "co_thang_may"
	FeatureSecurity     Feature = "bao_ve_24_24"
	FeatureLoft         Feature = "co_gac"
	FeatureWasher       Feature = "co_may_giat"
	FeaturePrivateEntry Feature = "khong_chung_chu"
	FeatureParking      Feature = "co_ham_de_xe"
	FeatureKitchen      Feature = "co_ke_bep"
	FeatureFridge       Feature = "co_tu_lanh"
	FeatureFlexHours    Feature = "gio_giac_tu_do"
)

// FeatureLabels maps amenity codes to display labels.
var FeatureLabels = map[Feature]string{
	FeatureFurnished:    "Đầy đủ nội thất",
	FeatureAircon:       "Có máy lạnh",
	FeatureElevator:     "Có thang máy",
	FeatureSecurity:     "Bảo vệ 24/24",
	FeatureLoft:         "Có gác",
	FeatureWasher:       "Có máy giặt",
	FeaturePrivateEntry: "Không chung chủ",
	FeatureParking:      "Có hầm để xe",
	FeatureKitchen:      "Có kệ bếp",
	FeatureFridge:       "Có tủ lạnh",
	FeatureFlexHours:    "Giờ giấc tự do",
}

// Listing is a rental post as read from the listing store.
type Listing struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	PriceMil    float64   `json:"price_mil"`
	AreaM2      float64   `json:"area_m2"`
	Address     string    `json:"address"`
	Province    string    `json:"province"`
	District    string    `json:"district"`
	Features    []Feature `json:"features"`
	OwnerName   string    `json:"owner_name"`
	OwnerPhone  string    `json:"owner_phone"`
	ImageURL    string    `json:"image_url"`
	Approved    bool      `json:"approved"`
	Deleted     bool      `json:"deleted"`
	Rented      bool      `json:"rented"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Requests24h int       `json:"requests_24h"`
}

// Visible reports whether the listing should appear in answers:
// approved, not deleted, not rented, not expired.
func (l Listing) Visible(now time.Time) bool {
	if !l.Approved || l.Deleted || l.Rented {
		return false
	}
	if !l.ExpiresAt.IsZero() && !l.ExpiresAt.After(now) {
		return false
	}
	return true
}

// HasFeature reports whether the listing carries the amenity.
func (l Listing) HasFeature(f Feature) bool {
	for _, have := range l.Features {
		if have == f {
			return true
		}
	}
	return false
}

// Package is a paid promotion package row, shown by the pricing intent.
type Package struct {
	Plan        string  `json:"plan"`
	Name        string  `json:"name"`
	PriceVND    float64 `json:"price_vnd"`
	PostsPerDay int     `json:"posts_per_day"`
	ExpireDays  int     `json:"expire_days"`
	TitleColor  string  `json:"title_color"`
	Active      bool    `json:"active"`
}

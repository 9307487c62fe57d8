package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/timtro-cloud/trobot/internal/domain"
)

const faqPage = `# Câu hỏi thường gặp

Giới thiệu chung.

### Làm sao để đăng tin?

Vào trang đăng tin và điền thông tin phòng.

### Phí đăng tin là bao nhiêu?

Đăng tin thường miễn phí, tin VIP theo bảng giá.
`

func TestGatherArticles_SplitsSections(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "faq.md"), []byte(faqPage), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := GatherArticles(dir)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2 sections", len(docs))
	}

	first := docs[0]
	if first.Kind != domain.KindArticle {
		t.Errorf("kind = %q, want article", first.Kind)
	}
	if !strings.Contains(first.Title, "Làm sao để đăng tin?") {
		t.Errorf("section title missing from %q", first.Title)
	}
	if !strings.Contains(first.Text, "điền thông tin phòng") {
		t.Errorf("section body missing from %q", first.Text)
	}
	if first.ID == docs[1].ID {
		t.Error("section ids must be distinct")
	}
}

func TestGatherArticles_PlainPage(t *testing.T) {
	dir := t.TempDir()
	page := "# Về chúng tôi\n\nNền tảng tìm phòng trọ.\n"
	if err := os.WriteFile(filepath.Join(dir, "about.md"), []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := GatherArticles(dir)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if docs[0].Title != "Về chúng tôi" {
		t.Errorf("title = %q", docs[0].Title)
	}
}

func TestGatherArticles_MissingDir(t *testing.T) {
	docs, err := GatherArticles(filepath.Join(t.TempDir(), "nope"))
	if err != nil || docs != nil {
		t.Fatalf("missing dir should yield nil, nil; got %v, %v", docs, err)
	}
}

func TestListingDoc(t *testing.T) {
	l := domain.Listing{
		ID:        42,
		Title:     "Phòng trọ Quận 7",
		Category:  domain.CategoryRoom,
		PriceMil:  3.5,
		AreaM2:    20,
		Province:  "Thành phố Hồ Chí Minh",
		Features:  []domain.Feature{domain.FeatureAircon},
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	doc := ListingDoc(l)
	if doc.ID != "listing:42" || doc.Kind != domain.KindListing {
		t.Errorf("identity wrong: %+v", doc)
	}
	if doc.URL != "/post/42/" {
		t.Errorf("url = %q", doc.URL)
	}
	for _, frag := range []string{"3.5 triệu", "20 m2", "Có máy lạnh", "Thành phố Hồ Chí Minh"} {
		if !strings.Contains(doc.Text, frag) {
			t.Errorf("text missing %q:\n%s", frag, doc.Text)
		}
	}
	if doc.Meta.PriceMil != 3.5 || doc.Meta.Category != domain.CategoryRoom {
		t.Errorf("meta not carried: %+v", doc.Meta)
	}
	if len(doc.Meta.Features) != 1 || doc.Meta.Features[0] != domain.FeatureAircon {
		t.Errorf("meta features not carried: %+v", doc.Meta.Features)
	}
}

func TestPackageDoc(t *testing.T) {
	p := domain.Package{Plan: "vip1", Name: "VIP 1", PriceVND: 50000, PostsPerDay: 3, ExpireDays: 30}

	doc := PackageDoc(p)
	if doc.Kind != domain.KindPackage || doc.ID != "package:vip1" {
		t.Errorf("identity wrong: %+v", doc)
	}
	if doc.Text != "Gói VIP 1: 50000 VNĐ, 3 tin mỗi ngày, hiệu lực 30 ngày." {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestGatherAll(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "faq.md"), []byte(faqPage), 0o644); err != nil {
		t.Fatal(err)
	}

	docs, err := GatherAll(dir,
		[]domain.Listing{{ID: 1, Title: "Phòng"}},
		[]domain.Package{{Plan: "vip1", Name: "VIP 1"}},
	)
	if err != nil {
		t.Fatalf("gather all: %v", err)
	}
	if len(docs) != 4 { // 2 faq sections + 1 listing + 1 package
		t.Fatalf("got %d docs, want 4", len(docs))
	}
}

package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/timtro-cloud/trobot/internal/domain"
)

// GatherArticles reads every markdown file in dir and splits it into one
// document per "###" section so that a single FAQ answer, not the whole
// page, gets retrieved. A file without such sections becomes one document.
func GatherArticles(dir string) ([]domain.Document, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read article dir %s: %w", dir, err)
	}

	var docs []domain.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read article %s: %w", entry.Name(), err)
		}
		info, err := entry.Info()
		var modTime time.Time
		if err == nil {
			modTime = info.ModTime()
		}
		docs = append(docs, splitArticle(entry.Name(), string(data), modTime)...)
	}
	return docs, nil
}

func splitArticle(filename, content string, modTime time.Time) []domain.Document {
	name := strings.TrimSuffix(filename, ".md")
	pageTitle := name

	lines := strings.Split(content, "\n")
	var sections []struct {
		title string
		body  []string
	}
	cur := -1
	var preamble []string

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "# "):
			pageTitle = strings.TrimSpace(strings.TrimPrefix(line, "# "))
		case strings.HasPrefix(line, "### "):
			sections = append(sections, struct {
				title string
				body  []string
			}{title: strings.TrimSpace(strings.TrimPrefix(line, "### "))})
			cur = len(sections) - 1
		default:
			if cur >= 0 {
				sections[cur].body = append(sections[cur].body, line)
			} else {
				preamble = append(preamble, line)
			}
		}
	}

	if len(sections) == 0 {
		text := strings.TrimSpace(strings.Join(preamble, "\n"))
		if text == "" {
			return nil
		}
		return []domain.Document{{
			ID:        "article:" + name,
			Kind:      domain.KindArticle,
			Title:     pageTitle,
			URL:       "/faq/" + name,
			Text:      text,
			CreatedAt: modTime,
		}}
	}

	docs := make([]domain.Document, 0, len(sections))
	for i, sec := range sections {
		text := strings.TrimSpace(strings.Join(sec.body, "\n"))
		if text == "" {
			continue
		}
		docs = append(docs, domain.Document{
			ID:        "article:" + name + "#" + strconv.Itoa(i),
			Kind:      domain.KindArticle,
			Title:     pageTitle + " — " + sec.title,
			URL:       "/faq/" + name,
			Text:      text,
			CreatedAt: modTime,
		})
	}
	return docs
}

// ListingDoc converts a listing into an indexable document. The text folds
// in the attributes renters search by, so lexical matching works without a
// separate metadata pass.
func ListingDoc(l domain.Listing) domain.Document {
	var sb strings.Builder
	sb.WriteString(l.Title)
	sb.WriteString("\n")
	sb.WriteString(l.Description)
	if label, ok := domain.CategoryLabels[l.Category]; ok {
		sb.WriteString("\n")
		sb.WriteString(label)
	}
	if l.Address != "" {
		sb.WriteString("\n")
		sb.WriteString(l.Address)
	}
	if l.District != "" {
		sb.WriteString("\n")
		sb.WriteString(l.District)
	}
	if l.Province != "" {
		sb.WriteString("\n")
		sb.WriteString(l.Province)
	}
	if l.PriceMil > 0 {
		sb.WriteString("\ngiá ")
		sb.WriteString(strconv.FormatFloat(l.PriceMil, 'f', -1, 64))
		sb.WriteString(" triệu")
	}
	if l.AreaM2 > 0 {
		sb.WriteString("\ndiện tích ")
		sb.WriteString(strconv.FormatFloat(l.AreaM2, 'f', -1, 64))
		sb.WriteString(" m2")
	}
	for _, f := range l.Features {
		if label, ok := domain.FeatureLabels[f]; ok {
			sb.WriteString("\n")
			sb.WriteString(label)
		}
	}

	return domain.Document{
		ID:    "listing:" + strconv.FormatInt(l.ID, 10),
		Kind:  domain.KindListing,
		Title: l.Title,
		URL:   "/post/" + strconv.FormatInt(l.ID, 10) + "/",
		Text:  sb.String(),
		Meta: domain.DocMeta{
			Category: l.Category,
			PriceMil: l.PriceMil,
			AreaM2:   l.AreaM2,
			Province: l.Province,
			District: l.District,
			Features: l.Features,
		},
		CreatedAt: l.CreatedAt,
	}
}

// PackageDoc converts a paid posting package into an indexable document.
func PackageDoc(p domain.Package) domain.Document {
	text := fmt.Sprintf(
		"Gói %s: %s VNĐ, %d tin mỗi ngày, hiệu lực %d ngày.",
		p.Name, strconv.FormatInt(int64(p.PriceVND), 10), p.PostsPerDay, p.ExpireDays,
	)
	return domain.Document{
		ID:    "package:" + p.Plan,
		Kind:  domain.KindPackage,
		Title: "Bảng giá gói " + p.Name,
		URL:   "/pricing",
		Text:  text,
	}
}

// GatherAll assembles the full corpus from articles, listings and packages.
func GatherAll(articleDir string, listings []domain.Listing, packages []domain.Package) ([]domain.Document, error) {
	docs, err := GatherArticles(articleDir)
	if err != nil {
		return nil, err
	}
	for _, l := range listings {
		docs = append(docs, ListingDoc(l))
	}
	for _, p := range packages {
		docs = append(docs, PackageDoc(p))
	}
	return docs, nil
}

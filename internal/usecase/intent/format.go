package intent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/timtro-cloud/trobot/internal/domain"
	"github.com/timtro-cloud/trobot/internal/domain/criteria"
)

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatListings renders a numbered result list with link lines the frontend
// turns into cards.
func formatListings(intro string, listings []domain.Listing, crit criteria.Criteria) string {
	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString("\n\n")

	for i, l := range listings {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(l.Title)
		sb.WriteString("\n   ")
		if l.PriceMil > 0 {
			sb.WriteString("Giá: ")
			sb.WriteString(formatNum(l.PriceMil))
			sb.WriteString(" triệu/tháng")
		}
		if l.AreaM2 > 0 {
			sb.WriteString(" · ")
			sb.WriteString(formatNum(l.AreaM2))
			sb.WriteString(" m²")
		}
		if loc := location(l); loc != "" {
			sb.WriteString(" · ")
			sb.WriteString(loc)
		}
		sb.WriteString("\n   Xem chi tiết: /post/")
		sb.WriteString(strconv.FormatInt(l.ID, 10))
		sb.WriteString("/\n")
	}

	if desc := crit.Describe(); desc != "" {
		sb.WriteString("\nLọc áp dụng: ")
		sb.WriteString(desc)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func location(l domain.Listing) string {
	switch {
	case l.District != "" && l.Province != "":
		return l.District + ", " + l.Province
	case l.Province != "":
		return l.Province
	default:
		return l.District
	}
}

// maskPhone hides the middle digits: 0901234567 -> 0901***567.
// Numbers too short to mask are hidden entirely.
func maskPhone(phone string) string {
	if len(phone) < 7 {
		return "***"
	}
	return phone[:4] + "***" + phone[len(phone)-3:]
}

func formatContact(l domain.Listing, masked bool) string {
	phone := l.OwnerPhone
	note := ""
	if masked {
		phone = maskPhone(phone)
		note = "\n(Đăng nhập để xem số điện thoại đầy đủ.)"
	}
	owner := l.OwnerName
	if owner == "" {
		owner = "Chủ nhà"
	}
	return fmt.Sprintf(
		"Liên hệ tin \"%s\":\n%s — %s\nXem chi tiết: /post/%d/%s",
		l.Title, owner, phone, l.ID, note,
	)
}

func formatPricing(packages []domain.Package) string {
	var sb strings.Builder
	sb.WriteString("Bảng giá gói đăng tin hiện tại:\n\n")
	active := 0
	for _, p := range packages {
		if !p.Active {
			continue
		}
		active++
		fmt.Fprintf(&sb, "- %s: %s VNĐ/tháng, %d tin/ngày, hiệu lực %d ngày\n",
			p.Name, groupDigits(int64(p.PriceVND)), p.PostsPerDay, p.ExpireDays)
	}
	if active == 0 {
		return "Đăng tin thường trên hệ thống là miễn phí. Các gói trả phí đang được cập nhật, bạn xem bảng giá mới nhất tại trang /pricing nhé."
	}
	sb.WriteString("\nChi tiết tại trang /pricing.")
	return sb.String()
}

// groupDigits renders 50000 as "50.000" the way Vietnamese price tags do.
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

// formatEmpty explains an empty result and proposes concrete loosenings
// instead of silently substituting other areas.
func formatEmpty(crit criteria.Criteria, suggestions []string) string {
	var sb strings.Builder
	sb.WriteString("Hiện chưa có tin nào khớp yêu cầu")
	if desc := crit.Describe(); desc != "" {
		sb.WriteString(" (")
		sb.WriteString(desc)
		sb.WriteString(")")
	}
	sb.WriteString(".")
	if len(suggestions) > 0 {
		sb.WriteString("\n\nBạn có thể thử:\n")
		for _, s := range suggestions {
			sb.WriteString("- ")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

package chat

import (
	"strings"

	"github.com/timtro-cloud/trobot/internal/domain"
)

const systemPersona = `Bạn là trợ lý tìm phòng trọ của một trang tin cho thuê tại Việt Nam.
Trả lời ngắn gọn, thân thiện, bằng tiếng Việt.
Chỉ dùng thông tin trong phần "Nguồn tham khảo" bên dưới; nếu không đủ thông tin, nói thẳng là chưa có và gợi ý người dùng hỏi cách khác.
Khi nhắc đến một tin đăng, luôn kèm đường dẫn dạng /post/<id>/.
Không bịa số điện thoại, giá hay địa chỉ.`

// buildPrompts assembles the system and user prompts for one generation
// call: persona plus retrieved sources on the system side, recent turns plus
// the question on the user side. filters, when non-empty, tells the model
// which criteria were already recognized in the question.
func buildPrompts(hits []domain.Hit, hist *domain.History, question, filters string) (string, string) {
	var sys strings.Builder
	sys.WriteString(systemPersona)
	if len(hits) > 0 {
		sys.WriteString("\n\nNguồn tham khảo:\n")
		for _, h := range hits {
			sys.WriteString("- ")
			sys.WriteString(h.Title)
			if h.URL != "" {
				sys.WriteString(" (")
				sys.WriteString(h.URL)
				sys.WriteString(")")
			}
			sys.WriteString(": ")
			sys.WriteString(h.Snippet)
			sys.WriteString("\n")
		}
	}

	var user strings.Builder
	if hist != nil {
		for _, ex := range hist.Recent(3) {
			user.WriteString("Người dùng: ")
			user.WriteString(ex.UserText)
			user.WriteString("\nTrợ lý: ")
			user.WriteString(ex.BotText)
			user.WriteString("\n")
		}
	}
	user.WriteString("Người dùng: ")
	user.WriteString(question)
	if filters != "" {
		user.WriteString("\n(Tiêu chí nhận diện được: ")
		user.WriteString(filters)
		user.WriteString(")")
	}

	return sys.String(), user.String()
}

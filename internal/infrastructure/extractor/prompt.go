package extractor

import (
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

const systemPrompt = `You extract person records from documents. Return ONLY one JSON object describing at most one person.
Keep values in the language they appear in the source. Omit a field when the text does not state it; never output null.
Fields:
- chinese_name, english_name, original_name: name variants as written; alias_names: array of other names.
- gender: as written in the source (for example 男 or 女).
- birth_date, death_date: ISO-8601 dates (YYYY-MM-DD); use the most precise date the text supports.
- nationality, birth_place.
- id_card_number, passport_number, phone, email, address: contact and identity fields.
- organization, position: current affiliation and role.
- education, work_experience: free-text summaries of the person's education and career.
- remark: any other relevant detail.
- tags: array of tag names chosen ONLY from the reference tag list. Never invent tags; use an empty array when none apply.
If the text describes no person, return {}.`

func buildSystemPrompt() string {
	return systemPrompt
}

func buildUserPrompt(text, sourceFileName string, vocabulary []domain.Tag, maxChars int) string {
	var b strings.Builder
	b.WriteString("Source file: ")
	b.WriteString(sourceFileName)
	b.WriteString("\n\nReference tags:\n")
	if len(vocabulary) == 0 {
		b.WriteString("(none - return an empty tags array)\n")
	}
	for i, tag := range vocabulary {
		if tag.Category != "" {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, tag.Name, tag.Category)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, tag.Name)
		}
	}
	b.WriteString("\nText:\n")
	b.WriteString(truncateRunes(text, maxChars))
	return b.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

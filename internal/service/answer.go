// answer.go — подбор готового ответа по ключевым словам вопроса.
package service

import (
	"fmt"
	"strings"
)

// cannedAnswer — готовый ответ и ключевые слова, при наличии любого из которых он выбирается.
type cannedAnswer struct {
	keywords []string
	text     string
}

// cannedAnswers проверяются по порядку, выигрывает первое совпадение.
var cannedAnswers = []cannedAnswer{
	{
		keywords: []string{"photosynthesis"},
		text:     "Photosynthesis is the process by which green plants and some other organisms use sunlight to synthesize foods with the aid of chlorophyll.",
	},
	{
		keywords: []string{"gravity"},
		text:     "Gravity is a fundamental interaction which causes mutual attraction between all things that have mass or energy.",
	},
	{
		keywords: []string{"math", "addition"},
		text:     "Mathematics includes the study of such topics as quantity (number theory), structure (algebra), space (geometry), and change (analysis).",
	},
	{
		keywords: []string{"history"},
		text:     "History is the study of the past. Events occurring before the invention of writing systems are considered prehistory.",
	},
}

// fallbackAnswer подставляет исходный вопрос без изменений.
const fallbackAnswer = "I couldn't find any specific resources about '%s' in my library. Try searching for 'Gravity' or 'Photosynthesis' to see sample resources!"

// Synthesize возвращает готовый ответ для вопроса.
// Ключевые слова ищутся как подстроки в вопросе, приведённом к нижнему регистру.
func Synthesize(query string) string {
	q := strings.ToLower(query)
	for _, a := range cannedAnswers {
		for _, kw := range a.keywords {
			if strings.Contains(q, kw) {
				return a.text
			}
		}
	}
	return fmt.Sprintf(fallbackAnswer, query)
}

// normalize.go — нормализация вопроса в поисковый термин.
package service

import (
	"regexp"
	"strings"
)

// conversationalPrefixes — разговорные префиксы в порядке проверки.
// Префикс совпадает только в начале строки, за ним допускаются пробелы.
var conversationalPrefixes = compilePrefixes(
	"tell me about",
	"what is",
	"search for",
	"find me",
	"show me",
	"give me",
	"i want to learn about",
	"can you tell me about",
	"how does",
	"do you have info on",
	"inform me on",
	"all about",
	"learn about",
)

func compilePrefixes(prefixes ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(prefixes))
	for _, p := range prefixes {
		res = append(res, regexp.MustCompile(`(?i)^`+regexp.QuoteMeta(p)+`\s*`))
	}
	return res
}

// NormalizeQuery приводит вопрос к поисковому термину: нижний регистр,
// без крайних пробелов, без завершающих "?", "." и "!" и без первого
// совпавшего разговорного префикса. Результат никогда не длиннее входа.
func NormalizeQuery(raw string) string {
	q := strings.TrimSpace(strings.ToLower(raw))
	q = strings.TrimSpace(strings.TrimRight(q, "?.!"))

	// Срабатывает только первый совпавший префикс
	for _, re := range conversationalPrefixes {
		if loc := re.FindStringIndex(q); loc != nil && loc[1] > 0 {
			return strings.TrimSpace(q[loc[1]:])
		}
	}
	return q
}

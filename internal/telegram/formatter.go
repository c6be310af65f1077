package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/kitbuilder587/askweb/internal/domain"
)

func FormatAnswer(resp *domain.AnswerResponse) string {
	var sb strings.Builder
	sb.WriteString(html.EscapeString(resp.Answer))

	if len(resp.Sources) > 0 {
		sb.WriteString("\n\n━━━━━━━━━━━━━━━━━━━━━\n")
		sb.WriteString("<b>Источники:</b>\n")

		for i, src := range resp.Sources {
			title := src.Title
			if strings.TrimSpace(title) == "" {
				title = truncateURL(src.URL, 50)
			}
			fmt.Fprintf(&sb, "%d. <a href=\"%s\">%s</a>\n",
				i+1,
				html.EscapeString(src.URL),
				html.EscapeString(title),
			)
		}
	}

	if resp.ProcessingTime != "" {
		fmt.Fprintf(&sb, "\n<i>Обработано за %s</i>", html.EscapeString(resp.ProcessingTime))
	}

	return sb.String()
}

// SplitMessage режет текст на части не длиннее maxLen байт, не ломая UTF-8,
// HTML-сущности и теги. Если разрез попадает внутрь <b>/<a>, элемент
// закрывается в конце части и открывается заново в следующей.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var (
		messages []string
		open     []openTag
	)
	for len(text) > 0 {
		prefix := openingTags(open)
		if len(prefix)+len(text) <= maxLen {
			messages = append(messages, prefix+text)
			break
		}

		cut, stack := findSplitPoint(text, open, maxLen-len(prefix))
		messages = append(messages, prefix+text[:cut]+closingTags(stack))
		text = text[cut:]
		open = stack
	}

	return messages
}

type openTag struct {
	name string
	raw  string
}

type splitPoint struct {
	pos   int
	stack []openTag
}

const maxEntityLen = 10

// findSplitPoint выбирает разрез так, чтобы часть вместе с закрывающими тегами
// уложилась в budget. Порядок предпочтения: перевод строки вне элементов,
// пробел вне элементов, любой пробел, любая граница символа.
func findSplitPoint(text string, open []openTag, budget int) (int, []openTag) {
	stack := append([]openTag(nil), open...)
	var lineBreak, space, whitespace, last splitPoint

	pos := 0
	for pos < len(text) {
		next, tag := nextToken(text, pos)
		if tag != "" {
			stack = applyTag(stack, tag)
		}
		pos = next

		if pos > budget {
			if last.pos > 0 {
				break
			}
			// в лимит не влезло ничего: отдаём первый элемент целиком
			if len(stack) == 0 {
				return pos, nil
			}
			continue
		}
		if pos+closingLen(stack) > budget {
			continue
		}

		sp := splitPoint{pos: pos, stack: append([]openTag(nil), stack...)}
		last = sp
		if c := text[pos-1]; c == '\n' || c == ' ' {
			whitespace = sp
			if len(stack) == 0 {
				if c == '\n' {
					lineBreak = sp
				} else {
					space = sp
				}
			}
		}
	}

	half := budget / 2
	switch {
	case lineBreak.pos > half:
		return lineBreak.pos, lineBreak.stack
	case space.pos > half:
		return space.pos, space.stack
	case whitespace.pos > 0:
		return whitespace.pos, whitespace.stack
	case last.pos > 0:
		return last.pos, last.stack
	}
	return len(text), stack
}

// nextToken возвращает конец тега, сущности или символа, начинающегося с pos.
func nextToken(text string, pos int) (int, string) {
	switch text[pos] {
	case '<':
		if end := strings.IndexByte(text[pos:], '>'); end >= 0 {
			return pos + end + 1, text[pos : pos+end+1]
		}
	case '&':
		if end := strings.IndexByte(text[pos:], ';'); end > 0 && end <= maxEntityLen {
			return pos + end + 1, ""
		}
	}
	_, size := utf8.DecodeRuneInString(text[pos:])
	return pos + size, ""
}

func applyTag(stack []openTag, tag string) []openTag {
	name := tagName(tag)
	switch {
	case name == "":
		return stack
	case strings.HasPrefix(tag, "</"):
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].name == name {
				return stack[:i]
			}
		}
		return stack
	case strings.HasSuffix(tag, "/>"):
		return stack
	default:
		return append(stack, openTag{name: name, raw: tag})
	}
}

func tagName(tag string) string {
	name := strings.TrimPrefix(strings.TrimPrefix(tag, "<"), "/")
	if i := strings.IndexAny(name, " \t\n/>"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func openingTags(stack []openTag) string {
	var sb strings.Builder
	for _, t := range stack {
		sb.WriteString(t.raw)
	}
	return sb.String()
}

func closingTags(stack []openTag) string {
	var sb strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteString("</" + stack[i].name + ">")
	}
	return sb.String()
}

func closingLen(stack []openTag) int {
	n := 0
	for _, t := range stack {
		n += len(t.name) + 3
	}
	return n
}

func truncateURL(url string, maxLen int) string {
	if utf8.RuneCountInString(url) <= maxLen {
		return url
	}
	runes := []rune(url)
	return string(runes[:maxLen-3]) + "..."
}

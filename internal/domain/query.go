package domain

import (
	"strings"
)

type QueryRequest struct {
	Text string
}

// Validate отклоняет только пустой запрос, длину не ограничиваем.
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyQuery
	}
	return nil
}

func (q *QueryRequest) Sanitize() {
	q.Text = strings.TrimSpace(q.Text)
}

// Package templatestore defines the port for approved SQL template text.
package templatestore

import (
	"context"

	"github.com/Strob0t/paddock/internal/domain/template"
)

// Store returns the SQL text of an approved template. Unknown ids are an
// error; callers preload at startup so that error never reaches a request.
type Store interface {
	Load(ctx context.Context, id template.ID) (string, error)
}

package translator

import (
	"context"

	"golang.org/x/text/language"
)

// Client translates one unit of plain text. Implementations return an
// apperr TranslationFailure for network, timeout and unsupported language
// errors.
type Client interface {
	Translate(ctx context.Context, text string, target language.Tag) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, text string, target language.Tag) (string, error)

func (f ClientFunc) Translate(ctx context.Context, text string, target language.Tag) (string, error) {
	return f(ctx, text, target)
}

// TranslatedUnit is the translation of one merge.Unit.
type TranslatedUnit struct {
	UnitID int
	Text   string
}

// Result is the outcome of one unit's translation. Err is set when the
// unit must fall back to its source text.
type Result struct {
	UnitID int
	Text   string
	Err    error
}

func (r Result) Translated() TranslatedUnit {
	return TranslatedUnit{UnitID: r.UnitID, Text: r.Text}
}

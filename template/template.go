// Package template expands the command-template tokens that buildcore
// recognises: $(TARGET), $(DEPENDS) and $(FIRST). Substitution is textual,
// single-pass and non-recursive, as required by the engine's external
// interface contract.
package template

import (
	"github.com/alessio/shellescape"
	deferredregex "github.com/peterebden/go-deferred-regex"
)

// token lazily compiles a single pattern matching all three recognised
// substitution tokens on first use, via the same DeferredRegex helper the
// teacher uses for its own command-replacement tokens. Matching all three
// in one pass means a substituted value is never scanned again.
var token = deferredregex.DeferredRegex{Re: `\$\((TARGET|DEPENDS|FIRST)\)`}

// Expand substitutes $(TARGET), $(DEPENDS) and $(FIRST) in the given command
// template with the supplied values. Unrecognised tokens are left alone.
func Expand(tpl, target, depends, first string) string {
	values := map[string]string{"$(TARGET)": target, "$(DEPENDS)": depends, "$(FIRST)": first}
	return token.ReplaceAllStringFunc(tpl, func(tok string) string { return values[tok] })
}

// Quote shell-escapes a single token, for callers that build up command
// templates from structured arguments (eg. the engine's compiler/linker
// command factories) and need to embed a path that might contain spaces.
func Quote(s string) string {
	return shellescape.Quote(s)
}

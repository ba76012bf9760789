package devweb

import (
	"github.com/dop251/goja"

	"github.com/unkn0wn-root/devwebgen/internal/errdef"
)

// Validate parses text as an ES script without running it.
func Validate(text string) error {
	if _, err := goja.Compile("main.js", text, false); err != nil {
		return errdef.Wrap(errdef.CodeRender, err, "generated script does not parse")
	}
	return nil
}

package pipeline

import "errors"

// ErrNoMatchingMods means the input was valid but no catalog mod drops there.
var ErrNoMatchingMods = errors.New("no mods found for the selected location(s)")

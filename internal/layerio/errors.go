package layerio

import (
	"fmt"
)

// FormatError indicates a layer file that could not be decoded.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// UnsupportedFormatError indicates a file extension with no reader.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported layer format: %s", e.Path)
}

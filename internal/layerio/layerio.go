package layerio

import (
	"path/filepath"
	"strings"

	"github.com/beetlebugorg/basemerge/internal/conflate"
)

// Extensions lists the layer file extensions Read accepts, in lookup order.
var Extensions = []string{".geojson", ".json", ".shp"}

// Read loads a layer, choosing the decoder by file extension.
func Read(path string) (*conflate.Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return ReadGeoJSON(path)
	case ".shp":
		return ReadShapefile(path)
	}
	return nil, &UnsupportedFormatError{Path: path}
}

package ephemeris

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultLayers is the layer order used when none is configured.
var DefaultLayers = []string{LayerVSOP87, LayerAnalytic}

// BuildLayers creates layers by name in order. The vsop87 layer is skipped
// when no data directory is configured. The synthetic layer is added by
// NewChain and need not be listed.
func BuildLayers(names []string, dataDir string) ([]Layer, error) {
	if len(names) == 0 {
		names = DefaultLayers
	}
	layers := make([]Layer, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case LayerVSOP87:
			if dataDir == "" {
				zap.L().Info("ephemeris: vsop87 layer disabled, no data directory configured")
				continue
			}
			layers = append(layers, NewVSOP87Layer(dataDir))
		case LayerAnalytic:
			layers = append(layers, NewAnalyticLayer())
		case LayerSynthetic:
			layers = append(layers, NewSyntheticLayer())
		default:
			return nil, eris.Errorf("ephemeris: unknown layer %q", name)
		}
	}
	return layers, nil
}

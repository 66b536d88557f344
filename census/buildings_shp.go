package census

import (
	"github.com/ctessum/geom"
	"github.com/pkg/errors"

	shpfile "github.com/ctessum/geom/encoding/shp"
)

// OutputAreaPolygon is one record from the output-area boundary
// shapefile: its geography code and polygon (external interface item 5).
type OutputAreaPolygon struct {
	Code    AreaCode
	Polygon geom.Polygon
}

// LoadOutputAreaShapefile reads an output-area boundary shapefile,
// extracting the "code" attribute field alongside each record's
// polygon geometry. filename should be given without its .shp suffix
// (matching shp.NewDecoder's convention) or with it; either is accepted.
func LoadOutputAreaShapefile(filename string) ([]OutputAreaPolygon, error) {
	dec, err := shpfile.NewDecoder(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "census: opening output-area shapefile %s", filename)
	}
	defer dec.Close()

	var out []OutputAreaPolygon
	for {
		g, fields, more := dec.DecodeRowFields("code")
		if !more {
			break
		}
		poly, ok := g.(geom.Polygon)
		if !ok {
			return nil, errors.Errorf("census: output-area shapefile record has non-polygon geometry %T", g)
		}
		out = append(out, OutputAreaPolygon{
			Code:    AreaCode(fields["code"]),
			Polygon: poly,
		})
	}
	if err := dec.Error(); err != nil {
		return nil, errors.Wrap(err, "census: reading output-area shapefile")
	}
	return out, nil
}

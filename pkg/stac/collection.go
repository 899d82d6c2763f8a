package stac

// Version is the STAC version written into provisioned collections.
const Version = "1.0.0"

// Collection is the destination container created before items are written.
type Collection struct {
	Type        string `json:"type"`
	StacVersion string `json:"stac_version"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	License     string `json:"license"`
	Extent      Extent `json:"extent"`
	Links       []Link `json:"links"`
}

// Extent is the spatial and temporal coverage of a collection.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// SpatialExtent holds bounding boxes as [west, south, east, north].
type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

// TemporalExtent holds open or closed intervals; nil marks an open end.
type TemporalExtent struct {
	Interval [][]*string `json:"interval"`
}

// NewCollection returns a minimal collection whose id doubles as its title
// and description, with a whole-world, open-ended extent.
func NewCollection(id string) Collection {
	return Collection{
		Type:        "Collection",
		StacVersion: Version,
		ID:          id,
		Title:       id,
		Description: id,
		License:     "proprietary",
		Extent: Extent{
			Spatial:  SpatialExtent{BBox: [][]float64{{-180, -90, 180, 90}}},
			Temporal: TemporalExtent{Interval: [][]*string{{nil, nil}}},
		},
		Links: []Link{},
	}
}

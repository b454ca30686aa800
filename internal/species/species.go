// Package species suggests tree species for a planting spot from a
// small static catalog, banded by available area.
package species

// Species describes one catalog entry.
type Species struct {
	Common     string `json:"common_name"`
	Scientific string `json:"scientific_name"`
	// MaxAreaM2 is the largest spot area this species is suggested for.
	MaxAreaM2 float64 `json:"max_area_m2"`
	CanopyM   float64 `json:"mature_canopy_m"`
	Native    bool    `json:"native"`
}

// Catalog is ordered by ascending area band. Selection takes the first
// entry whose band covers the spot's area; spots larger than every band
// get the final entry.
var Catalog = []Species{
	{Common: "Hibiscus", Scientific: "Hibiscus rosa-sinensis", MaxAreaM2: 5, CanopyM: 2, Native: true},
	{Common: "Frangipani", Scientific: "Plumeria rubra", MaxAreaM2: 20, CanopyM: 5, Native: false},
	{Common: "Yellow Flame", Scientific: "Peltophorum pterocarpum", MaxAreaM2: 50, CanopyM: 12, Native: true},
	{Common: "Angsana", Scientific: "Pterocarpus indicus", MaxAreaM2: 100, CanopyM: 20, Native: true},
	{Common: "Rain Tree", Scientific: "Samanea saman", MaxAreaM2: 0, CanopyM: 30, Native: false},
}

// Suggest returns the species suited to a spot of the given area in
// square meters.
func Suggest(areaM2 float64) Species {
	for _, s := range Catalog {
		if s.MaxAreaM2 > 0 && areaM2 <= s.MaxAreaM2 {
			return s
		}
	}
	return Catalog[len(Catalog)-1]
}

package scoring

import "github.com/turtacn/LandQuant-Intelligence/internal/domain/feature"

// Built-in profile names.
const (
	ProfileGeneral       = "general"
	ProfileDesalination  = "desalination_plant"
	ProfileSiliconFab    = "silicon_wafer_fab"
	ProfileWarehouse     = "warehouse_distribution"
	ProfileManufacturing = "light_manufacturing"
)

// builtinProfiles returns the platform's predefined use-case profiles.  Each
// call returns fresh instances so registry overrides never mutate shared
// state.
func builtinProfiles() []*Profile {
	return []*Profile{
		{
			Name:        ProfileGeneral,
			Title:       "General Industrial",
			Description: "Balanced scoring for general industrial development",
			Weights: map[string]float64{
				feature.KeyRoadAccess:       1.0,
				feature.KeyWaterService:     1.0,
				feature.KeyIndustrialZone:   1.5,
				feature.KeyCommercialZone:   1.0,
				feature.KeyResidentialZone:  -0.5,
				feature.KeyAgriculturalZone: -0.5,
				feature.KeyPower:            1.0,
				feature.KeyRail:             0.5,
				feature.KeyFloodRisk:        -1.5,
				feature.KeyHighElevation:    -0.5,
			},
			Synergies: []Synergy{
				{Features: []string{feature.KeyWaterService, feature.KeyIndustrialZone}, Bonus: 1.0},
				{Features: []string{feature.KeyRoadAccess, feature.KeyPower}, Bonus: 0.5},
			},
		},
		{
			Name:        ProfileDesalination,
			Title:       "Desalination Plant",
			Description: "Optimized for reverse osmosis desalination facilities",
			Weights: map[string]float64{
				feature.KeyCoastal:        4.0,
				feature.KeyPower:          3.0,
				feature.KeyIndustrialZone: 2.5,

				feature.KeyRoadAccess:   1.5,
				feature.KeyHighway:      1.0,
				feature.KeyLowElevation: 1.0,

				feature.KeyRail:      0.5,
				feature.KeyUrbanArea: 0.5,

				feature.KeyResidentialZone:  -2.0,
				feature.KeyAgriculturalZone: -1.0,
				feature.KeyHighElevation:    -2.5,
				feature.KeyProtectedHabitat: -5.0,
			},
			Synergies: []Synergy{
				{Features: []string{feature.KeyCoastal, feature.KeyIndustrialZone}, Bonus: 2.5},
				{Features: []string{feature.KeyCoastal, feature.KeyPower}, Bonus: 2.0},
				{Features: []string{feature.KeyLowElevation, feature.KeyCoastal}, Bonus: 1.5},
				{Features: []string{feature.KeyPower, feature.KeyIndustrialZone}, Bonus: 1.0},
			},
			AntiSynergies: []Synergy{
				{Features: []string{feature.KeyCoastal, feature.KeyResidentialZone}, Bonus: -2.0},
				{Features: []string{feature.KeyCoastal, feature.KeyProtectedHabitat}, Bonus: -3.0},
			},
			Requirements:  []string{feature.KeyCoastal, feature.KeyPower},
			Disqualifiers: []string{feature.KeyProtectedHabitat},
		},
		{
			Name:        ProfileSiliconFab,
			Title:       "Silicon Wafer Fabrication",
			Description: "Optimized for semiconductor manufacturing",
			Weights: map[string]float64{
				feature.KeyPower:          4.0,
				feature.KeyWaterService:   3.0,
				feature.KeyIndustrialZone: 2.5,

				feature.KeyHighway:           1.5,
				feature.KeyRoadAccess:        1.5,
				feature.KeyManufacturingBase: 1.0,

				feature.KeyResidentialZone:  -1.5,
				feature.KeyFloodRisk:        -3.0,
				feature.KeyHighElevation:    -1.0,
				feature.KeyAgriculturalZone: -0.5,
			},
			Synergies: []Synergy{
				{Features: []string{feature.KeyPower, feature.KeyIndustrialZone}, Bonus: 2.0},
				{Features: []string{feature.KeyWaterService, feature.KeyIndustrialZone}, Bonus: 1.5},
				{Features: []string{feature.KeyHighway, feature.KeyManufacturingBase}, Bonus: 1.0},
			},
			AntiSynergies: []Synergy{
				{Features: []string{feature.KeyFloodRisk, feature.KeyIndustrialZone}, Bonus: -2.0},
			},
			Requirements:  []string{feature.KeyPower, feature.KeyWaterService},
			Disqualifiers: []string{feature.KeyFloodRisk},
		},
		{
			Name:        ProfileWarehouse,
			Title:       "Warehouse / Distribution",
			Description: "Optimized for logistics and distribution centers",
			Weights: map[string]float64{
				feature.KeyHighway:        3.0,
				feature.KeyRoadAccess:     2.0,
				feature.KeyRail:           2.0,
				feature.KeyIndustrialZone: 2.0,
				feature.KeyPort:           1.5,
				feature.KeyPower:          0.5,

				feature.KeyResidentialZone: -1.5,
				feature.KeyHighElevation:   -1.0,
			},
			Synergies: []Synergy{
				{Features: []string{feature.KeyHighway, feature.KeyRail}, Bonus: 2.5},
				{Features: []string{feature.KeyHighway, feature.KeyPort}, Bonus: 2.0},
				{Features: []string{feature.KeyIndustrialZone, feature.KeyHighway}, Bonus: 1.0},
			},
		},
		{
			Name:        ProfileManufacturing,
			Title:       "Light Manufacturing",
			Description: "Optimized for general manufacturing facilities",
			Weights: map[string]float64{
				feature.KeyIndustrialZone:    2.5,
				feature.KeyPower:             2.0,
				feature.KeyRoadAccess:        1.5,
				feature.KeyWaterService:      1.0,
				feature.KeyHighway:           1.0,
				feature.KeyManufacturingBase: 0.5,

				feature.KeyResidentialZone:  -1.5,
				feature.KeyAgriculturalZone: -0.5,
			},
			Synergies: []Synergy{
				{Features: []string{feature.KeyIndustrialZone, feature.KeyPower}, Bonus: 1.5},
				{Features: []string{feature.KeyRoadAccess, feature.KeyHighway}, Bonus: 1.0},
			},
		},
	}
}

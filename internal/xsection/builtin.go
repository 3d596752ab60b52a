package xsection

// Silicon and nitride platform defaults, in µm.
const (
	StripWidth   = 0.5
	StripRadius  = 10.0
	StripSpacing = 2.0

	RibWidth     = 0.5
	RibRadius    = 20.0
	RibSlabWidth = 6.0

	NitrideWidth  = 1.0
	NitrideRadius = 20.0

	MetalRoutingWidth   = 10.0
	MetalRoutingSpacing = 10.0
)

// Builtin cross-section names.
const (
	Strip        = "strip"
	Rib          = "rib"
	Nitride      = "nitride"
	MetalRouting = "metal_routing"
)

// Builtins returns the built-in cross-sections.
func Builtins() []CrossSection {
	return []CrossSection{
		{
			Name:        Strip,
			Width:       StripWidth,
			Radius:      StripRadius,
			Layer:       "WG",
			Spacing:     StripSpacing,
			LossDBPerCm: 2.0,
		},
		{
			Name:    Rib,
			Width:   RibWidth,
			Radius:  RibRadius,
			Layer:   "WG",
			Spacing: StripSpacing,
			Sections: []Section{
				{Layer: "SLAB90", Width: RibSlabWidth},
			},
			LossDBPerCm: 1.0,
		},
		{
			Name:        Nitride,
			Width:       NitrideWidth,
			Radius:      NitrideRadius,
			Layer:       "WGN",
			Spacing:     StripSpacing,
			LossDBPerCm: 0.5,
		},
		{
			// Metal has no bend radius; corners are sharp.
			Name:    MetalRouting,
			Width:   MetalRoutingWidth,
			Layer:   "M3",
			Spacing: MetalRoutingSpacing,
		},
	}
}

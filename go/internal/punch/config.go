package punch

// Config holds the tuning parameters consulted by every Classifier. Field names follow
// the JSON the phone, debug and display pages already exchange.
type Config struct {
	WeakThreshold   float64         `json:"weakThreshold" yaml:"weakThreshold" toml:"weakThreshold"`
	NormalThreshold float64         `json:"normalThreshold" yaml:"normalThreshold" toml:"normalThreshold"`
	StrongThreshold float64         `json:"strongThreshold" yaml:"strongThreshold" toml:"strongThreshold"`
	CoolDownMs      float64         `json:"coolDown" yaml:"coolDown" toml:"coolDown"`
	MaxValue        float64         `json:"maxValue" yaml:"maxValue" toml:"maxValue"`
	MinThreshold    float64         `json:"minThreshold" yaml:"minThreshold" toml:"minThreshold"`
	AccelWeights    Weights         `json:"accelWeights" yaml:"accelWeights" toml:"accelWeights"`
	DirectionFilter DirectionFilter `json:"directionFilter" yaml:"directionFilter" toml:"directionFilter"`
	PhotoScroll     PhotoScroll     `json:"photoScroll" yaml:"photoScroll" toml:"photoScroll"`
}

// Weights scales the absolute acceleration of each axis
type Weights struct {
	X float64 `json:"x" yaml:"x" toml:"x"`
	Y float64 `json:"y" yaml:"y" toml:"y"`
	Z float64 `json:"z" yaml:"z" toml:"z"`
}

// DirectionFilter restricts punches to a single signed dominant axis, e.g. "positive-x".
// Tolerance is carried for the debug UI; the filter itself only compares axis and sign.
type DirectionFilter struct {
	Enabled      bool    `json:"enabled" yaml:"enabled" toml:"enabled"`
	ToleranceDeg float64 `json:"tolerance" yaml:"tolerance" toml:"tolerance"`
	Direction    string  `json:"direction" yaml:"direction" toml:"direction"`
}

// PhotoScroll controls how many slides a display advances per punch
type PhotoScroll struct {
	BaseMultiplier float64 `json:"baseMultiplier" yaml:"baseMultiplier" toml:"baseMultiplier"`
	ScalingFactor  float64 `json:"scalingFactor" yaml:"scalingFactor" toml:"scalingFactor"`
	MaxPhotos      int     `json:"maxPhotos" yaml:"maxPhotos" toml:"maxPhotos"`
}

// DefaultConfig returns the tuning used at process start
func DefaultConfig() Config {
	return Config{
		WeakThreshold:   3,
		NormalThreshold: 6,
		StrongThreshold: 15,
		CoolDownMs:      300,
		MaxValue:        40,
		MinThreshold:    2,
		AccelWeights:    Weights{X: 1.0, Y: 1.0, Z: 1.0},
		DirectionFilter: DirectionFilter{
			Enabled:      false,
			ToleranceDeg: 45,
			Direction:    "positive-x",
		},
		PhotoScroll: PhotoScroll{
			BaseMultiplier: 1.0,
			ScalingFactor:  0.2,
			MaxPhotos:      10,
		},
	}
}

// Patch is a partial Config. Nil fields keep their current value.
type Patch struct {
	WeakThreshold   *float64              `json:"weakThreshold,omitempty" yaml:"weakThreshold" toml:"weakThreshold"`
	NormalThreshold *float64              `json:"normalThreshold,omitempty" yaml:"normalThreshold" toml:"normalThreshold"`
	StrongThreshold *float64              `json:"strongThreshold,omitempty" yaml:"strongThreshold" toml:"strongThreshold"`
	CoolDownMs      *float64              `json:"coolDown,omitempty" yaml:"coolDown" toml:"coolDown"`
	MaxValue        *float64              `json:"maxValue,omitempty" yaml:"maxValue" toml:"maxValue"`
	MinThreshold    *float64              `json:"minThreshold,omitempty" yaml:"minThreshold" toml:"minThreshold"`
	AccelWeights    *WeightsPatch         `json:"accelWeights,omitempty" yaml:"accelWeights" toml:"accelWeights"`
	DirectionFilter *DirectionFilterPatch `json:"directionFilter,omitempty" yaml:"directionFilter" toml:"directionFilter"`
	PhotoScroll     *PhotoScrollPatch     `json:"photoScroll,omitempty" yaml:"photoScroll" toml:"photoScroll"`
}

// WeightsPatch is a partial Weights
type WeightsPatch struct {
	X *float64 `json:"x,omitempty" yaml:"x" toml:"x"`
	Y *float64 `json:"y,omitempty" yaml:"y" toml:"y"`
	Z *float64 `json:"z,omitempty" yaml:"z" toml:"z"`
}

// DirectionFilterPatch is a partial DirectionFilter
type DirectionFilterPatch struct {
	Enabled      *bool    `json:"enabled,omitempty" yaml:"enabled" toml:"enabled"`
	ToleranceDeg *float64 `json:"tolerance,omitempty" yaml:"tolerance" toml:"tolerance"`
	Direction    *string  `json:"direction,omitempty" yaml:"direction" toml:"direction"`
}

// PhotoScrollPatch is a partial PhotoScroll
type PhotoScrollPatch struct {
	BaseMultiplier *float64 `json:"baseMultiplier,omitempty" yaml:"baseMultiplier" toml:"baseMultiplier"`
	ScalingFactor  *float64 `json:"scalingFactor,omitempty" yaml:"scalingFactor" toml:"scalingFactor"`
	MaxPhotos      *int     `json:"maxPhotos,omitempty" yaml:"maxPhotos" toml:"maxPhotos"`
}

// Document is the envelope used by the config API and config files: {"punch": {...}}
type Document struct {
	Punch *Patch `json:"punch,omitempty" yaml:"punch" toml:"punch"`
}

// Merge returns a copy of c with every non-nil leaf of p applied. Nested objects are
// merged key by key and never replaced wholesale.
func (c Config) Merge(p Patch) Config {
	setFloat(&c.WeakThreshold, p.WeakThreshold)
	setFloat(&c.NormalThreshold, p.NormalThreshold)
	setFloat(&c.StrongThreshold, p.StrongThreshold)
	setFloat(&c.CoolDownMs, p.CoolDownMs)
	setFloat(&c.MaxValue, p.MaxValue)
	setFloat(&c.MinThreshold, p.MinThreshold)

	if w := p.AccelWeights; w != nil {
		setFloat(&c.AccelWeights.X, w.X)
		setFloat(&c.AccelWeights.Y, w.Y)
		setFloat(&c.AccelWeights.Z, w.Z)
	}

	if f := p.DirectionFilter; f != nil {
		if f.Enabled != nil {
			c.DirectionFilter.Enabled = *f.Enabled
		}
		setFloat(&c.DirectionFilter.ToleranceDeg, f.ToleranceDeg)
		if f.Direction != nil {
			c.DirectionFilter.Direction = *f.Direction
		}
	}

	if s := p.PhotoScroll; s != nil {
		setFloat(&c.PhotoScroll.BaseMultiplier, s.BaseMultiplier)
		setFloat(&c.PhotoScroll.ScalingFactor, s.ScalingFactor)
		if s.MaxPhotos != nil {
			c.PhotoScroll.MaxPhotos = *s.MaxPhotos
		}
	}

	return c
}

// Ordered reports whether minThreshold <= weak <= normal <= strong. The classifier does
// not require it; callers use it to warn about suspicious tuning.
func (c Config) Ordered() bool {
	return c.MinThreshold <= c.WeakThreshold &&
		c.WeakThreshold <= c.NormalThreshold &&
		c.NormalThreshold <= c.StrongThreshold
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

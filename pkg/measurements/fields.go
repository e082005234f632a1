package measurements

// Composition holds the fourteen body-composition readings of one record.
type Composition struct {
	WeightKg             Value `json:"weight_kg" yaml:"weight_kg"`
	BodyFatPct           Value `json:"body_fat_pct" yaml:"body_fat_pct"`
	FatMassKg            Value `json:"fat_mass_kg" yaml:"fat_mass_kg"`
	FatFreePct           Value `json:"fat_free_pct" yaml:"fat_free_pct"`
	FatFreeMassKg        Value `json:"fat_free_mass_kg" yaml:"fat_free_mass_kg"`
	SkeletalMusclePct    Value `json:"skeletal_muscle_pct" yaml:"skeletal_muscle_pct"`
	SkeletalMuscleMassKg Value `json:"skeletal_muscle_mass_kg" yaml:"skeletal_muscle_mass_kg"`
	MusclePct            Value `json:"muscle_pct" yaml:"muscle_pct"`
	MuscleMassKg         Value `json:"muscle_mass_kg" yaml:"muscle_mass_kg"`
	BoneMassKg           Value `json:"bone_mass_kg" yaml:"bone_mass_kg"`
	BodyWater            Value `json:"body_water" yaml:"body_water"`
	BMRKcal              Value `json:"bmr_kcal" yaml:"bmr_kcal"`
	MetabolicAge         Value `json:"metabolic_age" yaml:"metabolic_age"`
	VisceralFatRating    Value `json:"visceral_fat_rating" yaml:"visceral_fat_rating"`
}

// Field names.
const (
	FieldWeightKg             = "weight_kg"
	FieldBodyFatPct           = "body_fat_pct"
	FieldFatMassKg            = "fat_mass_kg"
	FieldFatFreePct           = "fat_free_pct"
	FieldFatFreeMassKg        = "fat_free_mass_kg"
	FieldSkeletalMusclePct    = "skeletal_muscle_pct"
	FieldSkeletalMuscleMassKg = "skeletal_muscle_mass_kg"
	FieldMusclePct            = "muscle_pct"
	FieldMuscleMassKg         = "muscle_mass_kg"
	FieldBoneMassKg           = "bone_mass_kg"
	FieldBodyWater            = "body_water"
	FieldBMRKcal              = "bmr_kcal"
	FieldMetabolicAge         = "metabolic_age"
	FieldVisceralFatRating    = "visceral_fat_rating"
)

// Field describes one mergeable reading. The merge step, the comparison
// report and the writers all iterate Fields rather than naming readings.
type Field struct {
	Name string
	// Tolerance overrides the global numeric tolerance when non-nil.
	Tolerance *float64
	// Audited fields keep both raw source values when they conflict.
	Audited bool
	// Compared fields are checked by the comparison report.
	Compared bool

	get func(*Composition) *Value
}

// Get returns the field's value in c.
func (f Field) Get(c Composition) Value {
	return *f.get(&c)
}

// Set stores v as the field's value in c.
func (f Field) Set(c *Composition, v Value) {
	*f.get(c) = v
}

// Fields is the ordered field table. Weight comes first.
var Fields = []Field{
	{Name: FieldWeightKg, Audited: true, Compared: true, get: func(c *Composition) *Value { return &c.WeightKg }},
	{Name: FieldBodyFatPct, Audited: true, Compared: true, get: func(c *Composition) *Value { return &c.BodyFatPct }},
	{Name: FieldFatMassKg, Compared: true, get: func(c *Composition) *Value { return &c.FatMassKg }},
	{Name: FieldFatFreePct, Compared: true, get: func(c *Composition) *Value { return &c.FatFreePct }},
	{Name: FieldFatFreeMassKg, Compared: true, get: func(c *Composition) *Value { return &c.FatFreeMassKg }},
	{Name: FieldSkeletalMusclePct, get: func(c *Composition) *Value { return &c.SkeletalMusclePct }},
	{Name: FieldSkeletalMuscleMassKg, get: func(c *Composition) *Value { return &c.SkeletalMuscleMassKg }},
	{Name: FieldMusclePct, get: func(c *Composition) *Value { return &c.MusclePct }},
	{Name: FieldMuscleMassKg, get: func(c *Composition) *Value { return &c.MuscleMassKg }},
	{Name: FieldBoneMassKg, get: func(c *Composition) *Value { return &c.BoneMassKg }},
	{Name: FieldBodyWater, get: func(c *Composition) *Value { return &c.BodyWater }},
	{Name: FieldBMRKcal, get: func(c *Composition) *Value { return &c.BMRKcal }},
	{Name: FieldMetabolicAge, get: func(c *Composition) *Value { return &c.MetabolicAge }},
	{Name: FieldVisceralFatRating, get: func(c *Composition) *Value { return &c.VisceralFatRating }},
}

// FieldByName looks up a field descriptor.
func FieldByName(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in table order.
func FieldNames() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

// ComparedFields returns the descriptors the comparison report checks.
func ComparedFields() []Field {
	var out []Field
	for _, f := range Fields {
		if f.Compared {
			out = append(out, f)
		}
	}
	return out
}

// Values returns the composition as a name-to-value map of present readings.
func (c Composition) Values() map[string]float64 {
	out := make(map[string]float64, len(Fields))
	for _, f := range Fields {
		if v, ok := f.Get(c).Get(); ok {
			out[f.Name] = v
		}
	}
	return out
}

// Empty reports whether no reading is present.
func (c Composition) Empty() bool {
	for _, f := range Fields {
		if f.Get(c).IsSet() {
			return false
		}
	}
	return true
}

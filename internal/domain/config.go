package domain

// Fields names the item fields the pipeline reads and writes.
type Fields struct {
	URLs   string `yaml:"urls"`
	Result string `yaml:"result"`
	KeyGen string `yaml:"keygen"`
}

// WithDefaults fills empty names with the stage defaults.
func (f Fields) WithDefaults() Fields {
	if f.URLs == "" {
		f.URLs = DefaultURLsField
	}
	if f.Result == "" {
		f.Result = DefaultResultField
	}
	if f.KeyGen == "" {
		f.KeyGen = DefaultKeyGenField
	}
	return f
}

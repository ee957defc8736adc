package filesystem

// yamlCase is the deserialization target for one entry of a case file. JSON
// case files use the same keys.
type yamlCase struct {
	Name   string      `yaml:"name"`
	Path   string      `yaml:"path"`
	Query  string      `yaml:"query"`
	Expect yamlExpect  `yaml:"expectResult"`
	Checks []yamlCheck `yaml:"checks,omitempty"`
}

type yamlExpect struct {
	ShareParams     map[string]any `yaml:"shareParams,omitempty"`
	EntranceParams  map[string]any `yaml:"entranceParams,omitempty"`
	PromotionParams map[string]any `yaml:"promotionParams,omitempty"`
	PayParams       map[string]any `yaml:"payParams,omitempty"`
}

type yamlCheck struct {
	Name    string `yaml:"name"`
	Bucket  string `yaml:"bucket,omitempty"`
	Layer   string `yaml:"layer,omitempty"`
	Path    string `yaml:"path,omitempty"`
	Matcher string `yaml:"matcher,omitempty"`
	Engine  string `yaml:"engine,omitempty"`
	Source  string `yaml:"source,omitempty"`
}

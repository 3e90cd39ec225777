// Package corpus holds the fixed demo corpus and the preset query shortcuts.
package corpus

// DefaultCollection is the collection the demo corpus is loaded into.
const DefaultCollection = "text_search_demo"

// Default is the eight-document sample corpus, in id order.
var Default = []string{
	"Artificial intelligence is transforming the technology industry.",
	"Machine learning models require large amounts of training data.",
	"Vector databases enable efficient similarity search at scale.",
	"Natural language processing helps computers understand human language.",
	"Deep learning has revolutionized computer vision applications.",
	"Cloud computing provides scalable infrastructure for applications.",
	"Cybersecurity is crucial for protecting digital assets.",
	"Quantum computing promises to solve complex computational problems.",
}

// Preset is a named shortcut that sets a literal query.
type Preset struct {
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label" json:"label"`
	Query string `yaml:"query" json:"query"`
}

// Presets are the three fixed example shortcuts.
var Presets = []Preset{
	{Name: "ai", Label: "🤖 AI & ML", Query: "AI and machine learning technologies"},
	{Name: "databases", Label: "💾 Databases", Query: "database for vector similarity"},
	{Name: "language", Label: "💬 Language", Query: "understanding human text"},
}

// FindPreset returns the preset with the given name.
func FindPreset(presets []Preset, name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

package loam

// TemplateMetadata is the frontmatter (or JSON/YAML body) of a palette
// template file. It uses "mapstructure" tags to match the YAML keys. The
// template kind is the file name without extension.
//
//	hero.md:
//	---
//	label: Hero
//	category: Layout
//	tag: section
//	styles: {padding: 32px}
//	children:
//	  - tag: h1
//	    text: Welcome
//	  - button        # another template, by kind
//	---
//	Optional body, used as the root text when `text` is empty.
type TemplateMetadata struct {
	Label    string `json:"label" mapstructure:"label"`
	Category string `json:"category" mapstructure:"category"`

	// Root element
	Tag        string         `json:"tag" mapstructure:"tag"`
	Text       string         `json:"text" mapstructure:"text"`
	Styles     map[string]any `json:"styles" mapstructure:"styles"`
	Attributes map[string]any `json:"attributes" mapstructure:"attributes"`

	// Children holds inline element definitions (maps) or references to
	// other templates (strings).
	Children []any `json:"children" mapstructure:"children"`
}

// ElementSpec is an inline child definition.
type ElementSpec struct {
	Tag        string         `mapstructure:"tag"`
	Text       string         `mapstructure:"text"`
	Styles     map[string]any `mapstructure:"styles"`
	Attributes map[string]any `mapstructure:"attributes"`
	Children   []any          `mapstructure:"children"`
}

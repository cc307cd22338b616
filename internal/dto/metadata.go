package dto

// PluginMetadata is the metadata half of an extension-node-map entry.
// It uses "mapstructure" tags so loosely typed registry documents decode
// without a hand-written unmarshaller.
type PluginMetadata struct {
	Nickname        string   `json:"nickname,omitempty" mapstructure:"nickname"`
	Title           string   `json:"title,omitempty" mapstructure:"title"`
	TitleAux        string   `json:"title_aux,omitempty" mapstructure:"title_aux"`
	Author          string   `json:"author,omitempty" mapstructure:"author"`
	Description     string   `json:"description,omitempty" mapstructure:"description"`
	NodenamePattern string   `json:"nodename_pattern,omitempty" mapstructure:"nodename_pattern"`
	Preemptions     []string `json:"preemptions,omitempty" mapstructure:"preemptions"`
}

// DisplayName picks the first non-empty of nickname, title and title_aux.
func (m PluginMetadata) DisplayName() string {
	for _, s := range []string{m.Nickname, m.Title, m.TitleAux} {
		if s != "" {
			return s
		}
	}
	return ""
}

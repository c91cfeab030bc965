package domain

// ToolLocation points at a directory holding both the transcoder and its probe.
// The zero value means the tools were not found.
type ToolLocation struct {
	Dir        string `json:"dir,omitempty"`
	Executable string `json:"executable,omitempty"`
	Probe      string `json:"probe,omitempty"`
	Source     string `json:"source,omitempty"` // which search tier produced the hit
}

// Found reports whether the location is usable
func (t ToolLocation) Found() bool {
	return t.Dir != "" && t.Executable != ""
}

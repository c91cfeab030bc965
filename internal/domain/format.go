package domain

// PostProcessing describes the audio extraction step handed to the transcoder
type PostProcessing struct {
	Codec       string   `json:"codec"`
	BitrateKbps int      `json:"bitrate_kbps"`
	ExtraArgs   []string `json:"extra_args,omitempty"`
}

// FormatPlan is the fetch library's stream selection for one request
type FormatPlan struct {
	Selector          string          `json:"selector"`
	PostProcessing    *PostProcessing `json:"post_processing,omitempty"`
	MergeOutputFormat string          `json:"merge_output_format,omitempty"`
}

// RequiresMerge reports whether the selector asks for separate streams to be combined
func (p FormatPlan) RequiresMerge() bool {
	for i := 0; i < len(p.Selector); i++ {
		if p.Selector[i] == '+' {
			return true
		}
	}
	return false
}

// RequiresTranscode reports whether the plan needs the transcoder after download
func (p FormatPlan) RequiresTranscode() bool {
	return p.PostProcessing != nil
}

// OutputExtension returns the final file extension when it is known up front
func (p FormatPlan) OutputExtension() string {
	if p.PostProcessing != nil {
		return p.PostProcessing.Codec
	}
	return p.MergeOutputFormat
}
